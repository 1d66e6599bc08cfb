package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.March, 14, hour, minute, 0, 0, time.UTC)
}

func iv(startHour, endHour int) Interval {
	return Interval{Start: at(startHour, 0), End: at(endHour, 0)}
}

func TestIntervalOverlapsIsHalfOpen(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"touching", iv(9, 10), iv(10, 11), false},
		{"overlapping", iv(9, 11), iv(10, 12), true},
		{"contained", iv(9, 17), iv(12, 13), true},
		{"disjoint", iv(9, 10), iv(11, 12), false},
		{"empty", iv(10, 10), iv(9, 11), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}

func TestIntervalSubtract(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Interval{iv(9, 12), iv(13, 17)}, iv(9, 17).Subtract(iv(12, 13)))
	assert.Equal(t, []Interval{iv(10, 17)}, iv(9, 17).Subtract(iv(8, 10)))
	assert.Equal(t, []Interval{iv(9, 16)}, iv(9, 17).Subtract(iv(16, 18)))
	assert.Empty(t, iv(9, 17).Subtract(iv(8, 18)))
	assert.Equal(t, []Interval{iv(9, 17)}, iv(9, 17).Subtract(iv(17, 18)))
}

func TestMergeCoalescesAndSorts(t *testing.T) {
	t.Parallel()

	got := Merge([]Interval{iv(13, 15), iv(9, 10), iv(10, 11), iv(14, 16), iv(12, 12)})
	assert.Equal(t, []Interval{iv(9, 11), iv(13, 16)}, got)
	assert.Nil(t, Merge(nil))
}

func TestGaps(t *testing.T) {
	t.Parallel()

	got := Gaps(iv(6, 12), []Interval{iv(7, 8), iv(6, 6), iv(7, 9)})
	assert.Equal(t, []Interval{iv(6, 7), iv(9, 12)}, got)

	require.Empty(t, Gaps(iv(6, 12), []Interval{iv(5, 13)}))
}

func TestIntersect(t *testing.T) {
	t.Parallel()

	got, ok := iv(9, 12).Intersect(iv(11, 14))
	require.True(t, ok)
	assert.Equal(t, iv(11, 12), got)

	_, ok = iv(9, 10).Intersect(iv(10, 11))
	assert.False(t, ok)
}
