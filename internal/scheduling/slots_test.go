package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscfi/exam-reservation/internal/model"
)

func TestGenerateSlotsFullDay(t *testing.T) {
	t.Parallel()

	open := ResolveOpenIntervals(weekdayRoom(), time.UTC, at(0, 0), nil)
	slots := GenerateSlots(open, time.Hour)

	require.Len(t, slots, 8)
	assert.Equal(t, iv(9, 10), slots[0])
	assert.Equal(t, iv(16, 17), slots[7])
}

func TestGenerateSlotsSkipMaintenance(t *testing.T) {
	t.Parallel()

	maintenance := []model.MaintenancePeriod{{ID: 1, Start: at(12, 0), End: at(13, 0)}}
	open := ResolveOpenIntervals(weekdayRoom(), time.UTC, at(0, 0), maintenance)
	slots := GenerateSlots(open, time.Hour)

	require.Len(t, slots, 7)
	for _, s := range slots {
		assert.NotEqual(t, iv(12, 13), s)
	}
	assert.Equal(t, iv(11, 12), slots[2])
	assert.Equal(t, iv(13, 14), slots[3])
}

func TestGenerateSlotsDropsPartialRemainder(t *testing.T) {
	t.Parallel()

	open := []Interval{{Start: at(9, 0), End: at(11, 20)}, {Start: at(12, 0), End: at(12, 45)}}
	slots := GenerateSlots(open, 50*time.Minute)

	assert.Equal(t, []Interval{
		{Start: at(9, 0), End: at(9, 50)},
		{Start: at(9, 50), End: at(10, 40)},
	}, slots)
}

func TestGenerateSlotsPropertiesAndDeterminism(t *testing.T) {
	t.Parallel()

	room := weekdayRoom()
	room.Exceptions = []model.ExceptionHours{
		{Start: at(6, 10), End: at(7, 55)},
		{Start: at(14, 20), End: at(15, 5), OutOfService: true},
	}
	maintenance := []model.MaintenancePeriod{{ID: 1, Start: at(10, 40), End: at(11, 15)}}

	for _, minutes := range []int{15, 45, 60, 90, 180} {
		duration := time.Duration(minutes) * time.Minute
		open := ResolveOpenIntervals(room, time.UTC, at(0, 0), maintenance)
		slots := GenerateSlots(open, duration)
		again := GenerateSlots(ResolveOpenIntervals(room, time.UTC, at(0, 0), maintenance), duration)
		require.Equal(t, slots, again)

		for i, s := range slots {
			require.Equal(t, duration, s.Duration())
			inside := false
			for _, o := range open {
				if o.Contains(s) {
					inside = true
					break
				}
			}
			require.True(t, inside, "slot %v outside open intervals", s)
			if i > 0 {
				require.False(t, s.Start.Before(slots[i-1].End))
			}
		}
	}
}

func TestGenerateSlotsRejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	assert.Nil(t, GenerateSlots([]Interval{iv(9, 17)}, 0))
}

func TestWindow(t *testing.T) {
	t.Parallel()

	slots := []Interval{iv(9, 10), iv(10, 11), iv(11, 12)}
	assert.Equal(t, []Interval{iv(10, 11)}, Window(slots, at(9, 30), at(11, 30)))
	assert.Equal(t, []Interval{iv(10, 11), iv(11, 12)}, Window(slots, at(10, 0), time.Time{}))
}
