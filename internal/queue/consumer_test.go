package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteLine(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	ev := ReservationEvent{
		Type:                  EventReservationConfirmed,
		ReservationID:         12,
		ReplacedReservationID: 7,
		UserID:                3,
		ExamID:                4,
		MachineID:             9,
		StartsAt:              time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
		EndsAt:                time.Date(2024, 3, 14, 11, 0, 0, 0, time.UTC),
		OccurredAt:            time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, WriteLine(&sb, ev))

	assert.Equal(t,
		"[2024-03-13T08:00:00Z] reservation.confirmed | user_id=3 | exam_id=4 | reservation_id=12 | replaced_reservation_id=7 | machine_id=9 | window=2024-03-14T10:00:00Z/2024-03-14T11:00:00Z\n",
		sb.String())
}

func TestConsumerHandleAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "notifications.log")
	c := NewConsumer("", path, zap.NewNop())

	for _, id := range []uint64{1, 2} {
		body, err := json.Marshal(ReservationEvent{Type: EventReservationCancelled, ReservationID: id, UserID: 5})
		require.NoError(t, err)
		require.NoError(t, c.handle(body))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "reservation_id=1")
	assert.Contains(t, lines[1], "reservation_id=2")

	assert.Error(t, c.handle([]byte("{")))
}
