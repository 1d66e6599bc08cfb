package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscfi/exam-reservation/internal/model"
)

func machineID(id uint64) *uint64 { return &id }

func TestAnnotateCountsFreeMachines(t *testing.T) {
	t.Parallel()

	machines := []model.Machine{{ID: 1, RoomID: 1}, {ID: 2, RoomID: 1}}
	reservations := []model.Reservation{{ID: 10, MachineID: machineID(1), Start: at(10, 0), End: at(11, 0)}}
	slots := GenerateSlots([]Interval{iv(9, 12)}, time.Hour)

	got := Annotate(slots, machines, reservations, nil)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].AvailableMachines)
	assert.Equal(t, 1, got[1].AvailableMachines)
	assert.Equal(t, at(10, 0), got[1].Start)
	assert.Equal(t, 2, got[2].AvailableMachines)
}

func TestAnnotateKeepsFullSlotsAndSkipsIneligible(t *testing.T) {
	t.Parallel()

	machines := []model.Machine{
		{ID: 1, Software: []uint64{7}},
		{ID: 2, Software: []uint64{7}, OutOfService: true},
		{ID: 3, Software: []uint64{7}, Archived: true},
		{ID: 4},
	}
	reservations := []model.Reservation{
		{ID: 10, MachineID: machineID(1), Start: at(9, 30), End: at(10, 30)},
		{ID: 11, Start: at(9, 0), End: at(10, 0), External: &model.ExternalReservation{Ref: "x"}},
	}
	slots := []Interval{iv(9, 10), iv(10, 11), iv(11, 12)}

	got := Annotate(slots, machines, reservations, []uint64{7})
	require.Len(t, got, 3)
	assert.Equal(t, 0, got[0].AvailableMachines)
	assert.Equal(t, 0, got[1].AvailableMachines)
	assert.Equal(t, 1, got[2].AvailableMachines)
}

func TestAnnotateIsOrderIndependentAndBounded(t *testing.T) {
	t.Parallel()

	machines := []model.Machine{{ID: 3}, {ID: 1}, {ID: 2}}
	reversed := []model.Machine{{ID: 2}, {ID: 1}, {ID: 3}}
	reservations := []model.Reservation{
		{ID: 1, MachineID: machineID(2), Start: at(9, 0), End: at(12, 0)},
		{ID: 2, MachineID: machineID(3), Start: at(10, 0), End: at(10, 30)},
	}
	slots := GenerateSlots([]Interval{iv(9, 13)}, 30*time.Minute)

	first := Annotate(slots, machines, reservations, nil)
	second := Annotate(slots, reversed, []model.Reservation{reservations[1], reservations[0]}, nil)
	assert.Equal(t, first, second)
	for _, s := range first {
		assert.GreaterOrEqual(t, s.AvailableMachines, 0)
		assert.LessOrEqual(t, s.AvailableMachines, len(machines))
	}
}

func TestFreeMachinesIgnoresReplacedReservation(t *testing.T) {
	t.Parallel()

	machines := []model.Machine{{ID: 1}}
	reservations := []model.Reservation{{ID: 10, MachineID: machineID(1), Start: at(10, 0), End: at(11, 0)}}

	assert.Empty(t, FreeMachines(iv(10, 11), machines, reservations, nil))
	free := FreeMachines(iv(10, 11), machines, reservations, nil, 10)
	require.Len(t, free, 1)
	assert.Equal(t, uint64(1), free[0].ID)
}

func TestFindSuitableSlot(t *testing.T) {
	t.Parallel()

	target := model.Machine{ID: 5, RoomID: 2}
	// Target room grid starts at 09:10.
	open := []Interval{{Start: at(9, 10), End: at(17, 10)}}
	current := model.Reservation{ID: 1, MachineID: machineID(1), Start: at(10, 0), End: at(11, 0)}

	got, ok := FindSuitableSlot(target, current, time.Hour, open, nil, nil)
	require.True(t, ok)
	assert.Equal(t, Interval{Start: at(10, 10), End: at(11, 10)}, got)

	busy := []model.Reservation{{ID: 2, MachineID: machineID(5), Start: at(10, 10), End: at(11, 10)}}
	got, ok = FindSuitableSlot(target, current, time.Hour, open, busy, nil)
	require.True(t, ok)
	assert.Equal(t, Interval{Start: at(11, 10), End: at(12, 10)}, got)

	_, ok = FindSuitableSlot(model.Machine{ID: 6, Archived: true}, current, time.Hour, open, nil, nil)
	assert.False(t, ok)

	_, ok = FindSuitableSlot(target, model.Reservation{ID: 1, Start: at(16, 30), End: at(17, 30)}, time.Hour, open, nil, nil)
	assert.False(t, ok)
}
