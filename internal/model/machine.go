package model

// Machine is an examination workstation belonging to exactly one room.
// Software lists the identifiers of the software installed on it; an
// exam requiring software can only be booked on machines that carry all
// of it.
type Machine struct {
	ID           uint64   // machines.id
	RoomID       uint64   // machines.room_id
	Name         string   // machines.name
	OutOfService bool     // machines.out_of_service
	Archived     bool     // machines.archived
	Software     []uint64 // machine_software.software_id
}

// HasSoftware reports whether every identifier in required is installed.
func (m Machine) HasSoftware(required []uint64) bool {
	if len(required) == 0 {
		return true
	}
	installed := make(map[uint64]struct{}, len(m.Software))
	for _, id := range m.Software {
		installed[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := installed[id]; !ok {
			return false
		}
	}
	return true
}
