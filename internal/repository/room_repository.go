package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

// GetRoom loads a room with its weekly hours and exceptions.
func (x queries) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	const q = `SELECT id, name, timezone, out_of_service, active, external_org_ref, external_room_ref
	           FROM rooms WHERE id = ?`
	var (
		r       model.Room
		org, rm sql.NullString
	)
	err := x.q.QueryRowContext(ctx, q, id).Scan(&r.ID, &r.Name, &r.Timezone, &r.OutOfService, &r.Active, &org, &rm)
	if err != nil {
		return model.Room{}, mapErr(err)
	}
	r.ExternalOrgRef = org.String
	r.ExternalRoomRef = rm.String

	rows, err := x.q.QueryContext(ctx,
		`SELECT weekday, open_minute, close_minute FROM room_working_hours WHERE room_id = ? ORDER BY weekday, open_minute`, id)
	if err != nil {
		return model.Room{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var h model.WorkingHours
		var weekday int
		if err := rows.Scan(&weekday, &h.OpenMinute, &h.CloseMinute); err != nil {
			return model.Room{}, err
		}
		h.Weekday = time.Weekday(weekday)
		r.DefaultHours = append(r.DefaultHours, h)
	}
	if err := rows.Err(); err != nil {
		return model.Room{}, err
	}

	ex, err := x.q.QueryContext(ctx,
		`SELECT start_at, end_at, out_of_service FROM room_exception_hours WHERE room_id = ? ORDER BY start_at`, id)
	if err != nil {
		return model.Room{}, err
	}
	defer ex.Close()
	for ex.Next() {
		var e model.ExceptionHours
		if err := ex.Scan(&e.Start, &e.End, &e.OutOfService); err != nil {
			return model.Room{}, err
		}
		r.Exceptions = append(r.Exceptions, e)
	}
	return r, ex.Err()
}

// GetMachine loads a machine with its installed software.
func (x queries) GetMachine(ctx context.Context, id uint64) (model.Machine, error) {
	var m model.Machine
	err := x.q.QueryRowContext(ctx,
		`SELECT id, room_id, name, out_of_service, archived FROM machines WHERE id = ?`, id).
		Scan(&m.ID, &m.RoomID, &m.Name, &m.OutOfService, &m.Archived)
	if err != nil {
		return model.Machine{}, mapErr(err)
	}
	machines := []model.Machine{m}
	if err := x.loadSoftware(ctx, machines); err != nil {
		return model.Machine{}, err
	}
	return machines[0], nil
}

// ListMachines returns the machines of a room ordered by ID, archived
// ones included; eligibility is decided by the scheduler.
func (x queries) ListMachines(ctx context.Context, roomID uint64) ([]model.Machine, error) {
	rows, err := x.q.QueryContext(ctx,
		`SELECT id, room_id, name, out_of_service, archived FROM machines WHERE room_id = ? ORDER BY id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Machine
	for rows.Next() {
		var m model.Machine
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Name, &m.OutOfService, &m.Archived); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := x.loadSoftware(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (x queries) loadSoftware(ctx context.Context, machines []model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	ids := make([]uint64, len(machines))
	index := make(map[uint64]int, len(machines))
	for i, m := range machines {
		ids[i] = m.ID
		index[m.ID] = i
	}
	marks, args := placeholders(ids)
	rows, err := x.q.QueryContext(ctx,
		`SELECT machine_id, software_id FROM machine_software WHERE machine_id IN (`+marks+`) ORDER BY machine_id, software_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var machineID, softwareID uint64
		if err := rows.Scan(&machineID, &softwareID); err != nil {
			return err
		}
		i := index[machineID]
		machines[i].Software = append(machines[i].Software, softwareID)
	}
	return rows.Err()
}
