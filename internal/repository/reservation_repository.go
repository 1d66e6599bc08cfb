package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

const reservationColumns = `id, user_id, machine_id, start_at, end_at,
	external_org_ref, external_room_ref, external_ref, created_at`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var (
		r                 model.Reservation
		machine           sql.NullInt64
		org, room, extRef sql.NullString
	)
	if err := row.Scan(&r.ID, &r.UserID, &machine, &r.Start, &r.End, &org, &room, &extRef, &r.CreatedAt); err != nil {
		return model.Reservation{}, err
	}
	r.MachineID = uintPtr(machine)
	if extRef.Valid && extRef.String != "" {
		r.External = &model.ExternalReservation{OrgRef: org.String, RoomRef: room.String, Ref: extRef.String}
	}
	return r, nil
}

func (x queries) listReservations(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := x.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetReservation loads one reservation.
func (x queries) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	r, err := scanReservation(x.q.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`+x.forUpdate(), id))
	if err != nil {
		return model.Reservation{}, mapErr(err)
	}
	return r, nil
}

// ListMachineReservations returns reservations on the machines that
// overlap [from, to).  Inside a lease the scanned index range is locked,
// so a concurrent booking of the same machine and window waits for this
// transaction or fails with a deadlock that maps to ErrConflict.
func (x queries) ListMachineReservations(ctx context.Context, machineIDs []uint64, from, to time.Time) ([]model.Reservation, error) {
	if len(machineIDs) == 0 {
		return nil, nil
	}
	marks, args := placeholders(machineIDs)
	args = append(args, to.UTC(), from.UTC())
	return x.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE machine_id IN (`+marks+`) AND start_at < ? AND end_at > ?
		 ORDER BY start_at, id`+x.forUpdate(), args...)
}

// ListUserReservations returns all reservations of a user ordered by
// start.
func (x queries) ListUserReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return x.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY start_at, id`+x.forUpdate(), userID)
}

// mysqlTx is the Tx handed to lease bodies.
type mysqlTx struct {
	queries
	tx *sql.Tx
}

var _ Tx = (*mysqlTx)(nil)

// CreateReservation inserts a reservation and sets its ID.
func (t *mysqlTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	var org, room, ref sql.NullString
	if r.External != nil {
		org = sql.NullString{String: r.External.OrgRef, Valid: true}
		room = sql.NullString{String: r.External.RoomRef, Valid: true}
		ref = sql.NullString{String: r.External.Ref, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO reservations (user_id, machine_id, start_at, end_at, external_org_ref, external_room_ref, external_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, nullUint(r.MachineID), r.Start.UTC(), r.End.UTC(), org, room, ref, r.CreatedAt.UTC())
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

// UpdateReservation rewrites the machine and window of a reservation.
func (t *mysqlTx) UpdateReservation(ctx context.Context, r model.Reservation) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET machine_id = ?, start_at = ?, end_at = ? WHERE id = ?`,
		nullUint(r.MachineID), r.Start.UTC(), r.End.UTC(), r.ID)
	return affected(res, err)
}

// DeleteReservation removes a reservation.  The owning enrolment must
// have been detached first.
func (t *mysqlTx) DeleteReservation(ctx context.Context, id uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	return affected(res, err)
}

// affected maps an update or delete that touched no row to ErrNotFound.
// MySQL reports zero affected rows for an UPDATE that changes nothing, so
// callers only use it where the row was locked beforehand.
func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
