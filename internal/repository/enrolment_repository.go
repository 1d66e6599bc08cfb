package repository

import (
	"context"
	"database/sql"

	"github.com/cscfi/exam-reservation/internal/model"
)

const enrolmentColumns = `id, user_id, exam_id, reservation_id, event_configuration_id, created_at`

func scanEnrolment(row interface{ Scan(...any) error }) (model.ExamEnrolment, error) {
	var (
		e                  model.ExamEnrolment
		reservation, event sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.ExamID, &reservation, &event, &e.CreatedAt); err != nil {
		return model.ExamEnrolment{}, err
	}
	e.ReservationID = uintPtr(reservation)
	e.EventConfigurationID = uintPtr(event)
	return e, nil
}

// ListEnrolments returns the user's enrolments for any of the exams.
func (x queries) ListEnrolments(ctx context.Context, userID uint64, examIDs []uint64) ([]model.ExamEnrolment, error) {
	if len(examIDs) == 0 {
		return nil, nil
	}
	marks, args := placeholders(examIDs)
	args = append([]any{userID}, args...)
	rows, err := x.q.QueryContext(ctx,
		`SELECT `+enrolmentColumns+` FROM exam_enrolments
		 WHERE user_id = ? AND exam_id IN (`+marks+`) ORDER BY id`+x.forUpdate(), args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []model.ExamEnrolment
	for rows.Next() {
		e, err := scanEnrolment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEnrolmentByReservation returns the enrolment pointing at a
// reservation.
func (x queries) GetEnrolmentByReservation(ctx context.Context, reservationID uint64) (model.ExamEnrolment, error) {
	e, err := scanEnrolment(x.q.QueryRowContext(ctx,
		`SELECT `+enrolmentColumns+` FROM exam_enrolments WHERE reservation_id = ? LIMIT 1`+x.forUpdate(), reservationID))
	if err != nil {
		return model.ExamEnrolment{}, mapErr(err)
	}
	return e, nil
}

// CountEventEnrolments counts the enrolments booked into an event.  It is
// a plain read; callers lock the event row through GetEventConfiguration
// first so that concurrent bookings of one event count in turn.
func (t *mysqlTx) CountEventEnrolments(ctx context.Context, configurationID uint64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exam_enrolments WHERE event_configuration_id = ?`, configurationID).Scan(&n)
	return n, mapErr(err)
}

// CreateEnrolment inserts an enrolment and sets its ID.
func (t *mysqlTx) CreateEnrolment(ctx context.Context, e *model.ExamEnrolment) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO exam_enrolments (user_id, exam_id, reservation_id, event_configuration_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.ExamID, nullUint(e.ReservationID), nullUint(e.EventConfigurationID), e.CreatedAt.UTC())
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// UpdateEnrolment rewrites the booking pointers of an enrolment.
func (t *mysqlTx) UpdateEnrolment(ctx context.Context, e model.ExamEnrolment) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE exam_enrolments SET reservation_id = ?, event_configuration_id = ? WHERE id = ?`,
		nullUint(e.ReservationID), nullUint(e.EventConfigurationID), e.ID)
	return mapErr(err)
}

// DeleteEnrolment removes an enrolment.
func (t *mysqlTx) DeleteEnrolment(ctx context.Context, id uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM exam_enrolments WHERE id = ?`, id)
	return affected(res, err)
}
