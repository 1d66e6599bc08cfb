package repository

import (
	"context"
	"database/sql"

	"github.com/cscfi/exam-reservation/internal/model"
)

// GetExam loads an exam with its required software.
func (x queries) GetExam(ctx context.Context, id uint64) (model.Exam, error) {
	const q = `SELECT id, name, parent_id, duration_minutes, period_start, period_end FROM exams WHERE id = ?`
	var (
		e      model.Exam
		parent sql.NullInt64
	)
	err := x.q.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Name, &parent, &e.DurationMinutes, &e.PeriodStart, &e.PeriodEnd)
	if err != nil {
		return model.Exam{}, mapErr(err)
	}
	e.ParentID = uintPtr(parent)

	rows, err := x.q.QueryContext(ctx, `SELECT software_id FROM exam_software WHERE exam_id = ? ORDER BY software_id`, id)
	if err != nil {
		return model.Exam{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sw uint64
		if err := rows.Scan(&sw); err != nil {
			return model.Exam{}, err
		}
		e.RequiredSoftware = append(e.RequiredSoftware, sw)
	}
	return e, rows.Err()
}

// GetEventConfiguration loads an examination event.  Inside a lease the
// row is locked so that capacity checks of concurrent bookings queue up.
func (x queries) GetEventConfiguration(ctx context.Context, id uint64) (model.ExaminationEventConfiguration, error) {
	var c model.ExaminationEventConfiguration
	err := x.q.QueryRowContext(ctx,
		`SELECT id, exam_id, start_at, end_at, capacity FROM examination_events WHERE id = ?`+x.forUpdate(), id).
		Scan(&c.ID, &c.ExamID, &c.Start, &c.End, &c.Capacity)
	if err != nil {
		return model.ExaminationEventConfiguration{}, mapErr(err)
	}
	return c, nil
}
