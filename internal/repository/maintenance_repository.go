package repository

import (
	"context"
	"time"

	"github.com/cscfi/exam-reservation/internal/model"
)

// ListMaintenance returns the maintenance periods overlapping [from, to).
func (x queries) ListMaintenance(ctx context.Context, from, to time.Time) ([]model.MaintenancePeriod, error) {
	rows, err := x.q.QueryContext(ctx,
		`SELECT id, start_at, end_at, description FROM maintenance_periods
		 WHERE start_at < ? AND end_at > ? ORDER BY start_at`, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MaintenancePeriod
	for rows.Next() {
		var m model.MaintenancePeriod
		if err := rows.Scan(&m.ID, &m.Start, &m.End, &m.Description); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMaintenance inserts a maintenance period and sets its ID.
func (s *MySQLStore) CreateMaintenance(ctx context.Context, m *model.MaintenancePeriod) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_periods (start_at, end_at, description) VALUES (?, ?, ?)`,
		m.Start.UTC(), m.End.UTC(), m.Description)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// DeleteMaintenance removes a maintenance period.
func (s *MySQLStore) DeleteMaintenance(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM maintenance_periods WHERE id = ?`, id)
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
