package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// querier is the subset of *sql.DB and *sql.Tx used by the queries.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements Reader on top of a querier.  With lock set the
// reservation and enrolment reads take row locks (SELECT ... FOR UPDATE),
// which is how a lease body keeps what it validated unchanged until
// commit.
type queries struct {
	q    querier
	lock bool
}

func (x queries) forUpdate() string {
	if x.lock {
		return " FOR UPDATE"
	}
	return ""
}

// MySQLStore is the MySQL implementation of Store.
type MySQLStore struct {
	queries
	db *sql.DB
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore returns a Store bound to db.  db must be opened with
// parseTime=true and loc=UTC.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{queries: queries{q: db}, db: db}
}

// WithUserLease locks the user row with SELECT ... FOR UPDATE and runs fn
// in the same transaction.  Concurrent leases for the same user queue on
// that row lock; the deferred rollback releases it on every path where
// the transaction was not committed.
func (s *MySQLStore) WithUserLease(ctx context.Context, userID uint64, fn LeaseFunc) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var id uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, userID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return mapErr(err)
	}

	if err := fn(ctx, &mysqlTx{queries: queries{q: tx, lock: true}, tx: tx}); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	committed = true
	return nil
}

// mapErr converts MySQL errors that signal contention into ErrConflict
// and missing rows into ErrNotFound.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062: // duplicate entry
			return fmt.Errorf("%w: %s", ErrConflict, me.Message)
		case 1205, 1213: // lock wait timeout, deadlock
			return fmt.Errorf("%w: %s", ErrConflict, me.Message)
		case 1451, 1452: // foreign key violations
			return fmt.Errorf("%w: %s", ErrConflict, me.Message)
		}
	}
	return err
}

// placeholders returns "?,?,...,?" with n markers and the ids as args.
func placeholders(ids []uint64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ","), args
}

func nullUint(p *uint64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func uintPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}
