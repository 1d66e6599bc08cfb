package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/repository"
)

// Operation names logged under the "operation" key.
const (
	opCreateEnrolment   = "create_enrolment"
	opBookReservation   = "book_reservation"
	opBookExternal      = "book_external_reservation"
	opCancelReservation = "cancel_reservation"
	opBookEvent         = "book_examination_event"
	opCancelEvent       = "cancel_examination_event"
	opRelocate          = "relocate_reservation"
)

// leaser runs state changes under a user lease.  The lease is the unit
// of mutual exclusion for one user's enrolments and reservations: the
// body re-reads everything it validates, and its writes commit together
// when it returns nil.
type leaser struct {
	store   repository.Store
	timeout time.Duration
	logger  *zap.Logger
}

// run acquires the lease for userID, executes fn and releases the lease
// on every exit path.  A lease that cannot be acquired or completed
// within the timeout is reported as a conflict so the client can retry.
// Failures are logged with their error kind; examID is logged when known.
func (l leaser) run(ctx context.Context, op string, userID, examID uint64, fn repository.LeaseFunc) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	started := time.Now()
	err := l.translate(ctx, l.store.WithUserLease(ctx, userID, fn))

	fields := opFields(op, userID, examID)
	fields = append(fields, zap.Duration("held", time.Since(started)))
	if err != nil {
		l.logger.Warn("operation failed", append(fields, zap.String("error_kind", Code(err)), zap.Error(err))...)
		return err
	}
	l.logger.Debug("user lease released", fields...)
	return nil
}

func (l leaser) translate(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound("user")
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		return conflict("user lease timed out, retry")
	default:
		return storeErr(err, "")
	}
}

// opFields are the fields every mutating operation logs under.
func opFields(op string, userID, examID uint64) []zap.Field {
	fields := []zap.Field{zap.String("operation", op), zap.Uint64("user_id", userID)}
	if examID != 0 {
		fields = append(fields, zap.Uint64("exam_id", examID))
	}
	return fields
}
