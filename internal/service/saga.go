package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// sagaStep is one remote action together with the action that undoes it.
// compensate may be nil for steps that cannot or need not be undone.
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// saga sequences the remote side effects of a booking that spans the
// partner API and the local store.  Steps run in order; when one fails,
// the completed ones are compensated in reverse.  After all steps have
// run the caller commits locally and, should that fail, calls
// compensate itself.
type saga struct {
	logger *zap.Logger
	steps  []sagaStep
	done   []sagaStep
}

func newSaga(logger *zap.Logger) *saga { return &saga{logger: logger} }

func (s *saga) add(step sagaStep) { s.steps = append(s.steps, step) }

// execute runs all pending steps.  On failure the completed steps are
// compensated and the step error is returned.
func (s *saga) execute(ctx context.Context) error {
	for _, step := range s.steps {
		if err := step.run(ctx); err != nil {
			s.logger.Warn("saga step failed", zap.String("step", step.name), zap.Error(err))
			s.compensate(ctx)
			return fmt.Errorf("%s: %w", step.name, err)
		}
		s.done = append(s.done, step)
	}
	s.steps = nil
	return nil
}

// compensate undoes the completed steps in reverse order.  Failures are
// logged; the remote system then holds an orphan that needs manual
// reconciliation.
func (s *saga) compensate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.done) - 1; i >= 0; i-- {
		step := s.done[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed, manual reconciliation needed",
				zap.String("step", step.name), zap.Error(err))
			continue
		}
		s.logger.Info("saga step compensated", zap.String("step", step.name))
	}
	s.done = nil
}

// pending reports whether completed steps remain that a failed local
// commit must compensate.
func (s *saga) pending() bool { return s != nil && len(s.done) > 0 }
