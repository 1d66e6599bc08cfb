package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSagaCompensatesInReverse(t *testing.T) {
	t.Parallel()

	var trace []string
	step := func(name string, fail bool) sagaStep {
		return sagaStep{
			name: name,
			run: func(context.Context) error {
				trace = append(trace, "run "+name)
				if fail {
					return errors.New("failed")
				}
				return nil
			},
			compensate: func(context.Context) error {
				trace = append(trace, "undo "+name)
				return nil
			},
		}
	}

	sg := newSaga(zap.NewNop())
	sg.add(step("a", false))
	sg.add(step("b", false))
	sg.add(step("c", true))

	err := sg.execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c")
	assert.Equal(t, []string{"run a", "run b", "run c", "undo b", "undo a"}, trace)
	assert.False(t, sg.pending())
}

func TestSagaPendingUntilCompensated(t *testing.T) {
	t.Parallel()

	undone := false
	sg := newSaga(zap.NewNop())
	sg.add(sagaStep{
		name:       "create",
		run:        func(context.Context) error { return nil },
		compensate: func(context.Context) error { undone = true; return errors.New("still failing") },
	})
	require.NoError(t, sg.execute(context.Background()))
	assert.True(t, sg.pending())

	sg.compensate(context.Background())
	assert.True(t, undone)
	assert.False(t, sg.pending())

	var nilSaga *saga
	assert.False(t, nilSaga.pending())
}
