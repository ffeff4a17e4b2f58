package seq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllStepsPass(t *testing.T) {
	group := NewGroup("happy")
	var order []string
	for _, name := range []string{"one", "two", "three"} {
		name := name
		group.Add(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, group.Run(context.Background()))
	assert.Equal(t, []string{"one", "two", "three"}, order)
	for _, step := range group.Steps() {
		assert.Equal(t, Passed, step.State())
	}
	assert.Nil(t, group.Failed())
}

func TestFirstFailureSkipsEveryLaterStep(t *testing.T) {
	group := NewGroup("cascade")
	boom := errors.New("publish failed")
	var ranTwo, ranThree bool

	group.Add("publish", func(context.Context) error { return boom })
	group.Add("search", func(context.Context) error { ranTwo = true; return nil })
	group.Add("verify", func(context.Context) error { ranThree = true; return nil })

	err := group.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "publish")

	steps := group.Steps()
	assert.Equal(t, Failed, steps[0].State())
	assert.Equal(t, Skipped, steps[1].State())
	assert.Equal(t, Skipped, steps[2].State())
	assert.False(t, ranTwo, "skipped step body must never run")
	assert.False(t, ranThree, "skipped step body must never run")
	assert.Equal(t, "previous step failed (publish)", steps[1].Note())
	assert.Equal(t, "previous step failed (publish)", steps[2].Note())
	require.NotNil(t, group.Failed())
	assert.Equal(t, "publish", group.Failed().Name)
}

func TestMiddleFailureKeepsEarlierResults(t *testing.T) {
	group := NewGroup("partial")
	group.Add("setup", func(context.Context) error { return nil })
	group.Add("ingest", func(context.Context) error { return errors.New("broker down") })
	group.Add("verify", func(context.Context) error { return nil })

	require.Error(t, group.Run(context.Background()))
	steps := group.Steps()
	assert.Equal(t, Passed, steps[0].State())
	assert.Equal(t, Failed, steps[1].State())
	assert.Equal(t, Skipped, steps[2].State())
	assert.EqualError(t, steps[1].Err(), "broker down")
}

func TestStatesStartPending(t *testing.T) {
	group := NewGroup("idle")
	step := group.Add("later", func(context.Context) error { return nil })
	assert.Equal(t, Pending, step.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "PENDING", Pending.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "PASSED", Passed.String())
	assert.Equal(t, "FAILED", Failed.String())
	assert.Equal(t, "SKIPPED", Skipped.String())
}
