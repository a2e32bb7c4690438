package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/core"
)

func TestMachine_Transitions(t *testing.T) {
	now := time.Now()
	m := NewMachine()
	assert.Equal(t, StateIdle, m.Snapshot().State)

	assert.False(t, m.Resubmit(), "resubmit from idle")
	assert.False(t, m.Succeed("r", []*core.CachedImage{{ID: "r-0"}}, now), "succeed from idle")

	require.NoError(t, m.Begin("p", "m", now))
	require.ErrorIs(t, m.Begin("p", "m", now), core.ErrBusy)

	upstream := core.NewUpstreamError(503, "busy", nil)
	require.True(t, m.Retry(upstream))
	assert.Equal(t, AdvisoryOverloaded, m.Snapshot().Advisory)
	assert.False(t, m.Retry(upstream), "retry while already retrying")
	require.True(t, m.Resubmit())
	require.True(t, m.Retry(upstream))

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.Retries)
	assert.Equal(t, 2, snap.Attempt)
	require.True(t, m.Resubmit())

	assert.False(t, m.Succeed("r", nil, now), "success without images")
	require.True(t, m.Succeed("r", []*core.CachedImage{{ID: "r-0"}}, now))

	snap = m.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Empty(t, snap.Advisory)
	assert.Nil(t, snap.Error)
	assert.False(t, m.Fail(upstream, now), "fail after success")

	require.NoError(t, m.Reset())
	assert.Equal(t, Snapshot{State: StateIdle}, m.Snapshot())
}

func TestMachine_BeginFromTerminalStartsFresh(t *testing.T) {
	now := time.Now()
	m := NewMachine()
	require.NoError(t, m.Begin("first", "m", now))
	require.True(t, m.Fail(core.NewEmptyResultError(), now))

	require.NoError(t, m.Begin("second", "m", now))
	snap := m.Snapshot()
	assert.Equal(t, StateSubmitting, snap.State)
	assert.Equal(t, "second", snap.Prompt)
	assert.Nil(t, snap.Error)
	assert.Zero(t, snap.Retries)
}

func TestMachine_SnapshotIsACopy(t *testing.T) {
	now := time.Now()
	m := NewMachine()
	require.NoError(t, m.Begin("p", "m", now))
	require.True(t, m.Succeed("r", []*core.CachedImage{{ID: "r-0"}}, now))

	snap := m.Snapshot()
	snap.Images[0] = nil
	assert.NotNil(t, m.Snapshot().Images[0])
}
