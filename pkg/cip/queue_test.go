package cip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: a callback of the iterating handler requests deactivation of
// one of its own constraints. The constraint keeps its slot until the
// callback returns; the flush then removes it from every array.
func TestDeactivationDeferredDuringCallback(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "defer", DefaultHandlerConfig())

	y := h.NewCons("y", nil, allFlags())
	require.NoError(t, y.Activate(0))
	posBefore := y.pos[roleSepa]

	h.DelayUpdates()
	require.NoError(t, y.Deactivate())

	assert.Equal(t, posBefore, y.pos[roleSepa], "slot untouched while the callback runs")
	assert.True(t, y.active)
	assert.True(t, y.queued)

	require.NoError(t, h.FlushUpdates())

	assert.False(t, y.active)
	assert.False(t, y.queued)
	assert.Equal(t, -1, y.pos[roleSepa])
	assert.Zero(t, h.NSepaConss())
	assert.Zero(t, h.NConss())
	assert.Empty(t, h.updateConss)
}

func TestQueueFoldsOpposingRequests(t *testing.T) {
	rt := newTestRuntime()
	h, p := newTestHandler(rt, "fold", DefaultHandlerConfig())

	c := h.NewCons("c1", nil, allFlags())
	require.NoError(t, c.Activate(0))
	p.events = nil

	// deactivate then activate while delayed cancels out entirely
	h.DelayUpdates()
	require.NoError(t, c.Deactivate())
	require.NoError(t, c.Activate(3))
	require.NoError(t, h.FlushUpdates())

	assert.True(t, c.active)
	assert.Empty(t, p.events, "no net transition, no callbacks")
	assert.Equal(t, 3, c.ActiveDepth())

	// disable then enable cancels out as well
	h.DelayUpdates()
	require.NoError(t, c.Disable())
	require.NoError(t, c.Enable())
	require.NoError(t, h.FlushUpdates())

	assert.True(t, c.enabled)
	assert.Empty(t, p.events)
}

func TestQueueAppliesOneNetTransition(t *testing.T) {
	rt := newTestRuntime()
	h, p := newTestHandler(rt, "net", DefaultHandlerConfig())

	c := h.NewCons("c1", nil, allFlags())

	h.DelayUpdates()
	require.NoError(t, c.Activate(0))
	require.NoError(t, c.Deactivate())
	assert.False(t, c.IsActive())

	require.NoError(t, h.FlushUpdates())
	assert.False(t, c.active, "activate followed by deactivate nets to nothing")
	assert.Empty(t, p.events)
	assert.Zero(t, h.NConss())
}

func TestQueueCaptureKeepsConstraintAlive(t *testing.T) {
	rt := newTestRuntime()
	h, p := newTestHandler(rt, "alive", DefaultHandlerConfig())

	c := h.NewCons("c1", "payload", allFlags())
	require.NoError(t, rt.TransProb().AddCons(c))
	require.NoError(t, c.Release()) // the problem now holds the only reference

	h.DelayUpdates()
	require.NoError(t, c.Delete())
	assert.Empty(t, p.freed, "queued constraints are never freed mid-flight")
	assert.Equal(t, 2, c.NUses(), "the queue holds its own capture")

	require.NoError(t, h.FlushUpdates())
	assert.Equal(t, []string{"c1"}, p.freed)
	assert.Zero(t, rt.TransProb().NConss())
}

func TestQueueDelayedObsolescence(t *testing.T) {
	set := DefaultSettings()
	set.ObsoleteAge = 10
	rt := newTestRuntime(WithSettings(set))
	h, _ := newTestHandler(rt, "obsolete", DefaultHandlerConfig())

	c := h.NewCons("c1", nil, allFlags())
	require.NoError(t, c.Activate(0))

	h.DelayUpdates()
	require.NoError(t, c.AddAge(100))
	assert.False(t, c.obsolete, "demotion deferred until flush")
	assert.True(t, c.IsObsolete(), "but already visible through the accessor")
	assert.Equal(t, 1, h.NUsefulSepaConss())

	require.NoError(t, h.FlushUpdates())
	assert.True(t, c.obsolete)
	assert.Zero(t, h.NUsefulSepaConss())

	// the age was reset in the meantime: a queued re-evaluation promotes
	// the constraint back
	h.DelayUpdates()
	require.NoError(t, c.ResetAge())
	require.NoError(t, h.FlushUpdates())
	assert.False(t, c.obsolete)
	assert.Equal(t, 1, h.NUsefulSepaConss())
}

func TestNestedDelayWindowsFlushOnce(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "nested", DefaultHandlerConfig())

	c := h.NewCons("c1", nil, allFlags())

	h.DelayUpdates()
	h.DelayUpdates()
	require.NoError(t, c.Activate(0))

	require.NoError(t, h.FlushUpdates())
	assert.False(t, c.active, "inner window must not flush")

	require.NoError(t, h.FlushUpdates())
	assert.True(t, c.active)

	assert.Error(t, h.FlushUpdates(), "unbalanced flush must fail")
}
