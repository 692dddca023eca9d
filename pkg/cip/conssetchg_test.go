package cip

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// consState is the externally observable lifecycle state of a constraint,
// snapshotted for whole-tree round-trip comparisons.
type consState struct {
	Active   bool
	Enabled  bool
	Obsolete bool
	Deleted  bool
	NUses    int
	ConsPos  int
	Pos      [numRoles]int
}

func snapshot(conss ...*Cons) map[string]consState {
	out := map[string]consState{}
	for _, c := range conss {
		out[c.name] = consState{
			Active:   c.active,
			Enabled:  c.enabled,
			Obsolete: c.obsolete,
			Deleted:  c.deleted,
			NUses:    c.nUses,
			ConsPos:  c.consPos,
			Pos:      c.pos,
		}
	}
	return out
}

func TestApplyUndoRoundTrip(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "roundtrip", DefaultHandlerConfig())

	global := h.NewCons("global", nil, allFlags())
	require.NoError(t, rt.TransProb().AddCons(global))
	local := h.NewCons("local", nil, allFlags())

	sc := NewSetChange()
	require.NoError(t, sc.AddAdded(local, 1, false))
	sc.disabled = append(sc.disabled, global)
	global.Capture()

	before := snapshot(global, local)

	require.NoError(t, sc.Apply(1))
	assert.True(t, local.active)
	assert.False(t, global.enabled)

	require.NoError(t, sc.Undo())
	after := snapshot(global, local)
	// the apply/undo pair restores ownership links transiently cleared by
	// the undo; re-applying must restore them, so only compare state
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("state changed across apply/undo round trip:\n%s", diff)
	}

	// a second apply/undo cycle behaves identically
	require.NoError(t, sc.Apply(1))
	require.NoError(t, sc.Undo())
	if diff := cmp.Diff(before, snapshot(global, local)); diff != "" {
		t.Fatalf("second round trip diverged:\n%s", diff)
	}
}

// Scenario: node N1 adds X, descendant node N2 disables it. Backtracking
// through N2 re-enables X; backtracking through N1 deactivates it and the
// reference count returns to its pre-N1 value.
func TestNestedNodeJournals(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "nodes", DefaultHandlerConfig())

	x := h.NewCons("x", nil, allFlags())
	usesBefore := x.NUses()

	n1 := NewSetChange()
	require.NoError(t, n1.AddAdded(x, 1, true))
	require.True(t, x.IsActive())
	require.True(t, x.IsEnabled())

	n2 := NewSetChange()
	require.NoError(t, n2.AddDisabled(x))
	require.False(t, x.IsEnabled())
	require.Equal(t, 1, h.NCheckConss(), "disabled constraints stay checked")

	require.NoError(t, n2.Undo())
	assert.True(t, x.IsEnabled(), "undoing the child re-enables")

	require.NoError(t, n1.Undo())
	assert.False(t, x.IsActive())
	assert.Zero(t, h.NConss())

	require.NoError(t, n2.Free())
	require.NoError(t, n1.Free())
	assert.Equal(t, usesBefore, x.NUses())
}

func TestApplyPrunesSupersededEntries(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "prune", DefaultHandlerConfig())

	a := h.NewCons("a", nil, allFlags())
	b := h.NewCons("b", nil, allFlags())
	c := h.NewCons("c", nil, allFlags())

	sc := NewSetChange()
	require.NoError(t, sc.AddAdded(a, 2, false))
	require.NoError(t, sc.AddAdded(b, 2, false))
	require.NoError(t, sc.AddAdded(c, 2, false))

	// b got activated by a more global event in the meantime
	require.NoError(t, b.Activate(0))

	require.NoError(t, sc.Apply(2))
	assert.Equal(t, 2, sc.NAdded(), "the superseded entry is compacted away")
	assert.True(t, a.active)
	assert.True(t, c.active)
	// the surviving entries' cached slots were repaired by the swap
	for i, ec := range sc.added {
		assert.Equal(t, i, ec.addArrayPos)
		assert.Same(t, sc, ec.addSetChg)
	}

	require.NoError(t, sc.Undo())
	assert.False(t, a.active)
	assert.False(t, c.active)
	assert.True(t, b.active, "pruned entry no longer owned by this journal")
	require.NoError(t, sc.Free())
}

func TestUndoDropsDisablingsSupersededByDeactivation(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "superseded", DefaultHandlerConfig())

	x := h.NewCons("x", nil, allFlags())
	require.NoError(t, x.Activate(1))

	sc := NewSetChange()
	require.NoError(t, sc.AddDisabled(x))
	require.False(t, x.IsEnabled())

	// a more global deactivation supersedes the node-local disabling
	require.NoError(t, x.Deactivate())

	require.NoError(t, sc.Undo())
	assert.Zero(t, sc.NDisabled(), "stale entry dropped instead of re-enabled")
	assert.False(t, x.IsActive())
	assert.False(t, x.IsEnabled())
}

func TestDeleteRoutesToOwningJournal(t *testing.T) {
	rt := newTestRuntime()
	h, p := newTestHandler(rt, "routing", DefaultHandlerConfig())

	x := h.NewCons("x", "payload", allFlags())
	sc := NewSetChange()
	require.NoError(t, sc.AddAdded(x, 1, true))
	require.NoError(t, x.Release()) // the journal now holds the only reference

	require.NoError(t, x.Delete())
	assert.Zero(t, sc.NAdded(), "deletion removes the journal entry")
	assert.Equal(t, []string{"x"}, p.freed)
	assert.Zero(t, h.NConss())
}
