package cip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesOptions(t *testing.T) {
	set := DefaultSettings()
	set.FeasTol = 1e-9
	rt, err := New(WithLogger(quietLogger()), WithSettings(set))
	require.NoError(t, err)
	assert.Equal(t, 1e-9, rt.Settings().FeasTol)

	_, err = New(WithLogger(nil))
	assert.Error(t, err)
}

func TestDefaultSettingsDisableAging(t *testing.T) {
	set := DefaultSettings()
	assert.False(t, set.exceedsAgeLimit(1e9))
	assert.False(t, set.exceedsObsoleteAge(1e9))

	set.AgeLimit = 10
	assert.False(t, set.exceedsAgeLimit(10))
	assert.True(t, set.exceedsAgeLimit(10.5))
}

func TestTransformProbLinksAndActivates(t *testing.T) {
	rt := newTestRuntime()
	h, _ := newTestHandler(rt, "transform", DefaultHandlerConfig())

	for _, name := range []string{"a", "b"} {
		c := h.NewOriginalCons(name, nil, allFlags())
		require.NoError(t, rt.OrigProb().AddCons(c))
		require.NoError(t, c.Release())
	}

	require.NoError(t, rt.TransformProb())
	assert.Equal(t, 2, rt.TransProb().NConss())
	assert.Equal(t, 2, h.NConss(), "transformed constraints are active")
	for _, c := range rt.OrigProb().Conss() {
		require.NotNil(t, c.TransCons())
		assert.True(t, c.TransCons().IsActive())
		assert.Equal(t, 1, c.TransCons().NUses(), "the transformed problem holds the only reference")
	}
}

func TestInitSolveResetsIncrementalMarkers(t *testing.T) {
	rt := newTestRuntime()
	cfg := DefaultHandlerConfig()
	cfg.EagerFreq = -1
	h, p := newTestHandler(rt, "markers", cfg)
	activateN(t, h, "a")

	var sizes []int
	p.sepaFn = func(conss []*Cons, nUseful, depth int) (Result, error) {
		sizes = append(sizes, len(conss))
		return DidNotFind, nil
	}

	_, err := h.SeparateLP(0)
	require.NoError(t, err)
	_, err = h.SeparateLP(0)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, sizes)

	require.NoError(t, rt.InitSolve())
	assert.Equal(t, 1, h.StartNConss())

	_, err = h.SeparateLP(0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, sizes)
}

func TestPropagateAllStopsAtCutoff(t *testing.T) {
	rt := newTestRuntime()
	cfgHigh := DefaultHandlerConfig()
	cfgHigh.CheckPriority = 10
	high, ph := newTestHandler(rt, "high", cfgHigh)
	low, pl := newTestHandler(rt, "low", DefaultHandlerConfig())
	activateN(t, high, "h1")
	activateN(t, low, "l1")

	ph.propFn = func(conss []*Cons, nUseful, depth int) (Result, error) {
		return Cutoff, nil
	}
	pl.propFn = func(conss []*Cons, nUseful, depth int) (Result, error) {
		t.Fatal("propagation must stop at a cutoff")
		return DidNotRun, nil
	}

	res, err := rt.PropagateAll(0)
	require.NoError(t, err)
	assert.Equal(t, Cutoff, res)
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "cutoff", Cutoff.String())
	assert.Equal(t, "didnotrun", DidNotRun.String())
	assert.Equal(t, "result(99)", Result(99).String())
}
