package benders

import (
	"context"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cippy/pkg/cip"
	"github.com/operator-framework/cippy/pkg/cip/linear"
)

type sol map[string]float64

func (s sol) Value(v cip.Variable) float64 { return s[v.Name()] }

type stubSub struct {
	name    string
	convex  Verdict
	full    Verdict
	err     error
	delay   time.Duration
	nConvex int32
	nFull   int32
	got     cip.Solution

	inFlight *int32
	maxSeen  *int32
}

func (s *stubSub) Name() string { return s.name }

func (s *stubSub) SolveConvex(ctx context.Context, sol cip.Solution) (Verdict, error) {
	atomic.AddInt32(&s.nConvex, 1)
	s.got = sol
	if s.inFlight != nil {
		cur := atomic.AddInt32(s.inFlight, 1)
		defer atomic.AddInt32(s.inFlight, -1)
		for {
			seen := atomic.LoadInt32(s.maxSeen)
			if cur <= seen || atomic.CompareAndSwapInt32(s.maxSeen, seen, cur) {
				break
			}
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		}
	}
	return s.convex, s.err
}

func (s *stubSub) Solve(ctx context.Context, _ cip.Solution) (Verdict, error) {
	atomic.AddInt32(&s.nFull, 1)
	return s.full, nil
}

type stubDec struct {
	subs   []Subproblem
	mapped map[string]cip.Solution
	merged [][]Verdict
	freed  bool
}

func (d *stubDec) Subproblems() []Subproblem { return d.subs }

func (d *stubDec) MapSolution(sub Subproblem, master cip.Solution) cip.Solution {
	if d.mapped != nil {
		if s, ok := d.mapped[sub.Name()]; ok {
			return s
		}
	}
	return master
}

func (d *stubDec) PostSolve(verdicts []Verdict) error {
	d.merged = append(d.merged, append([]Verdict(nil), verdicts...))
	return nil
}

func (d *stubDec) Free() error {
	d.freed = true
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestEvaluateSkipsFullSolveWhenConvexRejects(t *testing.T) {
	cut := &linear.Row{Lhs: 1, Rhs: math.Inf(1)}
	rejected := &stubSub{name: "a", convex: Verdict{Feasible: false, Cut: cut}}
	accepted := &stubSub{name: "b", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}}
	dec := &stubDec{subs: []Subproblem{rejected, accepted}}
	co := NewCoordinator(quietLogger(), dec)

	verdicts, err := co.Evaluate(context.Background(), sol{})
	require.NoError(t, err)
	require.Len(t, verdicts, 2)

	assert.False(t, verdicts[0].Feasible)
	assert.Same(t, cut, verdicts[0].Cut)
	assert.Equal(t, int32(0), atomic.LoadInt32(&rejected.nFull), "rejected relaxation skips the full solve")

	assert.True(t, verdicts[1].Feasible)
	assert.Equal(t, int32(1), atomic.LoadInt32(&accepted.nFull))

	assert.False(t, feasible(verdicts))
	assert.Len(t, cuts(verdicts), 1)
}

func TestEvaluateMapsSolutionsPerSubproblem(t *testing.T) {
	sub := &stubSub{name: "a", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}}
	dec := &stubDec{
		subs:   []Subproblem{sub},
		mapped: map[string]cip.Solution{"a": sol{"y": 2}},
	}
	co := NewCoordinator(quietLogger(), dec)

	_, err := co.Evaluate(context.Background(), sol{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, cip.Solution(sol{"y": 2}), sub.got, "subproblem sees the mapped solution")
}

func TestEvaluateRunsPostSolveOnMergedVerdicts(t *testing.T) {
	dec := &stubDec{subs: []Subproblem{
		&stubSub{name: "a", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}},
		&stubSub{name: "b", convex: Verdict{Feasible: false}},
	}}
	co := NewCoordinator(quietLogger(), dec)

	_, err := co.Evaluate(context.Background(), sol{})
	require.NoError(t, err)
	require.Len(t, dec.merged, 1)
	assert.True(t, dec.merged[0][0].Feasible)
	assert.False(t, dec.merged[0][1].Feasible)
}

func TestEvaluatePropagatesSubproblemErrors(t *testing.T) {
	dec := &stubDec{subs: []Subproblem{
		&stubSub{name: "slow", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}, delay: time.Second},
		&stubSub{name: "broken", err: errors.New("no dual ray")},
	}}
	co := NewCoordinator(quietLogger(), dec)

	start := time.Now()
	_, err := co.Evaluate(context.Background(), sol{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `subproblem "broken"`)
	assert.Less(t, time.Since(start), time.Second, "error cancels the slow subproblem")
	assert.Empty(t, dec.merged, "post-solve is skipped on error")
}

func TestWithMaxParallelCapsConcurrency(t *testing.T) {
	var inFlight, maxSeen int32
	subs := make([]Subproblem, 6)
	for i := range subs {
		subs[i] = &stubSub{
			name:     "sub",
			convex:   Verdict{Feasible: true},
			full:     Verdict{Feasible: true},
			delay:    20 * time.Millisecond,
			inFlight: &inFlight,
			maxSeen:  &maxSeen,
		}
	}
	co := NewCoordinator(quietLogger(), &stubDec{subs: subs}, WithMaxParallel(2))

	_, err := co.Evaluate(context.Background(), sol{})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func newTestRuntime(t *testing.T, dec Decomposition, current func() cip.Solution) (*cip.Runtime, *cip.Handler, *Plugin) {
	t.Helper()
	log := quietLogger()
	rt, err := cip.New(cip.WithLogger(log))
	require.NoError(t, err)
	master, err := linear.Register(rt, log, cip.DefaultHandlerConfig())
	require.NoError(t, err)

	p := NewPlugin(log, NewCoordinator(log, dec), master, current)
	h, err := rt.Register(HandlerName, "", cip.DefaultHandlerConfig(), p)
	require.NoError(t, err)

	c := NewCons(h, "decomp")
	require.NoError(t, rt.TransProb().AddCons(c))
	require.NoError(t, c.Release())
	return rt, master, p
}

func TestCheckAsksAllSubproblems(t *testing.T) {
	rt, _, _ := newTestRuntime(t, &stubDec{subs: []Subproblem{
		&stubSub{name: "a", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}},
		&stubSub{name: "b", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}},
	}}, func() cip.Solution { return nil })

	res, err := rt.CheckAll(sol{}, true, true)
	require.NoError(t, err)
	assert.Equal(t, cip.Feasible, res)
}

func TestCheckRejectsOnAnyInfeasibleSubproblem(t *testing.T) {
	rt, _, _ := newTestRuntime(t, &stubDec{subs: []Subproblem{
		&stubSub{name: "a", convex: Verdict{Feasible: true}, full: Verdict{Feasible: true}},
		&stubSub{name: "b", convex: Verdict{Feasible: true}, full: Verdict{Feasible: false}},
	}}, func() cip.Solution { return nil })

	res, err := rt.CheckAll(sol{}, true, true)
	require.NoError(t, err)
	assert.Equal(t, cip.Infeasible, res)
}

func TestEnforceAddsCutsToMaster(t *testing.T) {
	x := linear.NewVar("x", 0, 10)
	cut := &linear.Row{
		Terms: []linear.Term{{Var: x, Coef: 1}},
		Lhs:   2,
		Rhs:   math.Inf(1),
	}
	candidate := sol{"x": 0}
	rt, master, p := newTestRuntime(t, &stubDec{subs: []Subproblem{
		&stubSub{name: "a", convex: Verdict{Feasible: false, Cut: cut}},
	}}, func() cip.Solution { return candidate })

	res, err := rt.EnforceLPAll(false)
	require.NoError(t, err)
	assert.Equal(t, cip.ConsAdded, res)
	assert.Equal(t, 1, p.NCutsAdded())
	assert.Equal(t, 1, master.NConss())

	// the cut now rejects the candidate through the master's check
	chk, err := rt.CheckAll(candidate, true, true)
	require.NoError(t, err)
	assert.Equal(t, cip.Infeasible, chk)
}

func TestEnforceWithoutCutsReportsInfeasible(t *testing.T) {
	rt, master, _ := newTestRuntime(t, &stubDec{subs: []Subproblem{
		&stubSub{name: "a", convex: Verdict{Feasible: false}},
	}}, func() cip.Solution { return sol{} })

	res, err := rt.EnforceLPAll(false)
	require.NoError(t, err)
	assert.Equal(t, cip.Infeasible, res)
	assert.Equal(t, 0, master.NConss())
}

func TestRuntimeFreeReleasesDecomposition(t *testing.T) {
	dec := &stubDec{}
	rt, _, _ := newTestRuntime(t, dec, func() cip.Solution { return nil })

	require.NoError(t, rt.Free())
	assert.True(t, dec.freed)
}
