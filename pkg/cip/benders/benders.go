// Package benders provides a Benders decomposition constraint handler:
// one constraint stands for the requirement that the master solution be
// acceptable to every subproblem. Subproblems are evaluated in parallel
// and reject a candidate by returning a feasibility cut, which the
// handler adds to the master as a linear constraint.
package benders

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/operator-framework/cippy/pkg/cip"
	"github.com/operator-framework/cippy/pkg/cip/linear"
)

// Subproblem evaluates a candidate master solution in two stages: the
// convex relaxation first, and the full subproblem only when the
// relaxation accepts the candidate.
type Subproblem interface {
	Name() string
	SolveConvex(ctx context.Context, sol cip.Solution) (Verdict, error)
	Solve(ctx context.Context, sol cip.Solution) (Verdict, error)
}

// Decomposition owns the subproblems of one master problem. It builds
// them, maps master solutions into each subproblem's variable space,
// observes merged verdicts, and releases subproblem resources.
type Decomposition interface {
	Subproblems() []Subproblem
	MapSolution(sub Subproblem, master cip.Solution) cip.Solution
	PostSolve(verdicts []Verdict) error
	Free() error
}

// Verdict is one subproblem's judgement of a candidate. An infeasible
// verdict may carry a cut separating the candidate from the master's
// feasible region.
type Verdict struct {
	Feasible bool
	Cut      *linear.Row
}

// Coordinator fans a candidate solution out to all subproblems of a
// decomposition. Subproblems run concurrently; verdict merging and the
// post-solve hook stay on the calling goroutine.
type Coordinator struct {
	log         logrus.FieldLogger
	dec         Decomposition
	maxParallel int
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMaxParallel caps the number of concurrently evaluated subproblems.
// Zero or negative means no cap.
func WithMaxParallel(n int) CoordinatorOption {
	return func(co *Coordinator) {
		co.maxParallel = n
	}
}

func NewCoordinator(log logrus.FieldLogger, dec Decomposition, opts ...CoordinatorOption) *Coordinator {
	co := &Coordinator{
		log: log.WithField("component", "benders-coordinator"),
		dec: dec,
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

func (co *Coordinator) NSubproblems() int { return len(co.dec.Subproblems()) }

// Evaluate runs all subproblems against the candidate and collects their
// verdicts in subproblem order. Each subproblem sees the candidate mapped
// into its own variable space; its full solve runs only when the convex
// relaxation accepts. The first evaluation error cancels the remaining
// subproblems. Merged verdicts are handed to the decomposition's
// post-solve hook before returning.
func (co *Coordinator) Evaluate(ctx context.Context, master cip.Solution) ([]Verdict, error) {
	subs := co.dec.Subproblems()
	verdicts := make([]Verdict, len(subs))
	g, ctx := errgroup.WithContext(ctx)
	if co.maxParallel > 0 {
		g.SetLimit(co.maxParallel)
	}
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			sol := co.dec.MapSolution(sub, master)
			v, err := sub.SolveConvex(ctx, sol)
			if err != nil {
				return errors.Wrapf(err, "solving convex relaxation of subproblem %q", sub.Name())
			}
			if v.Feasible {
				v, err = sub.Solve(ctx, sol)
				if err != nil {
					return errors.Wrapf(err, "solving subproblem %q", sub.Name())
				}
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := co.dec.PostSolve(verdicts); err != nil {
		return nil, errors.Wrap(err, "post-solve hook failed")
	}
	return verdicts, nil
}

// cuts returns the feasibility cuts of the infeasible verdicts.
func cuts(verdicts []Verdict) []*linear.Row {
	var out []*linear.Row
	for _, v := range verdicts {
		if !v.Feasible && v.Cut != nil {
			out = append(out, v.Cut)
		}
	}
	return out
}

// feasible reports whether every verdict accepted the candidate.
func feasible(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if !v.Feasible {
			return false
		}
	}
	return true
}

// HandlerName is the registration name of the decomposition handler.
const HandlerName = "benders"

// Plugin implements the decomposition constraint handler callbacks. Cuts
// produced by the subproblems are added to the master through the linear
// handler.
type Plugin struct {
	log     logrus.FieldLogger
	co      *Coordinator
	master  *cip.Handler
	current func() cip.Solution

	nCutsAdded int
}

// NewPlugin builds the handler callbacks. The current function supplies
// the master's candidate solution during enforcement; it may return nil
// when no candidate exists yet.
func NewPlugin(log logrus.FieldLogger, co *Coordinator, master *cip.Handler, current func() cip.Solution) *Plugin {
	return &Plugin{
		log:     log.WithField("plugin", HandlerName),
		co:      co,
		master:  master,
		current: current,
	}
}

// Register registers the decomposition handler with the runtime.
func Register(rt *cip.Runtime, log logrus.FieldLogger, cfg cip.HandlerConfig, co *Coordinator, master *cip.Handler, current func() cip.Solution) (*cip.Handler, error) {
	return rt.Register(HandlerName, "Benders decomposition over parallel subproblems", cfg, NewPlugin(log, co, master, current))
}

// NewCons creates the decomposition constraint. One per decomposition is
// enough; the subproblems live behind the handler's coordinator.
func NewCons(h *cip.Handler, name string) *cip.Cons {
	return h.NewCons(name, nil, cip.ConsFlags{
		Enforce: true,
		Check:   true,
	})
}

// NCutsAdded reports how many cuts enforcement has added to the master.
func (p *Plugin) NCutsAdded() int { return p.nCutsAdded }

// Check asks every subproblem to accept the candidate.
func (p *Plugin) Check(conss []*cip.Cons, nUseful int, sol cip.Solution, checkIntegrality, checkLPRows bool) (cip.Result, error) {
	if len(conss) == 0 {
		return cip.Feasible, nil
	}
	verdicts, err := p.co.Evaluate(context.Background(), sol)
	if err != nil {
		return cip.Infeasible, err
	}
	if feasible(verdicts) {
		return cip.Feasible, nil
	}
	return cip.Infeasible, nil
}

// enforce evaluates the current candidate and turns rejections into
// master cuts where the subproblems provide them.
func (p *Plugin) enforce(conss []*cip.Cons) (cip.Result, error) {
	if len(conss) == 0 {
		return cip.Feasible, nil
	}
	sol := p.current()
	if sol == nil {
		return cip.Feasible, nil
	}
	verdicts, err := p.co.Evaluate(context.Background(), sol)
	if err != nil {
		return cip.Infeasible, err
	}
	if feasible(verdicts) {
		return cip.Feasible, nil
	}
	rows := cuts(verdicts)
	if len(rows) == 0 {
		return cip.Infeasible, nil
	}
	rt := conss[0].Handler().Runtime()
	for _, row := range rows {
		p.nCutsAdded++
		c := linear.NewCons(p.master, fmt.Sprintf("benderscut_%d", p.nCutsAdded), row)
		if err := rt.TransProb().AddCons(c); err != nil {
			return cip.ConsAdded, err
		}
		if err := c.Release(); err != nil {
			return cip.ConsAdded, err
		}
	}
	p.log.WithField("cuts", len(rows)).Debug("added feasibility cuts to master")
	return cip.ConsAdded, nil
}

func (p *Plugin) EnforceLP(conss []*cip.Cons, nUseful int, solInfeasible bool) (cip.Result, error) {
	return p.enforce(conss)
}

func (p *Plugin) EnforcePseudo(conss []*cip.Cons, nUseful int, solInfeasible, objInfeasible bool) (cip.Result, error) {
	if objInfeasible {
		return cip.DidNotRun, nil
	}
	return p.enforce(conss)
}

// Lock is a no-op: the decomposition constraint references no master
// variables directly.
func (p *Plugin) Lock(c *cip.Cons, nLocksPos, nLocksNeg int) error {
	return nil
}

// Free releases the decomposition's subproblem resources when the runtime
// shuts down.
func (p *Plugin) Free() error {
	return p.co.dec.Free()
}
