package cip

import "io"

// Variable is the minimal view of a problem variable the runtime needs to
// pass through to plugins. Concrete variable types live with the plugins
// that own them.
type Variable interface {
	Name() string
}

// Solution is a candidate assignment to be checked for feasibility.
type Solution interface {
	Value(v Variable) float64
}

// ConsFlags are the role and behavior flags fixed at constraint creation.
type ConsFlags struct {
	Initial    bool
	Separate   bool
	Enforce    bool
	Check      bool
	Propagate  bool
	Local      bool
	Modifiable bool
	Removable  bool
}

// Plugin is the required callback set of a constraint handler. Every
// constraint kind must be able to check and enforce its constraints and to
// report its rounding locks; everything else is optional.
//
// Callbacks receiving a constraint slice get the useful constraints at the
// front; nUseful is the length of that prefix. Slices must not be mutated
// or retained: lifecycle changes are requested through the methods on Cons
// and take effect after the callback returns.
type Plugin interface {
	// Check decides feasibility of the given constraints in sol.
	// Valid results: Feasible, Infeasible.
	Check(conss []*Cons, nUseful int, sol Solution, checkIntegrality, checkLPRows bool) (Result, error)

	// EnforceLP enforces the constraints for the current LP solution.
	// Valid results: Cutoff, Branched, ReducedDom, Separated, ConsAdded,
	// Infeasible, Feasible.
	EnforceLP(conss []*Cons, nUseful int, solInfeasible bool) (Result, error)

	// EnforcePseudo enforces the constraints for the current pseudo
	// solution. Valid results are those of EnforceLP plus SolveLP, and
	// DidNotRun when objInfeasible is true.
	EnforcePseudo(conss []*Cons, nUseful int, solInfeasible, objInfeasible bool) (Result, error)

	// Lock is invoked on the 0-to-1 and 1-to-0 transitions of a
	// constraint's rounding-lock counters; nLocksPos and nLocksNeg are the
	// edge deltas (+1, 0, or -1) to apply to the constraint's variables.
	Lock(c *Cons, nLocksPos, nLocksNeg int) error
}

// Separator generates cutting planes for LP or primal solutions.
// Valid results: Cutoff, Separated, ReducedDom, ConsAdded, DidNotFind,
// DidNotRun.
type Separator interface {
	SeparateLP(conss []*Cons, nUseful int, depth int) (Result, error)
	SeparateSol(conss []*Cons, nUseful int, sol Solution, depth int) (Result, error)
}

// Propagator tightens variable domains from constraint structure.
// Valid results: Cutoff, ReducedDom, DidNotFind, DidNotRun.
type Propagator interface {
	Propagate(conss []*Cons, nUseful int, depth int) (Result, error)
}

// Presolver simplifies the problem before the search starts. The callback
// receives the reductions other handlers made since its own previous call
// and returns the reductions it made itself.
// Valid results: Cutoff, Unbounded, Success, DidNotFind, DidNotRun.
type Presolver interface {
	Presolve(conss []*Cons, round int, since PresolveDeltas) (PresolveDeltas, Result, error)
}

// Initializer is notified when the runtime starts and stops using the
// handler.
type Initializer interface {
	Init(conss []*Cons) error
	Exit(conss []*Cons) error
}

// Freer releases handler-global resources at runtime teardown.
type Freer interface {
	Free() error
}

// PresolveHooks bracket the presolving phase.
type PresolveHooks interface {
	InitPresolve(conss []*Cons) error
	ExitPresolve(conss []*Cons) error
}

// SolveHooks bracket the branch-and-bound phase.
type SolveHooks interface {
	InitSolve(conss []*Cons) error
	ExitSolve(conss []*Cons) error
}

// LPInitializer contributes initial rows to the first LP relaxation.
type LPInitializer interface {
	InitLP(conss []*Cons) error
}

// Transformer produces the payload of the transformed copy of an original
// constraint. Handlers without it get transformed constraints with a nil
// payload.
type Transformer interface {
	Transform(src *Cons) (interface{}, error)
}

// Deleter frees a constraint's payload. The payload is released exactly
// once, either when the constraint is deleted from the problem or when its
// last reference is dropped.
type Deleter interface {
	Delete(c *Cons, data interface{}) error
}

// Copier clones a constraint's payload.
type Copier interface {
	Copy(c *Cons) (interface{}, error)
}

// Parser builds a payload from a textual constraint definition.
type Parser interface {
	Parse(name, def string) (interface{}, ConsFlags, error)
}

// Printer writes a textual form of a constraint.
type Printer interface {
	Print(c *Cons, w io.Writer) error
}

// ConflictResolver resolves a propagation made by the handler during
// conflict analysis. Valid results: Success, DidNotFind.
type ConflictResolver interface {
	ResolveConflict(c *Cons, v Variable) (Result, error)
}

// EventHandler is notified of lifecycle transitions of the handler's
// constraints. Disabled and Deactivated run before the constraint leaves
// the role arrays, so the plugin still sees it live during teardown.
type EventHandler interface {
	Activated(c *Cons) error
	Deactivated(c *Cons) error
	Enabled(c *Cons) error
	Disabled(c *Cons) error
}
