package cip

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HandlerConfig carries the registration parameters of a constraint
// handler. Priorities order handlers across a dispatch round (higher
// first). Frequencies gate separation and propagation by search depth:
// negative never, zero root only, positive every freq levels. EagerFreq > 0
// forces every EagerFreq-th call of a protocol to revisit the full
// constraint set instead of only the new ones.
type HandlerConfig struct {
	SepaPriority  int `json:"sepapriority"`
	EnfoPriority  int `json:"enfopriority"`
	CheckPriority int `json:"checkpriority"`

	SepaFreq  int `json:"sepafreq"`
	PropFreq  int `json:"propfreq"`
	EagerFreq int `json:"eagerfreq"`

	// MaxPresolveRounds bounds this handler's presolving calls; negative
	// means unlimited.
	MaxPresolveRounds int `json:"maxpresolverounds"`

	// NeedsCons skips every callback of a handler that has no constraints.
	NeedsCons bool `json:"needscons"`
}

// DefaultHandlerConfig returns a neutral registration: no separation or
// propagation gating beyond the root, unlimited presolving, callbacks only
// when constraints exist.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		SepaFreq:          1,
		PropFreq:          1,
		EagerFreq:         100,
		MaxPresolveRounds: -1,
		NeedsCons:         true,
	}
}

// Handler is one constraint handler instance: the runtime-side state for a
// single constraint kind. It owns the global array of its active
// constraints, the four partitioned role arrays, the update queue, and the
// per-protocol statistics.
type Handler struct {
	name string
	desc string

	cfg    HandlerConfig
	plugin Plugin
	log    logrus.FieldLogger
	rt     *Runtime

	conss       []*Cons
	maxNConss   int
	startNConss int

	arrays [numRoles]consArray

	updateConss []*Cons
	nDelayed    int

	initialized bool

	nSepaCalls   int
	nEnfoLPCalls int
	nEnfoPSCalls int
	nPropCalls   int
	nCheckCalls  int
	nPresolCalls int

	nCutoffs      int
	nCutsFound    int
	nDomredsFound int
	nChildren     int

	presolTotals PresolveDeltas
	lastPresol   PresolveDeltas
}

func (h *Handler) Name() string        { return h.name }
func (h *Handler) Description() string { return h.desc }
func (h *Handler) Runtime() *Runtime   { return h.rt }
func (h *Handler) Plugin() Plugin      { return h.plugin }

func (h *Handler) SepaPriority() int  { return h.cfg.SepaPriority }
func (h *Handler) EnfoPriority() int  { return h.cfg.EnfoPriority }
func (h *Handler) CheckPriority() int { return h.cfg.CheckPriority }
func (h *Handler) SepaFreq() int      { return h.cfg.SepaFreq }
func (h *Handler) PropFreq() int      { return h.cfg.PropFreq }
func (h *Handler) EagerFreq() int     { return h.cfg.EagerFreq }
func (h *Handler) NeedsCons() bool    { return h.cfg.NeedsCons }

// Conss returns the handler's active constraints. The slice is owned by
// the handler and must not be mutated.
func (h *Handler) Conss() []*Cons { return h.conss }
func (h *Handler) NConss() int    { return len(h.conss) }

func (h *Handler) MaxNConss() int   { return h.maxNConss }
func (h *Handler) StartNConss() int { return h.startNConss }

// Initialized reports whether the handler sits between Init and Exit.
func (h *Handler) Initialized() bool { return h.initialized }

func (h *Handler) NSepaConss() int        { return h.arrays[roleSepa].len() }
func (h *Handler) NUsefulSepaConss() int  { return h.arrays[roleSepa].nUseful }
func (h *Handler) NEnfoConss() int        { return h.arrays[roleEnfo].len() }
func (h *Handler) NUsefulEnfoConss() int  { return h.arrays[roleEnfo].nUseful }
func (h *Handler) NCheckConss() int       { return h.arrays[roleCheck].len() }
func (h *Handler) NUsefulCheckConss() int { return h.arrays[roleCheck].nUseful }
func (h *Handler) NPropConss() int        { return h.arrays[roleProp].len() }
func (h *Handler) NUsefulPropConss() int  { return h.arrays[roleProp].nUseful }

func (h *Handler) NSepaCalls() int   { return h.nSepaCalls }
func (h *Handler) NEnfoLPCalls() int { return h.nEnfoLPCalls }
func (h *Handler) NEnfoPSCalls() int { return h.nEnfoPSCalls }
func (h *Handler) NPropCalls() int   { return h.nPropCalls }
func (h *Handler) NCheckCalls() int  { return h.nCheckCalls }
func (h *Handler) NPresolCalls() int { return h.nPresolCalls }

func (h *Handler) NCutoffs() int      { return h.nCutoffs }
func (h *Handler) NCutsFound() int    { return h.nCutsFound }
func (h *Handler) NDomredsFound() int { return h.nDomredsFound }
func (h *Handler) NChildren() int     { return h.nChildren }

// PresolveTotals returns the reductions attributed to this handler.
func (h *Handler) PresolveTotals() PresolveDeltas { return h.presolTotals }

// NewCons creates a transformed-space constraint owned by this handler.
// The caller holds the initial reference.
func (h *Handler) NewCons(name string, data interface{}, flags ConsFlags) *Cons {
	c := &Cons{
		name:        name,
		hdlr:        h,
		data:        data,
		initial:     flags.Initial,
		separate:    flags.Separate,
		enforce:     flags.Enforce,
		check:       flags.Check,
		propagate:   flags.Propagate,
		local:       flags.Local,
		modifiable:  flags.Modifiable,
		removable:   flags.Removable,
		activeDepth: -1,
		consPos:     -1,
		addArrayPos: -1,
	}
	for r := range c.pos {
		c.pos[r] = -1
	}
	c.Capture()
	return c
}

// NewOriginalCons creates an original-space constraint; it must be
// transformed before it can be activated in the working problem.
func (h *Handler) NewOriginalCons(name string, data interface{}, flags ConsFlags) *Cons {
	c := h.NewCons(name, data, flags)
	c.original = true
	return c
}

// ParseCons builds a constraint from its textual definition via the
// plugin's parse callback.
func (h *Handler) ParseCons(name, def string) (*Cons, error) {
	p, ok := h.plugin.(Parser)
	if !ok {
		return nil, errors.Errorf("constraint handler %q has no parse callback", h.name)
	}
	data, flags, err := p.Parse(name, def)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing constraint %q", name)
	}
	return h.NewCons(name, data, flags), nil
}

// ResetSepa forces the next separation round to visit the full useful set.
func (h *Handler) ResetSepa() { h.arrays[roleSepa].lastNUseful = -1 }

// ResetEnfo forces the next enforcement round to visit the full useful set.
func (h *Handler) ResetEnfo() { h.arrays[roleEnfo].lastNUseful = -1 }

// ResetProp forces the next propagation round to visit the full useful set.
func (h *Handler) ResetProp() { h.arrays[roleProp].lastNUseful = -1 }

func (h *Handler) hasSeparator() bool {
	_, ok := h.plugin.(Separator)
	return ok
}

func (h *Handler) hasPropagator() bool {
	_, ok := h.plugin.(Propagator)
	return ok
}

// activateCons adds c to the global array and, if it carries the check
// role, to the check array; the constraint is then enabled immediately.
func (h *Handler) activateCons(c *Cons, depth int) error {
	if c.active {
		return errors.Errorf("constraint %q already active", c.name)
	}
	c.active = true
	c.activeDepth = depth
	c.consPos = len(h.conss)
	h.conss = append(h.conss, c)
	if len(h.conss) > h.maxNConss {
		h.maxNConss = len(h.conss)
	}
	if c.check {
		h.arrays[roleCheck].insert(c)
	}
	if ev, ok := h.plugin.(EventHandler); ok {
		if err := ev.Activated(c); err != nil {
			return errors.Wrapf(err, "activation callback of constraint %q", c.name)
		}
	}
	h.log.WithField("cons", c.name).Debug("activated constraint")
	return h.enableCons(c)
}

// deactivateCons disables c if necessary, then removes it from the check
// array and the global array.
func (h *Handler) deactivateCons(c *Cons) error {
	if !c.active {
		return errors.Errorf("constraint %q not active", c.name)
	}
	if c.enabled {
		if err := h.disableCons(c); err != nil {
			return err
		}
	}
	if ev, ok := h.plugin.(EventHandler); ok {
		if err := ev.Deactivated(c); err != nil {
			return errors.Wrapf(err, "deactivation callback of constraint %q", c.name)
		}
	}
	if c.check {
		h.arrays[roleCheck].remove(c)
	}
	last := len(h.conss) - 1
	h.conss[c.consPos] = h.conss[last]
	h.conss[c.consPos].consPos = c.consPos
	h.conss = h.conss[:last]
	c.consPos = -1
	c.active = false
	c.activeDepth = -1
	h.log.WithField("cons", c.name).Debug("deactivated constraint")
	return nil
}

// enableCons inserts c into the separation, enforcement, and propagation
// arrays matching its role flags.
func (h *Handler) enableCons(c *Cons) error {
	if !c.active {
		return errors.Errorf("constraint %q not active", c.name)
	}
	if c.enabled {
		return errors.Errorf("constraint %q already enabled", c.name)
	}
	c.enabled = true
	if c.separate && h.hasSeparator() {
		h.arrays[roleSepa].insert(c)
	}
	if c.enforce {
		h.arrays[roleEnfo].insert(c)
	}
	if c.propagate && h.hasPropagator() {
		h.arrays[roleProp].insert(c)
	}
	if ev, ok := h.plugin.(EventHandler); ok {
		if err := ev.Enabled(c); err != nil {
			return errors.Wrapf(err, "enable callback of constraint %q", c.name)
		}
	}
	return nil
}

// disableCons removes c from the separation, enforcement, and propagation
// arrays. The plugin is notified first so it still sees the constraint
// live during its own teardown.
func (h *Handler) disableCons(c *Cons) error {
	if !c.enabled {
		return errors.Errorf("constraint %q not enabled", c.name)
	}
	if ev, ok := h.plugin.(EventHandler); ok {
		if err := ev.Disabled(c); err != nil {
			return errors.Wrapf(err, "disable callback of constraint %q", c.name)
		}
	}
	for _, r := range []role{roleSepa, roleEnfo, roleProp} {
		if c.pos[r] >= 0 {
			h.arrays[r].remove(c)
		}
	}
	c.enabled = false
	return nil
}

// markConsObsolete demotes c across the useful/obsolete boundary of every
// array it occupies. Check membership is retained: obsolete constraints
// are still checked for feasibility.
func (h *Handler) markConsObsolete(c *Cons) error {
	if c.obsolete {
		return nil
	}
	c.obsolete = true
	if !c.active {
		return nil
	}
	for r := range h.arrays {
		if c.pos[r] >= 0 {
			h.arrays[r].markObsolete(c)
		}
	}
	h.log.WithField("cons", c.name).Debug("marked constraint obsolete")
	return nil
}

// markConsUseful promotes c back into the useful prefix of every array it
// occupies.
func (h *Handler) markConsUseful(c *Cons) error {
	if !c.obsolete {
		return nil
	}
	c.obsolete = false
	if !c.active {
		return nil
	}
	for r := range h.arrays {
		if c.pos[r] >= 0 {
			h.arrays[r].markUseful(c)
		}
	}
	return nil
}
