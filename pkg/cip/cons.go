package cip

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Cons is one constraint instance. It carries the handler-specific payload,
// the lifecycle and role flags, its cached positions in the handler's
// arrays, its age, its rounding-lock counters, and its reference count.
//
// A Cons is shared between the problem, tree nodes, and the handler's
// arrays; every structure that stores it beyond a single call must Capture
// it on store and Release it on removal. The handler's arrays are the
// exception: they hold non-owning slots mirrored by the pos fields.
type Cons struct {
	name string
	hdlr *Handler
	data interface{}

	transCons *Cons
	original  bool

	initial    bool
	separate   bool
	enforce    bool
	check      bool
	propagate  bool
	local      bool
	modifiable bool
	removable  bool

	active   bool
	enabled  bool
	obsolete bool
	deleted  bool

	queued           bool
	updateActivate   bool
	updateDeactivate bool
	updateEnable     bool
	updateDisable    bool
	updateDelete     bool
	updateObsolete   bool

	age         float64
	activeDepth int

	nUses     int
	nLocksPos int
	nLocksNeg int

	consPos int
	pos     [numRoles]int

	addSetChg   *SetChange
	addArrayPos int
	prob        *Prob
}

func (c *Cons) Name() string         { return c.name }
func (c *Cons) Handler() *Handler    { return c.hdlr }
func (c *Cons) Data() interface{}    { return c.data }
func (c *Cons) SetData(d interface{}) { c.data = d }

func (c *Cons) IsOriginal() bool   { return c.original }
func (c *Cons) IsInitial() bool    { return c.initial }
func (c *Cons) IsSeparated() bool  { return c.separate }
func (c *Cons) IsEnforced() bool   { return c.enforce }
func (c *Cons) IsChecked() bool    { return c.check }
func (c *Cons) IsPropagated() bool { return c.propagate }
func (c *Cons) IsLocal() bool      { return c.local }
func (c *Cons) IsModifiable() bool { return c.modifiable }
func (c *Cons) IsRemovable() bool  { return c.removable }

// IsActive folds the pending update flags into the answer: a constraint
// queued for activation already counts as active, one queued for
// deactivation no longer does.
func (c *Cons) IsActive() bool {
	return c.updateActivate || (c.active && !c.updateDeactivate)
}

func (c *Cons) IsEnabled() bool {
	return c.updateEnable || (c.enabled && !c.updateDisable)
}

func (c *Cons) IsObsolete() bool {
	return c.updateObsolete || c.obsolete
}

func (c *Cons) IsDeleted() bool {
	return c.deleted || c.updateDelete
}

func (c *Cons) Age() float64     { return c.age }
func (c *Cons) ActiveDepth() int { return c.activeDepth }
func (c *Cons) NUses() int       { return c.nUses }
func (c *Cons) NLocksPos() int   { return c.nLocksPos }
func (c *Cons) NLocksNeg() int   { return c.nLocksNeg }

// Flags returns the creation flags of the constraint.
func (c *Cons) Flags() ConsFlags {
	return ConsFlags{
		Initial:    c.initial,
		Separate:   c.separate,
		Enforce:    c.enforce,
		Check:      c.check,
		Propagate:  c.propagate,
		Local:      c.local,
		Modifiable: c.modifiable,
		Removable:  c.removable,
	}
}

// Capture takes an additional reference on the constraint.
func (c *Cons) Capture() {
	c.nUses++
}

// Release drops a reference; the last release destroys the constraint and
// frees its payload. A constraint sitting in an update queue is always
// captured by the queue, so it cannot be destroyed mid-flight.
func (c *Cons) Release() error {
	if c.nUses <= 0 {
		return errors.Errorf("constraint %q released more often than captured", c.name)
	}
	c.nUses--
	if c.nUses > 0 {
		return nil
	}
	return c.destroy()
}

func (c *Cons) destroy() error {
	if c.active || c.updateActivate {
		return errors.Errorf("constraint %q destroyed while active", c.name)
	}
	if err := c.freeData(); err != nil {
		return err
	}
	c.deleted = true
	return nil
}

func (c *Cons) freeData() error {
	if c.data == nil {
		return nil
	}
	if d, ok := c.hdlr.plugin.(Deleter); ok {
		if err := d.Delete(c, c.data); err != nil {
			return errors.Wrapf(err, "freeing payload of constraint %q", c.name)
		}
	}
	c.data = nil
	return nil
}

// Activate adds the constraint to its handler's bookkeeping at the given
// search depth. While the handler is inside a callback the activation is
// queued; a pending deactivation is cancelled instead.
func (c *Cons) Activate(depth int) error {
	h := c.hdlr
	if c.updateDeactivate {
		c.updateDeactivate = false
		c.activeDepth = depth
		return nil
	}
	if c.active || c.updateActivate {
		return errors.Errorf("cannot activate constraint %q: already active", c.name)
	}
	if c.IsDeleted() {
		return errors.Errorf("cannot activate constraint %q: already deleted", c.name)
	}
	if h.delayed() {
		c.updateActivate = true
		c.activeDepth = depth
		h.addUpdateCons(c)
		return nil
	}
	return h.activateCons(c, depth)
}

// Deactivate removes the constraint from its handler's bookkeeping. While
// the handler is inside a callback the deactivation is queued; a pending
// activation is cancelled instead.
func (c *Cons) Deactivate() error {
	h := c.hdlr
	if c.updateActivate {
		c.updateActivate = false
		c.activeDepth = -1
		return nil
	}
	if !c.active || c.updateDeactivate {
		return errors.Errorf("cannot deactivate constraint %q: not active", c.name)
	}
	if h.delayed() {
		c.updateDeactivate = true
		h.addUpdateCons(c)
		return nil
	}
	return h.deactivateCons(c)
}

// Enable makes the constraint visible to separation, enforcement, and
// propagation again.
func (c *Cons) Enable() error {
	h := c.hdlr
	if c.updateDisable {
		c.updateDisable = false
		return nil
	}
	if !c.IsActive() {
		return errors.Errorf("cannot enable constraint %q: not active", c.name)
	}
	if c.enabled || c.updateEnable {
		return errors.Errorf("cannot enable constraint %q: already enabled", c.name)
	}
	if h.delayed() {
		c.updateEnable = true
		h.addUpdateCons(c)
		return nil
	}
	return h.enableCons(c)
}

// Disable hides the constraint from separation, enforcement, and
// propagation. It stays in the check array: disabled constraints are still
// checked for feasibility.
func (c *Cons) Disable() error {
	h := c.hdlr
	if c.updateEnable {
		c.updateEnable = false
		return nil
	}
	if !c.enabled || c.updateDisable {
		return errors.Errorf("cannot disable constraint %q: not enabled", c.name)
	}
	if h.delayed() {
		c.updateDisable = true
		h.addUpdateCons(c)
		return nil
	}
	return h.disableCons(c)
}

// Delete removes the constraint from the problem or the node journal that
// added it, deactivating it first. The payload is freed here; the shell
// lives on until the last reference is released.
func (c *Cons) Delete() error {
	h := c.hdlr
	if c.IsDeleted() {
		return errors.Errorf("cannot delete constraint %q: already deleted", c.name)
	}
	if h.delayed() {
		c.updateDelete = true
		h.addUpdateCons(c)
		return nil
	}
	return c.doDelete()
}

func (c *Cons) doDelete() error {
	c.deleted = true
	if c.active && !c.updateDeactivate {
		if err := c.hdlr.deactivateCons(c); err != nil {
			return err
		}
	}
	if err := c.freeData(); err != nil {
		return err
	}
	switch {
	case c.addSetChg != nil:
		return c.addSetChg.delAdded(c.addArrayPos)
	case c.prob != nil:
		return c.prob.delCons(c)
	}
	return nil
}

// AddAge increases the constraint's age; negative deltas are clamped at
// zero. A non-check constraint aging past the age limit is deleted from the
// model; any constraint aging past the obsolete threshold is demoted to the
// obsolete suffix of its arrays.
func (c *Cons) AddAge(delta float64) error {
	h := c.hdlr
	set := h.rt.set
	c.age = math.Max(0, c.age+delta)
	if !c.check && set.exceedsAgeLimit(c.age) && c.IsActive() {
		if !c.IsDeleted() {
			return c.Delete()
		}
		return nil
	}
	if !c.obsolete && set.exceedsObsoleteAge(c.age) {
		if h.delayed() {
			c.updateObsolete = true
			h.addUpdateCons(c)
			return nil
		}
		return h.markConsObsolete(c)
	}
	return nil
}

// IncAge ages the constraint by one.
func (c *Cons) IncAge() error {
	return c.AddAge(1)
}

// ResetAge zeroes the age and promotes an obsolete constraint back to
// useful. Called when the constraint contributed a cut or reduction.
func (c *Cons) ResetAge() error {
	h := c.hdlr
	c.age = 0
	if c.IsObsolete() {
		if h.delayed() {
			c.updateObsolete = true
			h.addUpdateCons(c)
			return nil
		}
		return h.markConsUseful(c)
	}
	return nil
}

// LockVars adds rounding locks. The plugin's Lock callback runs only on
// the 0-to-1 transitions of the two counters.
func (c *Cons) LockVars(nLocksPos, nLocksNeg int) error {
	return c.addLocks(nLocksPos, nLocksNeg)
}

// UnlockVars removes rounding locks. The plugin's Lock callback runs only
// on the 1-to-0 transitions of the two counters.
func (c *Cons) UnlockVars(nLocksPos, nLocksNeg int) error {
	return c.addLocks(-nLocksPos, -nLocksNeg)
}

func (c *Cons) addLocks(dpos, dneg int) error {
	oldPos := c.nLocksPos > 0
	oldNeg := c.nLocksNeg > 0
	c.nLocksPos += dpos
	c.nLocksNeg += dneg
	if c.nLocksPos < 0 || c.nLocksNeg < 0 {
		return errors.Errorf("constraint %q unlocked more often than locked", c.name)
	}
	updPos := b2i(c.nLocksPos > 0) - b2i(oldPos)
	updNeg := b2i(c.nLocksNeg > 0) - b2i(oldNeg)
	if updPos == 0 && updNeg == 0 {
		return nil
	}
	return errors.Wrapf(c.hdlr.plugin.Lock(c, updPos, updNeg), "locking constraint %q", c.name)
}

// Check tests this single constraint against a candidate solution.
func (c *Cons) Check(sol Solution, checkIntegrality, checkLPRows bool) (Result, error) {
	res, err := c.hdlr.plugin.Check([]*Cons{c}, 1, sol, checkIntegrality, checkLPRows)
	if err != nil {
		return res, errors.Wrapf(err, "checking constraint %q", c.name)
	}
	if !checkResults.contains(res) {
		return res, &ContractError{Handler: c.hdlr.name, Callback: "check", Result: res}
	}
	return res, nil
}

// ResolveConflict asks the handler to explain a propagation on v during
// conflict analysis.
func (c *Cons) ResolveConflict(v Variable) (Result, error) {
	r, ok := c.hdlr.plugin.(ConflictResolver)
	if !ok {
		return DidNotFind, errors.Errorf("constraint handler %q has no conflict resolution callback", c.hdlr.name)
	}
	res, err := r.ResolveConflict(c, v)
	if err != nil {
		return res, errors.Wrapf(err, "resolving conflict on constraint %q", c.name)
	}
	if res != Success && res != DidNotFind {
		return res, &ContractError{Handler: c.hdlr.name, Callback: "resolveconflict", Result: res}
	}
	return res, nil
}

// Transform returns the transformed copy of an original constraint,
// creating and linking it on first call. The returned constraint is
// captured for the caller.
func (c *Cons) Transform() (*Cons, error) {
	if !c.original {
		return nil, errors.Errorf("cannot transform constraint %q: not original", c.name)
	}
	if c.transCons != nil {
		c.transCons.Capture()
		return c.transCons, nil
	}
	var data interface{}
	if t, ok := c.hdlr.plugin.(Transformer); ok {
		var err error
		data, err = t.Transform(c)
		if err != nil {
			return nil, errors.Wrapf(err, "transforming constraint %q", c.name)
		}
	}
	tc := c.hdlr.NewCons(c.name, data, c.Flags())
	c.transCons = tc
	return tc, nil
}

// TransCons returns the transformed counterpart, if any.
func (c *Cons) TransCons() *Cons {
	return c.transCons
}

// Copy clones the constraint within its handler under a new name.
func (c *Cons) Copy(name string) (*Cons, error) {
	cp, ok := c.hdlr.plugin.(Copier)
	if !ok {
		return nil, errors.Errorf("constraint handler %q has no copy callback", c.hdlr.name)
	}
	data, err := cp.Copy(c)
	if err != nil {
		return nil, errors.Wrapf(err, "copying constraint %q", c.name)
	}
	return c.hdlr.NewCons(name, data, c.Flags()), nil
}

// Print writes a textual form of the constraint.
func (c *Cons) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "[%s] <%s>: ", c.hdlr.name, c.name); err != nil {
		return err
	}
	if p, ok := c.hdlr.plugin.(Printer); ok {
		return p.Print(c, w)
	}
	_, err := io.WriteString(w, "(no print callback)")
	return err
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
