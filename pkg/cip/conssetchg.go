package cip

import "github.com/pkg/errors"

// SetChange is the journal of constraint additions and disablings made at
// one tree node. Applying it on node entry activates the additions and
// disables the disablings; undoing it on backtrack restores the pre-apply
// state. Entries superseded by more global events are compacted lazily
// during apply and undo.
type SetChange struct {
	added    []*Cons
	disabled []*Cons
}

func NewSetChange() *SetChange {
	return &SetChange{}
}

func (sc *SetChange) NAdded() int    { return len(sc.added) }
func (sc *SetChange) NDisabled() int { return len(sc.disabled) }

// AddAdded records c as added at this node, capturing it. When active is
// true the constraint is activated immediately at the given depth.
func (sc *SetChange) AddAdded(c *Cons, depth int, active bool) error {
	if c.addSetChg != nil || c.prob != nil {
		return errors.Errorf("constraint %q already added elsewhere", c.name)
	}
	c.Capture()
	sc.added = append(sc.added, c)
	c.addSetChg = sc
	c.addArrayPos = len(sc.added) - 1
	if active {
		return c.Activate(depth)
	}
	return nil
}

// AddDisabled records c as disabled at this node, capturing it, and
// disables it immediately.
func (sc *SetChange) AddDisabled(c *Cons) error {
	c.Capture()
	sc.disabled = append(sc.disabled, c)
	return c.Disable()
}

// delAdded drops the addition entry at pos by swap-with-last, repairing
// the moved entry's cached slot, and releases the capture.
func (sc *SetChange) delAdded(pos int) error {
	c := sc.added[pos]
	if c.addSetChg == sc {
		c.addSetChg = nil
		c.addArrayPos = -1
	}
	last := len(sc.added) - 1
	sc.added[pos] = sc.added[last]
	if pos < last && sc.added[pos].addSetChg == sc {
		sc.added[pos].addArrayPos = pos
	}
	sc.added = sc.added[:last]
	return c.Release()
}

func (sc *SetChange) delDisabled(pos int) error {
	c := sc.disabled[pos]
	last := len(sc.disabled) - 1
	sc.disabled[pos] = sc.disabled[last]
	sc.disabled = sc.disabled[:last]
	return c.Release()
}

// Apply replays the journal on node entry: additions are activated unless
// already active or deleted (then pruned), disablings are applied unless
// the constraint is already disabled (then pruned).
func (sc *SetChange) Apply(depth int) error {
	for i := 0; i < len(sc.added); {
		c := sc.added[i]
		if c.IsActive() || c.IsDeleted() {
			if err := sc.delAdded(i); err != nil {
				return err
			}
			continue
		}
		c.addSetChg = sc
		c.addArrayPos = i
		if err := c.Activate(depth); err != nil {
			return err
		}
		i++
	}
	for i := 0; i < len(sc.disabled); {
		c := sc.disabled[i]
		if !c.IsEnabled() {
			if err := sc.delDisabled(i); err != nil {
				return err
			}
			continue
		}
		if err := c.Disable(); err != nil {
			return err
		}
		i++
	}
	return nil
}

// Undo reverts the journal on backtrack: disablings first, in reverse
// order, then additions, in reverse order. A disabling whose constraint
// was deactivated by a more global event is dropped rather than re-enabled;
// an addition already deactivated elsewhere only loses its ownership link.
func (sc *SetChange) Undo() error {
	for i := len(sc.disabled) - 1; i >= 0; i-- {
		c := sc.disabled[i]
		if !c.IsActive() {
			if err := sc.delDisabled(i); err != nil {
				return err
			}
			continue
		}
		if !c.IsEnabled() {
			if err := c.Enable(); err != nil {
				return err
			}
		}
	}
	for i := len(sc.added) - 1; i >= 0; i-- {
		c := sc.added[i]
		if c.IsActive() {
			if err := c.Deactivate(); err != nil {
				return err
			}
		}
		if c.addSetChg == sc {
			c.addSetChg = nil
			c.addArrayPos = -1
		}
	}
	return nil
}

// Free releases every remaining capture. The journal must already be
// undone.
func (sc *SetChange) Free() error {
	for _, c := range sc.added {
		if c.addSetChg == sc {
			c.addSetChg = nil
			c.addArrayPos = -1
		}
		if err := c.Release(); err != nil {
			return err
		}
	}
	for _, c := range sc.disabled {
		if err := c.Release(); err != nil {
			return err
		}
	}
	sc.added = nil
	sc.disabled = nil
	return nil
}
