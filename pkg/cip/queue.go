package cip

import "github.com/pkg/errors"

// The update queue defers lifecycle mutations requested while one of the
// handler's callbacks is iterating its arrays. A constraint enters the
// queue at most once; repeated requests only fold into its pending flags.
// The queue holds a capture on each entry, so a queued constraint cannot
// be destroyed before the flush releases it.

// DelayUpdates opens a delay window. Windows nest; only closing the
// outermost one flushes the queue.
func (h *Handler) DelayUpdates() {
	h.nDelayed++
}

// FlushUpdates closes the current delay window and, when it was the
// outermost one, drains the queue.
func (h *Handler) FlushUpdates() error {
	if h.nDelayed == 0 {
		return errors.Errorf("updates of constraint handler %q are not delayed", h.name)
	}
	h.nDelayed--
	if h.nDelayed > 0 {
		return nil
	}
	return h.processUpdates()
}

func (h *Handler) delayed() bool {
	return h.nDelayed > 0
}

func (h *Handler) addUpdateCons(c *Cons) {
	if c.queued {
		return
	}
	c.queued = true
	c.Capture()
	h.updateConss = append(h.updateConss, c)
}

// processUpdates drains the queue in one pass. Pending flags resolve in a
// fixed precedence: activate, else deactivate, else enable, else disable;
// each entry is then deleted if requested, or has its obsolete flag
// re-evaluated against the age threshold. Entries appended while the pass
// runs (by event callbacks) are drained in the same pass; a nested flush
// cannot occur because the delay count is already zero.
func (h *Handler) processUpdates() error {
	for i := 0; i < len(h.updateConss); i++ {
		c := h.updateConss[i]
		c.queued = false
		switch {
		case c.updateActivate:
			c.updateActivate = false
			if err := h.activateCons(c, c.activeDepth); err != nil {
				return err
			}
		case c.updateDeactivate:
			c.updateDeactivate = false
			c.updateEnable = false
			c.updateDisable = false
			if err := h.deactivateCons(c); err != nil {
				return err
			}
			c.obsolete = h.rt.set.exceedsObsoleteAge(c.age)
		case c.updateEnable:
			c.updateEnable = false
			if err := h.enableCons(c); err != nil {
				return err
			}
		case c.updateDisable:
			c.updateDisable = false
			if err := h.disableCons(c); err != nil {
				return err
			}
		}
		switch {
		case c.updateDelete:
			c.updateDelete = false
			c.updateObsolete = false
			if err := c.doDelete(); err != nil {
				return err
			}
		case c.updateObsolete:
			c.updateObsolete = false
			exceeded := h.rt.set.exceedsObsoleteAge(c.age)
			switch {
			case !c.obsolete && exceeded:
				if err := h.markConsObsolete(c); err != nil {
					return err
				}
			case c.obsolete && !exceeded:
				if err := h.markConsUseful(c); err != nil {
					return err
				}
			}
		}
		if err := c.Release(); err != nil {
			return err
		}
	}
	h.updateConss = h.updateConss[:0]
	return nil
}
