package cip

import "github.com/pkg/errors"

// Prob is a problem container: the global owner of constraints added
// outside any tree node. The transformed problem activates constraints on
// addition; the original problem only stores them.
type Prob struct {
	name        string
	transformed bool

	conss       []*Cons
	maxNConss   int
	startNConss int
}

func NewProb(name string, transformed bool) *Prob {
	return &Prob{name: name, transformed: transformed}
}

func (p *Prob) Name() string      { return p.name }
func (p *Prob) Transformed() bool { return p.transformed }
func (p *Prob) NConss() int       { return len(p.conss) }
func (p *Prob) MaxNConss() int    { return p.maxNConss }

// Conss returns the problem's constraints. The slice is owned by the
// problem and must not be mutated.
func (p *Prob) Conss() []*Cons { return p.conss }

// AddCons captures c into the problem. In the transformed problem the
// constraint is activated at the root.
func (p *Prob) AddCons(c *Cons) error {
	if c.addSetChg != nil || c.prob != nil {
		return errors.Errorf("constraint %q already added elsewhere", c.name)
	}
	if p.transformed && c.original {
		return errors.Errorf("cannot add original constraint %q to the transformed problem", c.name)
	}
	c.Capture()
	c.prob = p
	c.addArrayPos = len(p.conss)
	p.conss = append(p.conss, c)
	if len(p.conss) > p.maxNConss {
		p.maxNConss = len(p.conss)
	}
	if p.transformed && !c.IsActive() {
		return c.Activate(0)
	}
	return nil
}

// DelCons removes c from the problem, deactivating it first.
func (p *Prob) DelCons(c *Cons) error {
	if c.prob != p {
		return errors.Errorf("constraint %q does not belong to problem %q", c.name, p.name)
	}
	if c.IsActive() {
		if err := c.Deactivate(); err != nil {
			return err
		}
	}
	return p.delCons(c)
}

// delCons unlinks c by swap-with-last and releases the problem's capture.
func (p *Prob) delCons(c *Cons) error {
	pos := c.addArrayPos
	last := len(p.conss) - 1
	p.conss[pos] = p.conss[last]
	p.conss[pos].addArrayPos = pos
	p.conss = p.conss[:last]
	c.prob = nil
	c.addArrayPos = -1
	return c.Release()
}
