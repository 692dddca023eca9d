package cip

// role indexes the per-role constraint arrays of a handler.
type role int

const (
	roleSepa role = iota
	roleEnfo
	roleCheck
	roleProp
	numRoles
)

func (r role) String() string {
	switch r {
	case roleSepa:
		return "separate"
	case roleEnfo:
		return "enforce"
	case roleCheck:
		return "check"
	case roleProp:
		return "propagate"
	}
	return "unknown"
}

// consArray is one partitioned role array: useful constraints occupy the
// prefix [0, nUseful), obsolete ones the suffix. Every mutation updates the
// moved constraints' cached positions in the same operation, so the mirror
// invariant cannot be broken by a forgotten update site.
//
// lastNUseful remembers how much of the useful prefix the previous dispatch
// round already visited; -1 forces the next round to take everything.
type consArray struct {
	role        role
	conss       []*Cons
	nUseful     int
	lastNUseful int
}

func newConsArray(r role) consArray {
	return consArray{role: r, lastNUseful: -1}
}

func (a *consArray) len() int {
	return len(a.conss)
}

// insert places c at the useful/obsolete boundary matching its obsolete
// flag.
func (a *consArray) insert(c *Cons) {
	if c.obsolete {
		c.pos[a.role] = len(a.conss)
		a.conss = append(a.conss, c)
		return
	}
	a.conss = append(a.conss, nil)
	if a.nUseful < len(a.conss)-1 {
		moved := a.conss[a.nUseful]
		a.conss[len(a.conss)-1] = moved
		moved.pos[a.role] = len(a.conss) - 1
	}
	a.conss[a.nUseful] = c
	c.pos[a.role] = a.nUseful
	a.nUseful++
}

// remove deletes c by swap-with-last within its partition, then
// swap-with-last overall. Each swap only runs when it moves a different
// constraint; a self-swap would overwrite the position of the constraint
// moved by the previous step.
func (a *consArray) remove(c *Cons) {
	pos := c.pos[a.role]
	if pos < 0 {
		return
	}
	if pos < a.nUseful {
		last := a.nUseful - 1
		if pos < last {
			a.conss[pos] = a.conss[last]
			a.conss[pos].pos[a.role] = pos
		}
		if pos < a.lastNUseful {
			a.lastNUseful--
		}
		pos = last
		a.nUseful--
	}
	last := len(a.conss) - 1
	if pos < last {
		a.conss[pos] = a.conss[last]
		a.conss[pos].pos[a.role] = pos
	}
	a.conss = a.conss[:last]
	c.pos[a.role] = -1
}

// markObsolete moves c from the useful prefix to the front of the obsolete
// suffix. A no-op if c already sits in the suffix.
func (a *consArray) markObsolete(c *Cons) {
	pos := c.pos[a.role]
	if pos < 0 || pos >= a.nUseful {
		return
	}
	last := a.nUseful - 1
	a.conss[pos] = a.conss[last]
	a.conss[pos].pos[a.role] = pos
	a.conss[last] = c
	c.pos[a.role] = last
	a.nUseful--
	if pos < a.lastNUseful {
		a.lastNUseful--
	}
}

// markUseful moves c from the obsolete suffix to the end of the useful
// prefix. A no-op if c already sits in the prefix.
func (a *consArray) markUseful(c *Cons) {
	pos := c.pos[a.role]
	if pos < 0 || pos < a.nUseful {
		return
	}
	boundary := a.nUseful
	a.conss[pos] = a.conss[boundary]
	a.conss[pos].pos[a.role] = pos
	a.conss[boundary] = c
	c.pos[a.role] = boundary
	a.nUseful++
}
