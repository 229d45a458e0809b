package collision

import (
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/systems/physics"
)

// Pair is an unordered entity pair stored with A < B.
type Pair struct {
	A, B ecs.EntityID
}

func MakePair(a, b ecs.EntityID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Other returns the member of the pair that is not id.
func (p Pair) Other(id ecs.EntityID) ecs.EntityID {
	if p.A == id {
		return p.B
	}
	return p.A
}

// Contact is an overlapping pair. Normal points from A towards B in the XZ
// plane; Depth is the horizontal penetration.
type Contact struct {
	Pair
	Normal physics.Vec3
	Depth  float64
}

// Contacts is the per-tick broad-phase result shared with later phases.
type Contacts struct {
	tick  uint64
	list  []Contact
	index map[ecs.EntityID][]int
}

func NewContacts() *Contacts {
	return &Contacts{index: make(map[ecs.EntityID][]int)}
}

func (c *Contacts) reset(tick uint64) {
	c.tick = tick
	c.list = c.list[:0]
	clear(c.index)
}

func (c *Contacts) add(ct Contact) {
	i := len(c.list)
	c.list = append(c.list, ct)
	c.index[ct.A] = append(c.index[ct.A], i)
	c.index[ct.B] = append(c.index[ct.B], i)
}

// Tick is the tick the contacts were computed for.
func (c *Contacts) Tick() uint64 { return c.tick }

func (c *Contacts) Len() int { return len(c.list) }

// All returns the contacts ordered by pair.
func (c *Contacts) All() []Contact { return c.list }

// Involving returns the contacts that include id.
func (c *Contacts) Involving(id ecs.EntityID) []Contact {
	idx := c.index[id]
	out := make([]Contact, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.list[i])
	}
	return out
}

func (c *Contacts) Touching(a, b ecs.EntityID) bool {
	p := MakePair(a, b)
	for _, i := range c.index[p.A] {
		if c.list[i].Pair == p {
			return true
		}
	}
	return false
}
