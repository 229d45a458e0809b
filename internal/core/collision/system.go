package collision

import (
	"fmt"
	"math"

	"github.com/zeusync/arena/internal/core/components"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/systems"
	"github.com/zeusync/arena/internal/core/systems/physics"
	"github.com/zeusync/arena/pkg/generic"
)

const SystemName = "collision"

type body struct {
	id       ecs.EntityID
	pos      physics.Vec3
	collider *components.Collider
	dynamic  bool
}

// System rebuilds the spatial hash from Transform and Collider every tick,
// records the overlapping pairs whose layers and masks allow contact, and
// pushes dynamic bodies out of static environment.
type System struct {
	world    *ecs.World
	hash     *SpatialHash
	contacts *Contacts
	logger   log.Log

	transforms *ecs.Store[components.Transform]
	colliders  *ecs.Store[components.Collider]
	movements  *ecs.Store[components.Movement]

	bodies  map[ecs.EntityID]body
	scratch *generic.Pool[[]ecs.EntityID]
}

func NewSystem(world *ecs.World, cellSize float64, contacts *Contacts, logger log.Log) (*System, error) {
	hash, err := NewSpatialHash(cellSize)
	if err != nil {
		return nil, fmt.Errorf("collision system: %w", err)
	}
	if contacts == nil {
		contacts = NewContacts()
	}
	return &System{
		world:      world,
		hash:       hash,
		contacts:   contacts,
		logger:     logger.With(log.System(SystemName)),
		transforms: ecs.StoreOf[components.Transform](world),
		colliders:  ecs.StoreOf[components.Collider](world),
		movements:  ecs.StoreOf[components.Movement](world),
		bodies:     make(map[ecs.EntityID]body),
		scratch:    generic.NewSlicePool[ecs.EntityID](32),
	}, nil
}

func (s *System) Name() string         { return SystemName }
func (s *System) Phase() systems.Phase { return systems.PhaseCollision }

func (s *System) Hash() *SpatialHash  { return s.hash }
func (s *System) Contacts() *Contacts { return s.contacts }

func (s *System) Update(tick systems.Tick) error {
	s.contacts.reset(tick.Number)
	s.hash.Clear()
	clear(s.bodies)

	ids := s.world.Query(s.transforms.Type(), s.colliders.Type())
	for _, id := range ids {
		tr, _ := s.transforms.Get(id)
		c, _ := s.colliders.Get(id)
		if !tr.Position.IsFinite() {
			s.logger.Warn("skipping collider with non-finite position", log.Entity(uint64(id)))
			continue
		}
		b := body{id: id, pos: tr.Position, collider: c, dynamic: !c.Static && s.movements.Has(id)}
		s.bodies[id] = b
		s.hash.Insert(id, boundsOf(b))
	}

	near := s.scratch.Get()
	defer func() { s.scratch.Put(near) }()

	for _, id := range ids {
		a, ok := s.bodies[id]
		if !ok {
			continue
		}
		near = s.hash.QueryBounds(boundsOf(a), near[:0])
		for _, other := range near {
			if other <= id {
				continue
			}
			b := s.bodies[other]
			if !Interacts(a.collider, b.collider) || (a.collider.Static && b.collider.Static) {
				continue
			}
			if normal, depth, hit := overlap(a, b); hit {
				s.contacts.add(Contact{Pair: Pair{A: id, B: other}, Normal: normal, Depth: depth})
			}
		}
	}

	s.resolve()
	return nil
}

// resolve pushes dynamic bodies out of static environment colliders along the
// horizontal contact normal.
func (s *System) resolve() {
	for _, ct := range s.contacts.All() {
		a, b := s.bodies[ct.A], s.bodies[ct.B]
		switch {
		case b.dynamic && isStaticEnvironment(a.collider):
			s.push(b.id, ct.Normal.Scale(ct.Depth))
		case a.dynamic && isStaticEnvironment(b.collider):
			s.push(a.id, ct.Normal.Scale(-ct.Depth))
		}
	}
}

func (s *System) push(id ecs.EntityID, delta physics.Vec3) {
	tr, ok := s.transforms.Get(id)
	if !ok {
		return
	}
	tr.Position = tr.Position.Add(delta)
	if m, ok := s.movements.Get(id); ok {
		// drop the velocity component driving into the wall
		n := delta.Normalize()
		if into := m.Velocity.Dot(n); into < 0 {
			m.Velocity = m.Velocity.Sub(n.Scale(into))
		}
	}
}

// Interacts applies the layer policy: a pair is considered when either
// collider's mask includes the other's layer.
func Interacts(a, b *components.Collider) bool {
	return a.Mask.Has(b.Layer) || b.Mask.Has(a.Layer)
}

func isStaticEnvironment(c *components.Collider) bool {
	return c.Static && c.Layer.Has(components.LayerEnvironment)
}

func boundsOf(b body) AABB {
	c := b.collider
	base := b.pos.Add(c.Offset)
	if c.Shape == components.ShapeCylinder {
		return AABB{
			Min: physics.V3(base.X-c.Radius, base.Y, base.Z-c.Radius),
			Max: physics.V3(base.X+c.Radius, base.Y+c.Height, base.Z+c.Radius),
		}
	}
	return BoundsAround(base, c.Radius)
}

// verticalSpan returns the [lo, hi] extent of a collider on the Y axis.
func verticalSpan(b body) (float64, float64) {
	c := b.collider
	base := b.pos.Add(c.Offset)
	if c.Shape == components.ShapeCylinder {
		return base.Y, base.Y + c.Height
	}
	return base.Y - c.Radius, base.Y + c.Radius
}

// overlap is the narrow test. Spheres are compared in 3D; anything involving a
// cylinder is a horizontal circle test plus a vertical span test.
func overlap(a, b body) (physics.Vec3, float64, bool) {
	ca, cb := a.pos.Add(a.collider.Offset), b.pos.Add(b.collider.Offset)
	reach := a.collider.Radius + b.collider.Radius

	if a.collider.Shape == components.ShapeSphere && b.collider.Shape == components.ShapeSphere {
		if physics.Distance(ca, cb) >= reach {
			return physics.Vec3{}, 0, false
		}
	} else {
		loA, hiA := verticalSpan(a)
		loB, hiB := verticalSpan(b)
		if hiA < loB || hiB < loA {
			return physics.Vec3{}, 0, false
		}
		if physics.DistanceXZ(ca, cb) >= reach {
			return physics.Vec3{}, 0, false
		}
	}

	d := cb.Sub(ca).XZ()
	dist := d.Len()
	if dist < 1e-9 {
		return physics.V3(1, 0, 0), reach, true
	}
	return d.Scale(1 / dist), math.Max(0, reach-dist), true
}
