package components

import "github.com/zeusync/arena/internal/core/systems/physics"

// Layer is a collision category bit.
type Layer uint32

const (
	LayerPlayer Layer = 1 << iota
	LayerEnemy
	LayerEnvironment
	LayerProjectile
	// LayerHazard marks damaging zones; they report contacts but never push.
	LayerHazard
)

const (
	// PlayerMask leaves out players and enemies: player bodies never push each
	// other, PVP goes through the damage pipeline instead.
	PlayerMask = LayerEnvironment | LayerProjectile
	// ShadowMask is the mask of remote (shadow) player bodies.
	ShadowMask = LayerEnvironment
	// EnvironmentMask lets static geometry report every dynamic body.
	EnvironmentMask = LayerPlayer | LayerEnemy | LayerProjectile
	// HazardMask lets a hazard zone report the bodies standing in it.
	HazardMask = LayerPlayer | LayerEnemy
)

func (l Layer) Has(o Layer) bool { return l&o != 0 }

type Shape uint8

const (
	ShapeSphere Shape = iota
	ShapeCylinder
)

// Collider describes the broad-phase footprint of an entity. Cylinders are
// vertical and span [Offset.Y, Offset.Y+Height] above the transform origin.
type Collider struct {
	Shape  Shape
	Radius float64
	Height float64
	Layer  Layer
	Mask   Layer
	Offset physics.Vec3
	Static bool
}

// Center returns the collider center in world space for a given position.
func (c *Collider) Center(pos physics.Vec3) physics.Vec3 {
	center := pos.Add(c.Offset)
	if c.Shape == ShapeCylinder {
		center.Y += c.Height / 2
	}
	return center
}

// BoundingRadius is the radius of a sphere enclosing the shape.
func (c *Collider) BoundingRadius() float64 {
	if c.Shape == ShapeCylinder {
		half := c.Height / 2
		return physics.V3(c.Radius, half, 0).Len()
	}
	return c.Radius
}
