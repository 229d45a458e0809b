package physics

import "math"

// Quat is a rotation quaternion (X, Y, Z vector part, W scalar part).
type Quat struct {
	X, Y, Z, W float64
}

// Identity is the no-rotation quaternion.
func Identity() Quat { return Quat{W: 1} }

// YawQuat builds a rotation of angle radians around the up axis.
func YawQuat(angle float64) Quat {
	s, c := math.Sincos(angle / 2)
	return Quat{Y: s, W: c}
}

func (q Quat) Dot(o Quat) float64 { return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W }

func (q Quat) Len() float64 { return math.Sqrt(q.Dot(q)) }

// Normalize returns a unit quaternion; a degenerate input becomes Identity.
func (q Quat) Normalize() Quat {
	l := q.Len()
	if l == 0 || !Finite(l) {
		return Identity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

func (q Quat) IsFinite() bool {
	return Finite(q.X) && Finite(q.Y) && Finite(q.Z) && Finite(q.W)
}

// Yaw extracts the rotation around the up axis in radians.
func (q Quat) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Y+q.X*q.Z), 1-2*(q.Y*q.Y+q.X*q.X))
}

// Slerp spherically interpolates between a and b along the shortest arc.
func Slerp(a, b Quat, t float64) Quat {
	a, b = a.Normalize(), b.Normalize()
	cos := a.Dot(b)
	if cos < 0 {
		b = Quat{-b.X, -b.Y, -b.Z, -b.W}
		cos = -cos
	}

	// nearly parallel: fall back to normalized lerp to avoid dividing by ~0
	if cos > 0.9995 {
		return Quat{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		}.Normalize()
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Quat{
		X: a.X*wa + b.X*wb,
		Y: a.Y*wa + b.Y*wb,
		Z: a.Z*wa + b.Z*wb,
		W: a.W*wa + b.W*wb,
	}
}
