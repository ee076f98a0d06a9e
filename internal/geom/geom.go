package geom

import "github.com/go-gl/mathgl/mgl32"

// Scalar is the simulation's scalar type. It matches the 32-bit float
// encoding used on the wire.
type Scalar = float32

// Point and Vector are affine points and tangent vectors in world space.
type Point = mgl32.Vec3

// Vector aliases the same underlying type as Point; the distinction is
// semantic only and mirrors the wire protocol's type names.
type Vector = mgl32.Vec3

// Ray is a half-line used for ray-based atom picking.
type Ray struct {
	Origin    Point
	Direction Vector
}

// PointAt returns the point at parameter lambda along the ray.
func (r Ray) PointAt(lambda Scalar) Point {
	return r.Origin.Add(r.Direction.Mul(lambda))
}

// ONTransform is a rigid, orientation-preserving 6DOF transform: a rotation
// followed by a translation.
type ONTransform struct {
	Translation Vector
	Rotation    mgl32.Quat
}

// Identity returns the identity transform.
func Identity() ONTransform {
	return ONTransform{Rotation: mgl32.QuatIdent()}
}

// Translate returns a pure translation transform.
func Translate(v Vector) ONTransform {
	return ONTransform{Translation: v, Rotation: mgl32.QuatIdent()}
}

// Rotate returns a pure rotation transform.
func Rotate(q mgl32.Quat) ONTransform {
	return ONTransform{Rotation: q.Normalize()}
}

// Origin returns the image of the coordinate origin, i.e. the transform's
// translation component.
func (t ONTransform) Origin() Point {
	return t.Translation
}

// Transform applies t to a point.
func (t ONTransform) Transform(p Point) Point {
	return t.Rotation.Rotate(p).Add(t.Translation)
}

// TransformVector applies only the rotational part of t to a vector.
func (t ONTransform) TransformVector(v Vector) Vector {
	return t.Rotation.Rotate(v)
}

// Mul composes two transforms so that t.Mul(o).Transform(p) ==
// t.Transform(o.Transform(p)). The rotation is renormalized to keep the
// quaternion unit under repeated composition.
func (t ONTransform) Mul(o ONTransform) ONTransform {
	return ONTransform{
		Translation: t.Rotation.Rotate(o.Translation).Add(t.Translation),
		Rotation:    t.Rotation.Mul(o.Rotation).Normalize(),
	}
}

// Invert returns the inverse transform.
func (t ONTransform) Invert() ONTransform {
	inv := t.Rotation.Inverse().Normalize()
	return ONTransform{
		Translation: inv.Rotate(t.Translation).Mul(-1),
		Rotation:    inv,
	}
}
