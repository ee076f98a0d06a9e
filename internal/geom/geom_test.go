package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-4

func pointsClose(a, b Point) bool {
	return a.Sub(b).Len() < epsilon
}

func TestTransformComposeMatchesSequentialApply(t *testing.T) {
	a := ONTransform{
		Translation: Vector{1, 2, 3},
		Rotation:    mgl32.QuatRotate(math.Pi/3, Vector{0, 0, 1}.Normalize()),
	}
	b := ONTransform{
		Translation: Vector{-2, 0.5, 4},
		Rotation:    mgl32.QuatRotate(math.Pi/5, Vector{1, 1, 0}.Normalize()),
	}
	p := Point{0.25, -1, 2}

	composed := a.Mul(b).Transform(p)
	sequential := a.Transform(b.Transform(p))
	if !pointsClose(composed, sequential) {
		t.Fatalf("composition mismatch: %v vs %v", composed, sequential)
	}
}

func TestTransformInvertRoundTrip(t *testing.T) {
	tf := ONTransform{
		Translation: Vector{4, -3, 7},
		Rotation:    mgl32.QuatRotate(1.1, Vector{0.3, -0.7, 0.2}.Normalize()),
	}
	p := Point{-5, 2, 0.5}

	back := tf.Invert().Transform(tf.Transform(p))
	if !pointsClose(back, p) {
		t.Fatalf("invert round trip moved point: %v vs %v", back, p)
	}

	ident := tf.Mul(tf.Invert())
	if !pointsClose(ident.Transform(p), p) {
		t.Fatalf("t * t^-1 is not identity: %v", ident)
	}
}

func TestDragTransformReproducesPose(t *testing.T) {
	// The grab-time offset must reproduce the atom pose when composed with
	// the dragger transform, and track translations of the dragger.
	dragger := ONTransform{
		Translation: Vector{1, 0, 0},
		Rotation:    mgl32.QuatRotate(0.4, Vector{0, 1, 0}),
	}
	atom := ONTransform{
		Translation: Vector{1.5, 0.5, -0.25},
		Rotation:    mgl32.QuatIdent(),
	}

	drag := dragger.Invert().Mul(atom)
	if got := dragger.Mul(drag); !pointsClose(got.Origin(), atom.Origin()) {
		t.Fatalf("grab-time pose not reproduced: %v vs %v", got.Origin(), atom.Origin())
	}

	moved := dragger
	moved.Translation = moved.Translation.Add(Vector{0.1, 0, 0})
	want := atom.Origin().Add(Vector{0.1, 0, 0})
	if got := moved.Mul(drag); !pointsClose(got.Origin(), want) {
		t.Fatalf("translated pose mismatch: %v vs %v", got.Origin(), want)
	}
}

func TestRayPointAt(t *testing.T) {
	ray := Ray{Origin: Point{1, 1, 1}, Direction: Vector{0, 0, 2}}
	if got := ray.PointAt(0.5); !pointsClose(got, Point{1, 1, 2}) {
		t.Fatalf("unexpected ray point: %v", got)
	}
}
