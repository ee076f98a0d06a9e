// Package crystal implements the shared Jell-O soft body: a lattice of mass
// points ("atoms") coupled by structural springs. The server core drives it
// from a single thread; the type is not safe for concurrent use.
package crystal

import (
	"math"

	"github.com/cespare/xxhash/v2"

	"shared-jello/server/internal/geom"
)

// AtomID identifies one atom of the lattice. IDs are grid-order indices and
// stay valid for the crystal's lifetime.
type AtomID int

// InvalidAtom is returned by picking when the lattice is empty.
const InvalidAtom AtomID = -1

const (
	atomSpacing = geom.Scalar(1.0)

	defaultAtomMass    = geom.Scalar(1.0)
	defaultAttenuation = geom.Scalar(0.5)
	defaultGravity     = geom.Scalar(9.81)

	springStiffness = geom.Scalar(40.0)

	// maxStepSize caps the integration step; larger wall-clock deltas are
	// split into sub-steps to keep the explicit integrator stable.
	maxStepSize = 0.01
)

// StateWriter receives the grid-order atom pose dump. *wire.Pipe satisfies
// it for broadcast. StateChecksum does not go through it; it hashes the
// poses directly.
type StateWriter interface {
	WriteONTransform(geom.ONTransform) error
}

// Crystal is the soft-body lattice and its simulator.
type Crystal struct {
	numAtoms  [3]int32
	domainMin geom.Point
	domainMax geom.Point

	states     []geom.ONTransform
	velocities []geom.Vector
	locked     []bool

	atomMass    geom.Scalar
	attenuation geom.Scalar
	gravity     geom.Scalar

	forces []geom.Vector
}

// New builds a crystal with the given grid dimensions. Atoms sit on a
// unit-spaced lattice centered at the origin; the domain extends half a
// spacing beyond the outermost atoms.
func New(numAtoms [3]int32) *Crystal {
	total := int(numAtoms[0]) * int(numAtoms[1]) * int(numAtoms[2])
	c := &Crystal{
		numAtoms:    numAtoms,
		states:      make([]geom.ONTransform, total),
		velocities:  make([]geom.Vector, total),
		locked:      make([]bool, total),
		forces:      make([]geom.Vector, total),
		atomMass:    defaultAtomMass,
		attenuation: defaultAttenuation,
		gravity:     defaultGravity,
	}

	var latticeMin geom.Point
	for axis := 0; axis < 3; axis++ {
		halfExtent := geom.Scalar(numAtoms[axis]-1) * atomSpacing / 2
		latticeMin[axis] = -halfExtent
		c.domainMin[axis] = -halfExtent - atomSpacing/2
		c.domainMax[axis] = halfExtent + atomSpacing/2
	}

	for z := int32(0); z < numAtoms[2]; z++ {
		for y := int32(0); y < numAtoms[1]; y++ {
			for x := int32(0); x < numAtoms[0]; x++ {
				id := c.atomIndex(x, y, z)
				c.states[id] = geom.Translate(geom.Point{
					latticeMin[0] + geom.Scalar(x)*atomSpacing,
					latticeMin[1] + geom.Scalar(y)*atomSpacing,
					latticeMin[2] + geom.Scalar(z)*atomSpacing,
				})
			}
		}
	}
	return c
}

func (c *Crystal) atomIndex(x, y, z int32) AtomID {
	return AtomID((z*c.numAtoms[1]+y)*c.numAtoms[0] + x)
}

// Domain reports the simulation bounds.
func (c *Crystal) Domain() (geom.Point, geom.Point) {
	return c.domainMin, c.domainMax
}

// NumAtoms reports the lattice grid dimensions.
func (c *Crystal) NumAtoms() [3]int32 {
	return c.numAtoms
}

// TotalAtoms reports the flattened atom count.
func (c *Crystal) TotalAtoms() int {
	return len(c.states)
}

// AtomMass returns the per-atom mass.
func (c *Crystal) AtomMass() geom.Scalar { return c.atomMass }

// SetAtomMass updates the per-atom mass.
func (c *Crystal) SetAtomMass(m geom.Scalar) {
	if m > 0 {
		c.atomMass = m
	}
}

// Attenuation returns the per-second velocity attenuation factor.
func (c *Crystal) Attenuation() geom.Scalar { return c.attenuation }

// SetAttenuation updates the velocity attenuation factor.
func (c *Crystal) SetAttenuation(a geom.Scalar) {
	if a > 0 && a <= 1 {
		c.attenuation = a
	}
}

// Gravity returns the gravity magnitude along -Z.
func (c *Crystal) Gravity() geom.Scalar { return c.gravity }

// SetGravity updates the gravity magnitude.
func (c *Crystal) SetGravity(g geom.Scalar) {
	c.gravity = g
}

// PickAtomPoint returns the atom closest to the given point.
func (c *Crystal) PickAtomPoint(p geom.Point) AtomID {
	best := InvalidAtom
	bestDist := geom.Scalar(math.MaxFloat32)
	for i := range c.states {
		d := c.states[i].Translation.Sub(p).LenSqr()
		if d < bestDist {
			bestDist = d
			best = AtomID(i)
		}
	}
	return best
}

// PickAtomRay returns the atom closest to the ray, considering only points
// at non-negative ray parameters. Ties resolve to the nearer hit.
func (c *Crystal) PickAtomRay(ray geom.Ray) AtomID {
	dirSqr := ray.Direction.LenSqr()
	if dirSqr == 0 {
		return c.PickAtomPoint(ray.Origin)
	}
	best := InvalidAtom
	bestDist := geom.Scalar(math.MaxFloat32)
	bestLambda := geom.Scalar(math.MaxFloat32)
	for i := range c.states {
		offset := c.states[i].Translation.Sub(ray.Origin)
		lambda := offset.Dot(ray.Direction) / dirSqr
		if lambda < 0 {
			lambda = 0
		}
		d := c.states[i].Translation.Sub(ray.PointAt(lambda)).LenSqr()
		if d < bestDist || (d == bestDist && lambda < bestLambda) {
			bestDist = d
			bestLambda = lambda
			best = AtomID(i)
		}
	}
	return best
}

// LockAtom claims an atom for dragging. It returns false when the atom is
// already locked or the id is invalid.
func (c *Crystal) LockAtom(id AtomID) bool {
	if id < 0 || int(id) >= len(c.locked) || c.locked[id] {
		return false
	}
	c.locked[id] = true
	return true
}

// UnlockAtom releases a previously locked atom.
func (c *Crystal) UnlockAtom(id AtomID) {
	if id >= 0 && int(id) < len(c.locked) {
		c.locked[id] = false
	}
}

// IsLocked reports whether an atom is currently locked.
func (c *Crystal) IsLocked(id AtomID) bool {
	return id >= 0 && int(id) < len(c.locked) && c.locked[id]
}

// NumLocked reports the number of currently locked atoms.
func (c *Crystal) NumLocked() int {
	n := 0
	for _, l := range c.locked {
		if l {
			n++
		}
	}
	return n
}

// AtomState returns an atom's rigid pose.
func (c *Crystal) AtomState(id AtomID) geom.ONTransform {
	return c.states[id]
}

// SetAtomState pins an atom's rigid pose. The atom's velocity is reset; a
// dragged atom moves with its dragger, not the integrator.
func (c *Crystal) SetAtomState(id AtomID, t geom.ONTransform) {
	c.states[id] = t
	c.velocities[id] = geom.Vector{}
}

// Simulate advances the lattice by dt seconds, splitting large steps to
// keep the integrator stable. Locked atoms are treated as kinematic.
func (c *Crystal) Simulate(dt float64) {
	for dt > 0 {
		step := dt
		if step > maxStepSize {
			step = maxStepSize
		}
		c.step(geom.Scalar(step))
		dt -= step
	}
}

func (c *Crystal) step(dt geom.Scalar) {
	for i := range c.forces {
		c.forces[i] = geom.Vector{0, 0, -c.gravity * c.atomMass}
	}

	// Structural springs along each grid axis.
	nx, ny, nz := c.numAtoms[0], c.numAtoms[1], c.numAtoms[2]
	for z := int32(0); z < nz; z++ {
		for y := int32(0); y < ny; y++ {
			for x := int32(0); x < nx; x++ {
				id := c.atomIndex(x, y, z)
				if x+1 < nx {
					c.applySpring(id, c.atomIndex(x+1, y, z))
				}
				if y+1 < ny {
					c.applySpring(id, c.atomIndex(x, y+1, z))
				}
				if z+1 < nz {
					c.applySpring(id, c.atomIndex(x, y, z+1))
				}
			}
		}
	}

	damping := geom.Scalar(math.Pow(float64(c.attenuation), float64(dt)))
	for i := range c.states {
		if c.locked[i] {
			continue
		}
		v := c.velocities[i].Add(c.forces[i].Mul(dt / c.atomMass))
		v = v.Mul(damping)
		pos := c.states[i].Translation.Add(v.Mul(dt))

		// Domain walls are rigid; the velocity component into a wall dies.
		for axis := 0; axis < 3; axis++ {
			if pos[axis] < c.domainMin[axis] {
				pos[axis] = c.domainMin[axis]
				v[axis] = 0
			} else if pos[axis] > c.domainMax[axis] {
				pos[axis] = c.domainMax[axis]
				v[axis] = 0
			}
		}

		c.velocities[i] = v
		c.states[i].Translation = pos
	}
}

func (c *Crystal) applySpring(a, b AtomID) {
	delta := c.states[b].Translation.Sub(c.states[a].Translation)
	length := delta.Len()
	if length == 0 {
		return
	}
	f := delta.Mul(springStiffness * (length - atomSpacing) / length)
	c.forces[a] = c.forces[a].Add(f)
	c.forces[b] = c.forces[b].Sub(f)
}

// WriteAtomStates dumps every atom pose in grid order.
func (c *Crystal) WriteAtomStates(w StateWriter) error {
	for i := range c.states {
		if err := w.WriteONTransform(c.states[i]); err != nil {
			return err
		}
	}
	return nil
}

// StateChecksum hashes all atom poses; diagnostics expose it as a cheap
// content fingerprint of the last snapshot.
func (c *Crystal) StateChecksum() uint64 {
	digest := xxhash.New()
	var buf [4]byte
	writeScalar := func(v geom.Scalar) {
		bits := math.Float32bits(v)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		digest.Write(buf[:])
	}
	for i := range c.states {
		t := &c.states[i]
		for axis := 0; axis < 3; axis++ {
			writeScalar(t.Translation[axis])
		}
		for axis := 0; axis < 3; axis++ {
			writeScalar(t.Rotation.V[axis])
		}
		writeScalar(t.Rotation.W)
	}
	return digest.Sum64()
}
