package crystal

import (
	"testing"

	"shared-jello/server/internal/geom"
)

func TestDomainForTwoCubedLattice(t *testing.T) {
	c := New([3]int32{2, 2, 2})
	min, max := c.Domain()
	if min != (geom.Point{-1, -1, -1}) || max != (geom.Point{1, 1, 1}) {
		t.Fatalf("unexpected domain: %v .. %v", min, max)
	}
	if c.NumAtoms() != [3]int32{2, 2, 2} {
		t.Fatalf("unexpected grid: %v", c.NumAtoms())
	}
	if c.TotalAtoms() != 8 {
		t.Fatalf("expected 8 atoms, got %d", c.TotalAtoms())
	}
}

func TestPickAtomPointFindsNearest(t *testing.T) {
	c := New([3]int32{2, 2, 2})
	id := c.PickAtomPoint(geom.Point{0.4, 0.6, 0.45})
	if id == InvalidAtom {
		t.Fatalf("expected a pick")
	}
	if got := c.AtomState(id).Translation; got != (geom.Point{0.5, 0.5, 0.5}) {
		t.Fatalf("picked wrong atom at %v", got)
	}
}

func TestPickAtomRayFindsAtomAlongRay(t *testing.T) {
	c := New([3]int32{3, 3, 3})
	// Aim straight down at the top center atom.
	ray := geom.Ray{Origin: geom.Point{0, 0, 10}, Direction: geom.Vector{0, 0, -1}}
	id := c.PickAtomRay(ray)
	got := c.AtomState(id).Translation
	if got[0] != 0 || got[1] != 0 {
		t.Fatalf("ray pick missed the center column: %v", got)
	}
	if got[2] != 1 {
		t.Fatalf("ray pick should resolve the tie to the nearer atom, got %v", got)
	}
}

func TestPickAtomRayIgnoresAtomsBehindOrigin(t *testing.T) {
	c := New([3]int32{1, 1, 2})
	// Origin sits past the top atom, pointing away from the lattice; both
	// atoms project to lambda <= 0 and the nearer one must win.
	ray := geom.Ray{Origin: geom.Point{0, 0, 2}, Direction: geom.Vector{0, 0, 1}}
	id := c.PickAtomRay(ray)
	if got := c.AtomState(id).Translation; got[2] != 0.5 {
		t.Fatalf("expected the nearer atom, got %v", got)
	}
}

func TestLockAtomIsExclusive(t *testing.T) {
	c := New([3]int32{2, 2, 2})
	id := c.PickAtomPoint(geom.Point{})
	if !c.LockAtom(id) {
		t.Fatalf("first lock should succeed")
	}
	if c.LockAtom(id) {
		t.Fatalf("second lock on the same atom should fail")
	}
	if !c.IsLocked(id) {
		t.Fatalf("atom should report locked")
	}
	if c.NumLocked() != 1 {
		t.Fatalf("expected 1 locked atom, got %d", c.NumLocked())
	}
	c.UnlockAtom(id)
	if c.IsLocked(id) {
		t.Fatalf("atom should be unlocked")
	}
	if !c.LockAtom(id) {
		t.Fatalf("relock after unlock should succeed")
	}
}

func TestLockAtomRejectsInvalidID(t *testing.T) {
	c := New([3]int32{2, 2, 2})
	if c.LockAtom(InvalidAtom) {
		t.Fatalf("invalid atom must not lock")
	}
	if c.LockAtom(AtomID(c.TotalAtoms())) {
		t.Fatalf("out-of-range atom must not lock")
	}
}

func TestSimulateGravityPullsUnlockedAtoms(t *testing.T) {
	c := New([3]int32{2, 2, 2})
	id := c.PickAtomPoint(geom.Point{0.5, 0.5, 0.5})
	before := c.AtomState(id).Translation

	for i := 0; i < 10; i++ {
		c.Simulate(0.01)
	}

	after := c.AtomState(id).Translation
	if after[2] >= before[2] {
		t.Fatalf("gravity should pull the atom down: %v -> %v", before, after)
	}
	min, max := c.Domain()
	for axis := 0; axis < 3; axis++ {
		if after[axis] < min[axis] || after[axis] > max[axis] {
			t.Fatalf("atom escaped the domain: %v", after)
		}
	}
}

func TestSimulateKeepsLockedAtomsPinned(t *testing.T) {
	c := New([3]int32{2, 2, 2})
	id := c.PickAtomPoint(geom.Point{0.5, 0.5, 0.5})
	pinned := geom.Translate(geom.Point{0.5, 0.5, 0.75})
	if !c.LockAtom(id) {
		t.Fatalf("lock failed")
	}
	c.SetAtomState(id, pinned)

	for i := 0; i < 20; i++ {
		c.Simulate(0.01)
	}

	if got := c.AtomState(id); got != pinned {
		t.Fatalf("locked atom drifted: %+v", got)
	}
}

func TestSimulateSplitsLargeSteps(t *testing.T) {
	a := New([3]int32{2, 2, 2})
	b := New([3]int32{2, 2, 2})

	a.Simulate(0.05)
	for i := 0; i < 5; i++ {
		b.Simulate(0.01)
	}

	for i := 0; i < a.TotalAtoms(); i++ {
		da := a.AtomState(AtomID(i)).Translation
		db := b.AtomState(AtomID(i)).Translation
		if da.Sub(db).Len() > 1e-4 {
			t.Fatalf("sub-stepping diverged at atom %d: %v vs %v", i, da, db)
		}
	}
}

func TestStateChecksumTracksState(t *testing.T) {
	a := New([3]int32{2, 2, 2})
	b := New([3]int32{2, 2, 2})
	if a.StateChecksum() != b.StateChecksum() {
		t.Fatalf("identical lattices should hash equal")
	}
	b.SetAtomState(0, geom.Translate(geom.Point{9, 9, 9}))
	if a.StateChecksum() == b.StateChecksum() {
		t.Fatalf("state change should alter the checksum")
	}
}

type countingWriter struct {
	count int
	last  geom.ONTransform
}

func (w *countingWriter) WriteONTransform(t geom.ONTransform) error {
	w.count++
	w.last = t
	return nil
}

func TestWriteAtomStatesVisitsEveryAtom(t *testing.T) {
	c := New([3]int32{2, 3, 4})
	var w countingWriter
	if err := c.WriteAtomStates(&w); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if w.count != 24 {
		t.Fatalf("expected 24 poses, got %d", w.count)
	}
}
