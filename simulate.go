package server

import (
	"context"
	"time"

	"shared-jello/server/internal/crystal"
	"shared-jello/server/internal/wire"
	"shared-jello/server/logging"
	logsimulation "shared-jello/server/logging/simulation"
)

// Simulate advances the world by dt seconds: applies pending parameters,
// ingests the freshest dragger frame of every client, arbitrates atom
// locks, and finally commands the crystal. Only this thread mutates the
// crystal; the client list mutex is released before the crystal advances so
// readers can keep publishing input during a long integration step.
func (s *Server) Simulate(dt float64) {
	start := time.Now()
	tick := s.tick.Add(1)

	s.applyPendingParameters(tick)

	s.listMu.Lock()
	s.drainPendingReleasesLocked()
	for _, cs := range s.clients {
		s.ingestClientLocked(cs, tick)
	}
	s.listMu.Unlock()

	s.crystal.Simulate(dt)
	s.counters.RecordTickDuration(time.Since(start))
}

// applyPendingParameters pushes the latest scalar triple into the crystal
// when the pending version moved. The parameter mutex is held only while
// the pending values are read.
func (s *Server) applyPendingParameters(tick uint64) {
	s.paramMu.Lock()
	version := s.pendingVersion
	params := s.pendingParams
	s.paramMu.Unlock()

	if version == s.appliedVersion.Load() {
		return
	}
	s.crystal.SetAtomMass(params.AtomMass)
	s.crystal.SetAttenuation(params.Attenuation)
	s.crystal.SetGravity(params.Gravity)
	s.appliedVersion.Store(version)

	logsimulation.ParametersApplied(context.Background(), s.publisher, tick, logsimulation.ParamsPayload{
		AtomMass:    float32(params.AtomMass),
		Attenuation: float32(params.Attenuation),
		Gravity:     float32(params.Gravity),
		Version:     version,
	})
}

// drainPendingReleasesLocked returns the locks surrendered by departed
// clients to the crystal. Callers must hold the client list mutex.
func (s *Server) drainPendingReleasesLocked() {
	for _, al := range s.pendingReleases {
		s.crystal.UnlockAtom(al.atom)
	}
	s.pendingReleases = s.pendingReleases[:0]
}

// ingestClientLocked consumes the client's most recent state update, if it
// published one since the last tick, and walks its dragger list: active
// draggers grab or move atoms, inactive ones release them. Callers must
// hold the client list mutex.
func (s *Server) ingestClientLocked(cs *ClientState, tick uint64) {
	su, ok := cs.consumeLatest()
	if !ok {
		return
	}

	for i := range su.draggers {
		d := &su.draggers[i]
		if !d.Active {
			if idx := cs.findLock(d.ID); idx >= 0 {
				al := cs.atomLocks[idx]
				s.crystal.UnlockAtom(al.atom)
				cs.atomLocks = append(cs.atomLocks[:idx], cs.atomLocks[idx+1:]...)
				s.counters.LockReleased(1)
				logsimulation.AtomReleased(context.Background(), s.publisher, tick, logging.ClientRef(cs.id),
					logsimulation.GrabPayload{DraggerID: d.ID, Atom: int(al.atom)})
			}
			continue
		}

		idx := cs.findLock(d.ID)
		if idx < 0 {
			// The dragger just became active; pick and try to grab.
			atom := s.pickAtom(d)
			if s.crystal.LockAtom(atom) {
				drag := d.Transform.Invert().Mul(s.crystal.AtomState(atom))
				cs.atomLocks = append(cs.atomLocks, AtomLock{
					draggerID:     d.ID,
					atom:          atom,
					dragTransform: drag,
				})
				idx = len(cs.atomLocks) - 1
				s.counters.LockAcquired()
				logsimulation.AtomGrabbed(context.Background(), s.publisher, tick, logging.ClientRef(cs.id),
					logsimulation.GrabPayload{DraggerID: d.ID, Atom: int(atom)})
			} else {
				// Held by someone else; the dragger stays empty-handed this
				// frame and retries while it remains active.
				s.counters.GrabDenied()
				logsimulation.GrabContended(context.Background(), s.publisher, tick, logging.ClientRef(cs.id),
					logsimulation.GrabPayload{DraggerID: d.ID, Atom: int(atom)})
			}
		}
		if idx >= 0 {
			al := &cs.atomLocks[idx]
			s.crystal.SetAtomState(al.atom, d.Transform.Mul(al.dragTransform))
		}
	}
}

func (s *Server) pickAtom(d *wire.DraggerState) crystal.AtomID {
	if d.RayBased {
		return s.crystal.PickAtomRay(d.Ray)
	}
	return s.crystal.PickAtomPoint(d.Transform.Origin())
}
