package server

import (
	"context"

	"shared-jello/server/internal/wire"
	"shared-jello/server/logging"
	lognetwork "shared-jello/server/logging/network"
)

// SendServerUpdate pushes the current crystal state to every connected
// client, preceded by a parameter echo for clients that have not yet seen
// the applied parameter version. A write failure closes the client's
// connection; its reader observes the same error and drives teardown.
func (s *Server) SendServerUpdate() {
	applied := s.appliedVersion.Load()

	s.listMu.Lock()
	defer s.listMu.Unlock()

	var bytes uint64
	for _, cs := range s.clients {
		if !cs.connected {
			continue
		}

		before := cs.pipe.BytesWritten()
		err := cs.pipe.WriteLocked(func() error {
			if cs.seenParamVersion != applied {
				err := wire.WriteParamUpdate(cs.pipe, wire.MsgServerParamUpdate, wire.ParamUpdate{
					AtomMass:    s.crystal.AtomMass(),
					Attenuation: s.crystal.Attenuation(),
					Gravity:     s.crystal.Gravity(),
				})
				if err != nil {
					return err
				}
				cs.seenParamVersion = applied
			}
			if err := cs.pipe.WriteMessageID(wire.MsgServerUpdate); err != nil {
				return err
			}
			return s.crystal.WriteAtomStates(cs.pipe)
		})
		bytes += cs.pipe.BytesWritten() - before

		if err != nil {
			lognetwork.BroadcastFailed(context.Background(), s.publisher, s.currentTick(), logging.ClientRef(cs.id),
				lognetwork.ErrorPayload{RemoteAddr: remoteAddr(cs), Error: err.Error()})
			cs.pipe.Close()
		}
	}

	s.counters.RecordBroadcast(bytes, s.frames)
	s.frames = 0
	s.counters.RecordSnapshotChecksum(s.crystal.StateChecksum())
}
