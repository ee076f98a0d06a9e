package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"shared-jello/server/internal/crystal"
	"shared-jello/server/internal/geom"
	"shared-jello/server/internal/wire"
	"shared-jello/server/logging"
	lognetwork "shared-jello/server/logging/network"
)

// StateUpdate is one complete dragger frame from a client. Each client owns
// three slots arranged as a triple buffer.
type StateUpdate struct {
	draggers []wire.DraggerState
}

// AtomLock records one dragger's hold on an atom. dragTransform is the rigid
// offset computed at grab time so that draggerTransform * dragTransform
// reproduces the atom's pose.
type AtomLock struct {
	draggerID     uint32
	atom          crystal.AtomID
	dragTransform geom.ONTransform
}

const (
	slotMask  = int32(3)
	slotDirty = int32(4)
)

// ClientState is the shared state of one connected client. The reader
// goroutine owns the pipe's read side and fills triple-buffer slots; the
// simulation thread consumes them.
//
// The triple buffer partitions its three slots between the producer
// (writeIndex), the consumer (lockedIndex), and the shared latest cell.
// Publishing and consuming are single atomic swaps on latest, so the
// producer is wait-free, the consumer is lock-free, and neither side ever
// touches a slot the other holds: the simulation can never observe a torn
// frame.
type ClientState struct {
	id   string
	conn net.Conn
	pipe *wire.Pipe

	stateUpdates [3]StateUpdate
	writeIndex   int32        // reader goroutine only
	lockedIndex  int32        // simulation thread only
	latest       atomic.Int32 // published slot index, slotDirty set when unconsumed

	// atomLocks and connected are guarded by the server's client list mutex.
	atomLocks []AtomLock
	connected bool

	// seenParamVersion belongs to the simulation thread.
	seenParamVersion uint64
}

func newClientState(id string, conn net.Conn) *ClientState {
	cs := &ClientState{
		id:          id,
		conn:        conn,
		pipe:        wire.NewPipe(conn),
		writeIndex:  0,
		lockedIndex: 1,
	}
	cs.latest.Store(2)
	return cs
}

// publishUpdate hands the freshly decoded write slot to the consumer and
// takes back whichever slot the latest cell held, which becomes the next
// decode target. An unconsumed previous frame is silently overwritten;
// only the most recent frame ever reaches the simulation.
func (cs *ClientState) publishUpdate() {
	cs.writeIndex = cs.latest.Swap(cs.writeIndex|slotDirty) & slotMask
}

// consumeLatest claims the newest published frame, if the reader published
// one since the last call, surrendering the previously consumed slot in
// exchange.
func (cs *ClientState) consumeLatest() (*StateUpdate, bool) {
	if cs.latest.Load()&slotDirty == 0 {
		return nil, false
	}
	cs.lockedIndex = cs.latest.Swap(cs.lockedIndex) & slotMask
	return &cs.stateUpdates[cs.lockedIndex], true
}

func (cs *ClientState) findLock(draggerID uint32) int {
	for i := range cs.atomLocks {
		if cs.atomLocks[i].draggerID == draggerID {
			return i
		}
	}
	return -1
}

// readClient runs the full lifetime of one client connection.
func (s *Server) readClient(cs *ClientState) {
	defer s.readersWG.Done()

	clean, err := s.runClientProtocol(cs)
	if err != nil && !s.closing.Load() {
		var pipeErr *wire.PipeError
		if errors.As(err, &pipeErr) {
			s.logger.Printf("disconnecting client %s: %v", cs.id, err)
			lognetwork.PipeError(context.Background(), s.publisher, s.currentTick(), logging.ClientRef(cs.id),
				lognetwork.ErrorPayload{RemoteAddr: remoteAddr(cs), Error: err.Error()})
		} else {
			s.logger.Printf("protocol error in client communication with %s: %v", cs.id, err)
			lognetwork.ProtocolError(context.Background(), s.publisher, s.currentTick(), logging.ClientRef(cs.id),
				lognetwork.ErrorPayload{RemoteAddr: remoteAddr(cs), Error: err.Error()})
		}
	}

	s.teardownClient(cs, clean)
}

// runClientProtocol performs the connect handshake and then dispatches
// inbound messages until disconnect or error. It returns true for a clean,
// client-requested disconnect.
func (s *Server) runClientProtocol(cs *ClientState) (bool, error) {
	domainMin, domainMax := s.crystal.Domain()
	err := cs.pipe.WriteLocked(func() error {
		return wire.WriteConnectReply(cs.pipe, wire.ConnectReply{
			DomainMin: domainMin,
			DomainMax: domainMax,
			NumAtoms:  s.crystal.NumAtoms(),
		})
	})
	if err != nil {
		return false, err
	}

	// Only after this does the broadcaster address the client, so the
	// CONNECT_REPLY always precedes any server update.
	s.listMu.Lock()
	cs.connected = true
	s.listMu.Unlock()
	s.counters.ClientConnected()
	lognetwork.ClientConnected(context.Background(), s.publisher, s.currentTick(), logging.ClientRef(cs.id),
		lognetwork.ConnectionPayload{RemoteAddr: remoteAddr(cs)})

	for {
		id, err := cs.pipe.ReadMessageID()
		if err != nil {
			return false, err
		}

		switch id {
		case wire.MsgDisconnectRequest:
			err := cs.pipe.WriteLocked(func() error {
				return cs.pipe.WriteMessageID(wire.MsgDisconnectReply)
			})
			if err != nil {
				return false, err
			}
			cs.pipe.CloseWrite()
			return true, nil

		case wire.MsgClientParamUpdate:
			msg, err := wire.ReadParamUpdate(cs.pipe)
			if err != nil {
				return false, err
			}
			s.paramMu.Lock()
			s.pendingVersion++
			s.pendingParams = Params{
				AtomMass:    msg.AtomMass,
				Attenuation: msg.Attenuation,
				Gravity:     msg.Gravity,
			}
			s.paramMu.Unlock()

		case wire.MsgClientUpdate:
			if err := wire.ReadClientUpdateInto(cs.pipe, &cs.stateUpdates[cs.writeIndex].draggers); err != nil {
				return false, err
			}
			cs.publishUpdate()

		default:
			return false, fmt.Errorf("unexpected message %s", id)
		}
	}
}

// teardownClient removes the client from the list and surrenders its atom
// locks to the simulation thread. It runs on every reader exit path.
func (s *Server) teardownClient(cs *ClientState, clean bool) {
	s.listMu.Lock()
	released := len(cs.atomLocks)
	if released > 0 {
		s.pendingReleases = append(s.pendingReleases, cs.atomLocks...)
		cs.atomLocks = nil
	}
	wasConnected := cs.connected
	cs.connected = false
	for i, c := range s.clients {
		if c == cs {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
	s.listMu.Unlock()

	cs.pipe.Close()
	if wasConnected {
		s.counters.ClientDisconnected()
	}
	if released > 0 {
		s.counters.LockReleased(released)
	}
	lognetwork.ClientDisconnected(context.Background(), s.publisher, s.currentTick(), logging.ClientRef(cs.id),
		lognetwork.DisconnectPayload{RemoteAddr: remoteAddr(cs), ReleasedLocks: released, Clean: clean})
}

func remoteAddr(cs *ClientState) string {
	if addr := cs.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
