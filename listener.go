package server

import (
	"context"
	"fmt"

	lognetwork "shared-jello/server/logging/network"
)

// acceptLoop admits new clients until the listen socket closes. A failed
// accept or a failed client construction never takes the server down.
func (s *Server) acceptLoop() {
	defer s.listenerWG.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() {
				return
			}
			s.logger.Printf("accept failed: %v", err)
			lognetwork.AcceptFailed(context.Background(), s.publisher, s.currentTick(),
				lognetwork.ErrorPayload{Error: err.Error()})
			continue
		}

		id := fmt.Sprintf("client-%d", s.nextID.Add(1))
		cs := newClientState(id, conn)

		s.listMu.Lock()
		if s.closing.Load() {
			s.listMu.Unlock()
			conn.Close()
			return
		}
		s.clients = append(s.clients, cs)
		s.readersWG.Add(1)
		s.listMu.Unlock()

		go s.readClient(cs)
	}
}
