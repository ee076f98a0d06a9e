// Package server implements the dedicated shared Jell-O simulation server:
// a TCP listener, one reader goroutine per client, and a single simulation
// thread that arbitrates atom locks and broadcasts crystal state.
package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"shared-jello/server/internal/crystal"
	"shared-jello/server/internal/geom"
	"shared-jello/server/internal/telemetry"
	"shared-jello/server/logging"
)

// Params is the global scalar triple applied to the crystal.
type Params struct {
	AtomMass    geom.Scalar
	Attenuation geom.Scalar
	Gravity     geom.Scalar
}

// Config tunes a Server.
type Config struct {
	NumAtoms       [3]int32
	Port           int // -1 or 0 picks any free port
	UpdateInterval time.Duration
	Logger         telemetry.Logger
	Publisher      logging.Publisher
	Counters       *telemetry.Counters
}

// DefaultConfig mirrors the historical command-line defaults.
func DefaultConfig() Config {
	return Config{
		NumAtoms:       [3]int32{4, 4, 8},
		Port:           -1,
		UpdateInterval: 20 * time.Millisecond,
	}
}

// Server owns the crystal, the client list, and the parameter state.
type Server struct {
	crystal        *crystal.Crystal
	logger         telemetry.Logger
	publisher      logging.Publisher
	counters       *telemetry.Counters
	updateInterval time.Duration

	listener   net.Listener
	listenerWG sync.WaitGroup
	readersWG  sync.WaitGroup
	closing    atomic.Bool
	nextID     atomic.Uint64

	listMu  sync.Mutex
	clients []*ClientState
	// pendingReleases holds atom locks surrendered by departed clients.
	// Readers never touch the crystal; the simulation thread returns these
	// locks at the start of its next tick.
	pendingReleases []AtomLock

	paramMu        sync.Mutex
	pendingParams  Params
	pendingVersion uint64

	appliedVersion atomic.Uint64

	// tick counts simulation steps; frames counts steps since the last
	// broadcast and belongs to the simulation thread.
	tick   atomic.Uint64
	frames int
}

func (s *Server) currentTick() uint64 {
	return s.tick.Load()
}

// NewServer builds the crystal, binds the listen socket, and starts the
// accept loop. The simulation does not advance until Run or Simulate is
// called.
func NewServer(cfg Config) (*Server, error) {
	for _, n := range cfg.NumAtoms {
		if n < 1 {
			return nil, fmt.Errorf("invalid crystal dimensions %v", cfg.NumAtoms)
		}
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 20 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Counters == nil {
		cfg.Counters = telemetry.NewCounters()
	}

	port := cfg.Port
	if port < 0 {
		port = 0
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind listen socket: %w", err)
	}

	c := crystal.New(cfg.NumAtoms)
	s := &Server{
		crystal:        c,
		logger:         cfg.Logger,
		publisher:      cfg.Publisher,
		counters:       cfg.Counters,
		updateInterval: cfg.UpdateInterval,
		listener:       listener,
		pendingParams: Params{
			AtomMass:    c.AtomMass(),
			Attenuation: c.Attenuation(),
			Gravity:     c.Gravity(),
		},
		pendingVersion: 1,
	}
	s.appliedVersion.Store(1)

	s.listenerWG.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Port reports the bound listen port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// UpdateInterval reports the broadcast cadence.
func (s *Server) UpdateInterval() time.Duration {
	return s.updateInterval
}

// SetParameters feeds a new scalar triple into the pending parameter slot,
// exactly as a CLIENT_PARAMUPDATE would. The simulation applies it on its
// next tick and every client receives the echo.
func (s *Server) SetParameters(p Params) {
	s.paramMu.Lock()
	s.pendingVersion++
	s.pendingParams = p
	s.paramMu.Unlock()
}

// ParameterVersions reports the pending and applied parameter versions.
func (s *Server) ParameterVersions() (pending, applied uint64) {
	s.paramMu.Lock()
	pending = s.pendingVersion
	s.paramMu.Unlock()
	return pending, s.appliedVersion.Load()
}

// Diagnostics is the point-in-time state served by the diagnostics
// endpoint.
type Diagnostics struct {
	ListenPort       int                `json:"listenPort"`
	Clients          int                `json:"clients"`
	ConnectedClients int                `json:"connectedClients"`
	HeldLocks        int                `json:"heldLocks"`
	PendingVersion   uint64             `json:"pendingParameterVersion"`
	AppliedVersion   uint64             `json:"appliedParameterVersion"`
	UpdateInterval   float64            `json:"updateIntervalSeconds"`
	Telemetry        telemetry.Snapshot `json:"telemetry"`
}

// DiagnosticsSnapshot collects server state for observers. Safe to call from
// any goroutine.
func (s *Server) DiagnosticsSnapshot() Diagnostics {
	s.listMu.Lock()
	clients := len(s.clients)
	connected := 0
	locks := 0
	for _, cs := range s.clients {
		if cs.connected {
			connected++
		}
		locks += len(cs.atomLocks)
	}
	s.listMu.Unlock()

	pending, applied := s.ParameterVersions()
	return Diagnostics{
		ListenPort:       s.Port(),
		Clients:          clients,
		ConnectedClients: connected,
		HeldLocks:        locks,
		PendingVersion:   pending,
		AppliedVersion:   applied,
		UpdateInterval:   s.updateInterval.Seconds(),
		Telemetry:        s.counters.Snapshot(),
	}
}

// Shutdown stops the listener, disconnects every client, and waits for all
// reader goroutines to unwind. The client list lock is released before
// joining the readers; a reader blocked on teardown can always make
// progress.
func (s *Server) Shutdown() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}
	s.listener.Close()
	s.listenerWG.Wait()

	s.listMu.Lock()
	clients := append([]*ClientState(nil), s.clients...)
	s.listMu.Unlock()
	for _, cs := range clients {
		cs.pipe.Close()
	}
	s.readersWG.Wait()

	s.listMu.Lock()
	s.drainPendingReleasesLocked()
	s.listMu.Unlock()
}
