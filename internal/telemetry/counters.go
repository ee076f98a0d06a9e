package telemetry

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Counters aggregates hot-path statistics with atomics so the diagnostics
// endpoint can read them without touching the simulation's locks.
type Counters struct {
	bytesSent          atomic.Uint64
	broadcasts         atomic.Uint64
	lastBroadcastBytes atomic.Uint64
	framesPerInterval  atomic.Uint64
	connectedClients   atomic.Int64
	heldLocks          atomic.Int64
	grabDenials        atomic.Uint64
	tickDurationMicros atomic.Int64
	snapshotChecksum   atomic.Uint64
	debug              bool
}

// Snapshot is the JSON shape served by diagnostics.
type Snapshot struct {
	BytesSent          uint64 `json:"bytesSent"`
	Broadcasts         uint64 `json:"broadcasts"`
	LastBroadcastBytes uint64 `json:"lastBroadcastBytes"`
	FramesPerInterval  uint64 `json:"framesPerInterval"`
	ConnectedClients   int64  `json:"connectedClients"`
	HeldLocks          int64  `json:"heldLocks"`
	GrabDenials        uint64 `json:"grabDenials"`
	TickDurationMicros int64  `json:"tickDurationMicros"`
	SnapshotChecksum   uint64 `json:"snapshotChecksum"`
}

// NewCounters builds an idle counter set. Setting DEBUG_TELEMETRY=1 echoes
// broadcast stats to stdout.
func NewCounters() *Counters {
	c := &Counters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		c.debug = true
	}
	return c
}

// RecordBroadcast accumulates the bytes of one completed broadcast tick and
// the number of free-running simulation frames since the previous one.
func (c *Counters) RecordBroadcast(bytes uint64, frames int) {
	c.bytesSent.Add(bytes)
	c.broadcasts.Add(1)
	c.lastBroadcastBytes.Store(bytes)
	if frames < 0 {
		frames = 0
	}
	c.framesPerInterval.Store(uint64(frames))
	if c.debug {
		fmt.Printf("[telemetry] broadcast bytes=%d totalBytes=%d frames=%d\n",
			bytes, c.bytesSent.Load(), frames)
	}
}

// RecordTickDuration stores the wall-clock cost of the last simulation tick.
func (c *Counters) RecordTickDuration(d time.Duration) {
	micros := d.Microseconds()
	if micros < 0 {
		micros = 0
	}
	c.tickDurationMicros.Store(micros)
}

// RecordSnapshotChecksum stores the content hash of the last broadcast state.
func (c *Counters) RecordSnapshotChecksum(sum uint64) {
	c.snapshotChecksum.Store(sum)
}

// ClientConnected bumps the connected-client gauge.
func (c *Counters) ClientConnected() {
	c.connectedClients.Add(1)
}

// ClientDisconnected drops the connected-client gauge.
func (c *Counters) ClientDisconnected() {
	c.connectedClients.Add(-1)
}

// LockAcquired bumps the held-lock gauge.
func (c *Counters) LockAcquired() {
	c.heldLocks.Add(1)
}

// LockReleased drops the held-lock gauge by n.
func (c *Counters) LockReleased(n int) {
	c.heldLocks.Add(-int64(n))
}

// GrabDenied counts a contended grab attempt.
func (c *Counters) GrabDenied() {
	c.grabDenials.Add(1)
}

// DebugEnabled reports whether broadcast stats echo to stdout.
func (c *Counters) DebugEnabled() bool {
	return c.debug
}

// Snapshot captures the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BytesSent:          c.bytesSent.Load(),
		Broadcasts:         c.broadcasts.Load(),
		LastBroadcastBytes: c.lastBroadcastBytes.Load(),
		FramesPerInterval:  c.framesPerInterval.Load(),
		ConnectedClients:   c.connectedClients.Load(),
		HeldLocks:          c.heldLocks.Load(),
		GrabDenials:        c.grabDenials.Load(),
		TickDurationMicros: c.tickDurationMicros.Load(),
		SnapshotChecksum:   c.snapshotChecksum.Load(),
	}
}
