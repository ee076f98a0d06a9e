package telemetry

import (
	"testing"
	"time"
)

func TestCountersSnapshot(t *testing.T) {
	c := NewCounters()
	c.RecordBroadcast(128, 7)
	c.RecordBroadcast(64, 3)
	c.RecordTickDuration(1500 * time.Microsecond)
	c.RecordSnapshotChecksum(0xfeed)
	c.ClientConnected()
	c.ClientConnected()
	c.ClientDisconnected()
	c.LockAcquired()
	c.LockAcquired()
	c.LockReleased(2)
	c.GrabDenied()

	snap := c.Snapshot()
	if snap.BytesSent != 192 {
		t.Fatalf("expected 192 bytes, got %d", snap.BytesSent)
	}
	if snap.Broadcasts != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", snap.Broadcasts)
	}
	if snap.LastBroadcastBytes != 64 {
		t.Fatalf("expected last broadcast of 64 bytes, got %d", snap.LastBroadcastBytes)
	}
	if snap.FramesPerInterval != 3 {
		t.Fatalf("expected 3 frames, got %d", snap.FramesPerInterval)
	}
	if snap.ConnectedClients != 1 {
		t.Fatalf("expected 1 client, got %d", snap.ConnectedClients)
	}
	if snap.HeldLocks != 0 {
		t.Fatalf("expected 0 held locks, got %d", snap.HeldLocks)
	}
	if snap.GrabDenials != 1 {
		t.Fatalf("expected 1 grab denial, got %d", snap.GrabDenials)
	}
	if snap.TickDurationMicros != 1500 {
		t.Fatalf("expected 1500us tick, got %d", snap.TickDurationMicros)
	}
	if snap.SnapshotChecksum != 0xfeed {
		t.Fatalf("unexpected checksum %#x", snap.SnapshotChecksum)
	}
}

func TestNegativeFramesClamp(t *testing.T) {
	c := NewCounters()
	c.RecordBroadcast(1, -5)
	if got := c.Snapshot().FramesPerInterval; got != 0 {
		t.Fatalf("expected clamped frames, got %d", got)
	}
}
