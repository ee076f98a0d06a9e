// Package network defines the structured events emitted by the listener,
// the client reader loops, and the broadcast path.
package network

import (
	"context"

	"shared-jello/server/logging"
)

const (
	// EventClientConnected is emitted once the connect handshake completes.
	EventClientConnected logging.EventType = "network.client_connected"
	// EventClientDisconnected is emitted after a client's teardown finishes.
	EventClientDisconnected logging.EventType = "network.client_disconnected"
	// EventProtocolError is emitted when a client sends an unknown message id.
	EventProtocolError logging.EventType = "network.protocol_error"
	// EventPipeError is emitted when a client stream fails mid-message.
	EventPipeError logging.EventType = "network.pipe_error"
	// EventAcceptFailed is emitted when the listener fails to accept.
	EventAcceptFailed logging.EventType = "network.accept_failed"
	// EventBroadcastFailed is emitted when a broadcast write to one client
	// fails; the reader on the same connection drives the disconnect.
	EventBroadcastFailed logging.EventType = "network.broadcast_failed"
)

// ConnectionPayload carries the peer address of the affected connection.
type ConnectionPayload struct {
	RemoteAddr string `json:"remoteAddr"`
}

// ErrorPayload carries the failure detail alongside the peer address.
type ErrorPayload struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Error      string `json:"error"`
}

// DisconnectPayload reports how many atom locks teardown released.
type DisconnectPayload struct {
	RemoteAddr    string `json:"remoteAddr"`
	ReleasedLocks int    `json:"releasedLocks"`
	Clean         bool   `json:"clean"`
}

// ClientConnected publishes the handshake-complete event.
func ClientConnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientConnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ClientDisconnected publishes the teardown-complete event.
func ClientDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DisconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ProtocolError publishes a protocol violation in client communication.
func ProtocolError(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProtocolError,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// PipeError publishes a stream failure on one client connection.
func PipeError(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPipeError,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// AcceptFailed publishes a listener accept failure; the listener continues.
func AcceptFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload ErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAcceptFailed,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// BroadcastFailed publishes a broadcast write failure for one client.
func BroadcastFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBroadcastFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
