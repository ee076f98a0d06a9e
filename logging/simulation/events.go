// Package simulation defines the structured events emitted by the dragger
// ingest and parameter-application steps.
package simulation

import (
	"context"

	"shared-jello/server/logging"
)

const (
	// EventAtomGrabbed is emitted when a dragger acquires an atom lock.
	EventAtomGrabbed logging.EventType = "simulation.atom_grabbed"
	// EventGrabContended is emitted when a grab finds the atom locked by
	// another client; the dragger retries on subsequent frames.
	EventGrabContended logging.EventType = "simulation.grab_contended"
	// EventAtomReleased is emitted when a dragger deactivates and its lock
	// is returned.
	EventAtomReleased logging.EventType = "simulation.atom_released"
	// EventParametersApplied is emitted when pending simulation parameters
	// reach the crystal.
	EventParametersApplied logging.EventType = "simulation.parameters_applied"
)

// GrabPayload identifies the dragger and atom involved in a lock event.
type GrabPayload struct {
	DraggerID uint32 `json:"draggerId"`
	Atom      int    `json:"atom"`
}

// ParamsPayload mirrors the applied scalar triple.
type ParamsPayload struct {
	AtomMass    float32 `json:"atomMass"`
	Attenuation float32 `json:"attenuation"`
	Gravity     float32 `json:"gravity"`
	Version     uint64  `json:"version"`
}

// AtomGrabbed publishes a successful lock acquisition.
func AtomGrabbed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GrabPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAtomGrabbed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// GrabContended publishes a denied grab.
func GrabContended(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GrabPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGrabContended,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// AtomReleased publishes a lock release.
func AtomReleased(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GrabPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAtomReleased,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// ParametersApplied publishes the new scalar triple after Step 1 applies it.
func ParametersApplied(ctx context.Context, pub logging.Publisher, tick uint64, payload ParamsPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventParametersApplied,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}
