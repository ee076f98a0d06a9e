package server

import "time"

// Run drives the free-running simulation loop until the stop channel
// closes: variable-dt simulation steps as fast as the integrator allows,
// with state broadcasts at the fixed update interval. The loop never
// sleeps; it yields through blocking IO inside the broadcast and through
// scheduler preemption.
func (s *Server) Run(stop <-chan struct{}) {
	last := time.Now()
	nextBroadcast := last.Add(s.updateInterval)

	for {
		select {
		case <-stop:
			return
		default:
		}

		now := time.Now()
		dt := now.Sub(last).Seconds()
		last = now

		s.Simulate(dt)
		s.frames++

		if !now.Before(nextBroadcast) {
			s.SendServerUpdate()
			nextBroadcast = nextBroadcast.Add(s.updateInterval)
		}
	}
}
