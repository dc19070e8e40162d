package orchestrator

import "github.com/rish2jain/Incident-Commander-sub002/internal/domain"

// GetSystemHealth computes a health snapshot on demand. Pure read: it never
// mutates orchestrator state and is not cached.
func (o *Orchestrator) GetSystemHealth() domain.SystemHealth {
	o.mu.Lock()
	active := len(o.runs)
	averages := make(map[domain.Phase]float64, len(o.timings))
	for phase, window := range o.timings {
		if len(window) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		averages[phase] = sum / float64(len(window))
	}
	o.mu.Unlock()

	capacity := 1.0
	if o.maxConcurrent > 0 {
		capacity = clamp01(1.0 - float64(active)/float64(o.maxConcurrent))
	}

	health := domain.SystemHealth{
		ActiveIncidents:    active,
		AgentsAvailable:    o.agentPoolSize,
		ProcessingCapacity: capacity,
		AvgPhaseSeconds:    averages,
	}
	if o.connStats != nil {
		health.Connections = o.connStats()
	}
	return health
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
