// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package supervisor implements the self-healing supervisor (C7): health
// scoring, failure classification, recovery strategy selection and
// execution, and incident/learning bookkeeping.
package supervisor

import (
	"context"

	"hive/internal/agentmodel"
)

// HealthStatus is the mapped status for an agent's computed health score.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
	HealthFailed   HealthStatus = "failed"
)

// HealthWeights configures the score blend (spec.md §4.4 defaults).
type HealthWeights struct {
	SuccessRate float64
	CPU         float64
	Memory      float64
	Energy      float64
}

// DefaultHealthWeights returns the spec's 0.4/0.2/0.2/0.2 split.
func DefaultHealthWeights() HealthWeights {
	return HealthWeights{SuccessRate: 0.4, CPU: 0.2, Memory: 0.2, Energy: 0.2}
}

// Thresholds maps a computed health score to a HealthStatus.
type Thresholds struct {
	Degraded float64 // score >= Degraded -> Healthy
	Critical float64 // score >= Critical -> Degraded; score > 0.2 -> Critical; else Failed
}

// DefaultThresholds matches the source's 0.7/0.5 defaults.
func DefaultThresholds() Thresholds { return Thresholds{Degraded: 0.7, Critical: 0.5} }

// SuccessRate reports an agent's historical task success ratio; 1.0 for an
// agent with no completed tasks yet (innocent until proven otherwise).
func SuccessRate(a agentmodel.Agent) float64 {
	total := a.TaskSuccessCount + a.TaskFailureCount
	if total == 0 {
		return 1.0
	}
	return float64(a.TaskSuccessCount) / float64(total)
}

// Score computes the weighted health score for an agent, per spec.md
// §4.4: w1*success_rate + w2*(1-cpu) + w3*(1-mem) + w4*energy.
func Score(a agentmodel.Agent, w HealthWeights) float64 {
	return w.SuccessRate*SuccessRate(a) +
		w.CPU*(1-a.Pressure.CPU) +
		w.Memory*(1-a.Pressure.Memory) +
		w.Energy*a.Energy
}

// Classify maps a score to a HealthStatus per Thresholds.
func Classify(score float64, t Thresholds) HealthStatus {
	switch {
	case score >= t.Degraded:
		return HealthHealthy
	case score >= t.Critical:
		return HealthDegraded
	case score > 0.2:
		return HealthCritical
	default:
		return HealthFailed
	}
}

// Sample is one point-in-time health reading for an agent.
type Sample struct {
	AgentID     string
	Score       float64
	Status      HealthStatus
	SuccessRate float64
	Pressure    agentmodel.ResourcePressure
	Energy      float64
	ResponseMS  float64
}

// HealthSampler produces a Sample for one agent. The default
// implementation reads straight from the agent registry snapshot; a
// Docker-backed sampler (internal/health) overrides CPU/memory with
// real container stats.
type HealthSampler interface {
	Sample(ctx context.Context, a agentmodel.Agent) (Sample, error)
}

// RegistrySampler is the in-memory default: it derives CPU/memory/energy
// entirely from the agent record the registry already tracks.
type RegistrySampler struct {
	Weights    HealthWeights
	Thresholds Thresholds
}

// NewRegistrySampler creates a sampler using spec default weights/thresholds.
func NewRegistrySampler() *RegistrySampler {
	return &RegistrySampler{Weights: DefaultHealthWeights(), Thresholds: DefaultThresholds()}
}

func (s *RegistrySampler) Sample(_ context.Context, a agentmodel.Agent) (Sample, error) {
	rate := SuccessRate(a)
	score := Score(a, s.Weights)
	return Sample{
		AgentID:     a.ID,
		Score:       score,
		Status:      Classify(score, s.Thresholds),
		SuccessRate: rate,
		Pressure:    a.Pressure,
		Energy:      a.Energy,
		ResponseMS:  a.ResponseTimeMS,
	}, nil
}
