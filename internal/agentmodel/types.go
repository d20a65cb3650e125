// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package agentmodel implements the agent registry (C3): identity,
// capability proficiencies, the state machine, and the bounded experience
// ring that feeds learning.
package agentmodel

import "time"

// Variant tags the agent's behavioral role. The source's class hierarchy
// (base + multi-modal + optimized + self-healing + verification-capable
// agent types) collapses here into one record plus this tag, per spec.md
// §9's "inheritance becomes tagged variants" guidance.
type Variant string

const (
	VariantWorker      Variant = "worker"
	VariantCoordinator Variant = "coordinator"
	VariantSpecialist  Variant = "specialist"
	VariantLearner     Variant = "learner"
)

// State is a node in the agent lifecycle state machine (spec.md §4.1).
type State string

const (
	StateIdle          State = "idle"
	StateWorking       State = "working"
	StateCommunicating State = "communicating"
	StateLearning      State = "learning"
	StateDegraded      State = "degraded" // GracefulDegradation target; the scheduler assigns only Idle agents, so a Degraded agent receives no new tasks
	StateFailed        State = "failed"
)

// Capability is a named skill with a proficiency and learning rate, both
// constrained to [0,1].
type Capability struct {
	Name         string
	Proficiency  float64
	LearningRate float64
}

// Experience is one record in an agent's bounded ring buffer.
type Experience struct {
	TaskID     string
	Capability string
	Success    bool
	Delta      float64
	Timestamp  time.Time
}

// ResourcePressure is the CPU/memory load proxy the supervisor (C7) reads
// for health scoring and ResourceExhaustion classification.
type ResourcePressure struct {
	CPU    float64
	Memory float64
}

// Agent is the single record every variant collapses into. Position is
// deliberately an opaque topology handle (spec.md §9 Open Question (a));
// NeighborIDs carries the same opacity — neither is ever interpreted
// numerically by recovery logic.
type Agent struct {
	ID           string
	Name         string
	Variant      Variant
	Specialization string // required and meaningful only for VariantSpecialist
	State        State
	PositionX    float64
	PositionY    float64
	NeighborIDs  []string

	Capabilities map[string]Capability
	Experience   []Experience // ring buffer, oldest-first, bounded at capacity

	Energy           float64
	Pressure         ResourcePressure
	ResponseTimeMS   float64
	TaskSuccessCount int
	TaskFailureCount int

	LastActive time.Time

	stateRev uint64 // bumped on every mutation; used as the C1 fitness-cache key component
}

// StateRev returns the agent's current mutation revision counter. The
// scheduler uses this (plus the agent id and a capability-requirement
// hash) as a cache key component so that any capability or state change
// invalidates previously cached fitness scores.
func (a *Agent) StateRev() uint64 { return a.stateRev }

// Snapshot returns a deep-enough copy of the agent safe for a caller to
// read without holding the registry lock.
func (a Agent) Snapshot() Agent {
	caps := make(map[string]Capability, len(a.Capabilities))
	for k, v := range a.Capabilities {
		caps[k] = v
	}
	exp := append([]Experience(nil), a.Experience...)
	neighbors := append([]string(nil), a.NeighborIDs...)
	a.Capabilities = caps
	a.Experience = exp
	a.NeighborIDs = neighbors
	return a
}
