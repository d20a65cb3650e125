// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package agentmodel

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hive/internal/hive"
)

const (
	// ExperienceCapacity is the default bounded ring size (spec.md §4.1).
	ExperienceCapacity = 100
	// FailureDecay (δ) is the small fixed decay applied to proficiency on
	// a failed experience.
	FailureDecay = 0.05

	minNameLen = 1
	maxNameLen = 100
)

var reservedNames = map[string]bool{
	"system": true, "admin": true, "root": true, "hive": true,
}

// ChangeListener is notified whenever a mutation could invalidate a cached
// fitness score: capability edits and state transitions. The scheduler
// (C5) subscribes to cascade-invalidate C1 cache entries.
type ChangeListener func(agentID string)

// Registry owns agent records and enforces the lifecycle state machine.
// Reads are RWMutex-shared; each mutating call takes the write lock for
// the minimum span needed for its atomic transition, per spec.md §5.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*Agent
	logger    *slog.Logger
	listeners []ChangeListener
}

// New creates an empty agent registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{agents: make(map[string]*Agent), logger: logger}
}

// OnChange registers a listener invoked after every capability or state
// mutation, so callers (the scheduler's fitness cache) can invalidate.
func (r *Registry) OnChange(l ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) notify(agentID string) {
	for _, l := range r.listeners {
		l(agentID)
	}
}

func validateName(name string) error {
	if len(name) < minNameLen || len(name) > maxNameLen {
		return hive.New(hive.KindValidation, "agentmodel.create", "name must be 1-100 characters")
	}
	if reservedNames[strings.ToLower(name)] {
		return hive.New(hive.KindValidation, "agentmodel.create", fmt.Sprintf("name %q is reserved", name))
	}
	return nil
}

// Create registers a new agent and returns its id.
func (r *Registry) Create(name string, variant Variant, specialization string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if variant == VariantSpecialist && specialization == "" {
		return "", hive.New(hive.KindValidation, "agentmodel.create", "specialization is required for specialist agents")
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.agents[id] = &Agent{
		ID:             id,
		Name:           name,
		Variant:        variant,
		Specialization: specialization,
		State:          StateIdle,
		Capabilities:   make(map[string]Capability),
		Energy:         1.0,
		LastActive:     time.Now(),
	}
	r.mu.Unlock()

	r.logger.Info("agent created", "agent_id", id, "name", name, "variant", variant)
	return id, nil
}

// AddCapability attaches or updates a named capability.
func (r *Registry) AddCapability(id, name string, proficiency, learningRate float64) error {
	if proficiency < 0 || proficiency > 1 || learningRate < 0 || learningRate > 1 {
		return hive.New(hive.KindValidation, "agentmodel.add_capability", "proficiency and learning_rate must be in [0,1]").WithResource(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.add_capability", "unknown agent").WithResource(id)
	}

	a.Capabilities[name] = Capability{Name: name, Proficiency: proficiency, LearningRate: learningRate}
	a.stateRev++
	r.notify(id)
	return nil
}

// UpdateState attempts the given state transition, atomically with
// respect to scheduler reads (it happens entirely under the write lock).
func (r *Registry) UpdateState(id string, newState State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.update_state", "unknown agent").WithResource(id)
	}

	if !CanTransition(a.State, newState) {
		return hive.New(hive.KindStatePrecondition, "agentmodel.update_state",
			fmt.Sprintf("illegal transition %s -> %s", a.State, newState)).WithResource(id)
	}

	a.State = newState
	a.stateRev++
	a.LastActive = time.Now()
	r.notify(id)
	return nil
}

// ForceState bypasses the state machine table — used only by the
// supervisor's recovery strategies (C7), which are a privileged caller
// allowed to reset a Failed agent directly to Idle.
func (r *Registry) ForceState(id string, newState State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.force_state", "unknown agent").WithResource(id)
	}
	a.State = newState
	a.stateRev++
	a.LastActive = time.Now()
	r.notify(id)
	return nil
}

// RecordExperience appends to the agent's bounded ring (dropping the
// oldest entry on overflow) and folds the outcome into the named
// capability's proficiency using the spec.md §4.1 update formula.
func (r *Registry) RecordExperience(id string, exp Experience) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.record_experience", "unknown agent").WithResource(id)
	}

	exp.Timestamp = time.Now()
	a.Experience = append(a.Experience, exp)
	if len(a.Experience) > ExperienceCapacity {
		a.Experience = a.Experience[len(a.Experience)-ExperienceCapacity:]
	}

	if cap, ok := a.Capabilities[exp.Capability]; ok {
		if exp.Success {
			cap.Proficiency = clamp(cap.Proficiency + cap.LearningRate*(1-cap.Proficiency))
		} else {
			cap.Proficiency = clamp(cap.Proficiency - cap.LearningRate*cap.Proficiency*FailureDecay)
		}
		a.Capabilities[exp.Capability] = cap
	}

	if exp.Success {
		a.TaskSuccessCount++
	} else {
		a.TaskFailureCount++
	}

	a.stateRev++
	r.notify(id)
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Snapshot returns a read-only copy of the agent, safe to use without
// holding the registry lock.
func (r *Registry) Snapshot(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return Agent{}, hive.New(hive.KindNotFound, "agentmodel.snapshot", "unknown agent").WithResource(id)
	}
	return a.Snapshot(), nil
}

// Filter selects agents by predicate for List.
type Filter func(Agent) bool

// List returns snapshots of every agent matching filter (nil matches all).
func (r *Registry) List(filter Filter) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		snap := a.Snapshot()
		if filter == nil || filter(snap) {
			out = append(out, snap)
		}
	}
	return out
}

// SetPressure updates an agent's simulated or sampled resource pressure,
// used by the supervisor's health sampling (C7).
func (r *Registry) SetPressure(id string, pressure ResourcePressure, energy, responseTimeMS float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.set_pressure", "unknown agent").WithResource(id)
	}
	a.Pressure = pressure
	a.Energy = clamp(energy)
	a.ResponseTimeMS = responseTimeMS
	return nil
}

// SetNeighbors replaces an agent's opaque neighbor-id list, used by the
// SwarmReformation recovery strategy.
func (r *Registry) SetNeighbors(id string, neighbors []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.set_neighbors", "unknown agent").WithResource(id)
	}
	a.NeighborIDs = append([]string(nil), neighbors...)
	return nil
}

// ResetForRecovery implements the Restart/EmergencyRecovery contract:
// clear the experience ring, reset capability proficiencies to half
// their current value (Restart semantics — EmergencyRecovery callers pass
// resetToBaseline=true to set every proficiency to the 0.5 baseline
// instead). Both modes also reset Energy to 1, Pressure to zero and
// ResponseTimeMS to 0.
func (r *Registry) ResetForRecovery(id string, resetToBaseline bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return hive.New(hive.KindNotFound, "agentmodel.reset_for_recovery", "unknown agent").WithResource(id)
	}

	a.Experience = nil
	for name, c := range a.Capabilities {
		if resetToBaseline {
			c.Proficiency = 0.5
		} else {
			c.Proficiency = c.Proficiency / 2
		}
		a.Capabilities[name] = c
	}
	a.Energy = 1.0
	a.Pressure = ResourcePressure{}
	a.ResponseTimeMS = 0
	a.stateRev++
	return nil
}

// TaskLoad returns the agent's current State. The registry itself does
// not track concurrent task counts (the scheduler reads those from the
// task queue, since tasks are owned by C4/C5, not C3).
func (r *Registry) TaskLoad(id string) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return "", hive.New(hive.KindNotFound, "agentmodel.task_load", "unknown agent").WithResource(id)
	}
	return a.State, nil
}
