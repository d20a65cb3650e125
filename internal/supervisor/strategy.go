// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervisor

import (
	"context"
	"sync"

	"hive/internal/agentmodel"
)

// Strategy is one of the six recovery contracts (spec.md §4.4).
type Strategy string

const (
	StrategyAgentRestart        Strategy = "agent_restart"
	StrategyTaskRedistribution  Strategy = "task_redistribution"
	StrategySwarmReformation    Strategy = "swarm_reformation"
	StrategyResourceScaling     Strategy = "resource_scaling"
	StrategyEmergencyRecovery   Strategy = "emergency_recovery"
	StrategyGracefulDegradation Strategy = "graceful_degradation"
)

// defaultStrategyFor implements the spec's default failure-type-to-strategy
// mapping.
func defaultStrategyFor(f FailureType) Strategy {
	switch f {
	case FailureAgentUnresponsive:
		return StrategyAgentRestart
	case FailurePerformanceDegraded:
		return StrategyTaskRedistribution
	case FailureResourceExhaustion:
		return StrategyResourceScaling
	case FailureTaskExecution:
		return StrategyTaskRedistribution
	case FailureNetworkPartition:
		return StrategyEmergencyRecovery
	default:
		return StrategySwarmReformation
	}
}

// confidenceKey scopes learned confidence to a (failure type, strategy)
// pair: the spec's "learned_confidence[strategy]" update and its
// "learned_confidence[failure_type] > 0.8 -> use historically best
// strategy for that class" selection rule only compose coherently if the
// table is keyed on the pair, not on either alone.
type confidenceKey struct {
	failure  FailureType
	strategy Strategy
}

// Learner tracks learned_confidence per (failure type, strategy), folding
// in incident outcomes via clamp(+0.1 on success, -0.05 on failure, [0,1]).
type Learner struct {
	mu         sync.RWMutex
	confidence map[confidenceKey]float64
}

// NewLearner creates an empty confidence table.
func NewLearner() *Learner {
	return &Learner{confidence: make(map[confidenceKey]float64)}
}

// Select chooses a strategy for the given failure type: the default
// mapping, unless some strategy's learned confidence for this failure
// class exceeds 0.8, in which case the highest-confidence strategy wins
// (ties broken by the default mapping's strategy, then lexicographically).
func (l *Learner) Select(f FailureType) Strategy {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def := defaultStrategyFor(f)
	best := def
	bestConf := l.confidence[confidenceKey{f, def}]

	for k, conf := range l.confidence {
		if k.failure != f {
			continue
		}
		if conf > 0.8 && (conf > bestConf || (conf == bestConf && best != def && k.strategy < best)) {
			best = k.strategy
			bestConf = conf
		}
	}
	return best
}

// RecordOutcome folds a recovery attempt's result into the learned
// confidence for (failureType, strategy).
func (l *Learner) RecordOutcome(f FailureType, s Strategy, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := confidenceKey{f, s}
	cur := l.confidence[k]
	if success {
		cur += 0.1
	} else {
		cur -= 0.05
	}
	l.confidence[k] = clampConfidence(cur)
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Executor applies a recovery strategy's contract against the agent
// registry. ResourceScaling and SwarmReformation only adjust local state
// here; a real deployment routes their external effects (adding capacity,
// recomputing neighborhoods across a cluster) through the coordinator
// (C8), which this package has no dependency on.
type Executor struct {
	registry *agentmodel.Registry
}

// NewExecutor creates a strategy executor over the given registry.
func NewExecutor(registry *agentmodel.Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute applies strategy to agentID and reports whether it completed.
func (e *Executor) Execute(ctx context.Context, agentID string, s Strategy) error {
	switch s {
	case StrategyAgentRestart:
		if err := e.registry.ForceState(agentID, agentmodel.StateIdle); err != nil {
			return err
		}
		return e.registry.ResetForRecovery(agentID, false)

	case StrategyTaskRedistribution:
		// Cancelling the agent's in-flight assignments and requeuing their
		// tasks is the scheduler's job (it owns task ownership); this
		// strategy's contribution here is returning the agent to a state
		// that can accept new work.
		return e.registry.ForceState(agentID, agentmodel.StateIdle)

	case StrategySwarmReformation:
		if err := e.registry.SetNeighbors(agentID, nil); err != nil {
			return err
		}
		return e.registry.ForceState(agentID, agentmodel.StateIdle)

	case StrategyResourceScaling:
		a, err := e.registry.Snapshot(agentID)
		if err != nil {
			return err
		}
		reduced := agentmodel.ResourcePressure{
			CPU:    a.Pressure.CPU * 0.5,
			Memory: a.Pressure.Memory * 0.5,
		}
		return e.registry.SetPressure(agentID, reduced, a.Energy, a.ResponseTimeMS)

	case StrategyEmergencyRecovery:
		if err := e.registry.ForceState(agentID, agentmodel.StateIdle); err != nil {
			return err
		}
		return e.registry.ResetForRecovery(agentID, true)

	case StrategyGracefulDegradation:
		return e.registry.ForceState(agentID, agentmodel.StateDegraded)

	default:
		return nil
	}
}
