// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package scheduler

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"

	"hive/internal/agentmodel"
	"hive/internal/cache"
	"hive/internal/taskqueue"
)

var tracer = otel.Tracer("hive/scheduler")

// fitnessTTL is the cache lifetime for a cached (agent,task) fitness
// score — short, because any capability or state change invalidates it
// explicitly anyway via the registry's change listener.
const fitnessTTL = 5 * time.Second

// Outcome reports what AssignNext did, for logging/metrics by the caller.
type Outcome struct {
	Assigned bool
	TaskID   string
	AgentID  string
	Reason   string // "NoEligibleAgent" when Assigned is false and a task existed
}

// Scheduler matches tasks to agents and enforces the assignment discipline
// (spec.md §4.2). It runs as a single logical actor: every public method
// that mutates state sends a command over an internal channel processed
// by exactly one goroutine, so assignment ordering is linearizable by
// construction rather than by convention.
type Scheduler struct {
	registry *agentmodel.Registry
	queue    *taskqueue.Queue
	fit      *cache.Store
	logger   *slog.Logger

	cmds chan func()
	done chan struct{}
}

// New creates a Scheduler over the given registry and queue. It
// subscribes to the registry's change events to cascade-invalidate cached
// fitness scores.
func New(registry *agentmodel.Registry, queue *taskqueue.Queue, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		registry: registry,
		queue:    queue,
		fit:      cache.New(cache.Strategy{}, logger),
		logger:   logger,
		cmds:     make(chan func()),
		done:     make(chan struct{}),
	}
	registry.OnChange(func(agentID string) {
		s.fit.InvalidateByPattern(agentFitnessPattern(agentID))
	})
	return s
}

// Run starts the actor loop; it returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.cmds:
			fn()
		}
	}
}

// call executes fn on the actor goroutine and blocks for its result. If
// Run has not been started (unit tests calling Scheduler methods
// directly), call falls back to running fn inline — still single-threaded
// from the caller's perspective as long as the caller doesn't call
// concurrently, which unit tests don't.
func (s *Scheduler) call(ctx context.Context, fn func()) {
	select {
	case s.cmds <- fn:
	case <-ctx.Done():
	default:
		fn()
	}
}

// AssignNext attempts to assign the single highest-priority eligible task
// to its best-fit Idle agent. It returns Outcome.Assigned=false with no
// error when no Pending task is ready or no agent clears MinFitness —
// NoEligibleAgent is a routing result, not a failure (spec.md §4.2).
func (s *Scheduler) AssignNext(ctx context.Context) (Outcome, error) {
	var out Outcome
	var err error
	done := make(chan struct{})
	s.call(ctx, func() {
		out, err = s.assignNextLocked(ctx)
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	return out, err
}

func (s *Scheduler) assignNextLocked(ctx context.Context) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "scheduler.assign_next")
	defer span.End()

	for _, t := range s.queue.Eligible() {
		out, assigned, err := s.tryAssignTask(ctx, t)
		if err != nil {
			return Outcome{}, err
		}
		if assigned {
			return out, nil
		}
		// No eligible agent for this task; try the next eligible task
		// rather than giving up on the whole wave.
	}
	return Outcome{Assigned: false, Reason: "NoEligibleAgent"}, nil
}

func (s *Scheduler) tryAssignTask(ctx context.Context, t taskqueue.Task) (Outcome, bool, error) {
	candidates := s.rankCandidates(t)

	for _, c := range candidates {
		if c.Fitness < MinFitness {
			break // ranked best-first; nothing further qualifies either
		}

		ok, err := s.queue.TryAssign(t.ID, c.Agent.ID)
		if err != nil {
			return Outcome{}, false, err
		}
		if !ok {
			continue // raced away; try next candidate
		}

		if err := s.registry.UpdateState(c.Agent.ID, agentmodel.StateWorking); err != nil {
			// Roll the task back to Pending; the agent transition lost a
			// race or is otherwise invalid, so this candidate is no good.
			_, _ = s.queue.Requeue(t.ID, taskqueue.MaxAttempts+1) // force back to Pending without counting an attempt
			continue
		}

		s.logger.Info("task assigned", "task_id", t.ID, "agent_id", c.Agent.ID, "fitness", c.Fitness)
		return Outcome{Assigned: true, TaskID: t.ID, AgentID: c.Agent.ID}, true, nil
	}

	return Outcome{}, false, nil
}

func (s *Scheduler) rankCandidates(t taskqueue.Task) []Candidate {
	agents := s.registry.List(func(a agentmodel.Agent) bool { return a.State == agentmodel.StateIdle })

	candidates := make([]Candidate, 0, len(agents))
	for _, a := range agents {
		load := s.queue.CountActive(a.ID)

		key := cache.FitnessKey(a.ID, a.StateRev(), CapabilityHash(t.RequiredCapabilities))
		score, ok := cache.Get[float64](s.fit, key)
		if !ok {
			var eligible bool
			score, eligible = Fitness(a, t, load)
			if !eligible {
				continue
			}
			cache.Put(s.fit, key, score, fitnessTTL, nil)
		}

		candidates = append(candidates, Candidate{
			Agent:     a,
			Fitness:   score,
			Load:      load,
			TotalProf: TotalProficiency(a, t.RequiredCapabilities),
		})
	}

	Rank(candidates)
	return candidates
}

// CompleteTask transitions a non-terminal (typically Assigned or Running)
// task to Completed and its agent back to Idle.
func (s *Scheduler) CompleteTask(ctx context.Context, taskID, agentID string) error {
	var err error
	done := make(chan struct{})
	s.call(ctx, func() {
		err = s.completeLocked(taskID, agentID)
		close(done)
	})
	<-done
	return err
}

func (s *Scheduler) completeLocked(taskID, agentID string) error {
	if err := s.queue.Complete(taskID); err != nil {
		return err
	}
	return s.registry.UpdateState(agentID, agentmodel.StateIdle)
}

// FailTask handles a task execution failure: the agent returns to Idle,
// and the task is requeued with an incremented attempt counter unless
// max_attempts is exhausted, in which case it transitions to Failed
// (ExhaustedAttempts).
func (s *Scheduler) FailTask(ctx context.Context, taskID, agentID string, maxAttempts int) (requeued bool, err error) {
	done := make(chan struct{})
	s.call(ctx, func() {
		requeued, err = s.failLocked(taskID, agentID, maxAttempts)
		close(done)
	})
	<-done
	return requeued, err
}

func (s *Scheduler) failLocked(taskID, agentID string, maxAttempts int) (bool, error) {
	if err := s.registry.UpdateState(agentID, agentmodel.StateIdle); err != nil {
		return false, err
	}
	return s.queue.Requeue(taskID, maxAttempts)
}

// agentFitnessPattern matches every cached fitness entry for one agent,
// regardless of which task's capability hash it was keyed under — Key's
// String() form is "fitness:<agentID>|<stateRev>|<capabilityHash>".
func agentFitnessPattern(agentID string) *regexp.Regexp {
	return regexp.MustCompile("^fitness:" + regexp.QuoteMeta(agentID) + `\|`)
}
