// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"hive/internal/agentmodel"
)

// IncidentRecord is emitted when an active recovery resolves, for audit
// and for the learning feedback loop. A recovery resolves only when the
// agent samples Healthy again; an agent that never does stays in active
// recovery and emits no record.
type IncidentRecord struct {
	ID             string
	AgentID        string
	FailureType    FailureType
	Strategy       Strategy
	Attempts       int
	Successful     bool
	DetectedAt     time.Time
	ResolvedAt     time.Time
	LessonsLearned []string
}

// recoveryState tracks one agent's in-flight recovery.
type recoveryState struct {
	failure  FailureType
	strategy Strategy
	attempts int
	started  time.Time
}

// Config configures the supervisor's sampling cadence and thresholds.
type Config struct {
	Interval            time.Duration
	Thresholds          Thresholds
	Weights             HealthWeights
	MaxRecoveryAttempts int
}

// DefaultConfig matches spec.md §4.4's defaults (30s tick, 3 max attempts).
func DefaultConfig() Config {
	return Config{
		Interval:            30 * time.Second,
		Thresholds:          DefaultThresholds(),
		Weights:             DefaultHealthWeights(),
		MaxRecoveryAttempts: 3,
	}
}

// NetworkProbe reports whether an agent looks partitioned from the swarm.
// A nil probe means NetworkPartition never fires, which is the correct
// default in a single-process deployment (spec.md's non-goal: no
// distributed replication or cross-process membership).
type NetworkProbe func(agentID string) bool

// Supervisor runs the periodic health-sample/classify/recover loop (C7).
type Supervisor struct {
	mu       sync.Mutex
	registry *agentmodel.Registry
	sampler  HealthSampler
	executor *Executor
	learner  *Learner
	cfg      Config
	probe    NetworkProbe
	logger   *slog.Logger

	active   map[string]*recoveryState
	history  []IncidentRecord

	cr *cron.Cron
}

// New creates a Supervisor. A nil sampler defaults to RegistrySampler.
func New(registry *agentmodel.Registry, sampler HealthSampler, cfg Config, probe NetworkProbe, logger *slog.Logger) *Supervisor {
	if sampler == nil {
		sampler = NewRegistrySampler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRecoveryAttempts <= 0 {
		cfg.MaxRecoveryAttempts = 3
	}
	return &Supervisor{
		registry: registry,
		sampler:  sampler,
		executor: NewExecutor(registry),
		learner:  NewLearner(),
		cfg:      cfg,
		probe:    probe,
		logger:   logger,
		active:   make(map[string]*recoveryState),
	}
}

// Start launches the cron-driven sampling loop; call Stop to halt it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.cr = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	err := s.cr.AddFunc(spec, func() { s.Tick(ctx) })
	if err != nil {
		return err
	}
	s.cr.Start()
	return nil
}

// Stop halts the cron loop, if running.
func (s *Supervisor) Stop() {
	if s.cr != nil {
		s.cr.Stop()
	}
}

// History returns the incident audit log, oldest first.
func (s *Supervisor) History() []IncidentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]IncidentRecord(nil), s.history...)
}

// ActiveRecoveries reports the number of agents currently mid-recovery —
// the "open incidents" count, as distinct from History's resolved log.
func (s *Supervisor) ActiveRecoveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Tick runs one sampling pass over every registered agent. It is exported
// so tests and a coordinator-level demo can drive it synchronously instead
// of waiting on the cron schedule.
func (s *Supervisor) Tick(ctx context.Context) {
	for _, a := range s.registry.List(nil) {
		sample, err := s.sampler.Sample(ctx, a)
		if err != nil {
			s.logger.Warn("health sample failed", "agent_id", a.ID, "error", err)
			continue
		}
		s.handleSample(ctx, a.ID, sample)
	}
}

func (s *Supervisor) handleSample(ctx context.Context, agentID string, sample Sample) {
	s.mu.Lock()
	rec, hasActive := s.active[agentID]
	s.mu.Unlock()

	if sample.Status == HealthHealthy {
		if hasActive {
			s.resolveRecovery(agentID, rec, true)
		}
		return
	}

	if hasActive {
		s.escalate(ctx, agentID, rec)
		return
	}

	networkSignal := s.probe != nil && s.probe(agentID)
	failureType, matched := ClassifyFailure(sample, networkSignal)
	if !matched {
		return
	}

	strategy := s.learner.Select(failureType)
	s.beginRecovery(ctx, agentID, failureType, strategy)
}

func (s *Supervisor) beginRecovery(ctx context.Context, agentID string, f FailureType, strategy Strategy) {
	state := &recoveryState{failure: f, strategy: strategy, attempts: 1, started: time.Now()}

	s.mu.Lock()
	s.active[agentID] = state
	s.mu.Unlock()

	if err := s.executor.Execute(ctx, agentID, strategy); err != nil {
		s.logger.Warn("recovery execution failed", "agent_id", agentID, "strategy", strategy, "error", err)
	}
	s.logger.Info("recovery started", "agent_id", agentID, "failure_type", f, "strategy", strategy)
}

func (s *Supervisor) escalate(ctx context.Context, agentID string, rec *recoveryState) {
	s.mu.Lock()
	rec.attempts++
	if rec.attempts >= s.cfg.MaxRecoveryAttempts && rec.strategy != StrategyEmergencyRecovery {
		rec.strategy = StrategyEmergencyRecovery
		rec.attempts = 1
	}
	strategy := rec.strategy
	s.mu.Unlock()

	if err := s.executor.Execute(ctx, agentID, strategy); err != nil {
		s.logger.Warn("recovery escalation failed", "agent_id", agentID, "strategy", strategy, "error", err)
	}
}

func (s *Supervisor) resolveRecovery(agentID string, rec *recoveryState, success bool) {
	s.mu.Lock()
	delete(s.active, agentID)
	s.mu.Unlock()

	s.learner.RecordOutcome(rec.failure, rec.strategy, success)

	incident := IncidentRecord{
		ID:             uuid.NewString(),
		AgentID:        agentID,
		FailureType:    rec.failure,
		Strategy:       rec.strategy,
		Attempts:       rec.attempts,
		Successful:     success,
		DetectedAt:     rec.started,
		ResolvedAt:     time.Now(),
		LessonsLearned: lessonsLearned(rec.failure, rec.strategy, success, rec.attempts),
	}

	s.mu.Lock()
	s.history = append(s.history, incident)
	s.mu.Unlock()

	s.logger.Info("incident resolved", "agent_id", agentID, "strategy", rec.strategy, "successful", success)
}

// lessonsLearned renders a short free-text takeaway for the learning
// feedback loop, per spec.md §3's IncidentRecord field.
func lessonsLearned(f FailureType, s Strategy, success bool, attempts int) []string {
	if success {
		return []string{fmt.Sprintf("%s resolved %s after %d attempt(s)", s, f, attempts)}
	}
	return []string{fmt.Sprintf("%s did not resolve %s after %d attempt(s)", s, f, attempts)}
}
