// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package hive composes the agent registry, task queue, scheduler,
// verification pipeline, self-healing supervisor, and tool bus into the
// single Coordinator the external HTTP/WS surface drives (C8).
package hive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hive/internal/agentmodel"
	"hive/internal/cache"
	"hive/internal/scheduler"
	"hive/internal/supervisor"
	"hive/internal/taskqueue"
	"hive/internal/toolbus"
	"hive/internal/verification"
)

// CapabilityConfig is one entry of an AgentConfig's initial capabilities.
type CapabilityConfig struct {
	Name         string
	Proficiency  float64
	LearningRate float64
}

// AgentConfig mirrors spec.md §6's recognized create_agent fields.
type AgentConfig struct {
	Name           string
	Type           agentmodel.Variant
	Specialization string
	Capabilities   []CapabilityConfig
}

// RequiredCapabilityConfig is one entry of a TaskConfig's required capabilities.
type RequiredCapabilityConfig struct {
	Name               string
	MinimumProficiency float64
}

// TaskConfig mirrors spec.md §6's recognized create_task fields.
type TaskConfig struct {
	Description          string
	Priority             taskqueue.Priority
	Type                 string
	EstimatedDuration    time.Duration
	RequiredCapabilities []RequiredCapabilityConfig
	DependsOn            []string
}

// Status is the coordinator's get_status() response: counts, averages,
// health summary (spec.md §6).
type Status struct {
	AgentCount          int
	IdleAgents          int
	PendingTasks        int
	RunningTasks        int
	AverageFitness      float64
	HealthyAgents       int
	DegradedAgents      int
	FailedAgents        int
	OpenIncidents       int
	ConfidenceThreshold float64
}

// Coordinator is the thin composition root over C1-C7. It owns no
// business logic of its own beyond wiring: every operation delegates to
// the owned component.
type Coordinator struct {
	cfg Config

	registry   *agentmodel.Registry
	queue      *taskqueue.Queue
	sched      *scheduler.Scheduler
	pipeline   *verification.Pipeline
	supervisor *supervisor.Supervisor
	tools      *toolbus.Registry
	bus        *toolbus.Bus
	cache      *cache.Store

	logger *slog.Logger
	cancel context.CancelFunc
}

// New builds a Coordinator over a fresh registry/queue/scheduler/pipeline/
// supervisor/tool bus, wired per cfg. A nil sink defaults to NoopAuditSink.
func New(cfg Config, sink AuditSink, logger *slog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = NoopAuditSink{}
	}

	registry := agentmodel.New(logger)
	queue := taskqueue.New()
	sched := scheduler.New(registry, queue, logger)

	trackerCfg := verification.TrackerConfig{
		WindowSize:    cfg.Verification.WindowSize,
		EveryOutcomes: cfg.Verification.EveryOutcomes,
		EveryInterval: cfg.Verification.EveryInterval(),
		MinSamples:    cfg.Verification.MinSamples,
		Lo:            0.3,
		Hi:            0.95,
		Initial:       cfg.Verification.InitialThreshold,
		Step:          0.01,
	}
	pipeline := verification.New(trackerCfg, nil, logger)

	supCfg := supervisor.DefaultConfig()
	supCfg.Interval = cfg.Supervisor.SupervisorInterval()
	supCfg.MaxRecoveryAttempts = cfg.Supervisor.MaxRecoveryAttempts
	sup := supervisor.New(registry, nil, supCfg, nil, logger)

	store := cache.New(cache.Strategy{}, logger)

	tools := toolbus.NewRegistry()
	if err := tools.Register(toolbus.EchoTool()); err != nil {
		return nil, err
	}
	if err := tools.Register(toolbus.ShellExecTool()); err != nil {
		return nil, err
	}

	rl := toolbus.RateLimit{Rate: cfg.ToolBus.RateLimitPerSecond, Burst: cfg.ToolBus.RateLimitBurst}
	bus := toolbus.NewBus(tools, store, rl, int64(cfg.ToolBus.MaxConcurrentMessages), toolbusAuditor{sink: sink}, logger)

	return &Coordinator{
		cfg: cfg, registry: registry, queue: queue, sched: sched,
		pipeline: pipeline, supervisor: sup, tools: tools, bus: bus,
		cache: store, logger: logger,
	}, nil
}

// Start launches the background actors: the scheduler's actor loop, the
// adaptive-threshold tracker's time-based tick (every EveryInterval, when
// that is positive) and the supervisor's sampling loop. Call Stop to halt
// them.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.sched.Run(ctx)
	if iv := c.cfg.Verification.EveryInterval(); iv > 0 {
		go func() {
			t := time.NewTicker(iv)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					c.pipeline.Tracker().Tick()
				}
			}
		}()
	}
	return c.supervisor.Start(ctx)
}

// Stop halts every background actor.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.supervisor.Stop()
}

// CreateAgent registers a new agent per config and returns its id.
func (c *Coordinator) CreateAgent(config AgentConfig) (string, error) {
	id, err := c.registry.Create(config.Name, config.Type, config.Specialization)
	if err != nil {
		return "", err
	}
	for _, cap := range config.Capabilities {
		if err := c.registry.AddCapability(id, cap.Name, cap.Proficiency, cap.LearningRate); err != nil {
			return "", err
		}
	}
	return id, nil
}

// CreateTask enqueues a new task per config and returns its id. The task
// id is generated here (not left to the caller) so create_task's
// round-trip invariant (spec.md §8) holds regardless of caller input.
func (c *Coordinator) CreateTask(config TaskConfig) (string, error) {
	id := fmt.Sprintf("task-%d-%d", time.Now().UnixNano(), len(config.Description))

	reqs := make([]taskqueue.CapabilityRequirement, 0, len(config.RequiredCapabilities))
	for _, r := range config.RequiredCapabilities {
		reqs = append(reqs, taskqueue.CapabilityRequirement{Name: r.Name, MinProf: r.MinimumProficiency})
	}

	task := taskqueue.Task{
		ID:                   id,
		Description:          config.Description,
		Type:                 config.Type,
		Priority:             config.Priority,
		RequiredCapabilities: reqs,
		EstimatedDuration:    config.EstimatedDuration,
		DependsOn:            config.DependsOn,
		CreatedAt:            time.Now(),
	}

	if err := c.queue.Enqueue(task); err != nil {
		return "", err
	}
	return id, nil
}

// GetTask returns the current state of a previously created task.
func (c *Coordinator) GetTask(id string) (taskqueue.Task, error) {
	return c.queue.Get(id)
}

// AssignNext drives the scheduler's assignment loop one step. A real
// deployment calls this continuously from its own driver loop; exposed
// directly here since the coordinator owns no scheduling loop of its own
// beyond the scheduler's actor.
func (c *Coordinator) AssignNext(ctx context.Context) (scheduler.Outcome, error) {
	return c.sched.AssignNext(ctx)
}

// CompleteTask runs a task's result through verification, then completes
// or fails it against the scheduler depending on the verdict.
func (c *Coordinator) CompleteTask(ctx context.Context, task taskqueue.Task, result taskqueue.Result) (verification.Outcome, error) {
	outcome, err := c.pipeline.Verify(ctx, task, result)
	if err != nil {
		return outcome, err
	}

	switch outcome.Status {
	case verification.StatusPassed, verification.StatusPassedWithIssues:
		if err := c.sched.CompleteTask(ctx, task.ID, result.AgentID); err != nil {
			return outcome, err
		}
	default:
		if _, err := c.sched.FailTask(ctx, task.ID, result.AgentID, taskqueue.MaxAttempts); err != nil {
			return outcome, err
		}
	}

	success := outcome.Status == verification.StatusPassed || outcome.Status == verification.StatusPassedWithIssues
	c.pipeline.Tracker().Record(outcome.OverallScore, success)

	for _, req := range task.RequiredCapabilities {
		_ = c.registry.RecordExperience(result.AgentID, agentmodel.Experience{
			TaskID: task.ID, Capability: req.Name, Success: success, Delta: outcome.OverallScore,
		})
	}

	return outcome, nil
}

// InvokeTool runs a single tool call through the bus.
func (c *Coordinator) InvokeTool(ctx context.Context, clientID, name string, params map[string]any) (any, error) {
	return c.bus.Invoke(ctx, clientID, name, params)
}

// InvokeBatch runs a DAG-scheduled batch of tool calls through the bus.
func (c *Coordinator) InvokeBatch(ctx context.Context, clientID string, reqs []toolbus.BatchRequest, batchCfg toolbus.BatchConfig) (toolbus.BatchSummary, error) {
	return c.bus.InvokeBatch(ctx, clientID, reqs, batchCfg)
}

// GetStatus summarizes registry, queue, and supervisor state.
func (c *Coordinator) GetStatus() Status {
	agents := c.registry.List(nil)

	status := Status{
		AgentCount:          len(agents),
		PendingTasks:        len(c.queue.Eligible()),
		ConfidenceThreshold: c.pipeline.Tracker().Threshold(),
	}

	var fitnessTotal float64
	var fitnessCount int
	for _, a := range agents {
		if a.State == agentmodel.StateIdle {
			status.IdleAgents++
		}
		score := supervisor.Score(a, supervisor.DefaultHealthWeights())
		switch supervisor.Classify(score, supervisor.DefaultThresholds()) {
		case supervisor.HealthHealthy:
			status.HealthyAgents++
		case supervisor.HealthDegraded:
			status.DegradedAgents++
		case supervisor.HealthFailed, supervisor.HealthCritical:
			status.FailedAgents++
		}
		for _, cap := range a.Capabilities {
			fitnessTotal += cap.Proficiency
			fitnessCount++
		}
	}
	if fitnessCount > 0 {
		status.AverageFitness = fitnessTotal / float64(fitnessCount)
	}

	status.OpenIncidents = c.supervisor.ActiveRecoveries()

	return status
}
