package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/agentmodel"
)

// scriptedSampler returns one canned Sample per Tick, advancing through
// script in order and repeating the last entry once exhausted.
type scriptedSampler struct {
	script []Sample
	calls  int
}

func (s *scriptedSampler) Sample(_ context.Context, a agentmodel.Agent) (Sample, error) {
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	out := s.script[idx]
	out.AgentID = a.ID
	return out, nil
}

// TestS4RecoversUnresponsiveAgent covers scenario S4 from spec.md §8: an
// agent sampled with response_time=8000ms and success_rate=0.2 is
// classified AgentUnresponsive, recovered via AgentRestart, and the next
// Healthy sample resolves the incident successfully.
func TestS4RecoversUnresponsiveAgent(t *testing.T) {
	reg := agentmodel.New(nil)
	id, err := reg.Create("a3", agentmodel.VariantWorker, "")
	require.NoError(t, err)

	sampler := &scriptedSampler{script: []Sample{
		{Status: HealthFailed, ResponseMS: 8000, SuccessRate: 0.2},
		{Status: HealthHealthy, ResponseMS: 50, SuccessRate: 0.9},
	}}

	sup := New(reg, sampler, DefaultConfig(), nil, nil)
	ctx := context.Background()

	sup.Tick(ctx)
	snap, err := reg.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, agentmodel.StateIdle, snap.State) // AgentRestart transitions Failed->Idle

	sup.Tick(ctx)

	history := sup.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Successful)
	assert.Equal(t, FailureAgentUnresponsive, history[0].FailureType)
	assert.Equal(t, StrategyAgentRestart, history[0].Strategy)

	conf := sup.learner.confidence[confidenceKey{FailureAgentUnresponsive, StrategyAgentRestart}]
	assert.InDelta(t, 0.1, conf, 1e-9)
}

// TestRecoveryIsIdempotentWhileActive covers the testable property that
// repeatedly ticking an agent stuck in the same unhealthy state does not
// emit multiple incidents or restart the recovery from scratch — it
// escalates the same tracked attempt instead.
func TestRecoveryIsIdempotentWhileActive(t *testing.T) {
	reg := agentmodel.New(nil)
	_, err := reg.Create("a1", agentmodel.VariantWorker, "")
	require.NoError(t, err)

	sampler := &scriptedSampler{script: []Sample{
		{Status: HealthFailed, ResponseMS: 8000, SuccessRate: 0.2},
	}}

	sup := New(reg, sampler, DefaultConfig(), nil, nil)
	ctx := context.Background()

	sup.Tick(ctx)
	sup.Tick(ctx)
	sup.Tick(ctx)
	sup.Tick(ctx)

	assert.Empty(t, sup.History())
	assert.Len(t, sup.active, 1)
}

// TestActiveRecoveriesCountsInFlightNotResolvedIncidents covers the
// ActiveRecoveries/History distinction: a recovery still in progress counts
// toward ActiveRecoveries and not yet toward the resolved History log.
func TestActiveRecoveriesCountsInFlightNotResolvedIncidents(t *testing.T) {
	reg := agentmodel.New(nil)
	_, err := reg.Create("a1", agentmodel.VariantWorker, "")
	require.NoError(t, err)

	sampler := &scriptedSampler{script: []Sample{
		{Status: HealthFailed, ResponseMS: 8000, SuccessRate: 0.2},
	}}

	sup := New(reg, sampler, DefaultConfig(), nil, nil)
	ctx := context.Background()

	sup.Tick(ctx)

	assert.Equal(t, 1, sup.ActiveRecoveries())
	assert.Empty(t, sup.History())
}

// TestResolvedIncidentRecordsLessonsLearned covers spec.md §3's
// IncidentRecord.LessonsLearned field, populated once a recovery resolves.
func TestResolvedIncidentRecordsLessonsLearned(t *testing.T) {
	reg := agentmodel.New(nil)
	_, err := reg.Create("a3", agentmodel.VariantWorker, "")
	require.NoError(t, err)

	sampler := &scriptedSampler{script: []Sample{
		{Status: HealthFailed, ResponseMS: 8000, SuccessRate: 0.2},
		{Status: HealthHealthy, ResponseMS: 50, SuccessRate: 0.9},
	}}

	sup := New(reg, sampler, DefaultConfig(), nil, nil)
	ctx := context.Background()

	sup.Tick(ctx)
	assert.Equal(t, 1, sup.ActiveRecoveries())
	sup.Tick(ctx)
	assert.Equal(t, 0, sup.ActiveRecoveries())

	history := sup.History()
	require.Len(t, history, 1)
	assert.NotEmpty(t, history[0].LessonsLearned)
}

func TestEscalatesToEmergencyRecoveryAfterMaxAttempts(t *testing.T) {
	reg := agentmodel.New(nil)
	id, err := reg.Create("a1", agentmodel.VariantWorker, "")
	require.NoError(t, err)

	sampler := &scriptedSampler{script: []Sample{
		{Status: HealthFailed, ResponseMS: 8000, SuccessRate: 0.2},
	}}

	cfg := DefaultConfig()
	cfg.MaxRecoveryAttempts = 2
	sup := New(reg, sampler, cfg, nil, nil)
	ctx := context.Background()

	sup.Tick(ctx) // attempt 1: AgentRestart begins
	sup.Tick(ctx) // attempt 2: still unhealthy, escalates to EmergencyRecovery

	rec := sup.active[id]
	require.NotNil(t, rec)
	assert.Equal(t, StrategyEmergencyRecovery, rec.strategy)
}
