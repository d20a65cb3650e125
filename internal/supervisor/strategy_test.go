package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/agentmodel"
)

func TestDefaultStrategyMapping(t *testing.T) {
	assert.Equal(t, StrategyAgentRestart, defaultStrategyFor(FailureAgentUnresponsive))
	assert.Equal(t, StrategyTaskRedistribution, defaultStrategyFor(FailurePerformanceDegraded))
	assert.Equal(t, StrategyResourceScaling, defaultStrategyFor(FailureResourceExhaustion))
	assert.Equal(t, StrategyTaskRedistribution, defaultStrategyFor(FailureTaskExecution))
	assert.Equal(t, StrategyEmergencyRecovery, defaultStrategyFor(FailureNetworkPartition))
}

func TestLearnerOverridesDefaultAboveConfidenceBar(t *testing.T) {
	l := NewLearner()
	assert.Equal(t, StrategyAgentRestart, l.Select(FailureAgentUnresponsive))

	for i := 0; i < 9; i++ {
		l.RecordOutcome(FailureAgentUnresponsive, StrategyGracefulDegradation, true)
	}
	assert.Equal(t, StrategyGracefulDegradation, l.Select(FailureAgentUnresponsive))
}

func TestLearnerDoesNotOverrideAtOrBelowBar(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 8; i++ {
		l.RecordOutcome(FailureAgentUnresponsive, StrategyGracefulDegradation, true)
	}
	assert.Equal(t, StrategyAgentRestart, l.Select(FailureAgentUnresponsive))
}

func TestRecordOutcomeClampsToUnitRange(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 50; i++ {
		l.RecordOutcome(FailureAgentUnresponsive, StrategyAgentRestart, true)
	}
	l.mu.RLock()
	v := l.confidence[confidenceKey{FailureAgentUnresponsive, StrategyAgentRestart}]
	l.mu.RUnlock()
	assert.LessOrEqual(t, v, 1.0)

	for i := 0; i < 50; i++ {
		l.RecordOutcome(FailureTaskExecution, StrategyTaskRedistribution, false)
	}
	l.mu.RLock()
	v2 := l.confidence[confidenceKey{FailureTaskExecution, StrategyTaskRedistribution}]
	l.mu.RUnlock()
	assert.GreaterOrEqual(t, v2, 0.0)
}

func TestExecutorAgentRestartClearsExperienceAndHalvesProficiency(t *testing.T) {
	reg := agentmodel.New(nil)
	id, err := reg.Create("a1", agentmodel.VariantWorker, "")
	require.NoError(t, err)
	require.NoError(t, reg.AddCapability(id, "parse", 0.8, 0.1))
	require.NoError(t, reg.RecordExperience(id, agentmodel.Experience{Capability: "parse", Success: true}))
	require.NoError(t, reg.ForceState(id, agentmodel.StateFailed))

	exec := NewExecutor(reg)
	require.NoError(t, exec.Execute(context.Background(), id, StrategyAgentRestart))

	snap, err := reg.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, agentmodel.StateIdle, snap.State)
	assert.Empty(t, snap.Experience)
	assert.Less(t, snap.Capabilities["parse"].Proficiency, 0.8)
}

func TestExecutorResourceScalingReducesPressure(t *testing.T) {
	reg := agentmodel.New(nil)
	id, err := reg.Create("a1", agentmodel.VariantWorker, "")
	require.NoError(t, err)
	require.NoError(t, reg.SetPressure(id, agentmodel.ResourcePressure{CPU: 0.9, Memory: 0.9}, 1.0, 0))

	exec := NewExecutor(reg)
	require.NoError(t, exec.Execute(context.Background(), id, StrategyResourceScaling))

	snap, err := reg.Snapshot(id)
	require.NoError(t, err)
	assert.Less(t, snap.Pressure.CPU, 0.9)
	assert.Less(t, snap.Pressure.Memory, 0.9)
}

func TestExecutorGracefulDegradationSetsDegradedState(t *testing.T) {
	reg := agentmodel.New(nil)
	id, err := reg.Create("a1", agentmodel.VariantWorker, "")
	require.NoError(t, err)

	exec := NewExecutor(reg)
	require.NoError(t, exec.Execute(context.Background(), id, StrategyGracefulDegradation))

	snap, err := reg.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, agentmodel.StateDegraded, snap.State)
}
