package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hive/internal/agentmodel"
)

func TestClassifyFailurePriorityOrder(t *testing.T) {
	// Both AgentUnresponsive and TaskExecutionFailure thresholds fire;
	// AgentUnresponsive is listed first and must win the tie-break.
	sample := Sample{ResponseMS: 6000, SuccessRate: 0.1}
	f, ok := ClassifyFailure(sample, false)
	assert.True(t, ok)
	assert.Equal(t, FailureAgentUnresponsive, f)
}

func TestClassifyFailureResourceExhaustion(t *testing.T) {
	sample := Sample{SuccessRate: 1.0, Pressure: agentmodel.ResourcePressure{CPU: 0.95, Memory: 0.1}}
	f, ok := ClassifyFailure(sample, false)
	assert.True(t, ok)
	assert.Equal(t, FailureResourceExhaustion, f)
}

func TestClassifyFailureNoneWhenWithinBounds(t *testing.T) {
	sample := Sample{SuccessRate: 0.9, Energy: 0.9}
	_, ok := ClassifyFailure(sample, false)
	assert.False(t, ok)
}

func TestClassifyFailureNetworkPartitionOnlyWhenSignaled(t *testing.T) {
	sample := Sample{SuccessRate: 0.9, Energy: 0.9}
	_, ok := ClassifyFailure(sample, true)
	assert.True(t, ok)
}
