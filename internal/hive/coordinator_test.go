package hive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/agentmodel"
	"hive/internal/taskqueue"
	"hive/internal/toolbus"
	"hive/internal/verification"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	coord, err := New(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	return coord
}

func TestCreateAgentRegistersCapabilities(t *testing.T) {
	coord := newTestCoordinator(t)

	id, err := coord.CreateAgent(AgentConfig{
		Name: "worker-1",
		Type: agentmodel.VariantWorker,
		Capabilities: []CapabilityConfig{
			{Name: "go", Proficiency: 0.8, LearningRate: 0.1},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	status := coord.GetStatus()
	assert.Equal(t, 1, status.AgentCount)
	assert.Equal(t, 1, status.IdleAgents)
}

// TestCreateTaskRoundTrip covers spec.md §8's round-trip law: create_task
// -> enqueue -> assign -> complete -> get_task returns a result whose
// task_id matches the create return.
func TestCreateTaskRoundTrip(t *testing.T) {
	coord := newTestCoordinator(t)

	agentID, err := coord.CreateAgent(AgentConfig{Name: "worker-1", Type: agentmodel.VariantWorker})
	require.NoError(t, err)

	taskID, err := coord.CreateTask(TaskConfig{Description: "say hello", Priority: taskqueue.PriorityMedium})
	require.NoError(t, err)

	ctx := context.Background()
	outcome, err := coord.AssignNext(ctx)
	require.NoError(t, err)
	require.True(t, outcome.Assigned)
	assert.Equal(t, taskID, outcome.TaskID)
	assert.Equal(t, agentID, outcome.AgentID)

	result := taskqueue.Result{TaskID: taskID, AgentID: agentID, Success: true, Output: "hello"}
	verOutcome, err := coord.CompleteTask(ctx, mustTask(t, coord, taskID), result)
	require.NoError(t, err)
	assert.NotEqual(t, verification.StatusError, verOutcome.Status)

	task, err := coord.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, taskqueue.StateCompleted, task.State)
}

func mustTask(t *testing.T, coord *Coordinator, id string) taskqueue.Task {
	t.Helper()
	task, err := coord.GetTask(id)
	require.NoError(t, err)
	return task
}

func TestInvokeToolRunsRegisteredTool(t *testing.T) {
	coord := newTestCoordinator(t)

	out, err := coord.InvokeTool(context.Background(), "client-1", "echo", map[string]any{"msg": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestInvokeBatchRunsDependentRequests(t *testing.T) {
	coord := newTestCoordinator(t)

	reqs := []toolbus.BatchRequest{
		{ID: "a", Tool: "echo", Params: map[string]any{"msg": "a"}},
		{ID: "b", Tool: "echo", Params: map[string]any{"msg": "b"}, DependsOn: []string{"a"}},
	}
	summary, err := coord.InvokeBatch(context.Background(), "client-1", reqs, toolbus.DefaultBatchConfig())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, res := range summary.Results {
		assert.NoError(t, res.Err)
	}
}

func TestGetStatusReflectsConfidenceThreshold(t *testing.T) {
	coord := newTestCoordinator(t)
	status := coord.GetStatus()
	assert.Equal(t, DefaultConfig().Verification.InitialThreshold, status.ConfidenceThreshold)
}
