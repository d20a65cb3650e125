package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/hive"
)

func TestValidateDAGRejectsCycle(t *testing.T) {
	tasks := []Task{
		{ID: "t1", DependsOn: []string{"t2"}},
		{ID: "t2", DependsOn: []string{"t1"}},
	}
	err := ValidateDAG(tasks)
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindDependencyCycle))
}

func TestEligibleExcludesUnmetDependencies(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Task{ID: "t1", Priority: PriorityMedium}))
	require.NoError(t, q.Enqueue(Task{ID: "t2", Priority: PriorityMedium, DependsOn: []string{"t1"}}))

	eligible := q.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, "t1", eligible[0].ID)

	_, err := q.TryAssign("t1", "agent-1")
	require.NoError(t, err)
	require.NoError(t, q.MarkRunning("t1"))
	require.NoError(t, q.Complete("t1"))

	eligible = q.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, "t2", eligible[0].ID)
}

func TestEligibleOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Task{ID: "low-1", Priority: PriorityLow}))
	require.NoError(t, q.Enqueue(Task{ID: "crit-1", Priority: PriorityCritical}))
	require.NoError(t, q.Enqueue(Task{ID: "crit-2", Priority: PriorityCritical}))
	require.NoError(t, q.Enqueue(Task{ID: "med-1", Priority: PriorityMedium}))

	eligible := q.Eligible()
	ids := make([]string, len(eligible))
	for i, t := range eligible {
		ids[i] = t.ID
	}
	assert.Equal(t, []string{"crit-1", "crit-2", "med-1", "low-1"}, ids)
}

// TestExactlyOneAssignmentSucceeds covers the linearizability invariant in
// spec.md §8: for a given task, exactly one Pending->Assigned transition
// succeeds.
func TestExactlyOneAssignmentSucceeds(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Task{ID: "t1", Priority: PriorityMedium}))

	ok1, err := q.TryAssign("t1", "agent-1")
	require.NoError(t, err)
	ok2, err := q.TryAssign("t1", "agent-2")
	require.NoError(t, err)

	assert.True(t, ok1)
	assert.False(t, ok2)

	task, _ := q.Get("t1")
	assert.Equal(t, "agent-1", task.AssignedTo)
}

func TestRequeueExhaustsAttempts(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Task{ID: "t1", Priority: PriorityMedium}))
	_, _ = q.TryAssign("t1", "agent-1")

	requeued, err := q.Requeue("t1", 3)
	require.NoError(t, err)
	assert.True(t, requeued)

	requeued, err = q.Requeue("t1", 3)
	require.NoError(t, err)
	assert.True(t, requeued)

	requeued, err = q.Requeue("t1", 3)
	require.NoError(t, err)
	assert.False(t, requeued)

	task, _ := q.Get("t1")
	assert.Equal(t, StateFailed, task.State)
}

func TestCompleteAndFailAreTerminal(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Task{ID: "t1", Priority: PriorityMedium}))
	_, _ = q.TryAssign("t1", "agent-1")
	require.NoError(t, q.MarkRunning("t1"))
	require.NoError(t, q.Complete("t1"))

	err := q.Cancel("t1")
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindStatePrecondition))
}

// TestCreateEnqueueAssignCompleteRoundTrip covers the round-trip law in
// spec.md §8.
func TestCreateEnqueueAssignCompleteRoundTrip(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(Task{ID: "t1", Priority: PriorityMedium}))
	_, _ = q.TryAssign("t1", "agent-1")
	require.NoError(t, q.MarkRunning("t1"))
	require.NoError(t, q.Complete("t1"))

	got, err := q.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, StateCompleted, got.State)
}
