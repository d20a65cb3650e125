// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package taskqueue

import (
	"sync"

	"hive/internal/hive"
	"hive/pkg/dag"
)

// MaxAttempts is the default retry ceiling before a requeued task
// transitions to Failed with ExhaustedAttempts (spec.md §4.2).
const MaxAttempts = 3

// Queue is the multi-level priority structure: FIFO within a priority
// level, with tasks whose dependencies are unmet excluded from
// eligibility until every dependency reaches Completed.
type Queue struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	levels map[Priority][]string // ordered task ids, FIFO within the level
}

// New creates an empty task queue.
func New() *Queue {
	return &Queue{
		tasks:  make(map[string]*Task),
		levels: make(map[Priority][]string),
	}
}

// ValidateDAG checks that the dependency edges among tasks form a DAG,
// per spec.md §3's "dependencies form a DAG" invariant. It does not
// mutate the queue.
func ValidateDAG(tasks []Task) error {
	nodes := make([]dag.Node, len(tasks))
	for i, t := range tasks {
		nodes[i] = t
	}
	if _, err := dag.Order(nodes); err != nil {
		return hive.Wrap(hive.KindDependencyCycle, "taskqueue.validate_dag", err)
	}
	return nil
}

// Enqueue adds a task in Pending state.
func (q *Queue) Enqueue(t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.tasks[t.ID]; exists {
		return hive.New(hive.KindValidation, "taskqueue.enqueue", "task id already exists").WithResource(t.ID)
	}

	t.State = StatePending
	q.tasks[t.ID] = &t
	q.levels[t.Priority] = append(q.levels[t.Priority], t.ID)
	return nil
}

// dependenciesMet reports whether every dependency of taskID is Completed.
// Caller must hold at least a read lock.
func (q *Queue) dependenciesMet(t *Task) bool {
	for _, dep := range t.DependsOn {
		d, ok := q.tasks[dep]
		if !ok || d.State != StateCompleted {
			return false
		}
	}
	return true
}

// Eligible returns Pending tasks whose dependencies are all satisfied, in
// priority order (Critical first) and FIFO within a level.
func (q *Queue) Eligible() []Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []Task
	for p := PriorityCritical; p >= PriorityLow; p-- {
		for _, id := range q.levels[p] {
			t := q.tasks[id]
			if t.State == StatePending && q.dependenciesMet(t) {
				out = append(out, *t)
			}
		}
	}
	return out
}

// Get returns a copy of the task by id.
func (q *Queue) Get(id string) (Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.tasks[id]
	if !ok {
		return Task{}, hive.New(hive.KindNotFound, "taskqueue.get", "unknown task").WithResource(id)
	}
	return *t, nil
}

// TryAssign performs the compare-and-set Pending -> Assigned(agentID)
// transition. It returns false (not an error) if the task was raced away
// by a concurrent assignment — the spec requires the scheduler retry the
// next candidate in that case, not treat it as fatal.
func (q *Queue) TryAssign(id, agentID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return false, hive.New(hive.KindNotFound, "taskqueue.try_assign", "unknown task").WithResource(id)
	}
	if t.State != StatePending {
		return false, nil
	}
	t.State = StateAssigned
	t.AssignedTo = agentID
	return true, nil
}

// MarkRunning transitions Assigned -> Running (spec.md §3 invariant: a
// task enters Running only from Assigned).
func (q *Queue) MarkRunning(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return hive.New(hive.KindNotFound, "taskqueue.mark_running", "unknown task").WithResource(id)
	}
	if t.State != StateAssigned {
		return hive.New(hive.KindStatePrecondition, "taskqueue.mark_running", "task is not Assigned").WithResource(id)
	}
	t.State = StateRunning
	return nil
}

// Complete transitions any non-terminal task (Pending, Assigned or
// Running) to Completed (terminal).
func (q *Queue) Complete(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return hive.New(hive.KindNotFound, "taskqueue.complete", "unknown task").WithResource(id)
	}
	if t.State == StateCompleted || t.State == StateFailed || t.State == StateCancelled {
		return hive.New(hive.KindStatePrecondition, "taskqueue.complete", "task already terminal").WithResource(id)
	}
	t.State = StateCompleted
	return nil
}

// Fail transitions the task to Failed (terminal).
func (q *Queue) Fail(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return hive.New(hive.KindNotFound, "taskqueue.fail", "unknown task").WithResource(id)
	}
	if t.State == StateCompleted || t.State == StateFailed || t.State == StateCancelled {
		return hive.New(hive.KindStatePrecondition, "taskqueue.fail", "task already terminal").WithResource(id)
	}
	t.State = StateFailed
	return nil
}

// Cancel transitions a non-terminal task to Cancelled.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return hive.New(hive.KindNotFound, "taskqueue.cancel", "unknown task").WithResource(id)
	}
	if t.State == StateCompleted || t.State == StateFailed || t.State == StateCancelled {
		return hive.New(hive.KindStatePrecondition, "taskqueue.cancel", "task already terminal").WithResource(id)
	}
	t.State = StateCancelled
	return nil
}

// CountActive returns how many tasks are currently Assigned or Running
// against the given agent — the scheduler's load-penalty input.
func (q *Queue) CountActive(agentID string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := 0
	for _, t := range q.tasks {
		if t.AssignedTo == agentID && (t.State == StateAssigned || t.State == StateRunning) {
			n++
		}
	}
	return n
}

// Requeue reverts an Assigned/Running task to Pending with an incremented
// attempt counter (agent-failure mid-task path, spec.md §4.2). If the new
// attempt count reaches maxAttempts (MaxAttempts when maxAttempts <= 0),
// the task instead transitions to Failed and requeued=false is returned.
func (q *Queue) Requeue(id string, maxAttempts int) (requeued bool, err error) {
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return false, hive.New(hive.KindNotFound, "taskqueue.requeue", "unknown task").WithResource(id)
	}

	t.Attempts++
	t.AssignedTo = ""
	if t.Attempts >= maxAttempts {
		t.State = StateFailed
		return false, nil
	}
	t.State = StatePending
	return true, nil
}
