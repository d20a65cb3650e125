package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/taskqueue"
)

func ptr(f float64) *float64 { return &f }

func TestClassifyTierCriticalAlwaysThorough(t *testing.T) {
	tier := ClassifyTier(taskqueue.PriorityCritical, taskqueue.Result{Success: true}, 0.99)
	assert.Equal(t, TierThorough, tier)
}

func TestClassifyTierQuickOnHighQualitySuccess(t *testing.T) {
	tier := ClassifyTier(taskqueue.PriorityMedium, taskqueue.Result{Success: true}, 0.85)
	assert.Equal(t, TierQuick, tier)
}

func TestClassifyTierStandardOnFailureOrHighPriority(t *testing.T) {
	assert.Equal(t, TierStandard, ClassifyTier(taskqueue.PriorityMedium, taskqueue.Result{Success: false}, 0.9))
	assert.Equal(t, TierStandard, ClassifyTier(taskqueue.PriorityHigh, taskqueue.Result{Success: true}, 0.95))
	assert.Equal(t, TierStandard, ClassifyTier(taskqueue.PriorityLow, taskqueue.Result{Success: true}, 0.6))
}

// TestS1HappyPathVerification covers scenario S1 from spec.md §8: a
// successful result with quality 0.85 on a Medium-priority task verifies
// at tier Quick and status Passed.
func TestS1HappyPathVerification(t *testing.T) {
	p := New(DefaultTrackerConfig(), nil, nil)
	task := taskqueue.Task{ID: "t1", Description: "parse logs", Priority: taskqueue.PriorityMedium}
	result := taskqueue.Result{TaskID: "t1", Success: true, Output: "parse logs: parsed the logs successfully", QualityScore: ptr(0.85)}

	outcome, err := p.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.Equal(t, TierQuick, outcome.Tier)
	assert.Equal(t, StatusPassed, outcome.Status)
}

func TestVerifyEmptyOutputIsCriticalAndFailed(t *testing.T) {
	p := New(DefaultTrackerConfig(), nil, nil)
	task := taskqueue.Task{ID: "t1", Description: "parse logs", Priority: taskqueue.PriorityMedium}
	result := taskqueue.Result{TaskID: "t1", Success: true, Output: "", QualityScore: ptr(0.9)}

	outcome, err := p.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
}

func TestVerifyThoroughTierInvokesReviewer(t *testing.T) {
	called := false
	reviewer := func(ctx context.Context, task taskqueue.Task, result taskqueue.Result) (float64, []Issue, error) {
		called = true
		return 0.9, nil, nil
	}
	p := New(DefaultTrackerConfig(), reviewer, nil)
	task := taskqueue.Task{ID: "t1", Description: "fix the outage", Priority: taskqueue.PriorityCritical}
	result := taskqueue.Result{TaskID: "t1", Success: true, Output: "fixed the outage by restarting the service", QualityScore: ptr(0.9)}

	outcome, err := p.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, TierThorough, outcome.Tier)
}

// TestVerifyPopulatesAuditTrailFields covers scenario S6 from spec.md §8:
// the returned Outcome carries the component scores, elapsed time, and the
// threshold snapshot in effect, not just the blended overall score.
func TestVerifyPopulatesAuditTrailFields(t *testing.T) {
	p := New(DefaultTrackerConfig(), nil, nil)
	task := taskqueue.Task{ID: "t1", Description: "parse logs", Priority: taskqueue.PriorityMedium}
	result := taskqueue.Result{TaskID: "t1", Success: true, Output: "parsed the logs successfully", QualityScore: ptr(0.85)}

	outcome, err := p.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.Greater(t, outcome.GoalScore, 0.0)
	assert.Greater(t, outcome.FormatScore, 0.0)
	assert.GreaterOrEqual(t, outcome.ElapsedMS, int64(0))
	assert.Equal(t, p.confidenceThreshold(), outcome.Threshold.Confidence)
	assert.NotEmpty(t, outcome.Threshold.PerRule)
}

func TestVerifyFailedOutcomeStillReportsElapsed(t *testing.T) {
	p := New(DefaultTrackerConfig(), nil, nil)
	task := taskqueue.Task{ID: "t1", Description: "parse logs", Priority: taskqueue.PriorityMedium}
	result := taskqueue.Result{TaskID: "t1", Success: true, Output: "", QualityScore: ptr(0.9)}

	outcome, err := p.Verify(context.Background(), task, result)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.GreaterOrEqual(t, outcome.ElapsedMS, int64(0))
}

func TestClassifyStatusRules(t *testing.T) {
	assert.Equal(t, StatusFailed, classifyStatus(0.4, nil, 0.75))
	assert.Equal(t, StatusFailed, classifyStatus(0.9, []Issue{{Severity: SeverityCritical}}, 0.75))
	assert.Equal(t, StatusFailed, classifyStatus(0.9, []Issue{
		{Severity: SeverityMajor}, {Severity: SeverityMajor}, {Severity: SeverityMajor},
	}, 0.75))
	assert.Equal(t, StatusPassedWithIssues, classifyStatus(0.6, nil, 0.75))
	assert.Equal(t, StatusPassedWithIssues, classifyStatus(0.95, []Issue{{Severity: SeverityMajor}}, 0.75))
	assert.Equal(t, StatusPassed, classifyStatus(0.96, nil, 0.75))
}
