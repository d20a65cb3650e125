// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package verification

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"hive/internal/hive"
	"hive/internal/taskqueue"
)

// IssueSeverity ranks how much an issue counts against a result.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical" // task fails outright
	SeverityMajor    IssueSeverity = "major"    // significant, not fatal alone
	SeverityMinor    IssueSeverity = "minor"    // acceptable but suboptimal
)

// Issue is one finding raised by a check.
type Issue struct {
	Description string
	Severity    IssueSeverity
}

// Status is the pipeline's final verdict for a result.
type Status string

const (
	StatusFailed           Status = "failed"
	StatusPassedWithIssues Status = "passed_with_issues"
	StatusPassed           Status = "passed"
	StatusError            Status = "error"
)

// Weights configures the score blend (spec.md §4.3 defaults: 0.6/0.4).
type Weights struct {
	GoalAlignment float64
	Format        float64
}

// DefaultWeights returns the spec default weighting.
func DefaultWeights() Weights { return Weights{GoalAlignment: 0.6, Format: 0.4} }

// ThresholdSnapshot captures the confidence threshold and the per-rule
// score cutoffs in effect at verification time, for the audit trail.
type ThresholdSnapshot struct {
	Confidence float64
	PerRule    map[string]float64
}

// Outcome is the pipeline's output for a single task result.
type Outcome struct {
	TaskID       string
	Tier         Tier
	GoalScore    float64
	FormatScore  float64
	OverallScore float64
	Issues       []Issue
	Status       Status
	ElapsedMS    int64
	Threshold    ThresholdSnapshot
}

// ReviewerCallback is the Thorough-tier human/agent review hook, invoked
// as a registered C2 tool in a full deployment. A nil callback simply
// skips the reviewer step rather than fabricating a score.
type ReviewerCallback func(ctx context.Context, task taskqueue.Task, result taskqueue.Result) (score float64, issues []Issue, err error)

var wordRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

var negativeWords = map[string]bool{
	"fail": true, "failed": true, "failing": true, "cannot": true,
	"unable": true, "error": true, "broken": true, "wrong": true,
}

// Pipeline runs verification and owns the adaptive confidence threshold.
type Pipeline struct {
	mu       sync.RWMutex
	weights  Weights
	tracker  *Tracker
	reviewer ReviewerCallback
	logger   *slog.Logger
}

// New creates a Pipeline with the given adaptive-threshold tracker
// configuration. A nil reviewer skips the Thorough-tier callback step.
func New(trackerCfg TrackerConfig, reviewer ReviewerCallback, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		weights:  DefaultWeights(),
		tracker:  NewTracker(trackerCfg),
		reviewer: reviewer,
		logger:   logger,
	}
}

// Tracker exposes the pipeline's adaptive-threshold tracker so the
// supervisor/coordinator can drive its periodic re-evaluation tick.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

func (p *Pipeline) confidenceThreshold() float64 {
	return p.tracker.Threshold()
}

// Verify classifies a tier and runs its checks, producing an Outcome. It
// never returns a fabricated Passed status: a verification error yields
// Status Error and an empty score.
func (p *Pipeline) Verify(ctx context.Context, task taskqueue.Task, result taskqueue.Result) (Outcome, error) {
	start := time.Now()

	quality := 0.8
	if result.QualityScore != nil {
		quality = *result.QualityScore
	}
	tier := ClassifyTier(task.Priority, result, quality)

	goalScore, issues, err := quickChecks(task, result)
	if err != nil {
		return Outcome{TaskID: task.ID, Tier: tier, Status: StatusError, ElapsedMS: time.Since(start).Milliseconds()},
			hive.Wrap(hive.KindFatal, "verification.verify", err)
	}
	formatScore := goalScore

	if tier == TierStandard || tier == TierThorough {
		standardIssues := standardChecks(task, result)
		issues = append(issues, standardIssues...)
	}

	if tier == TierThorough {
		if p.reviewer != nil {
			revScore, revIssues, err := p.reviewer(ctx, task, result)
			if err != nil {
				return Outcome{TaskID: task.ID, Tier: tier, Status: StatusError, ElapsedMS: time.Since(start).Milliseconds()},
					hive.Wrap(hive.KindFatal, "verification.reviewer", err)
			}
			goalScore = (goalScore + revScore) / 2
			issues = append(issues, revIssues...)
		}
	}

	p.mu.RLock()
	w := p.weights
	p.mu.RUnlock()
	overall := w.GoalAlignment*goalScore + w.Format*formatScore

	threshold := p.confidenceThreshold()
	status := classifyStatus(overall, issues, threshold)

	return Outcome{
		TaskID:       task.ID,
		Tier:         tier,
		GoalScore:    goalScore,
		FormatScore:  formatScore,
		OverallScore: overall,
		Issues:       issues,
		Status:       status,
		ElapsedMS:    time.Since(start).Milliseconds(),
		Threshold: ThresholdSnapshot{
			Confidence: threshold,
			PerRule:    map[string]float64{"fail_below": 0.5, "pass_clean_above": 0.9},
		},
	}, nil
}

// classifyStatus implements spec.md §4.3's threshold cascade exactly:
// Failed if any Critical issue or overall<0.5 or >2 Major issues;
// PassedWithIssues if overall<confidence_threshold, or any Major issue,
// or (overall<0.9 and issues exist); Passed otherwise.
func classifyStatus(overall float64, issues []Issue, confidenceThreshold float64) Status {
	var critical, major int
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			critical++
		case SeverityMajor:
			major++
		}
	}

	if critical > 0 || overall < 0.5 || major > 2 {
		return StatusFailed
	}
	if overall < confidenceThreshold || major > 0 || (overall < 0.9 && len(issues) > 0) {
		return StatusPassedWithIssues
	}
	return StatusPassed
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		out[w] = true
	}
	return out
}

// quickChecks implements the Quick-tier rules: regex/length/keyword and
// goal-word overlap between the task description and the result output.
func quickChecks(task taskqueue.Task, result taskqueue.Result) (score float64, issues []Issue, err error) {
	if !result.Success {
		issues = append(issues, Issue{Description: "task reported failure", Severity: SeverityMajor})
	}

	if strings.TrimSpace(result.Output) == "" {
		issues = append(issues, Issue{Description: "empty output", Severity: SeverityCritical})
		return 0, issues, nil
	}
	if len(result.Output) > 200_000 {
		issues = append(issues, Issue{Description: "output exceeds length bound", Severity: SeverityMinor})
	}

	goalWords := tokenize(task.Description)
	if len(goalWords) == 0 {
		return 1, issues, nil
	}
	outputWords := tokenize(result.Output)

	var overlap int
	for w := range goalWords {
		if outputWords[w] {
			overlap++
		}
	}
	score = float64(overlap) / float64(len(goalWords))
	if score > 1 {
		score = 1
	}
	return score, issues, nil
}

// standardChecks adds a sentiment scan for negative language and a
// structural check for fenced code when the task type suggests code
// output. It computes no similarity score of its own; the only
// description/output overlap measure is quickChecks' goal-word ratio.
func standardChecks(task taskqueue.Task, result taskqueue.Result) []Issue {
	var issues []Issue

	words := tokenize(result.Output)
	var negatives int
	for w := range words {
		if negativeWords[w] {
			negatives++
		}
	}
	if negatives >= 3 {
		issues = append(issues, Issue{
			Description: "output skews negative in tone",
			Severity:    SeverityMinor,
		})
	}

	if task.Type == "code" && !strings.Contains(result.Output, "```") {
		issues = append(issues, Issue{
			Description: "code task output has no fenced code block",
			Severity:    SeverityMajor,
		})
	}

	return issues
}
