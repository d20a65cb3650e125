// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package verification

import (
	"sync"
	"time"
)

// sample is one tracked (prediction, ground truth) pair.
type sample struct {
	score         float64
	groundTruth   bool // did the task actually succeed, per external label
}

// ThresholdRecord is one entry in the adaptive-threshold audit history.
type ThresholdRecord struct {
	Value      float64
	SetAt      time.Time
	SampleSize int
}

// TrackerConfig configures the rolling window and re-evaluation cadence.
type TrackerConfig struct {
	WindowSize    int           // N: max retained samples
	EveryOutcomes int           // M: re-evaluate after this many new outcomes
	EveryInterval time.Duration // T: or after this much wall time, whichever first
	MinSamples    int           // proposal only accepted with at least this many points
	Lo, Hi        float64       // search range for the new threshold
	Initial       float64
	Step          float64 // grid step for the F1 search; 0 defaults to 0.01
}

// DefaultTrackerConfig matches spec.md §4.3's defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		WindowSize:    200,
		EveryOutcomes: 50,
		EveryInterval: 10 * time.Minute,
		MinSamples:    20,
		Lo:            0.3,
		Hi:            0.95,
		Initial:       0.75,
		Step:          0.01,
	}
}

// Tracker retains recent (score, ground-truth) pairs and periodically
// proposes a new confidence_threshold that maximizes F1 over the window,
// per spec.md §4.3's adaptive-threshold rule.
type Tracker struct {
	mu      sync.RWMutex
	cfg     TrackerConfig
	samples []sample
	current float64
	history []ThresholdRecord

	sinceEval time.Time
	newSince  int
}

// NewTracker creates a tracker at its configured initial threshold.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 200
	}
	if cfg.Step <= 0 {
		cfg.Step = 0.01
	}
	if cfg.Initial == 0 {
		cfg.Initial = 0.75
	}
	return &Tracker{
		cfg:       cfg,
		current:   cfg.Initial,
		sinceEval: time.Now(),
		history:   []ThresholdRecord{{Value: cfg.Initial, SetAt: time.Now()}},
	}
}

// Threshold returns the tracker's current confidence_threshold.
func (t *Tracker) Threshold() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// History returns the full threshold change history, oldest first.
func (t *Tracker) History() []ThresholdRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]ThresholdRecord(nil), t.history...)
}

// Record adds one labeled outcome (the pipeline's overall score and the
// externally supplied ground-truth success flag) and triggers a
// re-evaluation once EveryOutcomes new samples have arrived since the
// last one — the count-based half of the "M outcomes or T minutes,
// whichever first" rule. The time-based half is driven by Tick, which
// hive.Coordinator.Start calls on a ticker every EveryInterval.
func (t *Tracker) Record(score float64, groundTruthSuccess bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, sample{score: score, groundTruth: groundTruthSuccess})
	if len(t.samples) > t.cfg.WindowSize {
		t.samples = t.samples[len(t.samples)-t.cfg.WindowSize:]
	}
	t.newSince++

	if t.cfg.EveryOutcomes > 0 && t.newSince >= t.cfg.EveryOutcomes {
		t.evaluateLocked()
	}
}

// Tick is the time-driven half of the re-evaluation trigger; call it
// periodically (hive.Coordinator.Start does so every EveryInterval). It is
// a no-op if EveryInterval hasn't elapsed since the last evaluation.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.EveryInterval > 0 && time.Since(t.sinceEval) >= t.cfg.EveryInterval {
		t.evaluateLocked()
	}
}

// evaluateLocked proposes a new threshold by grid search over [Lo,Hi],
// picking the candidate maximizing F1 against the tracked window. The
// proposal commits only when at least MinSamples points are held;
// otherwise the current threshold and history are left untouched, but the
// trigger counters still reset (the tracker does not re-attempt every
// single subsequent outcome once it has just tried and failed the bar).
func (t *Tracker) evaluateLocked() {
	t.newSince = 0
	t.sinceEval = time.Now()

	if len(t.samples) < t.cfg.MinSamples {
		return
	}

	best := t.current
	bestF1 := f1At(t.samples, t.current)
	for threshold := t.cfg.Lo; threshold <= t.cfg.Hi+1e-9; threshold += t.cfg.Step {
		score := f1At(t.samples, threshold)
		if score > bestF1 {
			bestF1 = score
			best = threshold
		}
	}

	if best == t.current {
		return
	}
	t.current = best
	t.history = append(t.history, ThresholdRecord{
		Value:      best,
		SetAt:      time.Now(),
		SampleSize: len(t.samples),
	})
}

// f1At computes F1 treating score>=threshold as a predicted pass, against
// the sample's ground-truth success flag.
func f1At(samples []sample, threshold float64) float64 {
	var tp, fp, fn int
	for _, s := range samples {
		predicted := s.score >= threshold
		switch {
		case predicted && s.groundTruth:
			tp++
		case predicted && !s.groundTruth:
			fp++
		case !predicted && s.groundTruth:
			fn++
		}
	}
	if tp == 0 {
		if fp == 0 && fn == 0 {
			return 1 // every sample correctly predicted negative
		}
		return 0
	}
	precision := float64(tp) / float64(tp+fp)
	recall := float64(tp) / float64(tp+fn)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
