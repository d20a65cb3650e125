// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package verification implements the tiered verification pipeline (C6):
// tier classification, weighted scoring, status classification, and the
// adaptive confidence-threshold tracker.
package verification

import "hive/internal/taskqueue"

// Tier is the verification depth band applied to one task result.
type Tier string

const (
	TierQuick     Tier = "quick"
	TierStandard  Tier = "standard"
	TierThorough  Tier = "thorough"
)

// ClassifyTier selects the tier for a result, per spec.md §4.3. Critical
// priority always escalates to Thorough regardless of quality, matching
// the source's "critical tasks always get thorough verification" rule.
func ClassifyTier(priority taskqueue.Priority, result taskqueue.Result, quality float64) Tier {
	if priority == taskqueue.PriorityCritical {
		return TierThorough
	}
	if result.Success && quality >= 0.7 && priority < taskqueue.PriorityHigh {
		return TierQuick
	}
	return TierStandard
}
