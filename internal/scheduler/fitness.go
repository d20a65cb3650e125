// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package scheduler implements capability-based task routing (C5):
// fitness scoring, the assignment discipline, and the fitness cache.
package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"hive/internal/agentmodel"
	"hive/internal/taskqueue"
)

// epsilon avoids a divide-by-zero when min_prof is exactly 1.
const epsilon = 1e-6

// MinFitness is the rejection floor (spec.md §4.2): fitness below this
// leaves the task Pending rather than assigning a poor-fit agent.
const MinFitness = 0.2

// SpecializationBonus rewards a Specialist whose tag matches the task type.
const SpecializationBonus = 0.1

// LoadPenaltyPerTask is subtracted per concurrently Working task already
// assigned to the candidate.
const LoadPenaltyPerTask = 0.05

// Fitness scores how well agent fits task, returning the final score and
// whether the agent is even eligible (Idle; raw fitness math is otherwise
// meaningless for a busy or failed agent).
func Fitness(a agentmodel.Agent, t taskqueue.Task, currentLoad int) (score float64, eligible bool) {
	if a.State != agentmodel.StateIdle {
		return 0, false
	}

	raw := rawFitness(a, t.RequiredCapabilities)

	if a.Variant == agentmodel.VariantSpecialist && a.Specialization == t.Type {
		raw += SpecializationBonus
	}
	raw -= LoadPenaltyPerTask * float64(currentLoad)

	if raw < 0 {
		raw = 0
	}
	if raw > 1 {
		raw = 1
	}
	return raw, true
}

func rawFitness(a agentmodel.Agent, reqs []taskqueue.CapabilityRequirement) float64 {
	if len(reqs) == 0 {
		return 1
	}

	var weightedSum, weightTotal float64
	for _, req := range reqs {
		weight := req.Weight
		if weight == 0 {
			weight = 1
		}
		weightTotal += weight

		cap, has := a.Capabilities[req.Name]
		if !has {
			continue // component is 0
		}
		component := (cap.Proficiency - req.MinProf) / (1 - req.MinProf + epsilon)
		if component < 0 {
			component = 0
		}
		weightedSum += weight * component
	}

	if weightTotal == 0 {
		return 1
	}
	return weightedSum / weightTotal
}

// TotalProficiency sums an agent's proficiency across the task's required
// capabilities, the tie-break (b) input.
func TotalProficiency(a agentmodel.Agent, reqs []taskqueue.CapabilityRequirement) float64 {
	var total float64
	for _, req := range reqs {
		if cap, ok := a.Capabilities[req.Name]; ok {
			total += cap.Proficiency
		}
	}
	return total
}

// Candidate pairs an agent snapshot with its scheduling-relevant derived
// values, used for ranking.
type Candidate struct {
	Agent     agentmodel.Agent
	Fitness   float64
	Load      int
	TotalProf float64
}

// Rank sorts candidates best-first: highest fitness; ties broken by (a)
// lower load, (b) higher total proficiency, (c) lexicographic agent id.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Fitness != cj.Fitness {
			return ci.Fitness > cj.Fitness
		}
		if ci.Load != cj.Load {
			return ci.Load < cj.Load
		}
		if ci.TotalProf != cj.TotalProf {
			return ci.TotalProf > cj.TotalProf
		}
		return ci.Agent.ID < cj.Agent.ID
	})
}

// CapabilityHash derives a stable hash of a task's capability requirements
// for use as the C1 fitness-cache key component
// (agent_id, agent_state_rev, task_capability_hash).
func CapabilityHash(reqs []taskqueue.CapabilityRequirement) string {
	sorted := append([]taskqueue.CapabilityRequirement(nil), reqs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, r := range sorted {
		fmt.Fprintf(h, "%s|%f|%f;", r.Name, r.MinProf, r.Weight)
	}
	return hex.EncodeToString(h.Sum(nil))
}
