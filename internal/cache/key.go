// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package cache implements the keyed cache and dependency-graph cascade
// invalidation substrate (C1) used by the scheduler (C5) for fitness scores
// and by the tool bus (C2) for cached tool results.
package cache

import "fmt"

// Tag identifies what kind of entity a CacheKey refers to.
type Tag string

const (
	TagAgent      Tag = "agent"
	TagTask       Tag = "task"
	TagFitness    Tag = "fitness"
	TagOpaque     Tag = "opaque"
)

// Key is a tagged union of entity references and opaque strings. Two keys
// are equal iff their tag and payload are bytewise equal, which a plain
// comparable struct gives us for free as a map key.
type Key struct {
	Tag     Tag
	Payload string
}

func (k Key) String() string { return fmt.Sprintf("%s:%s", k.Tag, k.Payload) }

// AgentKey builds a key referencing an agent record.
func AgentKey(agentID string) Key { return Key{Tag: TagAgent, Payload: agentID} }

// TaskKey builds a key referencing a task record.
func TaskKey(taskID string) Key { return Key{Tag: TagTask, Payload: taskID} }

// FitnessKey builds the composite key the scheduler caches fitness scores
// under: (agent_id, agent_state_rev, task_capability_hash).
func FitnessKey(agentID string, stateRev uint64, capabilityHash string) Key {
	return Key{Tag: TagFitness, Payload: fmt.Sprintf("%s|%d|%s", agentID, stateRev, capabilityHash)}
}

// Opaque builds a key from an arbitrary caller-chosen string.
func Opaque(s string) Key { return Key{Tag: TagOpaque, Payload: s} }
