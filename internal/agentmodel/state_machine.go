// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package agentmodel

// transitions enumerates every legal (from, to) pair in the agent
// lifecycle state machine (spec.md §4.1): Idle<->Working,
// Idle<->Communicating, Idle<->Learning, any state->Failed (terminal
// except via C7 recovery, which resets directly to Idle bypassing this
// table — recovery is a privileged transition, not a normal caller one).
var transitions = map[State]map[State]bool{
	StateIdle: {
		StateWorking:       true,
		StateCommunicating: true,
		StateLearning:      true,
		StateDegraded:      true,
		StateFailed:        true,
	},
	StateWorking: {
		StateIdle:   true,
		StateFailed: true,
	},
	StateCommunicating: {
		StateIdle:   true,
		StateFailed: true,
	},
	StateLearning: {
		StateIdle:   true,
		StateFailed: true,
	},
	StateDegraded: {
		StateIdle:   true,
		StateFailed: true,
	},
	StateFailed: {
		// Terminal for normal callers; C7 recovery bypasses this table.
	},
}

// CanTransition reports whether from->to is a legal caller-initiated
// transition.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}
