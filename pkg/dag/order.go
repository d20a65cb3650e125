// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package dag provides a small dependency-ordering helper shared by the
// task queue (C4) and the tool bus's batch executor (C2). Both need the
// same thing: given a set of named nodes with "depends on" edges, either
// produce a safe execution order or report the cycle.
package dag

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// Node is anything with a name and a list of dependency names.
type Node interface {
	NodeName() string
	NodeDeps() []string
}

// ErrCycle is returned (wrapped) when the dependency graph is not a DAG.
type ErrCycle struct {
	Detail string
}

func (e *ErrCycle) Error() string { return "circular dependency detected: " + e.Detail }

// Order performs a topological sort over nodes and returns names in an
// order safe to execute (dependencies before dependents). Nodes with no
// edges at all are returned in their input order, prepended ahead of any
// sorted nodes — callers that care about FIFO-within-priority should
// re-sort the roots themselves; Order only guarantees dependency safety.
func Order(nodes []Node) ([]string, error) {
	if len(nodes) == 0 {
		return []string{}, nil
	}

	edges := make([]toposort.Edge, 0)
	for _, n := range nodes {
		for _, dep := range n.NodeDeps() {
			edges = append(edges, toposort.Edge{dep, n.NodeName()})
		}
	}

	if len(edges) == 0 {
		flat := make([]string, 0, len(nodes))
		for _, n := range nodes {
			flat = append(flat, n.NodeName())
		}
		return flat, nil
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &ErrCycle{Detail: err.Error()}
	}

	inSorted := make(map[string]bool, len(sorted))
	flat := make([]string, 0, len(nodes))
	for _, raw := range sorted {
		name, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("dag: unexpected node type %T", raw)
		}
		inSorted[name] = true
		flat = append(flat, name)
	}

	// Prepend any node that never appeared as an edge endpoint (a root
	// with no dependents and no dependencies).
	for i := len(nodes) - 1; i >= 0; i-- {
		if !inSorted[nodes[i].NodeName()] {
			flat = append([]string{nodes[i].NodeName()}, flat...)
		}
	}

	return flat, nil
}

// HasCycle is a cheap boolean wrapper around Order for callers that only
// need a yes/no answer (e.g. batch validation before scheduling anything).
func HasCycle(nodes []Node) bool {
	_, err := Order(nodes)
	return err != nil
}
