// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package toolbus implements the tool registry and batch invocation bus
// (C2): schema-validated single invocation, and DAG-scheduled batch
// invocation with cascade-skip, retry, and a deadlock guard.
package toolbus

import (
	"context"
	"fmt"

	"hive/internal/hive"
)

// CachePolicyKind selects how a tool's results are cached.
type CachePolicyKind int

const (
	// CacheNever never stores a result.
	CacheNever CachePolicyKind = iota
	// CacheShort stores under a key derived from the tool name, for TTL.
	CacheShort
	// CacheKeyed stores under a key the tool computes from its own params,
	// so that equivalent calls (by the tool's own notion of identity)
	// share a cache entry.
	CacheKeyed
)

// CachePolicy configures a tool's caching behavior.
type CachePolicy struct {
	Kind  CachePolicyKind
	TTLMS int64
	KeyFn func(params map[string]any) string // required when Kind==CacheKeyed
}

// Handler executes a tool call. Params have already passed schema
// validation when the bus invokes a handler directly.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Schema is a minimal JSON-schema-like description: required top-level
// param names and their expected Go kind ("string", "number", "bool",
// "object", "array").
type Schema struct {
	Required   []string
	Properties map[string]string
}

// ToolDef is a registered tool: handler, schema, description, and policy.
type ToolDef struct {
	Name        string
	Description string
	Schema      Schema
	Policy      CachePolicy
	Handler     Handler
}

// Registry holds append-once tool registrations.
type Registry struct {
	tools map[string]ToolDef
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolDef)}
}

// Register adds a tool. Re-registration under an existing name is
// rejected — the registry is append-only, per spec.md §4.5.
func (r *Registry) Register(def ToolDef) error {
	if def.Name == "" {
		return hive.New(hive.KindValidation, "toolbus.register", "tool name is required")
	}
	if _, exists := r.tools[def.Name]; exists {
		return hive.New(hive.KindValidation, "toolbus.register", fmt.Sprintf("tool %q already registered", def.Name)).WithResource(def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (ToolDef, error) {
	t, ok := r.tools[name]
	if !ok {
		return ToolDef{}, hive.New(hive.KindNotFound, "toolbus.get", "unknown tool").WithResource(name)
	}
	return t, nil
}

// List returns every registered tool.
func (r *Registry) List() []ToolDef {
	out := make([]ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ValidateParams checks params against schema, returning a
// KindValidation error tagged SchemaViolation in its message on the
// first problem found.
func ValidateParams(schema Schema, params map[string]any) error {
	for _, name := range schema.Required {
		if _, ok := params[name]; !ok {
			return hive.New(hive.KindValidation, "toolbus.validate_params",
				fmt.Sprintf("SchemaViolation: missing required param %q", name))
		}
	}
	for name, kind := range schema.Properties {
		v, ok := params[name]
		if !ok {
			continue
		}
		if !matchesKind(v, kind) {
			return hive.New(hive.KindValidation, "toolbus.validate_params",
				fmt.Sprintf("SchemaViolation: param %q must be %s", name, kind))
		}
	}
	return nil
}

func matchesKind(v any, kind string) bool {
	switch kind {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case int, int64, float64, float32:
			return true
		}
		return false
	case "bool":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
