// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package toolbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"hive/internal/cache"
	"hive/internal/hive"
)

// DefaultMaxConcurrentMessages is the registry-wide in-flight cap
// (spec.md §5's backpressure default).
const DefaultMaxConcurrentMessages = 2000

// Event is one audit record for a single tool invocation.
type Event struct {
	Tool      string
	ClientID  string
	Success   bool
	Error     string
	Timestamp time.Time
}

// Auditor receives invocation events. The hive coordinator (C8) supplies
// its own sink; a nil Auditor on Bus means "discard" (the zero-value-safe
// default rather than requiring every caller to wire one up).
type Auditor interface {
	Append(ctx context.Context, event Event)
}

// RateLimit configures the per-client token bucket.
type RateLimit struct {
	Rate  float64 // tokens added per second
	Burst float64 // bucket capacity
}

// DefaultRateLimit allows a generous default so tests and demos aren't
// throttled by accident.
func DefaultRateLimit() RateLimit { return RateLimit{Rate: 50, Burst: 50} }

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// limiter is a minimal per-client token bucket; it does not depend on an
// external rate-limiting library because the policy (constant refill
// rate, constant burst) is simple enough that introducing one would just
// be an adapter around this same math, and none of the corpus reaches for
// one here either.
type limiter struct {
	mu      sync.Mutex
	cfg     RateLimit
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimit) *limiter {
	return &limiter{cfg: cfg, buckets: make(map[string]*bucket)}
}

func (l *limiter) allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{tokens: l.cfg.Burst, lastFill: now}
		l.buckets[clientID] = b
	}

	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.cfg.Rate
	if b.tokens > l.cfg.Burst {
		b.tokens = l.cfg.Burst
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Bus is the single-invocation path over a tool Registry: schema
// validation, rate limiting, backpressure, cache consult, execute, cache
// store, audit.
type Bus struct {
	registry *Registry
	cache    *cache.Store
	limiter  *limiter
	inflight *semaphore.Weighted
	auditor  Auditor
	logger   *slog.Logger
}

// NewBus creates a Bus over registry, using store for Keyed/Short caching.
// maxConcurrentMessages <= 0 falls back to DefaultMaxConcurrentMessages.
func NewBus(registry *Registry, store *cache.Store, rl RateLimit, maxConcurrentMessages int64, auditor Auditor, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrentMessages <= 0 {
		maxConcurrentMessages = DefaultMaxConcurrentMessages
	}
	return &Bus{
		registry: registry, cache: store, limiter: newLimiter(rl),
		inflight: semaphore.NewWeighted(maxConcurrentMessages),
		auditor:  auditor, logger: logger,
	}
}

func (b *Bus) cacheKey(tool string, params map[string]any, policy CachePolicy) cache.Key {
	if policy.Kind == CacheKeyed && policy.KeyFn != nil {
		return cache.Opaque(tool + ":" + policy.KeyFn(params))
	}
	return cache.Opaque(tool)
}

// Invoke runs a single tool call end to end.
func (b *Bus) Invoke(ctx context.Context, clientID, toolName string, params map[string]any) (any, error) {
	tool, err := b.registry.Get(toolName)
	if err != nil {
		return nil, err
	}

	if err := ValidateParams(tool.Schema, params); err != nil {
		b.audit(ctx, toolName, clientID, false, err)
		return nil, err
	}

	if !b.limiter.allow(clientID) {
		err := hive.New(hive.KindOverloaded, "toolbus.invoke", "rate limit exceeded").
			WithResource(clientID).WithRetryAfter("1s")
		b.audit(ctx, toolName, clientID, false, err)
		return nil, err
	}

	if !b.inflight.TryAcquire(1) {
		err := hive.New(hive.KindOverloaded, "toolbus.invoke", "registry-wide message cap exceeded").
			WithResource(toolName).WithRetryAfter("1s")
		b.audit(ctx, toolName, clientID, false, err)
		return nil, err
	}
	defer b.inflight.Release(1)

	var key cache.Key
	if tool.Policy.Kind != CacheNever && b.cache != nil {
		key = b.cacheKey(toolName, params, tool.Policy)
		if v, ok := cache.Get[any](b.cache, key); ok {
			b.audit(ctx, toolName, clientID, true, nil)
			return v, nil
		}
	}

	result, err := tool.Handler(ctx, params)
	if err != nil {
		b.audit(ctx, toolName, clientID, false, err)
		return nil, err
	}

	if tool.Policy.Kind != CacheNever && b.cache != nil {
		ttl := time.Duration(tool.Policy.TTLMS) * time.Millisecond
		cache.Put(b.cache, key, result, ttl, nil)
	}

	b.audit(ctx, toolName, clientID, true, nil)
	return result, nil
}

func (b *Bus) audit(ctx context.Context, tool, clientID string, success bool, err error) {
	event := Event{Tool: tool, ClientID: clientID, Success: success, Timestamp: time.Now()}
	if err != nil {
		event.Error = err.Error()
	}
	if b.auditor != nil {
		b.auditor.Append(ctx, event)
	}
	b.logger.Debug("tool invoked", "tool", tool, "client", clientID, "success", success)
}
