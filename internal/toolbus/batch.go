// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package toolbus

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hive/internal/hive"
	"hive/pkg/dag"
)

// BatchRequest is one tool invocation within a batch, optionally depending
// on sibling requests (by ID) completing successfully first. Priority
// ranks 1-10 (higher runs first among ready requests; unset defaults to
// 5); TimeoutMS bounds a single handler invocation (unset falls back to
// the batch's DefaultTimeout). CorrelationID is filled in by InvokeBatch
// when left blank, for tracing a request across logs and audit events.
type BatchRequest struct {
	ID            string
	Tool          string
	Params        map[string]any
	Priority      int
	TimeoutMS     int
	DependsOn     []string
	CorrelationID string
}

func (r BatchRequest) NodeName() string   { return r.ID }
func (r BatchRequest) NodeDeps() []string { return r.DependsOn }

// BatchResult is the outcome of one request within a batch.
type BatchResult struct {
	ID       string
	Output   any
	Err      error
	Skipped  bool // true if an upstream dependency never succeeded
	Attempts int
	Elapsed  time.Duration
}

// BatchConfig bounds a batch's execution.
type BatchConfig struct {
	MaxConcurrent     int
	RetryAttempts     int
	EnableRetry       bool
	FailFast          bool          // cancel all in-flight requests as soon as any request fails
	DefaultTimeout    time.Duration // per-request fallback when a request sets no TimeoutMS
	DependencyTimeout time.Duration // stall guard: abort if no progress for this long
}

// DefaultBatchConfig returns spec.md §6's default batch execution bounds.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrent:     10,
		RetryAttempts:     3,
		EnableRetry:       true,
		FailFast:          false,
		DefaultTimeout:    30 * time.Second,
		DependencyTimeout: 5 * time.Minute,
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.DependencyTimeout <= 0 {
		c.DependencyTimeout = d.DependencyTimeout
	}
	return c
}

// defaultPriority is the rank assigned to a request that declares none.
const defaultPriority = 5

// normalizeBatchRequests returns a copy of reqs with CorrelationID and
// Priority backfilled, leaving the caller's slice untouched: InvokeBatch
// must never mutate state the caller still holds a reference to.
func normalizeBatchRequests(reqs []BatchRequest) []BatchRequest {
	out := append([]BatchRequest(nil), reqs...)
	for i := range out {
		if out[i].CorrelationID == "" {
			out[i].CorrelationID = uuid.NewString()
		}
		if out[i].Priority <= 0 {
			out[i].Priority = defaultPriority
		}
	}
	return out
}

// readyItem is one request waiting for a free worker slot, ordered by
// priority (higher first) then by arrival order (FIFO ties).
type readyItem struct {
	id       string
	priority int
	seq      int
}

// BatchSummary reports on a completed batch.
type BatchSummary struct {
	Results            []BatchResult
	Wall               time.Duration
	ParallelEfficiency float64 // sum(individual elapsed) / wall-clock elapsed
}

type batchNode struct {
	req       BatchRequest
	remaining int // unresolved dependency count
}

// InvokeBatch validates reqs as a DAG, then executes it wave by wave: a
// request runs as soon as every dependency it names has succeeded, bounded
// to cfg.MaxConcurrent concurrent invocations, highest priority first
// among ready requests (ties FIFO). A request whose dependency never
// succeeds is skipped, and the skip cascades to its own dependents
// without ever calling their handlers. If cfg.FailFast, a single request
// failure cancels every in-flight invocation immediately.
func (b *Bus) InvokeBatch(ctx context.Context, clientID string, reqs []BatchRequest, cfg BatchConfig) (BatchSummary, error) {
	cfg = cfg.withDefaults()

	if len(reqs) == 0 {
		return BatchSummary{}, nil
	}

	reqs = normalizeBatchRequests(reqs)

	nodes := make([]dag.Node, len(reqs))
	for i, r := range reqs {
		nodes[i] = r
	}
	if _, err := dag.Order(nodes); err != nil {
		return BatchSummary{}, hive.Wrap(hive.KindDependencyCycle, "toolbus.invoke_batch", err)
	}

	state := make(map[string]*batchNode, len(reqs))
	childrenOf := make(map[string][]string)
	for _, r := range reqs {
		state[r.ID] = &batchNode{req: r, remaining: len(r.DependsOn)}
		for _, dep := range r.DependsOn {
			childrenOf[dep] = append(childrenOf[dep], r.ID)
		}
	}

	var (
		mu           sync.Mutex
		cond         = sync.NewCond(&mu)
		results      = make(map[string]BatchResult, len(reqs))
		pending      = len(reqs)
		lastProgress = time.Now()
		readyQueue   []readyItem
		seq          int
		closed       bool
	)

	// enqueueIfReady and popReady must be called with mu held.
	enqueueIfReady := func(id string) {
		n := state[id]
		if n.remaining == 0 {
			readyQueue = append(readyQueue, readyItem{id: id, priority: n.req.Priority, seq: seq})
			seq++
		}
	}
	popReady := func() (string, bool) {
		if len(readyQueue) == 0 {
			return "", false
		}
		best := 0
		for i := 1; i < len(readyQueue); i++ {
			if readyQueue[i].priority > readyQueue[best].priority ||
				(readyQueue[i].priority == readyQueue[best].priority && readyQueue[i].seq < readyQueue[best].seq) {
				best = i
			}
		}
		item := readyQueue[best]
		readyQueue = append(readyQueue[:best], readyQueue[best+1:]...)
		return item.id, true
	}

	mu.Lock()
	for _, r := range reqs {
		enqueueIfReady(r.ID)
	}
	mu.Unlock()

	outerCtx, cancelOuter := context.WithCancel(ctx)
	defer cancelOuter()

	// abort cancels outerCtx at most once, recording why so the caller can
	// tell a dependency stall (batch-level failure) from a fail_fast cutoff
	// (the batch still returns a summary, just with fewer completed results).
	var (
		abortOnce sync.Once
		stalled   bool
	)
	abort := func(isStall bool) {
		abortOnce.Do(func() {
			mu.Lock()
			stalled = isStall
			mu.Unlock()
			cancelOuter()
		})
	}

	stallDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stallDone:
				return
			case <-ticker.C:
				mu.Lock()
				stale := pending > 0 && time.Since(lastProgress) > cfg.DependencyTimeout
				mu.Unlock()
				if stale {
					abort(true)
					return
				}
			}
		}
	}()

	go func() {
		<-outerCtx.Done()
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	}()

	var skipCascade func(id string, reason error)
	skipCascade = func(id string, reason error) {
		mu.Lock()
		if _, done := results[id]; done {
			mu.Unlock()
			return
		}
		results[id] = BatchResult{ID: id, Skipped: true, Err: reason}
		pending--
		lastProgress = time.Now()
		kids := append([]string(nil), childrenOf[id]...)
		if pending == 0 {
			closed = true
		}
		cond.Broadcast()
		mu.Unlock()
		for _, kid := range kids {
			skipCascade(kid, reason)
		}
	}

	g, gctx := errgroup.WithContext(outerCtx)
	g.SetLimit(cfg.MaxConcurrent)

	start := time.Now()

	for i := 0; i < cfg.MaxConcurrent; i++ {
		g.Go(func() error {
			for {
				mu.Lock()
				for len(readyQueue) == 0 && !closed && gctx.Err() == nil {
					cond.Wait()
				}
				if gctx.Err() != nil {
					mu.Unlock()
					return nil
				}
				id, ok := popReady()
				if !ok {
					mu.Unlock()
					return nil
				}
				req := state[id].req
				mu.Unlock()

				out, attempts, elapsed, err := b.runWithRetry(gctx, clientID, req, cfg)

				mu.Lock()
				if err != nil {
					results[id] = BatchResult{ID: id, Err: err, Attempts: attempts, Elapsed: elapsed}
				} else {
					results[id] = BatchResult{ID: id, Output: out, Attempts: attempts, Elapsed: elapsed}
				}
				pending--
				lastProgress = time.Now()
				kids := append([]string(nil), childrenOf[id]...)
				for _, kid := range kids {
					state[kid].remaining--
				}
				if err == nil {
					for _, kid := range kids {
						if _, already := results[kid]; !already {
							enqueueIfReady(kid)
						}
					}
				}
				if pending == 0 {
					closed = true
				}
				cond.Broadcast()
				mu.Unlock()

				if err != nil {
					if cfg.FailFast {
						abort(false)
					}
					for _, kid := range kids {
						skipCascade(kid, hive.New(hive.KindStatePrecondition, "toolbus.invoke_batch",
							"skipped: dependency "+id+" did not succeed").WithResource(kid))
					}
				}
			}
		})
	}

	g.Wait()
	close(stallDone)
	wall := time.Since(start)

	mu.Lock()
	wasStalled := stalled
	mu.Unlock()
	if wasStalled && ctx.Err() == nil {
		return BatchSummary{}, hive.New(hive.KindTimeout, "toolbus.invoke_batch", "batch stalled: no progress within dependency timeout")
	}

	out := make([]BatchResult, 0, len(reqs))
	var individualSum time.Duration
	for _, r := range reqs {
		res := results[r.ID]
		out = append(out, res)
		individualSum += res.Elapsed
	}

	summary := BatchSummary{Results: out, Wall: wall}
	if wall > 0 {
		summary.ParallelEfficiency = float64(individualSum) / float64(wall)
	}
	return summary, nil
}

// runWithRetry invokes req with exponential backoff (50ms * 2^k plus
// jitter) between tries, up to cfg.RetryAttempts (or once, if
// cfg.EnableRetry is false). Each invocation runs under its own
// context.WithTimeout, sized from req.TimeoutMS or cfg.DefaultTimeout.
// Validation errors are not retried since the same params will fail the
// same way every time.
func (b *Bus) runWithRetry(ctx context.Context, clientID string, req BatchRequest, cfg BatchConfig) (any, int, time.Duration, error) {
	start := time.Now()
	var lastErr error

	attempts := cfg.RetryAttempts
	if !cfg.EnableRetry {
		attempts = 1
	}

	timeout := cfg.DefaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	for k := 0; k < attempts; k++ {
		if k > 0 {
			backoff := time.Duration(50*(1<<uint(k-1))) * time.Millisecond
			jitter := time.Duration(rand.Int63n(int64(backoff/2 + 1)))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return nil, k, time.Since(start), ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := b.Invoke(callCtx, clientID, req.Tool, req.Params)
		cancel()
		if err == nil {
			return out, k + 1, time.Since(start), nil
		}
		lastErr = err
		if hive.IsKind(err, hive.KindValidation) {
			return nil, k + 1, time.Since(start), lastErr
		}
	}
	return nil, attempts, time.Since(start), lastErr
}
