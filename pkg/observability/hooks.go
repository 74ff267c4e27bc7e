// Package observability provides hooks for metrics, tracing, and logging.
//
// The package keeps graphmem's core free of observability frameworks: hook
// interfaces are defined here with no-op defaults, and a backend (OpenTelemetry,
// Prometheus, plain logging) is registered once at startup by main.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Store().OnMutation(ctx, "create", scope, id, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from node store mutations.
type StoreHooks interface {
	// OnMutation records a create, update, or delete attempt.
	// op is one of "create", "update", "delete"; err is nil on success.
	OnMutation(ctx context.Context, op, scope, nodeID string, err error)
}

// =============================================================================
// Query Hooks
// =============================================================================

// QueryHooks receives events from the query engine.
type QueryHooks interface {
	// OnQuery records a query or search and its result size.
	OnQuery(ctx context.Context, kind string, results int, duration time.Duration)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the visualization renderer.
type RenderHooks interface {
	OnRenderStart(ctx context.Context, layout string, nodeCount int)
	OnRenderComplete(ctx context.Context, layout string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnMutation(context.Context, string, string, string, error) {}

// NoopQueryHooks is a no-op implementation of QueryHooks.
type NoopQueryHooks struct{}

func (NoopQueryHooks) OnQuery(context.Context, string, int, time.Duration) {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, string, int)                    {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, time.Duration, error) {}

// =============================================================================
// Registry
// =============================================================================

var (
	mu          sync.RWMutex
	storeHooks  StoreHooks  = NoopStoreHooks{}
	queryHooks  QueryHooks  = NoopQueryHooks{}
	renderHooks RenderHooks = NoopRenderHooks{}
)

// SetStoreHooks registers store hooks. Pass nil to restore the no-op default.
func SetStoreHooks(h StoreHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		h = NoopStoreHooks{}
	}
	storeHooks = h
}

// SetQueryHooks registers query hooks. Pass nil to restore the no-op default.
func SetQueryHooks(h QueryHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		h = NoopQueryHooks{}
	}
	queryHooks = h
}

// SetRenderHooks registers render hooks. Pass nil to restore the no-op default.
func SetRenderHooks(h RenderHooks) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		h = NoopRenderHooks{}
	}
	renderHooks = h
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	mu.RLock()
	defer mu.RUnlock()
	return storeHooks
}

// Query returns the registered query hooks.
func Query() QueryHooks {
	mu.RLock()
	defer mu.RUnlock()
	return queryHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	mu.RLock()
	defer mu.RUnlock()
	return renderHooks
}
