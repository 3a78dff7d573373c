// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about editor I/O, layout cache use, and store commits.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main (the server registers a Prometheus
// implementation), never by libraries, so library packages stay free of
// metrics dependencies.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEditorHooks(metrics)
//	    observability.SetCacheHooks(metrics)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Editor().OnImportStart(ctx, "csv")
//	// ... decode ...
//	observability.Editor().OnImportComplete(ctx, "csv", nodeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Editor Hooks
// =============================================================================

// EditorHooks receives events from editor file, layout and session operations.
type EditorHooks interface {
	// Import events
	OnImportStart(ctx context.Context, format string)
	OnImportComplete(ctx context.Context, format string, nodeCount int, duration time.Duration, err error)

	// Export events
	OnExportComplete(ctx context.Context, format string, nodeCount int, duration time.Duration, err error)

	// Layout events
	OnLayoutStart(ctx context.Context, placer string, nodeCount int)
	OnLayoutComplete(ctx context.Context, placer string, duration time.Duration, err error)

	// OnSessionSave records a session write, manual or automatic.
	OnSessionSave(ctx context.Context, auto bool, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from layout cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from graph store commits.
type StoreHooks interface {
	// OnCommit records a committed operation and the resulting graph size.
	OnCommit(op string, nodes, edges int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEditorHooks is a no-op implementation of EditorHooks.
type NoopEditorHooks struct{}

func (NoopEditorHooks) OnImportStart(context.Context, string) {}
func (NoopEditorHooks) OnImportComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopEditorHooks) OnExportComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopEditorHooks) OnLayoutStart(context.Context, string, int)                     {}
func (NoopEditorHooks) OnLayoutComplete(context.Context, string, time.Duration, error) {}
func (NoopEditorHooks) OnSessionSave(context.Context, bool, error)                     {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)  {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnCommit(string, int, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	editorHooks EditorHooks = NoopEditorHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	storeHooks  StoreHooks  = NoopStoreHooks{}
	hooksMu     sync.RWMutex
)

// SetEditorHooks registers custom editor hooks.
// This should be called once at application startup before any editor operations.
func SetEditorHooks(h EditorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		editorHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Editor returns the registered editor hooks.
func Editor() EditorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return editorHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	editorHooks = NoopEditorHooks{}
	cacheHooks = NoopCacheHooks{}
	storeHooks = NoopStoreHooks{}
}
