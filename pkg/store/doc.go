// Package store implements the graph store: the single authoritative, undoable
// model of a diagram's nodes, edges, selection and editor mode.
//
// # Snapshots
//
// Every operation is copy-on-write. A successful mutation builds a new [State]
// and swaps it in atomically; the previous State is never modified. Callers
// obtain the current snapshot with [Store.State] and may hold on to it for as
// long as they like, but must not mutate it: all change goes through named
// operations.
//
// # Subscriptions
//
// [Store.Subscribe] registers a listener that is called synchronously after
// each committed operation with the previous and the next snapshot. Listeners
// run outside the store lock, so they may call back into the store. Consumers
// detect change by comparing snapshot pointers or individual slices.
//
// # Failure semantics
//
// Operations that reference an id which is not live are silent no-ops and
// report false. Stale ids from deferred UI callbacks therefore never crash an
// editing session. Only [Store.ImportData] returns an error, because it is the
// boundary where externally supplied documents enter the store.
//
// # Invariants
//
// After every operation:
//   - every edge connects two live nodes
//   - every ParentID names another live node, and is backed by exactly one
//     hierarchical edge when created through [Store.Connect]
//   - after any deletion, node ids are exactly node-1..node-N
//
// Deleting nodes cascades in a single call: edges touching a deleted node are
// removed, parent links to it are cleared, and the survivors are renumbered
// synchronously before the operation returns.
//
// # Concurrency
//
// Store is safe for concurrent use. All operations are serialized by a mutex,
// so readers never observe a partially applied mutation.
package store
