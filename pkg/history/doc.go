// Package history records undo/redo snapshots of a [store.Store].
//
// A [Manager] subscribes to the store and captures the nodes and edges after
// every committed operation. Selection, mode and the other UI fields are not
// part of a snapshot, so selecting a node never creates an undo step.
//
// # Gestures
//
// A drag issues many position updates. The UI brackets the gesture with
// [Manager.BeginInteraction] and [Manager.EndInteraction]; while the manager is
// in the Interacting state no snapshots are pushed, and ending the interaction
// records the final state as one entry. A single [Manager.Undo] therefore
// returns the diagram to where it was before the drag began.
//
// Consecutive snapshots that are deeply equal are recorded once. The number of
// undo steps is bounded by [DefaultLimit] unless configured with [WithLimit].
package history
