// Package pkg provides the libraries behind tafarru3, the state engine of a
// genealogy tree diagram editor.
//
// # Overview
//
// A diagram is a set of people (nodes) joined by parent links and free-form
// connections (edges). The packages keep that diagram consistent while it is
// edited, lay it out, persist it and exchange it with spreadsheets:
//
//  1. [graph], [ids] - Value types for nodes, edges and styles, plus id
//     generation.
//  2. [store] - The single source of truth: every mutation goes through it
//     and produces a new immutable snapshot.
//  3. [history] - Undo/redo over store snapshots, with drag interactions
//     folded into one step.
//  4. [layout] - Auto-layout of the parent forest (tidy or graphviz
//     placement).
//  5. [codec] - The CSV interchange format, including the legacy
//     connection columns, and the JSON document format.
//  6. [session], [autosave] - Recently saved diagrams on file, SQLite, Redis
//     or MongoDB backends, and debounced auto-save.
//  7. [editor] - Wires the pieces above into one editing session with
//     keyboard shortcuts.
//  8. [server] - HTTP and WebSocket API for the browser render layer.
//
// # Data Flow
//
//	CSV / JSON file
//	      ↓
//	[codec] decode (legacy columns, loop breaking, layout of missing positions)
//	      ↓
//	[store] snapshot ←→ [history] undo/redo
//	      ↓
//	[session] save ─→ [sink/neo4j] publish
//	      ↓
//	[codec] encode ─→ CSV / JSON file
//
// # Supporting Packages
//
// [cache] memoizes layouts by tree shape. [config] loads settings from a TOML
// file and TAFARRU3_* environment variables. [errors] defines coded errors
// shared by every layer and mapped to HTTP statuses by [server].
// [observability] carries the hooks the server's Prometheus metrics plug
// into. [retry] re-runs transient failures. [buildinfo] reports the version.
package pkg
