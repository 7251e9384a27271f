// Package models defines domain entities and persistence interfaces for cuefix.
//
// The package contains two categories of types:
//
// 1. Batch evaluation types: created fresh for every "items added" event and discarded afterwards
//   - [ItemHandle] : Opaque playlist entry (location + subsong)
//   - [InfoRecord] : Optional metadata returned by the bulk metadata query
//   - [BatchItem] : One entry under evaluation with its resolved path and cue relationship
//   - [RemovalPlan] : Indices marked for removal with their [RemovalReason]
//
// 2. Persistent Entities: Database-backed models
//   - [PersistedPlaylist] : Named playlist with its [LockMask]
//   - [RemovalRun] : History record written each time a non-empty plan is applied
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
package models
