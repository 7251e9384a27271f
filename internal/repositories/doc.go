// Package repositories implements SQLite persistence for the playlist library.
//
// Key Implementations:
//   - [PlaylistRepository] : Playlists, their lock filters and ordered items
//   - [RemovalRepository] : History of applied removal plans with per-entry reasons
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
