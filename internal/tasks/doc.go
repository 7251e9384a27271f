// Package tasks detects and removes stale cue sheet entries from playlists.
//
// # Detection
//
// [Engine] implements [Detector]. One run evaluates a batch of item handles:
//
//  1. Resolve : one bulk metadata query for the local-file items; items whose
//     record declares a referenced file are cue-derived.
//  2. Index : the backing file of every cue-derived item is checked in
//     parallel. Existing files go into a [ReferencedFileSet]; cue items whose
//     file is missing, or could not be checked, are marked.
//  3. Scan : after the index pass has finished, plain items matching a
//     referenced file (ignoring case) are marked as duplicates.
//
// The result is a [models.RemovalPlan]. A cancelled run yields no plan.
//
// # Applying plans
//
// [CueFixer] is the [ItemsAddedObserver] wired to the playlist library. It
// skips playlists locked against removal, evaluates in the background and
// applies non-empty plans on the single [Host] goroutine, then reports and
// records the removal.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Updates use
// select with default so a slow reader never blocks detection.
package tasks
