package models

import (
	"slices"
)

// FileScheme prefixes every location the detector can reason about.
const FileScheme = "file://"

// InfoReferencedFile is the metadata field a cue-type container uses to declare its backing audio file.
const InfoReferencedFile = "referenced_file"

// ItemHandle is an opaque playlist entry as delivered by the host.
type ItemHandle struct {
	Location string `json:"location"`          // Location string, e.g. file:///music/album.cue
	Subsong  int    `json:"subsong,omitempty"` // Track number inside a container, 0 for plain files
}

// InfoRecord is the metadata known for one [ItemHandle].
//
// A nil *InfoRecord means no metadata is available, which is not an error.
type InfoRecord struct {
	Info map[string]string // Technical info fields (referenced_file, codec, ...)
	Meta map[string]string // Tag fields (title, artist, album, ...)
}

// Get returns the info field value and whether it was present.
func (r *InfoRecord) Get(key string) (string, bool) {
	if r == nil || r.Info == nil {
		return "", false
	}
	v, ok := r.Info[key]
	return v, ok
}

// Tag returns a tag field or the empty string.
func (r *InfoRecord) Tag(key string) string {
	if r == nil || r.Meta == nil {
		return ""
	}
	return r.Meta[key]
}

// BatchItem is one playlist entry under evaluation.
type BatchItem struct {
	Index          int    // Position within the batch
	Path           string // Resolved location of the underlying media
	Eligible       bool   // Location is a local file the detector can reason about
	IsCueDerived   bool   // Metadata declares a separate backing audio file
	ReferencedFile string // Backing file location, set only when IsCueDerived
}

// RemovalReason explains why an index was marked.
type RemovalReason int

const (
	ReasonNone RemovalReason = iota
	ReasonMissingReference
	ReasonDuplicateOfReference
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonMissingReference:
		return "missing_reference"
	case ReasonDuplicateOfReference:
		return "duplicate_of_reference"
	default:
		return ""
	}
}

// ParseRemovalReason is the inverse of [RemovalReason.String].
func ParseRemovalReason(s string) RemovalReason {
	switch s {
	case "missing_reference":
		return ReasonMissingReference
	case "duplicate_of_reference":
		return ReasonDuplicateOfReference
	default:
		return ReasonNone
	}
}

// RemovalPlan is the final decision set for one batch.
//
// Indices are ascending and unique; Count always equals len(Indices).
type RemovalPlan struct {
	RunID    string                // Identifier of the evaluation run
	Playlist string                // Name of the playlist the batch belongs to
	Indices  []int                 // Batch indices marked for removal
	Reasons  map[int]RemovalReason // Reason per marked index
	Count    int                   // Number of marked indices
}

// NewRemovalPlan builds a plan from a per-index reason table, skipping [ReasonNone].
func NewRemovalPlan(runID, playlist string, reasons []RemovalReason) *RemovalPlan {
	plan := &RemovalPlan{
		RunID:    runID,
		Playlist: playlist,
		Indices:  []int{},
		Reasons:  make(map[int]RemovalReason),
	}
	for i, reason := range reasons {
		if reason == ReasonNone {
			continue
		}
		plan.Indices = append(plan.Indices, i)
		plan.Reasons[i] = reason
	}
	plan.Count = len(plan.Indices)
	return plan
}

// Empty reports whether nothing is to be removed.
func (p *RemovalPlan) Empty() bool {
	return p == nil || p.Count == 0
}

// Contains reports whether idx is marked.
func (p *RemovalPlan) Contains(idx int) bool {
	if p == nil {
		return false
	}
	_, ok := slices.BinarySearch(p.Indices, idx)
	return ok
}

// Offset returns a copy of the plan with every index shifted by n.
//
// Used when the batch is a slice of a playlist starting at position n.
func (p *RemovalPlan) Offset(n int) *RemovalPlan {
	out := &RemovalPlan{
		RunID:    p.RunID,
		Playlist: p.Playlist,
		Indices:  make([]int, len(p.Indices)),
		Reasons:  make(map[int]RemovalReason, len(p.Reasons)),
		Count:    p.Count,
	}
	for i, idx := range p.Indices {
		out.Indices[i] = idx + n
		out.Reasons[idx+n] = p.Reasons[idx]
	}
	return out
}
