package models

import (
	"fmt"
	"strings"
)

// LockMask is a set of operations a playlist lock forbids.
type LockMask uint32

const (
	LockFilterAdd LockMask = 1 << iota
	LockFilterRemove
	LockFilterReorder
	LockFilterReplace
	LockFilterRename
	LockFilterRemovePlaylist
	LockFilterDefaultAction
)

var lockNames = []struct {
	flag LockMask
	name string
}{
	{LockFilterAdd, "add"},
	{LockFilterRemove, "remove"},
	{LockFilterReorder, "reorder"},
	{LockFilterReplace, "replace"},
	{LockFilterRename, "rename"},
	{LockFilterRemovePlaylist, "remove_playlist"},
	{LockFilterDefaultAction, "default_action"},
}

// Has reports whether every bit of f is set.
func (m LockMask) Has(f LockMask) bool {
	return m&f == f
}

func (m LockMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, l := range lockNames {
		if m.Has(l.flag) {
			parts = append(parts, l.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseLockMask parses a comma separated list of lock filter names.
func ParseLockMask(s string) (LockMask, error) {
	var m LockMask
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "none" {
			continue
		}
		found := false
		for _, l := range lockNames {
			if l.name == part {
				m |= l.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown lock filter %q", part)
		}
	}
	return m, nil
}

// PersistedPlaylist is a named playlist stored in the library database.
type PersistedPlaylist struct {
	base
	name     string
	lockMask LockMask
}

// NewPersistedPlaylist creates a playlist entity ready for insertion.
func NewPersistedPlaylist(sequence int, name string, mask LockMask) *PersistedPlaylist {
	return &PersistedPlaylist{base: newBase(sequence), name: name, lockMask: mask}
}

func (p *PersistedPlaylist) Name() string { return p.name }
func (p *PersistedPlaylist) LockMask() LockMask { return p.lockMask }
func (p *PersistedPlaylist) SetLockMask(mask LockMask) { p.lockMask = mask }

// Validate checks required fields.
func (p *PersistedPlaylist) Validate() error {
	if strings.TrimSpace(p.name) == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

// RemovalEntry records one removed playlist entry.
type RemovalEntry struct {
	Position int
	Location string
	Subsong  int
	Reason   RemovalReason
}

// RemovalRun is the persisted history of one applied [RemovalPlan].
type RemovalRun struct {
	base
	playlistID   string
	playlistName string
	entries      []RemovalEntry
}

// NewRemovalRun creates a history record for an applied plan.
func NewRemovalRun(sequence int, playlistID, playlistName string, entries []RemovalEntry) *RemovalRun {
	return &RemovalRun{
		base:         newBase(sequence),
		playlistID:   playlistID,
		playlistName: playlistName,
		entries:      entries,
	}
}

func (r *RemovalRun) PlaylistID() string { return r.playlistID }
func (r *RemovalRun) PlaylistName() string { return r.playlistName }
func (r *RemovalRun) Entries() []RemovalEntry { return r.entries }
func (r *RemovalRun) Removed() int { return len(r.entries) }
func (r *RemovalRun) SetEntries(e []RemovalEntry) { r.entries = e }

// Validate checks required fields.
func (r *RemovalRun) Validate() error {
	if r.playlistID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if len(r.entries) == 0 {
		return fmt.Errorf("removal run has no entries")
	}
	return nil
}
