package tasks

import (
	"sort"
	"sync"

	"github.com/desertthunder/cuefix/internal/shared"
)

// ReferencedFileSet holds the backing files confirmed to exist during pass one.
//
// Membership is case-insensitive. Safe for concurrent use.
type ReferencedFileSet struct {
	mu    sync.RWMutex
	paths map[string]string // folded -> first spelling seen
}

// NewReferencedFileSet creates an empty set.
func NewReferencedFileSet() *ReferencedFileSet {
	return &ReferencedFileSet{paths: make(map[string]string)}
}

// Add inserts path and reports whether it was new.
func (s *ReferencedFileSet) Add(path string) bool {
	key := shared.FoldPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paths[key]; ok {
		return false
	}
	s.paths[key] = path
	return true
}

// Contains reports whether path matches a member, ignoring case.
func (s *ReferencedFileSet) Contains(path string) bool {
	key := shared.FoldPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.paths[key]
	return ok
}

// Len returns the number of distinct members.
func (s *ReferencedFileSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Paths returns the members as first inserted, sorted.
func (s *ReferencedFileSet) Paths() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}
