// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/services"
	"github.com/desertthunder/cuefix/internal/shared"
)

// MockMetadata is a test double for [services.MetadataService].
//
// Records are keyed by location; a handle with a subsong also matches "location#subsong" first.
type MockMetadata struct {
	mu      sync.Mutex
	Records map[string]*models.InfoRecord
	Err     error
	Calls   [][]models.ItemHandle
}

// NewMockMetadata creates an empty MockMetadata.
func NewMockMetadata() *MockMetadata {
	return &MockMetadata{Records: make(map[string]*models.InfoRecord)}
}

// SetReference registers a cue-style record for location declaring file as its backing file.
func (m *MockMetadata) SetReference(location, file string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[location] = &models.InfoRecord{
		Info: map[string]string{models.InfoReferencedFile: file},
		Meta: map[string]string{},
	}
}

func (m *MockMetadata) QueryBulk(ctx context.Context, items []models.ItemHandle) ([]*models.InfoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, append([]models.ItemHandle(nil), items...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]*models.InfoRecord, len(items))
	for i, h := range items {
		if rec, ok := m.Records[fmt.Sprintf("%s#%d", h.Location, h.Subsong)]; ok {
			out[i] = rec
			continue
		}
		out[i] = m.Records[h.Location]
	}
	return out, nil
}

// CallCount returns the number of QueryBulk calls.
func (m *MockMetadata) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockFileSystem is a test double for [services.FileSystem] with exact, case-sensitive lookups.
type MockFileSystem struct {
	mu       sync.Mutex
	Files    map[string]bool
	Failures map[string]error
	Checked  []string
	// OnCheck, when set, runs before each lookup.
	OnCheck func(ctx context.Context, location string)
}

// NewMockFileSystem creates a filesystem containing locations.
func NewMockFileSystem(locations ...string) *MockFileSystem {
	fs := &MockFileSystem{Files: make(map[string]bool), Failures: make(map[string]error)}
	for _, loc := range locations {
		fs.Files[loc] = true
	}
	return fs
}

func (f *MockFileSystem) Exists(ctx context.Context, location string) services.ExistResult {
	if f.OnCheck != nil {
		f.OnCheck(ctx, location)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Checked = append(f.Checked, location)
	if err, ok := f.Failures[location]; ok {
		return services.Failed(err)
	}
	if f.Files[location] {
		return services.ExistResult{Status: services.StatusExists}
	}
	return services.ExistResult{Status: services.StatusAbsent}
}

// CheckedLocations returns a copy of every location checked so far.
func (f *MockFileSystem) CheckedLocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Checked...)
}

type mockPlaylist struct {
	name  string
	mask  models.LockMask
	items []models.ItemHandle
}

// MockPlaylistStore is an in-memory playlist store satisfying tasks.PlaylistStore.
type MockPlaylistStore struct {
	mu        sync.Mutex
	playlists map[string]*mockPlaylist
	RemoveErr error
	Removals  [][]int
}

// NewMockPlaylistStore creates an empty store.
func NewMockPlaylistStore() *MockPlaylistStore {
	return &MockPlaylistStore{playlists: make(map[string]*mockPlaylist)}
}

// AddPlaylist registers a playlist with the given items.
func (s *MockPlaylistStore) AddPlaylist(id, name string, mask models.LockMask, items ...models.ItemHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[id] = &mockPlaylist{name: name, mask: mask, items: append([]models.ItemHandle(nil), items...)}
}

// Append adds items to a playlist and returns the start position.
func (s *MockPlaylistStore) Append(id string, items ...models.ItemHandle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.playlists[id]
	start := len(p.items)
	p.items = append(p.items, items...)
	return start
}

// SetLockMask changes the lock filters of a playlist.
func (s *MockPlaylistStore) SetLockMask(id string, mask models.LockMask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[id].mask = mask
}

func (s *MockPlaylistStore) get(id string) (*mockPlaylist, error) {
	p, ok := s.playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return p, nil
}

func (s *MockPlaylistStore) LockMask(id string) (models.LockMask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return p.mask, nil
}

func (s *MockPlaylistStore) Name(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(id)
	if err != nil {
		return "", err
	}
	return p.name, nil
}

func (s *MockPlaylistStore) Items(id string) ([]models.ItemHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]models.ItemHandle(nil), p.items...), nil
}

func (s *MockPlaylistStore) RemoveItems(id string, positions []int) ([]models.ItemHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Removals = append(s.Removals, append([]int(nil), positions...))
	if s.RemoveErr != nil {
		return nil, s.RemoveErr
	}
	p, err := s.get(id)
	if err != nil {
		return nil, err
	}

	drop := make(map[int]bool, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(p.items) {
			return nil, fmt.Errorf("%w: %d", shared.ErrInvalidIndex, pos)
		}
		drop[pos] = true
	}

	var kept, removed []models.ItemHandle
	for i, h := range p.items {
		if drop[i] {
			removed = append(removed, h)
		} else {
			kept = append(kept, h)
		}
	}
	p.items = kept
	return removed, nil
}

// RemovalCount returns the number of RemoveItems calls.
func (s *MockPlaylistStore) RemovalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Removals)
}

// ReportCall is one recorded Report invocation.
type ReportCall struct {
	Playlist string
	Count    int
}

// MockReporter records Report calls.
type MockReporter struct {
	mu    sync.Mutex
	calls []ReportCall
}

func (r *MockReporter) Report(playlistName string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ReportCall{Playlist: playlistName, Count: count})
}

// Calls returns a copy of the recorded calls.
func (r *MockReporter) Calls() []ReportCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReportCall(nil), r.calls...)
}

// MockHistory records created removal runs.
type MockHistory struct {
	mu   sync.Mutex
	Runs []*models.RemovalRun
	Err  error
}

func (h *MockHistory) Create(run *models.RemovalRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.Runs = append(h.Runs, run)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// Location returns the file location of name inside dir.
func Location(dir string, name ...string) string {
	return models.FileScheme + filepath.Join(append([]string{dir}, name...)...)
}

// WriteFile creates a file under dir, making parent folders, and returns its path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
