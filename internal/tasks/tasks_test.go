package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
	mock "github.com/desertthunder/cuefix/internal/testing"
)

func item(loc string) models.ItemHandle {
	return models.ItemHandle{Location: loc}
}

func cueTrack(loc string, n int) models.ItemHandle {
	return models.ItemHandle{Location: loc, Subsong: n}
}

func newTestEngine(meta *mock.MockMetadata, fs *mock.MockFileSystem, workers int) *Engine {
	return NewEngine(meta, fs, EngineOpts{Workers: workers, Logger: shared.NewLogger(nil)})
}

func TestEngineScenarios(t *testing.T) {
	tests := []struct {
		name     string
		handles  []models.ItemHandle
		refs     map[string]string // location -> declared referenced file
		files    []string
		expected map[int]models.RemovalReason
	}{
		{
			name:     "plain file duplicated by a valid cue sheet",
			handles:  []models.ItemHandle{cueTrack("file:///music/album.cue", 1), item("file:///music/track.flac")},
			refs:     map[string]string{"file:///music/album.cue": "track.flac"},
			files:    []string{"file:///music/track.flac"},
			expected: map[int]models.RemovalReason{1: models.ReasonDuplicateOfReference},
		},
		{
			name:     "cue sheet with missing backing file",
			handles:  []models.ItemHandle{cueTrack("file:///music/album.cue", 1)},
			refs:     map[string]string{"file:///music/album.cue": "missing.flac"},
			expected: map[int]models.RemovalReason{0: models.ReasonMissingReference},
		},
		{
			name:     "plain items without cue sheets",
			handles:  []models.ItemHandle{item("file:///music/a.flac"), item("file:///music/b.mp3")},
			files:    []string{"file:///music/a.flac", "file:///music/b.mp3"},
			expected: map[int]models.RemovalReason{},
		},
		{
			name:    "only valid cue sheets",
			handles: []models.ItemHandle{cueTrack("file:///music/a/album.cue", 1), cueTrack("file:///music/b/album.cue", 1)},
			refs: map[string]string{
				"file:///music/a/album.cue": "a.flac",
				"file:///music/b/album.cue": "b.flac",
			},
			files:    []string{"file:///music/a/a.flac", "file:///music/b/b.flac"},
			expected: map[int]models.RemovalReason{},
		},
		{
			name:     "stream items are never evaluated",
			handles:  []models.ItemHandle{cueTrack("file:///music/album.cue", 1), item("http://radio.example/music/track.flac")},
			refs:     map[string]string{"file:///music/album.cue": "track.flac"},
			files:    []string{"file:///music/track.flac"},
			expected: map[int]models.RemovalReason{},
		},
		{
			name:     "referenced file matched ignoring case",
			handles:  []models.ItemHandle{cueTrack("file:///music/album.cue", 1), item("file:///music/track.flac")},
			refs:     map[string]string{"file:///music/album.cue": "Track.FLAC"},
			files:    []string{"file:///music/Track.FLAC"},
			expected: map[int]models.RemovalReason{1: models.ReasonDuplicateOfReference},
		},
		{
			name:     "duplicate listed before its cue sheet",
			handles:  []models.ItemHandle{item("file:///music/track.flac"), cueTrack("file:///music/album.cue", 1)},
			refs:     map[string]string{"file:///music/album.cue": "track.flac"},
			files:    []string{"file:///music/track.flac"},
			expected: map[int]models.RemovalReason{0: models.ReasonDuplicateOfReference},
		},
		{
			name: "plain file of a broken cue sheet is kept",
			handles: []models.ItemHandle{
				cueTrack("file:///music/album.cue", 1),
				item("file:///music/track.flac"),
			},
			refs:     map[string]string{"file:///music/album.cue": "track.flac"},
			expected: map[int]models.RemovalReason{0: models.ReasonMissingReference},
		},
		{
			name: "windows style locations",
			handles: []models.ItemHandle{
				cueTrack(`file://C:\Music\Album\album.cue`, 1),
				item(`file://c:\music\album\CD1.wav`),
			},
			refs:     map[string]string{`file://C:\Music\Album\album.cue`: "cd1.wav"},
			files:    []string{`file://C:\Music\Album\cd1.wav`},
			expected: map[int]models.RemovalReason{1: models.ReasonDuplicateOfReference},
		},
		{
			name:     "empty referenced file is not cue derived",
			handles:  []models.ItemHandle{cueTrack("file:///music/album.cue", 1)},
			refs:     map[string]string{"file:///music/album.cue": ""},
			expected: map[int]models.RemovalReason{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := mock.NewMockMetadata()
			for loc, file := range tt.refs {
				meta.SetReference(loc, file)
			}
			fs := mock.NewMockFileSystem(tt.files...)

			plan, err := newTestEngine(meta, fs, 4).Run(context.Background(), "Default", tt.handles, nil)
			require.NoError(t, err)

			assert.Equal(t, len(tt.expected), plan.Count)
			assert.Len(t, plan.Indices, plan.Count)
			assert.Equal(t, tt.expected, plan.Reasons)
			assert.Equal(t, "Default", plan.Playlist)
			assert.NotEmpty(t, plan.RunID)
		})
	}
}

func TestEngineQueriesOnlyEligibleItems(t *testing.T) {
	meta := mock.NewMockMetadata()
	fs := mock.NewMockFileSystem()

	handles := []models.ItemHandle{
		item("https://stream.example/live"),
		item("file:///music/a.flac"),
		item("cdda://1"),
		item("file://"),
	}

	plan, err := newTestEngine(meta, fs, 1).Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	require.Equal(t, 1, meta.CallCount())
	assert.Equal(t, []models.ItemHandle{item("file:///music/a.flac")}, meta.Calls[0])
	assert.Empty(t, fs.CheckedLocations())
}

func TestEngineNoMetadataCallForIneligibleBatch(t *testing.T) {
	meta := mock.NewMockMetadata()
	plan, err := newTestEngine(meta, mock.NewMockFileSystem(), 1).Run(context.Background(), "Default", []models.ItemHandle{item("http://a")}, nil)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 0, meta.CallCount())
}

func TestEngineCheckFailedTreatedAsMissing(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.SetReference("file:///music/album.cue", "track.flac")
	fs := mock.NewMockFileSystem("file:///music/track.flac")
	fs.Failures["file:///music/track.flac"] = errors.New("permission denied")

	handles := []models.ItemHandle{cueTrack("file:///music/album.cue", 1), item("file:///music/track.flac")}
	plan, err := newTestEngine(meta, fs, 2).Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, plan.Indices)
	assert.Equal(t, models.ReasonMissingReference, plan.Reasons[0])
}

func TestEngineCueItemIsNeverADuplicate(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.SetReference("file:///music/a.cue", "b.cue")
	meta.SetReference("file:///music/b.cue", "track.flac")
	fs := mock.NewMockFileSystem("file:///music/b.cue", "file:///music/track.flac")

	handles := []models.ItemHandle{cueTrack("file:///music/a.cue", 1), cueTrack("file:///music/b.cue", 1)}
	plan, err := newTestEngine(meta, fs, 2).Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestEngineIdempotent(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.SetReference("file:///music/one.cue", "one.flac")
	meta.SetReference("file:///music/two.cue", "two.flac")
	fs := mock.NewMockFileSystem("file:///music/one.flac")

	handles := []models.ItemHandle{
		cueTrack("file:///music/one.cue", 1),
		cueTrack("file:///music/one.cue", 2),
		cueTrack("file:///music/two.cue", 1),
		item("file:///music/one.flac"),
		item("file:///music/two.flac"),
		item("file:///music/other.flac"),
	}

	engine := newTestEngine(meta, fs, 3)
	first, err := engine.Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, first.Indices)
	assert.Equal(t, first.Indices, second.Indices)
	assert.Equal(t, first.Reasons, second.Reasons)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestEngineWorkerCountDoesNotChangeResult(t *testing.T) {
	meta := mock.NewMockMetadata()
	var handles []models.ItemHandle
	var files []string
	for i := range 40 {
		cue := fmt.Sprintf("file:///music/%02d/album.cue", i)
		meta.SetReference(cue, "audio.flac")
		handles = append(handles, cueTrack(cue, 1), item(fmt.Sprintf("file:///music/%02d/AUDIO.flac", i)))
		if i%3 != 0 {
			files = append(files, fmt.Sprintf("file:///music/%02d/audio.flac", i))
		}
	}
	fs := mock.NewMockFileSystem(files...)

	sequential, err := newTestEngine(meta, fs, 1).Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)
	parallel, err := newTestEngine(meta, fs, 16).Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)

	assert.Equal(t, sequential.Indices, parallel.Indices)
	assert.Equal(t, sequential.Reasons, parallel.Reasons)
	assert.Equal(t, 40, sequential.Count)

	for idx, reason := range sequential.Reasons {
		if idx%2 == 0 {
			assert.Equal(t, models.ReasonMissingReference, reason, "cue item %d", idx)
		} else {
			assert.Equal(t, models.ReasonDuplicateOfReference, reason, "plain item %d", idx)
		}
	}
}

func TestEngineScanWaitsForIndex(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.SetReference("file:///music/album.cue", "track.flac")
	fs := mock.NewMockFileSystem("file:///music/track.flac")
	fs.OnCheck = func(ctx context.Context, location string) {
		time.Sleep(20 * time.Millisecond)
	}

	handles := []models.ItemHandle{item("file:///music/track.flac"), cueTrack("file:///music/album.cue", 1)}
	plan, err := newTestEngine(meta, fs, 4).Run(context.Background(), "Default", handles, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, plan.Indices)
}

func TestEngineCancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		meta := mock.NewMockMetadata()
		plan, err := newTestEngine(meta, mock.NewMockFileSystem(), 1).Run(ctx, "Default", []models.ItemHandle{item("file:///a.flac")}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, plan)
		assert.Equal(t, 0, meta.CallCount())
	})

	t.Run("during index pass", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		meta := mock.NewMockMetadata()
		var handles []models.ItemHandle
		for i := range 10 {
			cue := fmt.Sprintf("file:///music/%d.cue", i)
			meta.SetReference(cue, "missing.flac")
			handles = append(handles, cueTrack(cue, 1))
		}
		fs := mock.NewMockFileSystem()
		fs.OnCheck = func(context.Context, string) { cancel() }

		plan, err := newTestEngine(meta, fs, 1).Run(ctx, "Default", handles, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, plan)
	})

	t.Run("metadata query cancelled", func(t *testing.T) {
		meta := mock.NewMockMetadata()
		meta.Err = context.DeadlineExceeded

		plan, err := newTestEngine(meta, mock.NewMockFileSystem(), 1).Run(context.Background(), "Default", []models.ItemHandle{item("file:///a.flac")}, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, plan)
	})
}

func TestEngineMetadataFailure(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.Err = errors.New("backend down")

	plan, err := newTestEngine(meta, mock.NewMockFileSystem(), 1).Run(context.Background(), "Default", []models.ItemHandle{item("file:///a.flac")}, nil)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Nil(t, plan)
}

func TestEngineMissingCollaborators(t *testing.T) {
	_, err := NewEngine(nil, nil, EngineOpts{}).Run(context.Background(), "Default", nil, nil)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestEngineProgress(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.SetReference("file:///music/album.cue", "track.flac")
	fs := mock.NewMockFileSystem("file:///music/track.flac")

	progress := make(chan ProgressUpdate, 16)
	_, err := newTestEngine(meta, fs, 1).Run(context.Background(), "Default", []models.ItemHandle{cueTrack("file:///music/album.cue", 1)}, progress)
	require.NoError(t, err)
	close(progress)

	var phases []Phase
	for u := range progress {
		phases = append(phases, u.Phase)
	}
	assert.Equal(t, []Phase{Resolve, Index, Scan, Plan}, phases)
}

func TestReferencedFileSet(t *testing.T) {
	set := NewReferencedFileSet()

	assert.True(t, set.Add("file:///Music/Track.flac"))
	assert.False(t, set.Add("file:///music/track.FLAC"))
	assert.True(t, set.Add("file:///music/other.flac"))

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("FILE:///MUSIC/TRACK.FLAC"))
	assert.False(t, set.Contains("file:///music/track.wav"))
	assert.Equal(t, []string{"file:///Music/Track.flac", "file:///music/other.flac"}, set.Paths())
}

func TestEngineLogsIndexedFiles(t *testing.T) {
	meta := mock.NewMockMetadata()
	meta.SetReference("file:///music/album.cue", "Track.flac")
	fs := mock.NewMockFileSystem("file:///music/Track.flac")

	var buf bytes.Buffer
	logger := shared.NewLogger(&buf)
	shared.SetLogLevel(logger, log.DebugLevel)

	engine := NewEngine(meta, fs, EngineOpts{Workers: 1, Logger: logger})
	_, err := engine.Run(context.Background(), "Default", []models.ItemHandle{cueTrack("file:///music/album.cue", 1)}, nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "indexed backing files")
	assert.Contains(t, buf.String(), "file:///music/Track.flac")
}

func TestReferencedFileSetConcurrentAdd(t *testing.T) {
	set := NewReferencedFileSet()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set.Add(fmt.Sprintf("file:///music/%d.flac", i%25))
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, set.Len())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "resolve", Resolve.String())
	assert.Equal(t, "sweep", Sweep.String())
	assert.Equal(t, "", Phase(99).String())
}
