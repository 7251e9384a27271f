package main

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/desertthunder/cuefix/internal/shared"
	tu "github.com/desertthunder/cuefix/internal/testing"
)

type loopHarness struct {
	events  chan fsnotify.Event
	errs    chan error
	batches chan []string
	dirs    chan string
	done    chan error
	cancel  context.CancelFunc
}

func startLoop(t *testing.T, debounce time.Duration) *loopHarness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHarness{
		events:  make(chan fsnotify.Event),
		errs:    make(chan error),
		batches: make(chan []string, 4),
		dirs:    make(chan string, 4),
		done:    make(chan error, 1),
		cancel:  cancel,
	}

	go func() {
		h.done <- watchLoop(ctx, watchEvents{
			events:   h.events,
			errors:   h.errs,
			debounce: debounce,
			accept:   func(path string) bool { return strings.HasSuffix(path, ".flac") },
			onDir:    func(path string) { h.dirs <- path },
			flush:    func(paths []string) { h.batches <- paths },
			logger:   shared.NewLogger(io.Discard),
		})
	}()
	t.Cleanup(cancel)
	return h
}

func (h *loopHarness) batch(t *testing.T) []string {
	t.Helper()
	select {
	case b := <-h.batches:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestWatchLoop(t *testing.T) {
	t.Run("debounces into one sorted batch", func(t *testing.T) {
		h := startLoop(t, 50*time.Millisecond)

		h.events <- fsnotify.Event{Name: "/m/b.flac", Op: fsnotify.Create}
		h.events <- fsnotify.Event{Name: "/m/a.flac", Op: fsnotify.Create}
		h.events <- fsnotify.Event{Name: "/m/cover.jpg", Op: fsnotify.Create}
		h.events <- fsnotify.Event{Name: "/m/a.flac", Op: fsnotify.Write}

		got := h.batch(t)
		if !reflect.DeepEqual(got, []string{"/m/a.flac", "/m/b.flac"}) {
			t.Errorf("unexpected batch %v", got)
		}
	})

	t.Run("removed files are dropped", func(t *testing.T) {
		h := startLoop(t, 50*time.Millisecond)

		h.events <- fsnotify.Event{Name: "/m/a.flac", Op: fsnotify.Create}
		h.events <- fsnotify.Event{Name: "/m/tmp.flac", Op: fsnotify.Create}
		h.events <- fsnotify.Event{Name: "/m/tmp.flac", Op: fsnotify.Rename}

		got := h.batch(t)
		if !reflect.DeepEqual(got, []string{"/m/a.flac"}) {
			t.Errorf("unexpected batch %v", got)
		}
	})

	t.Run("new directories are reported", func(t *testing.T) {
		h := startLoop(t, time.Hour)
		dir := t.TempDir()

		h.events <- fsnotify.Event{Name: dir, Op: fsnotify.Create}
		select {
		case got := <-h.dirs:
			if got != dir {
				t.Errorf("expected %s, got %s", dir, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for directory")
		}
	})

	t.Run("files inside a moved directory are queued", func(t *testing.T) {
		h := startLoop(t, 50*time.Millisecond)
		album := filepath.Join(t.TempDir(), "Album")
		a := tu.WriteFile(t, album, "t.flac", "audio")
		b := tu.WriteFile(t, filepath.Join(album, "Disc 2"), "u.flac", "audio")
		tu.WriteFile(t, album, "album.cue", "FILE \"t.flac\" WAVE\n")

		h.events <- fsnotify.Event{Name: album, Op: fsnotify.Create}

		if got := <-h.dirs; got != album {
			t.Errorf("expected %s to be watched, got %s", album, got)
		}
		want := []string{a, b}
		sort.Strings(want)
		if got := h.batch(t); !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("errors do not stop the loop", func(t *testing.T) {
		h := startLoop(t, 20*time.Millisecond)

		h.errs <- errors.New("overflow")
		h.events <- fsnotify.Event{Name: "/m/a.flac", Op: fsnotify.Create}

		if got := h.batch(t); len(got) != 1 {
			t.Errorf("unexpected batch %v", got)
		}
	})

	t.Run("closed events flush pending files", func(t *testing.T) {
		h := startLoop(t, time.Hour)

		h.events <- fsnotify.Event{Name: "/m/a.flac", Op: fsnotify.Create}
		close(h.events)

		if got := h.batch(t); !reflect.DeepEqual(got, []string{"/m/a.flac"}) {
			t.Errorf("unexpected batch %v", got)
		}
		if err := <-h.done; err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("cancellation stops the loop", func(t *testing.T) {
		h := startLoop(t, time.Hour)
		h.cancel()

		select {
		case err := <-h.done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
	})
}

func TestExistingFiles(t *testing.T) {
	dir := t.TempDir()
	a := tu.WriteFile(t, dir, "a.flac", "a")

	got := existingFiles([]string{a, filepath.Join(dir, "gone.flac"), dir})
	if !reflect.DeepEqual(got, []string{a}) {
		t.Errorf("expected only %s, got %v", a, got)
	}
}
