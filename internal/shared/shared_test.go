package shared

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestDirectoryOf(t *testing.T) {
	tc := []struct {
		name string
		loc  string
		want string
	}{
		{name: "unix location", loc: "file:///music/album/disc.cue", want: "file:///music/album"},
		{name: "windows location", loc: `file://C:\Music\Album\disc.cue`, want: `file://C:\Music\Album`},
		{name: "root file", loc: "file:///disc.cue", want: "file:///"},
		{name: "no separator after scheme", loc: "file://disc.cue", want: "file://"},
		{name: "plain path", loc: "/music/a.flac", want: "/music"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirectoryOf(tt.loc); got != tt.want {
				t.Errorf("DirectoryOf(%q) = %q, want %q", tt.loc, got, tt.want)
			}
		})
	}
}

func TestJoinPath(t *testing.T) {
	tc := []struct {
		name string
		dir  string
		file string
		want string
	}{
		{name: "unix", dir: "file:///music/album", file: "disc.flac", want: "file:///music/album/disc.flac"},
		{name: "windows", dir: `file://C:\Music`, file: "disc.flac", want: `file://C:\Music\disc.flac`},
		{name: "trailing separator", dir: "file:///", file: "disc.flac", want: "file:///disc.flac"},
		{name: "leading separator in name", dir: "file:///music", file: "/disc.flac", want: "file:///music/disc.flac"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinPath(tt.dir, tt.file); got != tt.want {
				t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.dir, tt.file, got, tt.want)
			}
		})
	}
}

func TestLocations(t *testing.T) {
	t.Run("LocationToPath", func(t *testing.T) {
		p, err := LocationToPath("file:///music/a.flac")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != "/music/a.flac" {
			t.Errorf("got %q", p)
		}

		for _, loc := range []string{"http://radio.example/stream", "file://", ""} {
			if _, err := LocationToPath(loc); !errors.Is(err, ErrInvalidLocation) {
				t.Errorf("LocationToPath(%q) expected ErrInvalidLocation, got %v", loc, err)
			}
		}
	})

	t.Run("PathToLocation", func(t *testing.T) {
		dir := t.TempDir()
		loc, err := PathToLocation(filepath.Join(dir, "a.flac"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !IsFileLocation(loc) || !strings.HasSuffix(loc, "a.flac") {
			t.Errorf("unexpected location %q", loc)
		}

		same, err := PathToLocation(loc)
		if err != nil || same != loc {
			t.Errorf("location input should pass through, got %q, %v", same, err)
		}
	})

	t.Run("FoldPath", func(t *testing.T) {
		tests := []struct {
			a, b  string
			equal bool
		}{
			{"file:///Music/Track.FLAC", "file:///music/track.flac", true},
			{"file:///Musik/CAFÉ.flac", "file:///musik/café.flac", true},
			{"file:///music/a.flac", "file:///music/b.flac", false},
			{"file:///Straße/a.flac", "file:///STRASSE/a.flac", false},
		}
		for _, tt := range tests {
			if got := FoldPath(tt.a) == FoldPath(tt.b); got != tt.equal {
				t.Errorf("FoldPath(%q) == FoldPath(%q) is %v, expected %v", tt.a, tt.b, got, tt.equal)
			}
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("writes to provided writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		WithLogger(logger, "run_id", "abc").Info("evaluated")

		out := buf.String()
		if !strings.Contains(out, "evaluated") || !strings.Contains(out, "run_id=abc") {
			t.Errorf("unexpected log output: %s", out)
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		lvl, err := ParseLogLevel("DEBUG")
		if err != nil || lvl != log.DebugLevel {
			t.Errorf("expected debug level, got %v, %v", lvl, err)
		}
		lvl, err = ParseLogLevel("")
		if err != nil || lvl != log.InfoLevel {
			t.Errorf("expected info level default, got %v, %v", lvl, err)
		}
		if _, err := ParseLogLevel("chatty"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b || len(a) != 36 {
			t.Errorf("unexpected ids %q %q", a, b)
		}
	})
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "library.lock")

	first := NewFileLock(path)
	if err := first.Lock(context.Background()); err != nil {
		t.Fatalf("failed to lock: %v", err)
	}

	second := NewFileLock(path)
	ok, err := second.TryLock()
	if err != nil {
		t.Fatalf("TryLock error: %v", err)
	}
	if ok {
		t.Error("second lock should not be acquired while the first is held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("failed to unlock: %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Errorf("second unlock should be a no-op: %v", err)
	}

	ok, err = second.TryLock()
	if err != nil || !ok {
		t.Errorf("expected lock after release, got %v, %v", ok, err)
	}
	_ = second.Unlock()
}
