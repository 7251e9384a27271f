package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/cuefix/internal/cuesheet"
	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Library turns user inputs into playlist item handles.
type Library struct {
	patterns []string
	logger   *log.Logger
}

// NewLibrary creates a Library. patterns select files when a directory is given.
func NewLibrary(patterns []string, logger *log.Logger) *Library {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Library{patterns: patterns, logger: logger}
}

// Expand resolves paths, directories, doublestar globs and stream URLs into handles.
//
// Inputs keep their order; matches of one glob or directory are sorted.
// Cue sheets become one handle per track.
func (l *Library) Expand(ctx context.Context, inputs []string) ([]models.ItemHandle, error) {
	var handles []models.ItemHandle

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if isRemote(input) {
			handles = append(handles, models.ItemHandle{Location: input})
			continue
		}

		paths, err := l.resolve(input)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			expanded, err := l.handlesFor(p)
			if err != nil {
				return nil, err
			}
			handles = append(handles, expanded...)
		}
	}

	return handles, nil
}

// MatchesAny reports whether path matches one of the doublestar patterns.
func MatchesAny(patterns []string, path string) bool {
	normalized := filepath.ToSlash(path)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if ok, err := doublestar.Match(p, normalized); err == nil && ok {
			return true
		}
		// Patterns are written relative to a root, so also try the base name
		// for patterns without directory parts.
		if !strings.Contains(p, "/") {
			if ok, err := doublestar.Match(p, filepath.Base(normalized)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// ReadM3U returns the entries of an M3U playlist as absolute paths or URLs.
//
// Relative entries are resolved against the playlist's folder.
func ReadM3U(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	baseDir := filepath.Dir(path)
	var entries []string

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case isRemote(line), shared.IsFileLocation(line):
		case filepath.IsAbs(line):
			line = filepath.Clean(line)
		default:
			line = filepath.Join(baseDir, line)
		}
		entries = append(entries, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading playlist: %w", err)
	}
	return entries, nil
}

// resolve expands one local input into file paths.
func (l *Library) resolve(input string) ([]string, error) {
	if shared.IsFileLocation(input) {
		p, err := shared.LocationToPath(input)
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}

	if hasMeta(input) {
		matches, err := doublestar.FilepathGlob(input, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", shared.ErrInvalidInput, input, err)
		}
		sort.Strings(matches)
		return matches, nil
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	var matches []string
	fsys := os.DirFS(input)
	for _, pattern := range l.patterns {
		found, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", shared.ErrInvalidConfig, pattern, err)
		}
		for _, m := range found {
			matches = append(matches, filepath.Join(input, filepath.FromSlash(m)))
		}
	}
	sort.Strings(matches)
	return dedupe(matches), nil
}

// handlesFor returns the handles one file contributes.
func (l *Library) handlesFor(path string) ([]models.ItemHandle, error) {
	loc, err := shared.PathToLocation(path)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(filepath.Ext(path), ".cue") {
		return []models.ItemHandle{{Location: loc}}, nil
	}

	sheet, err := cuesheet.ParseFile(path)
	if err != nil {
		l.logger.Warn("skipping unreadable cue sheet", "path", path, "error", err)
		return nil, nil
	}

	handles := make([]models.ItemHandle, 0, len(sheet.Tracks))
	for _, t := range sheet.Tracks {
		handles = append(handles, models.ItemHandle{Location: loc, Subsong: t.Number})
	}
	return handles, nil
}

func isRemote(s string) bool {
	i := strings.Index(s, "://")
	return i > 0 && !shared.IsFileLocation(s)
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}
