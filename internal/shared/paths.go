package shared

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/cuefix/internal/models"
)

// IsFileLocation reports whether loc uses the local file scheme.
func IsFileLocation(loc string) bool {
	return strings.HasPrefix(loc, models.FileScheme)
}

// LocationToPath strips the file scheme from loc.
func LocationToPath(loc string) (string, error) {
	if !IsFileLocation(loc) {
		return "", fmt.Errorf("%w: %q is not a local file", ErrInvalidLocation, loc)
	}
	p := strings.TrimPrefix(loc, models.FileScheme)
	if p == "" {
		return "", fmt.Errorf("%w: empty path in %q", ErrInvalidLocation, loc)
	}
	return p, nil
}

// PathToLocation turns a filesystem path into an absolute file location.
func PathToLocation(p string) (string, error) {
	if IsFileLocation(p) {
		return p, nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	return models.FileScheme + abs, nil
}

// DirectoryOf returns loc up to, not including, its last path separator.
//
// The scheme prefix is never split.
func DirectoryOf(loc string) string {
	head, tail := splitScheme(loc)
	idx := strings.LastIndexAny(tail, `/\`)
	if idx < 0 {
		return head
	}
	if idx == 0 {
		return head + tail[:1]
	}
	return head + tail[:idx]
}

// JoinPath appends name to dir using the separator dir already uses.
func JoinPath(dir, name string) string {
	sep := "/"
	_, tail := splitScheme(dir)
	if strings.Contains(tail, `\`) && !strings.Contains(tail, "/") {
		sep = `\`
	}
	name = strings.TrimLeft(name, `/\`)
	if strings.HasSuffix(dir, "/") || strings.HasSuffix(dir, `\`) {
		return dir + name
	}
	return dir + sep + name
}

// FoldPath returns the form of p used for case-insensitive path equality.
//
// Each rune is lowered on its own, so multi-rune foldings such as "ß" and
// "ss" stay distinct.
func FoldPath(p string) string {
	return strings.ToLower(p)
}

func splitScheme(loc string) (string, string) {
	if i := strings.Index(loc, "://"); i >= 0 {
		return loc[:i+3], loc[i+3:]
	}
	return "", loc
}
