// Package cuesheet reads CDRWIN-style cue sheets.
//
// Only the commands needed to map virtual tracks onto their backing audio
// files are interpreted: FILE, TRACK, INDEX, TITLE, PERFORMER and REM.
// Everything else is skipped.
package cuesheet

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/desertthunder/cuefix/internal/shared"
)

// FramesPerSecond is the cue sheet time base (CD sectors).
const FramesPerSecond = 75

// Sheet is a parsed cue sheet.
type Sheet struct {
	Title     string
	Performer string
	Rem       map[string]string
	Files     []File
	Tracks    []Track
}

// File is one FILE command.
type File struct {
	Name string // As written, relative to the cue sheet's folder
	Type string // WAVE, MP3, AIFF, BINARY, ...
}

// Track is one TRACK command and the commands nested under it.
type Track struct {
	Number    int
	Type      string
	Title     string
	Performer string
	File      string // Name of the FILE the track belongs to
	Indexes   []Index
}

// Index is an INDEX point.
type Index struct {
	Number int
	Frames int
}

// Offset returns the index position as a duration.
func (i Index) Offset() time.Duration {
	return time.Duration(i.Frames) * time.Second / FramesPerSecond
}

// Track returns the track with the given number.
func (s *Sheet) Track(number int) (Track, bool) {
	for _, t := range s.Tracks {
		if t.Number == number {
			return t, true
		}
	}
	return Track{}, false
}

// ParseFile opens and parses the cue sheet at path.
func ParseFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cue sheet: %w", err)
	}
	defer f.Close()

	sheet, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sheet, nil
}

// Parse reads a cue sheet from r.
//
// Sheets that are not valid UTF-8 are decoded as Windows-1252, the code page
// most legacy rippers write.
func Parse(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cue sheet: %w", err)
	}
	data, err = toUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCueSheet, err)
	}

	sheet := &Sheet{Rem: make(map[string]string)}
	scanner := bufio.NewScanner(bytes.NewReader(data))

	var (
		currentFile string
		track       *Track
		lineNo      int
	)

	flush := func() {
		if track != nil {
			sheet.Tracks = append(sheet.Tracks, *track)
			track = nil
		}
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		fields := splitFields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "REM":
			if len(fields) >= 3 {
				sheet.Rem[strings.ToUpper(fields[1])] = strings.Join(fields[2:], " ")
			}
		case "FILE":
			if len(fields) < 2 || fields[1] == "" {
				return nil, fmt.Errorf("%w: line %d: FILE without name", shared.ErrInvalidCueSheet, lineNo)
			}
			flush()
			f := File{Name: fields[1]}
			if len(fields) >= 3 {
				f.Type = strings.ToUpper(fields[2])
			}
			sheet.Files = append(sheet.Files, f)
			currentFile = f.Name
		case "TRACK":
			if currentFile == "" {
				return nil, fmt.Errorf("%w: line %d: TRACK before FILE", shared.ErrInvalidCueSheet, lineNo)
			}
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: line %d: TRACK without number", shared.ErrInvalidCueSheet, lineNo)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: line %d: bad track number %q", shared.ErrInvalidCueSheet, lineNo, fields[1])
			}
			flush()
			track = &Track{Number: n, File: currentFile}
			if len(fields) >= 3 {
				track.Type = strings.ToUpper(fields[2])
			}
		case "INDEX":
			if track == nil {
				continue
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("%w: line %d: INDEX needs number and time", shared.ErrInvalidCueSheet, lineNo)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad index number %q", shared.ErrInvalidCueSheet, lineNo, fields[1])
			}
			frames, err := parseTime(fields[2])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidCueSheet, lineNo, err)
			}
			track.Indexes = append(track.Indexes, Index{Number: n, Frames: frames})
		case "TITLE":
			if len(fields) < 2 {
				continue
			}
			if track != nil {
				track.Title = fields[1]
			} else {
				sheet.Title = fields[1]
			}
		case "PERFORMER":
			if len(fields) < 2 {
				continue
			}
			if track != nil {
				track.Performer = fields[1]
			} else {
				sheet.Performer = fields[1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cue sheet: %w", err)
	}

	flush()
	return sheet, nil
}

// toUTF8 returns data unchanged when it is valid UTF-8 and decodes it as
// Windows-1252 otherwise.
func toUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(data)
}

// parseTime converts mm:ss:ff into frames.
func parseTime(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad time %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad time %q", s)
		}
		v[i] = n
	}
	if v[1] >= 60 || v[2] >= FramesPerSecond {
		return 0, fmt.Errorf("bad time %q", s)
	}
	return (v[0]*60+v[1])*FramesPerSecond + v[2], nil
}

// splitFields splits a line on whitespace, keeping double-quoted strings whole.
func splitFields(line string) []string {
	var (
		fields  []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t' || r == '\r'):
			if pending {
				fields = append(fields, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		fields = append(fields, cur.String())
	}
	return fields
}
