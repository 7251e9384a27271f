package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/charmbracelet/log"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/cuefix/internal/cuesheet"
	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Tag field names used in [models.InfoRecord.Meta].
const (
	TagTitle  = "title"
	TagArtist = "artist"
	TagAlbum  = "album"
)

// Info field names besides [models.InfoReferencedFile].
const (
	InfoCodec    = "codec"
	InfoCueTrack = "cue_track"
)

// TagServiceOpts configures a [TagService].
type TagServiceOpts struct {
	CacheSize int  // LRU capacity for records and parsed cue sheets, 0 disables caching
	ReadTags  bool // Read FLAC/MP3 tags for plain files
	Workers   int  // Concurrent readers, defaults to GOMAXPROCS
	Logger    *log.Logger
}

// TagService implements [MetadataService] by reading local files.
type TagService struct {
	records  *lru.Cache[string, *models.InfoRecord]
	sheets   *lru.Cache[string, *cuesheet.Sheet]
	readTags bool
	workers  int
	logger   *log.Logger
}

// NewTagService creates a TagService.
func NewTagService(opts TagServiceOpts) (*TagService, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	svc := &TagService{readTags: opts.ReadTags, workers: opts.Workers, logger: opts.Logger}

	if opts.CacheSize > 0 {
		records, err := lru.New[string, *models.InfoRecord](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create record cache: %w", err)
		}
		sheets, err := lru.New[string, *cuesheet.Sheet](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create cue sheet cache: %w", err)
		}
		svc.records = records
		svc.sheets = sheets
	}

	return svc, nil
}

// QueryBulk reads metadata for every handle concurrently.
func (s *TagService) QueryBulk(ctx context.Context, items []models.ItemHandle) ([]*models.InfoRecord, error) {
	out := make([]*models.InfoRecord, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.query(item)
			if err != nil {
				s.logger.Debug("no metadata", "location", item.Location, "subsong", item.Subsong, "error", err)
				return nil
			}
			out[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// query returns the record for one handle, nil when there is nothing to report.
func (s *TagService) query(item models.ItemHandle) (*models.InfoRecord, error) {
	if !shared.IsFileLocation(item.Location) {
		return nil, nil
	}
	path, err := shared.LocationToPath(item.Location)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	stamp := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	key := stamp + "|" + strconv.Itoa(item.Subsong)

	if s.records != nil {
		if rec, ok := s.records.Get(key); ok {
			return rec, nil
		}
	}

	var rec *models.InfoRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		rec, err = s.cueRecord(path, stamp, item.Subsong)
	case ".flac":
		rec, err = s.flacRecord(path)
	case ".mp3":
		rec, err = s.mp3Record(path)
	default:
		rec = newRecord(strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), ".")))
	}
	if err != nil {
		return nil, err
	}

	if s.records != nil && rec != nil {
		s.records.Add(key, rec)
	}
	return rec, nil
}

func (s *TagService) cueRecord(path, stamp string, subsong int) (*models.InfoRecord, error) {
	var sheet *cuesheet.Sheet
	if s.sheets != nil {
		sheet, _ = s.sheets.Get(stamp)
	}
	if sheet == nil {
		parsed, err := cuesheet.ParseFile(path)
		if err != nil {
			return nil, err
		}
		sheet = parsed
		if s.sheets != nil {
			s.sheets.Add(stamp, sheet)
		}
	}

	track, ok := sheet.Track(subsong)
	if !ok {
		return nil, fmt.Errorf("%w: no track %d in %s", shared.ErrInvalidCueSheet, subsong, path)
	}

	rec := newRecord("CUE")
	rec.Info[models.InfoReferencedFile] = track.File
	rec.Info[InfoCueTrack] = strconv.Itoa(track.Number)
	rec.Meta[TagTitle] = track.Title
	rec.Meta[TagArtist] = track.Performer
	if rec.Meta[TagArtist] == "" {
		rec.Meta[TagArtist] = sheet.Performer
	}
	rec.Meta[TagAlbum] = sheet.Title
	return rec, nil
}

// flacRecord reads the Vorbis comment of a FLAC file. go-flac indexes into
// block payloads without bounds checks, so a malformed stream is reported as
// an error instead of a panic.
func (s *TagService) flacRecord(path string) (rec *models.InfoRecord, err error) {
	rec = newRecord("FLAC")
	if !s.readTags {
		return rec, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}
	defer fh.Close()
	defer func() {
		if p := recover(); p != nil {
			rec, err = nil, fmt.Errorf("malformed FLAC stream: %v", p)
		}
	}()

	f, err := flac.ParseMetadata(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC metadata: %w", err)
	}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vorbis comment: %w", err)
		}
		for key, field := range map[string]string{
			TagTitle:  flacvorbis.FIELD_TITLE,
			TagArtist: flacvorbis.FIELD_ARTIST,
			TagAlbum:  flacvorbis.FIELD_ALBUM,
		} {
			if values, err := cmt.Get(field); err == nil && len(values) > 0 {
				rec.Meta[key] = values[0]
			}
		}
		break
	}
	return rec, nil
}

func (s *TagService) mp3Record(path string) (*models.InfoRecord, error) {
	rec := newRecord("MP3")
	if !s.readTags {
		return rec, nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Title", "Artist", "Album"}})
	if err != nil {
		return nil, fmt.Errorf("failed to read ID3 tag: %w", err)
	}
	defer tag.Close()

	rec.Meta[TagTitle] = tag.Title()
	rec.Meta[TagArtist] = tag.Artist()
	rec.Meta[TagAlbum] = tag.Album()
	return rec, nil
}

func newRecord(codec string) *models.InfoRecord {
	return &models.InfoRecord{
		Info: map[string]string{InfoCodec: codec},
		Meta: map[string]string{},
	}
}
