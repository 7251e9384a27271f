// Package services implements the collaborators the cue fix detector consumes.
//
// # Collaborator Interfaces
//
// The detector never reaches for ambient host state. It is handed:
//   - [MetadataService] : one bulk query per batch returning optional [models.InfoRecord]s
//   - [FileSystem] : existence checks that never fail, reporting an [ExistResult] instead
//
// # Tag Reader
//
// [TagService] implements MetadataService on local files:
//   - Cue virtual tracks: the cue sheet is parsed (and cached) and the FILE the
//     track belongs to is exposed as the referenced_file info field
//   - FLAC: Vorbis comments via go-flac / flacvorbis
//   - MP3: ID3v2 frames via id3v2
//
// Records are cached in an LRU keyed by path, size and modification time.
//
// # Filesystem
//
// [OSFileSystem] stats paths through an optional rate limiter so large batches
// on network shares do not flood the server. Permission and I/O errors become
// [StatusCheckFailed] and are treated as "does not exist" by the detector.
//
// # Library Expansion
//
// [Library] turns CLI inputs (paths, doublestar globs, M3U files, stream URLs)
// into [models.ItemHandle]s, expanding each cue sheet into one handle per track.
package services
