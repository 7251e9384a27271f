package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/formatter"
	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/repositories"
	"github.com/desertthunder/cuefix/internal/services"
	"github.com/desertthunder/cuefix/internal/shared"
	"github.com/desertthunder/cuefix/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
	styled bool

	db        *sql.DB
	playlists *repositories.PlaylistRepository
	removals  *repositories.RemovalRepository

	meta    services.MetadataService
	fs      services.FileSystem
	library *services.Library
	engine  *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	Styled   bool                     // Color console reports
	DB       *sql.DB                  // Opened from Config.Database.Path when nil
	Metadata services.MetadataService // Defaults to a [services.TagService]
	FS       services.FileSystem      // Defaults to a [services.OSFileSystem]
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: &lockedWriter{w: opts.Output},
		styled: opts.Styled,
		meta:   opts.Metadata,
		fs:     opts.FS,
	}
	if opts.DB != nil {
		r.useDB(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playlistCommand, checkCommand, sweepCommand, watchCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the database connection.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) useDB(db *sql.DB) {
	r.db = db
	r.playlists = repositories.NewPlaylistRepository(db)
	r.removals = repositories.NewRemovalRepository(db)
}

// openLibrary opens the configured database and brings its schema up to date.
func (r *Runner) openLibrary() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.useDB(db)
	return nil
}

// detector builds the metadata reader, filesystem checker, library and engine on first use.
func (r *Runner) detector() (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	if r.meta == nil {
		tags, err := services.NewTagService(services.TagServiceOpts{
			CacheSize: r.config.Metadata.CacheSize,
			ReadTags:  r.config.Metadata.ReadTags,
			Workers:   r.config.Detector.Workers,
			Logger:    shared.WithLogger(r.logger, "component", "metadata"),
		})
		if err != nil {
			return nil, err
		}
		r.meta = tags
	}
	if r.fs == nil {
		r.fs = services.NewOSFileSystem(r.config.Detector.StatRate)
	}
	if r.library == nil {
		r.library = services.NewLibrary(r.config.Watch.Patterns, r.logger)
	}

	r.engine = tasks.NewEngine(r.meta, r.fs, tasks.EngineOpts{
		Workers: r.config.Detector.Workers,
		Logger:  shared.WithLogger(r.logger, "component", shared.ComponentName),
	})
	return r.engine, nil
}

// startFixer starts the mutation host and returns a CueFixer bound to it.
//
// The returned stop func shuts the host down and must be called after
// [tasks.CueFixer.Wait].
func (r *Runner) startFixer(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.CueFixer, func(), error) {
	if err := r.openLibrary(); err != nil {
		return nil, nil, err
	}
	engine, err := r.detector()
	if err != nil {
		return nil, nil, err
	}

	hostCtx, cancel := context.WithCancel(ctx)
	host := tasks.NewHost(16, r.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = host.Run(hostCtx)
	}()

	fixer := tasks.NewCueFixer(engine, r.playlists, host, tasks.CueFixerOpts{
		Scope:    r.config.Detector.Scope,
		Lock:     shared.NewFileLock(r.config.LibraryLockPath()),
		History:  r.removals,
		Reporter: formatter.NewConsoleReporter(r.output, r.styled),
		Progress: progress,
		Logger:   r.logger,
	})

	stop := func() {
		cancel()
		<-done
	}
	return fixer, stop, nil
}

// lookupPlaylist finds a playlist by name.
func (r *Runner) lookupPlaylist(name string) (*models.PersistedPlaylist, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	if err := r.openLibrary(); err != nil {
		return nil, err
	}
	return r.playlists.GetByName(name)
}

// reportOutcomes prints failures and skips of background evaluations.
//
// Applied plans are announced by the console reporter.
func (r *Runner) reportOutcomes(outcomes []tasks.Outcome) {
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			r.writePlain("%s %s: %v\n", formatter.Error("✗"), out.Playlist, out.Err)
		case out.Skipped == "locked":
			r.writePlain("%s\n", formatter.Help(fmt.Sprintf("%s is locked against removal, not checked", out.Playlist)))
		case out.Plan.Empty():
			r.logger.Debug("nothing to remove", "playlist", out.Playlist)
		}
	}
}

// drainProgress prints progress updates until the channel is closed.
func (r *Runner) drainProgress(progress <-chan tasks.ProgressUpdate, verbose bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.Sweep:
				r.writePlain("%s\n", update.Message)
			case tasks.Apply:
				r.logger.Debug(update.Message)
			case tasks.Index:
				if verbose {
					r.writePlain("   %s\n", update.Message)
				}
			default:
				if verbose {
					r.writePlain("%s\n", update.Message)
				}
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", formatter.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}

// lockedWriter serializes writes from the progress printer and the mutation host.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
