// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// playlistCommand handles library playlist operations
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Manage library playlists",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an empty playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "lock",
						Usage: "Comma separated lock filters (add, remove, reorder, replace, rename, remove_playlist, default_action)",
					},
				},
				Action: r.PlaylistCreate,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "locked",
						Usage: "Only playlists locked against removal",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistList,
			},
			{
				Name:  "show",
				Usage: "Show the items of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PlaylistShow,
			},
			{
				Name:  "lock",
				Usage: "Set the lock filters of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "filters",
						Usage: "Comma separated lock filters",
						Value: "remove",
					},
				},
				Action: r.PlaylistLock,
			},
			{
				Name:  "unlock",
				Usage: "Clear every lock filter of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.PlaylistUnlock,
			},
			{
				Name:  "delete",
				Usage: "Delete a playlist and its items",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.PlaylistDelete,
			},
			{
				Name:      "add",
				Usage:     "Append files, directories, globs or stream URLs and fix stale cue entries",
				ArgsUsage: "NAME PATH|GLOB|URL...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print detector progress",
					},
				},
				Action: r.PlaylistAdd,
			},
			{
				Name:      "import",
				Usage:     "Append the entries of an M3U playlist and fix stale cue entries",
				ArgsUsage: "NAME FILE.m3u",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print detector progress",
					},
				},
				Action: r.PlaylistImport,
			},
		},
	}
}

// checkCommand runs the detector without touching any playlist
func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Dry run: print the entries a playlist of PATHs would lose",
		ArgsUsage: "PATH|GLOB|URL...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (txt, csv, json)",
				Value:   "txt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the plan to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Playlist name used in the report",
				Value: "check",
			},
		},
		Action: r.Check,
	}
}

// sweepCommand re-evaluates whole playlists
func sweepCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sweep",
		Usage:     "Evaluate whole playlists and remove stale cue entries",
		ArgsUsage: "[NAME...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Playlists evaluated at once (max 8)",
				Value:   2,
			},
		},
		Action: r.Sweep,
	}
}

// watchCommand adds new files in a directory to a playlist
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a directory and add new media files to a playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "dir"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist receiving the new files",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "pattern",
				Usage: "Doublestar pattern selecting files (defaults to watch.patterns)",
			},
		},
		Action: r.Watch,
	}
}

// historyCommand lists applied removal runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show removals applied by Cue Fix",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only runs of this playlist",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
