// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/ui"
	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for the configuration file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a configuration file from the template",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles Spotify authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify login",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize rsc with Spotify in the browser",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: loginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored login",
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the stored refresh token for a new access token",
				Action: r.AuthRefresh,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored login",
				Action: r.AuthLogout,
			},
		},
	}
}

// runCommand collects recent songs into the target playlist
func runCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "title",
			Aliases: []string{"t"},
			Usage:   "Title of the playlist to create (defaults to playlist.title)",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "Description of the playlist to create (defaults to playlist.description)",
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "Choose options and title in a form before running",
		},
		&cli.BoolFlag{
			Name:  "plain",
			Usage: "Log progress instead of drawing the progress screen",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address during the run (defaults to metrics.addr)",
		},
	}
	for _, key := range models.OptionKeys() {
		flags = append(flags, &cli.BoolFlag{
			Name:  optionFlag(key),
			Usage: ui.OptionLabel(key),
		})
	}

	return &cli.Command{
		Name:   "run",
		Usage:  "Collect the songs added in the last two weeks into a new playlist",
		Flags:  flags,
		Action: r.Run,
	}
}

// historyCommand lists previous runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show previous runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show (0 for all)",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: csv or markdown",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the export to a file instead of stdout",
			},
		},
		Action: r.History,
	}
}

// optionsCommand lists the filter toggles accepted by run
func optionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "options",
		Usage:  "List the filter options accepted by run",
		Action: r.Options,
	}
}

// optionFlag converts an option key to its flag name.
func optionFlag(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
