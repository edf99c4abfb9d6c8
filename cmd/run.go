package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/desertthunder/rsc/internal/metrics"
	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/repositories"
	"github.com/desertthunder/rsc/internal/server"
	"github.com/desertthunder/rsc/internal/services"
	"github.com/desertthunder/rsc/internal/shared"
	"github.com/desertthunder/rsc/internal/tasks"
	"github.com/desertthunder/rsc/internal/ui"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Run collects recent songs into a new playlist.
//
// Only one run may be active per database: a second process fails with [shared.ErrAlreadyRunning].
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	lock := flock.New(lockPath(r.config.Database.Path))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: another rsc run is using %s", shared.ErrAlreadyRunning, r.config.Database.Path)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock", "error", err)
		}
	}()

	req, err := r.runRequest(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDB()
	if err != nil {
		return err
	}
	creds := repositories.NewCredentialRepository(db)

	cred, err := creds.Load(ctx)
	if err != nil {
		return err
	}
	req.Credential = cred

	lib, err := r.runLibrary(ctx, creds, cred)
	if err != nil {
		return err
	}

	if addr := r.metricsAddr(cmd); addr != "" {
		stop := r.serveMetrics(ctx, addr)
		defer stop()
	}

	useTUI := !cmd.Bool("plain") && isTerminal(r.output)

	logger := r.logger
	if useTUI {
		logPath := filepath.Join(filepath.Dir(r.config.Database.Path), "rsc.log")
		if fileLogger, err := shared.NewFileLogger(logPath); err == nil {
			fileLogger.SetLevel(r.logger.GetLevel())
			logger = fileLogger
		} else {
			r.logger.Warn("failed to create file logger, progress screen disabled", "error", err)
			useTUI = false
		}
	}

	policy := tasks.DefaultRetryPolicy()
	policy.Delay = r.config.Pipeline.RetryDelay()
	if n := r.config.Pipeline.MaxRetries; n > 0 {
		policy.MaxAttempts = n + 1
	}

	collector := tasks.NewCollector(tasks.CollectorOpts{
		Library: lib,
		Events:  repositories.NewEventRepository(db),
		Runs:    repositories.NewRunRepository(db),
		Spacing: r.config.Pipeline.Spacing(),
		Retry:   policy,
		Logger:  logger,
	})

	var result *tasks.RunResult
	if useTUI {
		result, err = ui.RunProgram(ctx, req.Title, func(ctx context.Context, sink tasks.ProgressSink) (*tasks.RunResult, error) {
			return collector.Run(ctx, req, sink)
		}, r.output)
	} else {
		result, err = collector.Run(ctx, req, tasks.NewLogSink(logger))
	}

	if err != nil {
		if tasks.IsAuthError(err) || errors.Is(err, shared.ErrAlreadyRunning) {
			return err
		}
		if result != nil && result.RolledBack {
			r.logger.Warn("the partially filled playlist was removed", "run_id", result.RunID)
		}
		return fmt.Errorf("run failed, see log for details: %w", err)
	}

	if !useTUI {
		r.writePlain("✓ Added %d songs from %d playlists to %q in %s\n",
			result.TracksWritten, result.PlaylistsAccepted, req.Title, tasks.ReadableDuration(result.Elapsed()))
	}
	return nil
}

// runRequest reads the title, description and filter toggles from flags, then optionally from the form.
func (r *Runner) runRequest(cmd *cli.Command) (tasks.RunRequest, error) {
	req := tasks.RunRequest{
		Options:     models.DefaultFilterOptions(),
		Title:       r.config.Playlist.Title,
		Description: r.config.Playlist.Description,
		ClientInfo:  clientInfo(),
	}
	if t := cmd.String("title"); t != "" {
		req.Title = t
	}
	if d := cmd.String("description"); d != "" {
		req.Description = d
	}
	for _, key := range models.OptionKeys() {
		req.Options.Set(key, cmd.Bool(optionFlag(key)))
	}

	if cmd.Bool("interactive") {
		prompt := ui.NewOptionsPrompt(req.Options, req.Title)
		if err := prompt.Run(); err != nil {
			return req, err
		}
		req.Options = prompt.Options()
		req.Title = prompt.Title()
	}

	if req.Title == "" {
		return req, fmt.Errorf("%w: playlist title cannot be empty", shared.ErrInvalidArgument)
	}
	return req, nil
}

// runLibrary returns the injected library or a Spotify client bound to cred.
// Tokens refreshed during the run are written back to the credential store.
func (r *Runner) runLibrary(ctx context.Context, creds *repositories.CredentialRepository, cred models.Credential) (services.Library, error) {
	if r.library != nil {
		return r.library, nil
	}

	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}

	saveCtx := context.WithoutCancel(ctx)
	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := creds.Save(saveCtx, services.CredentialFromToken(token, cred.UserID)); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
			return
		}
		r.logger.Debug("refreshed access token saved", "expires", token.Expiry)
	})

	if err := svc.Authenticate(ctx, cred); err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *Runner) metricsAddr(cmd *cli.Command) string {
	if addr := cmd.String("metrics-addr"); addr != "" {
		return addr
	}
	return r.config.Metrics.Addr
}

// serveMetrics exposes /metrics until the returned stop function is called.
func (r *Runner) serveMetrics(ctx context.Context, addr string) func() {
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handle(http.MethodGet, "/metrics", metrics.Handler())

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx, addr, router, nil); err != nil {
			r.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	r.logger.Info("serving metrics", "addr", addr)

	return func() {
		cancel()
		<-done
	}
}

// lockPath is the run lock file kept next to the database.
func lockPath(dbPath string) string {
	if dbPath == "" || dbPath == ":memory:" {
		return filepath.Join(os.TempDir(), "rsc.lock")
	}
	return dbPath + ".lock"
}

func clientInfo() string {
	return fmt.Sprintf("rsc/%s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
