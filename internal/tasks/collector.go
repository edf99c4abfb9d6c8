package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rsc/internal/metrics"
	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/services"
	"github.com/desertthunder/rsc/internal/shared"
)

// EventRecorder stores the usage event emitted when a run starts.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event models.RunEvent) error
}

// RunRecorder persists run history. SaveRun is called when a run starts and again when it finishes.
type RunRecorder interface {
	SaveRun(ctx context.Context, record models.RunRecord) error
}

// RunState is the observable state of a [Collector].
type RunState struct {
	Running  bool
	Stage    Stage
	RunID    string
	TargetID string
}

// RunRequest is the input of one run.
type RunRequest struct {
	Credential  models.Credential
	Options     models.FilterOptions
	Title       string
	Description string
	ClientInfo  string
}

// StageTransition records when a run entered a stage.
type StageTransition struct {
	Stage Stage
	At    time.Time
}

// RunResult summarizes a finished run, successful or not.
type RunResult struct {
	RunID             string
	Stage             Stage // StageDone or StageFailed
	Transitions       []StageTransition
	Target            *models.Target
	RolledBack        bool
	PlaylistsScanned  int
	PlaylistsAccepted int
	TracksCollected   int
	TracksFiltered    int
	BatchesPrepared   int
	BatchesWritten    int
	TracksWritten     int
	Estimated         time.Duration
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Elapsed is the wall time of the run.
func (r *RunResult) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record converts the result to its persisted form.
func (r *RunResult) Record(userID string, err error) models.RunRecord {
	rec := models.RunRecord{
		RunID:            r.RunID,
		UserID:           userID,
		Status:           models.RunStatusRunning,
		PlaylistsScanned: r.PlaylistsScanned,
		TracksCollected:  r.TracksCollected,
		TracksWritten:    r.TracksWritten,
		BatchesWritten:   r.BatchesWritten,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
	if r.Target != nil {
		rec.TargetID = r.Target.ID
	}
	switch r.Stage {
	case StageDone:
		rec.Status = models.RunStatusSucceeded
	case StageFailed:
		rec.Status = models.RunStatusFailed
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// CollectorOpts configures a [Collector].
type CollectorOpts struct {
	Library services.Library
	Events  EventRecorder  // optional
	Runs    RunRecorder    // optional
	Spacing shared.Spacing // request spacing per operation kind
	Retry   RetryPolicy    // zero value uses DefaultRetryPolicy
	Logger  *log.Logger    // optional
	Rand    *rand.Rand     // optional shuffle source
	Now     func() time.Time
}

// Collector runs the collection pipeline: fetch playlists, fetch their recent tracks, filter,
// create the target playlist and write the tracks to it in batches.
//
// At most one run is active per Collector. A run that fails after creating the target unfollows it.
type Collector struct {
	lib    services.Library
	events EventRecorder
	runs   RunRecorder
	sched  *Scheduler
	retry  RetryPolicy
	logger *log.Logger
	rnd    *rand.Rand
	now    func() time.Time
	space  shared.Spacing

	mu    sync.Mutex
	state RunState

	progressMu sync.Mutex
}

func NewCollector(opts CollectorOpts) *Collector {
	c := &Collector{
		lib:    opts.Library,
		events: opts.Events,
		runs:   opts.Runs,
		sched:  NewScheduler(opts.Spacing),
		retry:  opts.Retry,
		logger: opts.Logger,
		rnd:    opts.Rand,
		now:    opts.Now,
		space:  opts.Spacing,
	}
	if c.retry.Retryable == nil && c.retry.Delay == 0 {
		c.retry = DefaultRetryPolicy()
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(os.Stderr)
	}
	if c.retry.Logger == nil {
		c.retry.Logger = c.logger
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// State returns a snapshot of the run state.
func (c *Collector) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Collector) begin() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Running {
		return "", shared.ErrAlreadyRunning
	}
	runID := shared.GenerateID()
	c.state = RunState{Running: true, Stage: StageIdle, RunID: runID}
	return runID, nil
}

func (c *Collector) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = RunState{Stage: StageIdle}
}

func (c *Collector) setTarget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.TargetID = id
}

func (c *Collector) targetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TargetID
}

// run carries the per-run data.
type run struct {
	c      *Collector
	req    RunRequest
	res    *RunResult
	sink   ProgressSink
	logger *log.Logger
	now    time.Time
}

func (r *run) setStage(s Stage) {
	r.c.mu.Lock()
	r.c.state.Stage = s
	r.c.mu.Unlock()
	r.res.Transitions = append(r.res.Transitions, StageTransition{Stage: s, At: r.c.now()})
	r.logger.Debug("stage", "stage", s)
}

func (r *run) report(u ProgressUpdate) {
	r.c.progressMu.Lock()
	defer r.c.progressMu.Unlock()
	r.sink.Report(u)
}

// Run executes one collection run.
//
// It fails with [shared.ErrTokenExpired] when the credential is missing or expired and with
// [shared.ErrAlreadyRunning] when a run is active; neither touches the run state. Otherwise a
// [RunResult] is always returned, together with the first error that failed the run.
// sink.Done is called when the run exits.
func (c *Collector) Run(ctx context.Context, req RunRequest, sink ProgressSink) (*RunResult, error) {
	if !req.Credential.Valid(c.now()) {
		return nil, fmt.Errorf("%w: must re-authenticate", shared.ErrTokenExpired)
	}

	runID, err := c.begin()
	if err != nil {
		return nil, err
	}

	if sink == nil {
		sink = nopSink{}
	}

	r := &run{
		c:      c,
		req:    req,
		sink:   sink,
		logger: shared.WithLogger(c.logger, "run_id", runID),
		now:    c.now(),
		res:    &RunResult{RunID: runID, StartedAt: c.now()},
	}

	defer func() {
		sink.Done()
		c.finish()
	}()

	c.emitEvent(ctx, r)
	c.saveRun(ctx, r, nil)

	runErr := r.execute(ctx)
	if runErr != nil {
		r.setStage(StageFailed)
		r.res.Stage = StageFailed
		r.report(ProgressUpdate{Stage: StageFailed, Message: StageFailed.Label()})
		r.logger.Error("run failed", "error", runErr)

		if id := c.targetID(); id != "" {
			r.setStage(StageRollingBack)
			r.res.RolledBack = r.rollback(ctx, id)
		}
	} else {
		r.res.Stage = StageDone
	}

	r.res.FinishedAt = c.now()
	metrics.RecordRun(runErr == nil, r.res.TracksCollected)
	c.saveRun(ctx, r, runErr)

	r.logger.Info("run finished", "stage", r.res.Stage, "elapsed", r.res.Elapsed().Round(time.Millisecond), "batches", r.res.BatchesWritten)
	return r.res, runErr
}

// emitEvent records the run-start event without waiting for it.
func (c *Collector) emitEvent(ctx context.Context, r *run) {
	if c.events == nil {
		return
	}
	event := models.RunEvent{
		ID:         shared.GenerateID(),
		RunID:      r.res.RunID,
		UserID:     r.req.Credential.UserID,
		ClientInfo: r.req.ClientInfo,
		Timestamp:  r.res.StartedAt,
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.events.RecordEvent(ctx, event); err != nil {
			r.logger.Warn("failed to record run event", "error", err)
		}
	}()
}

func (c *Collector) saveRun(ctx context.Context, r *run, runErr error) {
	if c.runs == nil {
		return
	}
	if err := c.runs.SaveRun(context.WithoutCancel(ctx), r.res.Record(r.req.Credential.UserID, runErr)); err != nil {
		r.logger.Warn("failed to save run history", "error", err)
	}
}

func (r *run) execute(ctx context.Context) error {
	accepted, err := r.fetchPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("fetching playlists: %w", err)
	}

	tracks, err := r.fetchTracks(ctx, accepted)
	if err != nil {
		return fmt.Errorf("fetching tracks: %w", err)
	}

	filtered := r.filter(tracks)

	target, err := r.createTarget(ctx)
	if err != nil {
		return fmt.Errorf("creating playlist: %w", err)
	}

	batches := PrepareBatches(filtered, r.c.rnd)
	r.res.BatchesPrepared = len(batches)
	if dropped := len(filtered) - len(batches)*BatchSize; dropped > 0 {
		r.logger.Warn("too many tracks, dropping the excess", "dropped", dropped, "max", MaxBatches*BatchSize)
	}

	if err := r.writeBatches(ctx, *target, batches); err != nil {
		return fmt.Errorf("adding tracks: %w", err)
	}

	r.setStage(StageDone)
	r.report(ProgressUpdate{Stage: StageDone, Step: 1, Total: 1, Message: StageDone.Label()})
	return nil
}

func (r *run) fetchPlaylists(ctx context.Context) ([]models.PlaylistSummary, error) {
	r.setStage(StageFetchingPlaylists)
	r.report(playlistsUpdate(0, 0))

	var (
		accepted   []models.PlaylistSummary
		trackTotal int
		lib        = r.c.lib
		userID     = r.req.Credential.UserID
	)

	fetch := func(ctx context.Context, url string) (*models.Page[models.PlaylistSummary], error) {
		if err := r.c.sched.Wait(ctx, OpPlaylistPage); err != nil {
			return nil, err
		}
		return lib.PlaylistsPage(ctx, url)
	}

	err := Paginate(ctx, r.c.retry.Named(services.OpPlaylists), lib.PlaylistsURL(), fetch,
		func(items []models.PlaylistSummary, offset, total int) {
			r.res.PlaylistsScanned += len(items)
			for _, p := range items {
				if AcceptPlaylist(p, r.req.Options, userID) {
					accepted = append(accepted, p)
					trackTotal += p.TrackTotal
				}
			}
			r.report(playlistsUpdate(offset+len(items), total))
		})
	if err != nil {
		return nil, err
	}

	r.res.PlaylistsAccepted = len(accepted)
	r.res.Estimated = EstimateDuration(len(accepted), trackTotal, r.c.space)
	r.logger.Info("playlists fetched",
		"scanned", r.res.PlaylistsScanned,
		"accepted", len(accepted),
		"tracks", trackTotal,
		"estimate", ReadableDuration(r.res.Estimated),
	)
	return accepted, nil
}

func (r *run) fetchTracks(ctx context.Context, playlists []models.PlaylistSummary) ([]models.TrackRef, error) {
	r.setStage(StageFetchingTracks)
	total := len(playlists)
	r.report(tracksUpdate(0, total, ""))

	lists := make([][]models.TrackRef, total)
	policy := r.c.retry.Named(services.OpPlaylistTracks)
	done := 0

	err := r.c.sched.Dispatch(ctx, OpPlaylistTracks, total, func(ctx context.Context, i int) error {
		p := playlists[i]
		var kept []models.TrackRef
		err := Paginate(ctx, policy, r.c.lib.PlaylistTracksURL(p.ID), r.c.lib.PlaylistTracksPage,
			func(items []models.TrackRef, _, _ int) {
				for _, t := range items {
					if KeepTrack(t, r.now) {
						kept = append(kept, t)
					}
				}
			})
		if err != nil {
			return fmt.Errorf("playlist %s: %w", p.ID, err)
		}
		lists[i] = kept

		r.c.progressMu.Lock()
		defer r.c.progressMu.Unlock()
		done++
		r.sink.Report(tracksUpdate(done, total, p.Name))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var merged []models.TrackRef
	for _, l := range lists {
		merged = append(merged, l...)
	}
	r.res.TracksCollected = len(merged)
	r.logger.Info("tracks fetched", "collected", len(merged))
	return merged, nil
}

func (r *run) filter(tracks []models.TrackRef) []models.TrackRef {
	r.setStage(StageFiltering)
	r.report(filterUpdate(1, 0))
	filtered := FilterTracks(tracks, r.req.Options)
	r.res.TracksFiltered = len(filtered)
	r.report(filterUpdate(2, len(filtered)))

	if len(filtered) == 0 {
		r.logger.Warn("no tracks left after filtering, the playlist will be empty")
	}
	return filtered
}

func (r *run) createTarget(ctx context.Context) (*models.Target, error) {
	r.setStage(StageCreatingTarget)
	r.report(createTargetUpdate(0, nil))

	target, err := Retry(ctx, r.c.retry.Named(services.OpCreatePlaylist), func(ctx context.Context) (*models.Target, error) {
		return r.c.lib.CreatePlaylist(ctx, r.req.Credential.UserID, r.req.Title, r.req.Description)
	})
	if err != nil {
		return nil, err
	}

	r.c.setTarget(target.ID)
	r.res.Target = target
	r.report(createTargetUpdate(1, target))
	r.logger.Info("playlist created", "id", target.ID, "name", target.Name)
	return target, nil
}

func (r *run) writeBatches(ctx context.Context, target models.Target, batches []models.Batch) error {
	r.setStage(StageWritingBatches)
	r.report(batchUpdate(0, len(batches)))

	var (
		mu      sync.Mutex
		written int
	)
	writeOne := func(ctx context.Context, t models.Target, b models.Batch) (string, error) {
		snapshot, err := r.c.lib.AddTracks(ctx, t.ID, b.URIs)
		if err == nil && snapshot != "" {
			mu.Lock()
			written += len(b.URIs)
			mu.Unlock()
		}
		return snapshot, err
	}

	err := WriteBatches(ctx, r.c.sched, r.c.retry.Named(services.OpAddTracks), target, batches, writeOne,
		func(done, total int) {
			r.res.BatchesWritten = done
			r.report(batchUpdate(done, total))
		})

	r.res.TracksWritten = written
	return err
}

// Rollback is best effort: a few attempts within a fixed window, whatever the run's policy.
const (
	rollbackAttempts = 3
	rollbackTimeout  = 30 * time.Second
)

// rollback unfollows the target on a context that ignores the run's cancellation and reports
// whether it succeeded. It gives up after rollbackAttempts tries or once rollbackTimeout passes.
func (r *run) rollback(ctx context.Context, targetID string) bool {
	r.report(ProgressUpdate{Stage: StageRollingBack, Message: StageRollingBack.Label()})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	policy := r.c.retry.Named(services.OpUnfollow)
	policy.MaxAttempts = rollbackAttempts
	_, err := Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.c.lib.UnfollowPlaylist(ctx, targetID)
	})
	metrics.RecordRollback(err == nil)
	if err != nil {
		r.logger.Error("rollback failed, remove the playlist manually", "target", targetID, "error", err)
		return false
	}
	r.logger.Info("rolled back partial playlist", "target", targetID)
	return true
}

// IsAuthError reports whether err means the user must log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrNotAuthenticated)
}
