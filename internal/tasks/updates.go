package tasks

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/shared"
)

// Stage of a collection run.
type Stage int

const (
	StageIdle Stage = iota
	StageFetchingPlaylists
	StageFetchingTracks
	StageFiltering
	StageCreatingTarget
	StageWritingBatches
	StageDone
	StageFailed
	StageRollingBack
)

// NumStages is the number of working stages shown on the progress bar.
const NumStages = 5

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetchingPlaylists:
		return "fetching_playlists"
	case StageFetchingTracks:
		return "fetching_tracks"
	case StageFiltering:
		return "filtering"
	case StageCreatingTarget:
		return "creating_target"
	case StageWritingBatches:
		return "writing_batches"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	case StageRollingBack:
		return "rolling_back"
	default:
		return ""
	}
}

// Number is the 1-based position of a working stage, or 0 for every other stage.
func (s Stage) Number() int {
	if s >= StageFetchingPlaylists && s <= StageWritingBatches {
		return int(s)
	}
	return 0
}

// Label is the text shown while the stage is active.
func (s Stage) Label() string {
	switch s {
	case StageFetchingPlaylists:
		return "Getting your playlists..."
	case StageFetchingTracks:
		return "Retrieving playlist songs..."
	case StageFiltering:
		return "Filtering songs..."
	case StageCreatingTarget:
		return "Creating playlist..."
	case StageWritingBatches:
		return "Adding songs to playlist..."
	case StageDone:
		return "Done!"
	case StageFailed:
		return "Something went wrong."
	case StageRollingBack:
		return "Removing the partial playlist..."
	default:
		return ""
	}
}

// ProgressUpdate represents a progress event during a collection run.
//
// Step is non-decreasing within a stage.
type ProgressUpdate struct {
	Stage   Stage  // Stage the update belongs to
	Step    int    // Current step number within stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
}

// ProgressSink receives progress from a run. Done is called exactly once when the run exits.
type ProgressSink interface {
	Report(update ProgressUpdate)
	Done()
}

func playlistsUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   StageFetchingPlaylists,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Getting your playlists... (%d/%d)", fetched, total),
	}
}

func tracksUpdate(done, total int, name string) ProgressUpdate {
	msg := StageFetchingTracks.Label()
	if name != "" {
		msg = fmt.Sprintf("Retrieved songs from playlist %s", name)
	}
	return ProgressUpdate{Stage: StageFetchingTracks, Step: done, Total: total, Message: msg}
}

func filterUpdate(step int, kept int) ProgressUpdate {
	msg := "Removing duplicate songs..."
	if step == 2 {
		msg = fmt.Sprintf("Kept %d songs", kept)
	}
	return ProgressUpdate{Stage: StageFiltering, Step: step, Total: 2, Message: msg}
}

func createTargetUpdate(step int, target *models.Target) ProgressUpdate {
	msg := StageCreatingTarget.Label()
	if target != nil {
		msg = fmt.Sprintf("Playlist created: %s (ID: %s)", target.Name, target.ID)
	}
	return ProgressUpdate{Stage: StageCreatingTarget, Step: step, Total: 1, Message: msg}
}

func batchUpdate(done, total int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   StageWritingBatches,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding songs to playlist...", done, total),
	}
}

// ProgressBar maps updates onto a single fraction in [0, 1].
//
// Stage n covers [(n-1)/NumStages, n/NumStages]. The value never decreases and never exceeds 1.
type ProgressBar struct {
	mu    sync.Mutex
	value float64
}

// Advance applies update and returns the new value.
func (b *ProgressBar) Advance(update ProgressUpdate) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var v float64
	switch n := update.Stage.Number(); {
	case update.Stage == StageDone:
		v = 1
	case n > 0:
		frac := 0.0
		if update.Total > 0 {
			frac = math.Min(math.Max(float64(update.Step)/float64(update.Total), 0), 1)
		}
		v = (float64(n-1) + frac) / NumStages
	default:
		return b.value
	}

	if v > b.value {
		b.value = math.Min(v, 1)
	}
	return b.value
}

// Value returns the current fraction.
func (b *ProgressBar) Value() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// LogSink writes each update to a logger.
type LogSink struct {
	logger *log.Logger
	bar    ProgressBar
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Report(update ProgressUpdate) {
	pct := s.bar.Advance(update) * 100
	s.logger.Info(update.Message, "stage", update.Stage, "step", update.Step, "total", update.Total, "progress", fmt.Sprintf("%.0f%%", pct))
}

func (s *LogSink) Done() {
	s.logger.Debug("progress finished", "progress", fmt.Sprintf("%.0f%%", s.bar.Value()*100))
}

// ChannelSink forwards updates to a buffered channel without blocking.
// Updates are dropped while the buffer is full. Done closes the channel.
type ChannelSink struct {
	ch   chan ProgressUpdate
	once sync.Once
	mu   sync.RWMutex
	done bool
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan ProgressUpdate, buffer)}
}

// Updates is closed after Done.
func (s *ChannelSink) Updates() <-chan ProgressUpdate {
	return s.ch
}

// Report sends an update through the channel without blocking.
func (s *ChannelSink) Report(update ProgressUpdate) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return
	}
	select {
	case s.ch <- update:
	default:
	}
}

func (s *ChannelSink) Done() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// MultiSink fans updates out to several sinks.
type MultiSink []ProgressSink

func (m MultiSink) Report(update ProgressUpdate) {
	for _, s := range m {
		s.Report(update)
	}
}

func (m MultiSink) Done() {
	for _, s := range m {
		s.Done()
	}
}

type nopSink struct{}

func (nopSink) Report(ProgressUpdate) {}
func (nopSink) Done()                 {}

// EstimateDuration returns the expected wall time of a run over the given number of accepted playlists and tracks.
//
// It counts one spaced track request per playlist plus one spaced write per batch, with a one second cushion.
func EstimateDuration(playlists, tracks int, spacing shared.Spacing) time.Duration {
	if playlists <= 0 && tracks <= 0 {
		return 0
	}
	batches := (tracks + BatchSize - 1) / BatchSize
	return time.Second +
		time.Duration(playlists)*spacing.Tracks +
		time.Duration(batches)*spacing.Batches
}

// ReadableDuration formats d as e.g. "1hr 2mins 3secs", flooring to whole seconds.
func ReadableDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	secs := int(d % time.Minute / time.Second)

	plural := func(n int, one, many string) string {
		if n == 1 {
			return fmt.Sprintf("%d%s", n, one)
		}
		return fmt.Sprintf("%d%s", n, many)
	}

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hr", "hrs"))
	}
	if mins > 0 {
		parts = append(parts, plural(mins, "min", "mins"))
	}
	parts = append(parts, plural(secs, "sec", "secs"))
	return strings.Join(parts, " ")
}
