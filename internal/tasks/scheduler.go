package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/desertthunder/rsc/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// OpKind selects the spacing a [Scheduler] applies.
type OpKind int

const (
	OpPlaylistPage OpKind = iota
	OpPlaylistTracks
	OpAddTracks
)

func (k OpKind) String() string {
	switch k {
	case OpPlaylistPage:
		return "playlist_page"
	case OpPlaylistTracks:
		return "playlist_tracks"
	case OpAddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

// Scheduler issues operations no closer together than a fixed minimum spacing per [OpKind].
//
// Issuance is spaced; completion is not. An issued operation runs concurrently with those issued after it.
type Scheduler struct {
	limiters map[OpKind]*rate.Limiter
}

// NewScheduler builds one limiter per kind. A zero spacing disables waiting for that kind.
func NewScheduler(spacing shared.Spacing) *Scheduler {
	return &Scheduler{
		limiters: map[OpKind]*rate.Limiter{
			OpPlaylistPage:   newLimiter(spacing.Playlists),
			OpPlaylistTracks: newLimiter(spacing.Tracks),
			OpAddTracks:      newLimiter(spacing.Batches),
		},
	}
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Wait blocks until the next slot for kind opens or ctx is done.
func (s *Scheduler) Wait(ctx context.Context, kind OpKind) error {
	l, ok := s.limiters[kind]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// Dispatch issues fn(ctx, i) for i in [0, n), one issuance per slot of kind, and waits for every issued call to return.
//
// A failing call does not cancel its siblings. All failures are joined in index order.
// When ctx ends, no further calls are issued and ctx's error is included.
func (s *Scheduler) Dispatch(ctx context.Context, kind OpKind, n int, fn func(ctx context.Context, i int) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make([]error, n)
	)

	var waitErr error
	for i := range n {
		if err := s.Wait(ctx, kind); err != nil {
			waitErr = err
			break
		}
		g.Go(func() error {
			if err := fn(ctx, i); err != nil {
				mu.Lock()
				errs[i] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(append(errs, waitErr)...)
}
