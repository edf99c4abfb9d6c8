package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/rsc/internal/shared"
)

func TestScheduler(t *testing.T) {
	t.Run("Spaces Issuance", func(t *testing.T) {
		s := NewScheduler(shared.Spacing{Batches: 20 * time.Millisecond})

		start := time.Now()
		for range 4 {
			if err := s.Wait(context.Background(), OpAddTracks); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
			t.Errorf("four issuances at 20ms spacing took %v", elapsed)
		}
	})

	t.Run("Kinds Are Independent", func(t *testing.T) {
		s := NewScheduler(shared.Spacing{Batches: time.Hour})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.Wait(ctx, OpAddTracks); err != nil {
			t.Fatalf("first slot should be immediate: %v", err)
		}
		for range 10 {
			if err := s.Wait(ctx, OpPlaylistTracks); err != nil {
				t.Fatalf("zero spacing should never wait: %v", err)
			}
		}
	})

	t.Run("Wait Honors Context", func(t *testing.T) {
		s := NewScheduler(shared.Spacing{Tracks: time.Hour})
		_ = s.Wait(context.Background(), OpPlaylistTracks)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := s.Wait(ctx, OpPlaylistTracks); err == nil {
			t.Error("expected an error when the next slot is beyond the deadline")
		}
	})

	t.Run("Dispatch Runs Every Call", func(t *testing.T) {
		s := NewScheduler(shared.Spacing{})
		var mu sync.Mutex
		seen := make(map[int]bool)

		err := s.Dispatch(context.Background(), OpAddTracks, 25, func(ctx context.Context, i int) error {
			mu.Lock()
			defer mu.Unlock()
			seen[i] = true
			return nil
		})
		if err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if len(seen) != 25 {
			t.Errorf("expected 25 calls, got %d", len(seen))
		}
	})

	t.Run("Dispatch Waits For All And Joins Errors", func(t *testing.T) {
		s := NewScheduler(shared.Spacing{})
		errA, errB := errors.New("a"), errors.New("b")
		var finished atomic.Int32

		err := s.Dispatch(context.Background(), OpAddTracks, 5, func(ctx context.Context, i int) error {
			defer finished.Add(1)
			switch i {
			case 1:
				return errA
			case 3:
				time.Sleep(20 * time.Millisecond)
				return errB
			}
			return nil
		})

		if finished.Load() != 5 {
			t.Errorf("expected all 5 calls to settle, got %d", finished.Load())
		}
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Errorf("expected both errors joined, got %v", err)
		}
	})

	t.Run("Dispatch Stops Issuing On Cancel", func(t *testing.T) {
		s := NewScheduler(shared.Spacing{Batches: 50 * time.Millisecond})
		ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
		defer cancel()

		var calls atomic.Int32
		err := s.Dispatch(ctx, OpAddTracks, 100, func(ctx context.Context, i int) error {
			calls.Add(1)
			return nil
		})
		if err == nil {
			t.Error("expected the wait error to be reported")
		}
		if n := calls.Load(); n == 0 || n >= 100 {
			t.Errorf("expected issuance to stop early, got %d calls", n)
		}
	})

	t.Run("OpKind String", func(t *testing.T) {
		if OpAddTracks.String() != "add_tracks" || OpPlaylistPage.String() != "playlist_page" {
			t.Error("unexpected op kind names")
		}
	})
}
