package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/desertthunder/rsc/internal/metrics"
	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/shared"
)

const (
	// BatchSize is the most uris one add-tracks request accepts.
	BatchSize = 100
	// MaxBatches caps the tracks written by one run at MaxBatches*BatchSize.
	MaxBatches = 10000
)

// WriteFunc writes one batch to target and returns the resulting snapshot id.
type WriteFunc func(ctx context.Context, target models.Target, batch models.Batch) (string, error)

// Shuffle returns a uniformly shuffled copy of items. A nil rnd uses the global source.
func Shuffle[T any](items []T, rnd *rand.Rand) []T {
	out := append([]T(nil), items...)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rnd == nil {
		rand.Shuffle(len(out), swap)
	} else {
		rnd.Shuffle(len(out), swap)
	}
	return out
}

// PrepareBatches shuffles the tracks and partitions their uris into batches of at most [BatchSize].
//
// Batches beyond [MaxBatches] are dropped.
func PrepareBatches(tracks []models.TrackRef, rnd *rand.Rand) []models.Batch {
	uris := make([]string, len(tracks))
	for i, t := range Shuffle(tracks, rnd) {
		uris[i] = t.URI
	}
	return partition(uris, BatchSize, MaxBatches)
}

// partition splits uris into consecutive chunks of at most size, keeping no more than limit chunks.
func partition(uris []string, size, limit int) []models.Batch {
	n := min((len(uris)+size-1)/size, limit)

	batches := make([]models.Batch, 0, n)
	for i := range n {
		end := min((i+1)*size, len(uris))
		batches = append(batches, models.Batch{
			Index: i,
			URIs:  append([]string(nil), uris[i*size:end]...),
		})
	}
	return batches
}

// WriteBatches issues one write per batch at the scheduler's add-tracks spacing, each wrapped in [Retry],
// and waits for every write to finish.
//
// A write that fails terminally or succeeds without a snapshot id fails the call; the remaining writes
// still run and batches already written stay written. All failures are joined.
// onWritten, if set, is called under a lock after each successful write with a strictly increasing count.
func WriteBatches(
	ctx context.Context,
	sched *Scheduler,
	policy RetryPolicy,
	target models.Target,
	batches []models.Batch,
	writeOne WriteFunc,
	onWritten func(done, total int),
) error {
	var (
		mu   sync.Mutex
		done int
	)

	return sched.Dispatch(ctx, OpAddTracks, len(batches), func(ctx context.Context, i int) error {
		batch := batches[i]

		snapshot, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
			return writeOne(ctx, target, batch)
		})
		if err != nil {
			metrics.RecordBatch(false)
			return fmt.Errorf("batch %d: %w", batch.Index+1, err)
		}
		if snapshot == "" {
			metrics.RecordBatch(false)
			return fmt.Errorf("batch %d: %w", batch.Index+1, shared.ErrMissingSnapshot)
		}
		metrics.RecordBatch(true)

		mu.Lock()
		defer mu.Unlock()
		done++
		if onWritten != nil {
			onWritten(done, len(batches))
		}
		return nil
	})
}
