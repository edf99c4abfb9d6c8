// Package tasks runs the collection pipeline that builds a playlist of recently added songs.
//
// # Pipeline
//
// [Collector.Run] moves through five working stages:
//
//  1. [StageFetchingPlaylists] : pages through the user's playlists and keeps those [AcceptPlaylist] allows
//  2. [StageFetchingTracks] : pages through each kept playlist, dropping local files and tracks older than [RecentWindow]
//  3. [StageFiltering] : [FilterTracks] removes duplicates and explicit tracks per [models.FilterOptions]
//  4. [StageCreatingTarget] : creates the private target playlist
//  5. [StageWritingBatches] : shuffles the tracks and writes them in batches of [BatchSize]
//
// A failure in any stage moves the run to [StageFailed]. When the target playlist already exists it is
// unfollowed ([StageRollingBack]); tracks already written are not removed.
//
// # Building Blocks
//
//   - [Scheduler] : spaces issuance per [OpKind] with a token bucket of burst 1
//   - [Retry] : re-invokes a call after a fixed delay while [RetryPolicy.Retryable] accepts its error
//   - [Paginate] : follows "next" links, one retried fetch per page, strictly in order
//   - [WriteBatches] : spaced, retried, joined batch writes with aggregated errors
//
// # Progress Reporting
//
// Stages emit [ProgressUpdate] values to a [ProgressSink]. [ProgressBar] folds them into a single
// monotonic fraction. [ChannelSink] uses select with default so reporting never blocks a run.
package tasks
