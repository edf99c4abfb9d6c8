// Package models defines the domain values that flow through a collection run.
//
// The package contains two categories of types:
//
// 1. Library values: read from the streaming service and never mutated after fetch
//   - [Credential] : Bearer token, refresh token, expiry and owning user id
//   - [PlaylistSummary] : Playlist metadata used by the acceptance predicate
//   - [TrackRef] : Track uri plus the fields the filters read
//   - [Page] : One page of a paginated collection
//
// 2. Run values: created by the pipeline and persisted locally
//   - [FilterOptions] : User toggles applied to playlists and tracks
//   - [Batch] : One add-tracks request worth of uris
//   - [Target] : Identity of the generated playlist
//   - [RunEvent] : Usage record emitted once at the start of a run
//   - [RunRecord] : Outcome of a finished run
package models
