// package services implements the Spotify Web API client used by the collector.
package services

import (
	"context"

	"github.com/desertthunder/rsc/internal/models"
)

// Library is the subset of the streaming API a collection run needs.
//
// Page methods take the absolute url of the page to fetch so the caller can follow the "next" links returned by the service.
type Library interface {
	// PlaylistsURL returns the url of the first page of the current user's playlists.
	PlaylistsURL() string

	// PlaylistTracksURL returns the url of the first page of a playlist's tracks.
	PlaylistTracksURL(playlistID string) string

	// PlaylistsPage fetches one page of the current user's playlists.
	PlaylistsPage(ctx context.Context, pageURL string) (*models.Page[models.PlaylistSummary], error)

	// PlaylistTracksPage fetches one page of a playlist's tracks. Entries without a track are skipped.
	PlaylistTracksPage(ctx context.Context, pageURL string) (*models.Page[models.TrackRef], error)

	// CreatePlaylist creates a private playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Target, error)

	// AddTracks appends uris to a playlist and returns the new snapshot id, which may be empty.
	AddTracks(ctx context.Context, playlistID string, uris []string) (string, error)

	// UnfollowPlaylist removes the playlist from the current user's library.
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}
