package tasks

import (
	"strings"
	"time"

	"github.com/desertthunder/rsc/internal/models"
)

// RecentWindow is how far back a track's added date may lie for it to be collected.
const RecentWindow = 14 * 24 * time.Hour

var holidayWords = []string{"christmas", "xmas"}

// FilterTracks removes repeated uris (keeping the first occurrence) unless duplicates are allowed,
// then removes explicit tracks unless they are allowed.
//
// The input is not modified and the relative order of kept tracks is preserved.
func FilterTracks(tracks []models.TrackRef, opts models.FilterOptions) []models.TrackRef {
	out := make([]models.TrackRef, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))

	for _, t := range tracks {
		if !opts.AllowDuplicates {
			if _, dup := seen[t.URI]; dup {
				continue
			}
			seen[t.URI] = struct{}{}
		}
		if !opts.AllowExplicit && t.Explicit {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AcceptPlaylist reports whether a playlist's tracks should be collected for userID.
func AcceptPlaylist(p models.PlaylistSummary, opts models.FilterOptions, userID string) bool {
	switch {
	case p.TrackTotal < 1:
		return false
	case !opts.IncludeHoliday && isHoliday(p):
		return false
	case !opts.IncludePrivate && !p.Public:
		return false
	case !opts.IncludeCollaborative && p.Collaborative:
		return false
	case !opts.IncludeFollowed && p.OwnerID != userID:
		return false
	}
	return true
}

func isHoliday(p models.PlaylistSummary) bool {
	name, desc := strings.ToLower(p.Name), strings.ToLower(p.Description)
	for _, w := range holidayWords {
		if strings.Contains(name, w) || strings.Contains(desc, w) {
			return true
		}
	}
	return false
}

// KeepTrack reports whether a fetched track is eligible: not a local file and added within [RecentWindow] of now.
func KeepTrack(t models.TrackRef, now time.Time) bool {
	if t.Local {
		return false
	}
	return now.Sub(t.AddedAt) <= RecentWindow
}
