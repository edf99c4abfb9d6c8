package models

import (
	"fmt"
	"sort"
	"time"
)

// Credential is the OAuth token pair for one user. A run refuses to start when it has expired.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// Expired reports whether the access token is no longer valid at now.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Valid reports whether the credential has a token and user id and has not expired.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && c.UserID != "" && !c.Expired(now)
}

// PlaylistSummary is a playlist as listed in the user's library.
type PlaylistSummary struct {
	ID            string
	Name          string
	Description   string
	OwnerID       string
	Public        bool
	Collaborative bool
	TrackTotal    int
}

// TrackRef is a playlist entry reduced to what filtering and writing need.
type TrackRef struct {
	URI      string
	Name     string
	Explicit bool
	Local    bool
	AddedAt  time.Time
}

// Page is one page of a paginated collection. An empty Next means the collection is exhausted.
type Page[T any] struct {
	Items  []T
	Next   string
	Offset int
	Total  int
}

// Last reports whether no further page follows.
func (p *Page[T]) Last() bool {
	return p.Next == ""
}

// Option keys accepted by [FilterOptions.Set].
const (
	OptAllowExplicit        = "allow_explicits"
	OptAllowDuplicates      = "allow_duplicates"
	OptIncludePrivate       = "include_private"
	OptIncludeCollaborative = "include_collaborative"
	OptIncludeFollowed      = "include_followed"
	OptIncludeHoliday       = "include_christmas"
)

// FilterOptions are the user toggles for a run. The zero value is the default set.
type FilterOptions struct {
	AllowExplicit        bool
	AllowDuplicates      bool
	IncludePrivate       bool
	IncludeCollaborative bool
	IncludeFollowed      bool
	IncludeHoliday       bool
}

// DefaultFilterOptions returns the fixed default set: every toggle off.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{}
}

// Reset restores the defaults.
func (o *FilterOptions) Reset() {
	*o = DefaultFilterOptions()
}

func (o *FilterOptions) fields() map[string]*bool {
	return map[string]*bool{
		OptAllowExplicit:        &o.AllowExplicit,
		OptAllowDuplicates:      &o.AllowDuplicates,
		OptIncludePrivate:       &o.IncludePrivate,
		OptIncludeCollaborative: &o.IncludeCollaborative,
		OptIncludeFollowed:      &o.IncludeFollowed,
		OptIncludeHoliday:       &o.IncludeHoliday,
	}
}

// Set sets the toggle named key and reports whether the key exists.
func (o *FilterOptions) Set(key string, value bool) bool {
	f, ok := o.fields()[key]
	if !ok {
		return false
	}
	*f = value
	return true
}

// Get returns the toggle named key.
func (o FilterOptions) Get(key string) (bool, bool) {
	f, ok := o.fields()[key]
	if !ok {
		return false, false
	}
	return *f, true
}

// OptionKeys lists every key accepted by [FilterOptions.Set] in sorted order.
func OptionKeys() []string {
	var o FilterOptions
	keys := make([]string, 0, 6)
	for k := range o.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Batch is one add-tracks request: at most 100 uris, never mutated after creation.
type Batch struct {
	Index int
	URIs  []string
}

// Target identifies the playlist created by a run.
type Target struct {
	ID      string
	Name    string
	OwnerID string
}

// RunEvent is the usage record emitted when a run starts.
type RunEvent struct {
	ID         string
	RunID      string
	UserID     string
	ClientInfo string
	Timestamp  time.Time
}

// RunStatus is the persisted outcome of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the persisted outcome of one run.
type RunRecord struct {
	RunID            string
	UserID           string
	Status           RunStatus
	TargetID         string
	PlaylistsScanned int
	TracksCollected  int
	TracksWritten    int
	BatchesWritten   int
	Error            string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Duration is the wall time of a finished run, or zero while running.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate checks the fields required to persist the record.
func (r RunRecord) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	switch r.Status {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
	default:
		return fmt.Errorf("unknown run status %q", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("start time is required")
	}
	return nil
}
