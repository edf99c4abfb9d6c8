// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/rsc/internal/models"
)

const (
	fakePlaylistsURL = "fake://playlists"
	fakeTracksURL    = "fake://tracks/"
)

// FakeLibrary is an in-memory streaming library for pipeline tests.
//
// Pages are served from PlaylistPages and TrackPages. Hooks inject failures; they receive the
// 1-based attempt number for the url or call so tests can fail the first N attempts.
type FakeLibrary struct {
	PlaylistPages [][]models.PlaylistSummary
	TrackPages    map[string][][]models.TrackRef

	// PageHook runs before serving a page url. A non-nil error is returned instead of the page.
	PageHook func(url string, attempt int) error
	// AddTracksHook replaces the default add-tracks response ("snap-N", nil).
	AddTracksHook func(batchURIs []string, attempt int) (string, error)
	CreateErr     error
	UnfollowErr   error

	mu         sync.Mutex
	attempts   map[string]int
	addCalls   int
	Created    []models.Target
	Added      [][]string
	Unfollowed []string
}

func (f *FakeLibrary) attempt(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[key]++
	return f.attempts[key]
}

// Attempts returns how many times url was requested.
func (f *FakeLibrary) Attempts(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[url]
}

func (f *FakeLibrary) PlaylistsURL() string { return pageURL(fakePlaylistsURL, 0) }

func (f *FakeLibrary) PlaylistTracksURL(playlistID string) string {
	return pageURL(fakeTracksURL+playlistID, 0)
}

func pageURL(base string, n int) string {
	return fmt.Sprintf("%s?page=%d", base, n)
}

func splitPageURL(url string) (string, int, error) {
	base, q, ok := strings.Cut(url, "?page=")
	if !ok {
		return "", 0, fmt.Errorf("bad page url %q", url)
	}
	n, err := strconv.Atoi(q)
	return base, n, err
}

func (f *FakeLibrary) before(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := f.attempt(url)
	if f.PageHook != nil {
		return f.PageHook(url, n)
	}
	return nil
}

func servePage[T any](pages [][]T, base string, n int) *models.Page[T] {
	page := &models.Page[T]{}
	for i, p := range pages {
		if i < n {
			page.Offset += len(p)
		}
		page.Total += len(p)
	}
	if n < len(pages) {
		page.Items = append([]T(nil), pages[n]...)
	}
	if n+1 < len(pages) {
		page.Next = pageURL(base, n+1)
	}
	return page
}

func (f *FakeLibrary) PlaylistsPage(ctx context.Context, url string) (*models.Page[models.PlaylistSummary], error) {
	if err := f.before(ctx, url); err != nil {
		return nil, err
	}
	base, n, err := splitPageURL(url)
	if err != nil {
		return nil, err
	}
	return servePage(f.PlaylistPages, base, n), nil
}

func (f *FakeLibrary) PlaylistTracksPage(ctx context.Context, url string) (*models.Page[models.TrackRef], error) {
	if err := f.before(ctx, url); err != nil {
		return nil, err
	}
	base, n, err := splitPageURL(url)
	if err != nil {
		return nil, err
	}
	return servePage(f.TrackPages[strings.TrimPrefix(base, fakeTracksURL)], base, n), nil
}

func (f *FakeLibrary) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Target, error) {
	f.attempt("create")
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	target := models.Target{ID: fmt.Sprintf("target-%d", len(f.Created)+1), Name: name, OwnerID: userID}
	f.Created = append(f.Created, target)
	return &target, nil
}

func (f *FakeLibrary) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	key := "add:" + uris[0]
	n := f.attempt(key)

	snapshot, err := "", error(nil)
	if f.AddTracksHook != nil {
		snapshot, err = f.AddTracksHook(uris, n)
	} else {
		f.mu.Lock()
		snapshot = fmt.Sprintf("snap-%d", f.addCalls+1)
		f.mu.Unlock()
	}
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.Added = append(f.Added, append([]string(nil), uris...))
	return snapshot, nil
}

func (f *FakeLibrary) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	f.attempt("unfollow")
	if f.UnfollowErr != nil {
		return f.UnfollowErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unfollowed = append(f.Unfollowed, playlistID)
	return nil
}

// AddedURIs returns every uri written, in write order.
func (f *FakeLibrary) AddedURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uris []string
	for _, b := range f.Added {
		uris = append(uris, b...)
	}
	return uris
}

// FakeEventRecorder stores events in memory.
type FakeEventRecorder struct {
	Err error

	mu     sync.Mutex
	Events []models.RunEvent
	done   chan struct{}
}

// NewFakeEventRecorder returns a recorder whose Recorded channel closes after the first event.
func NewFakeEventRecorder() *FakeEventRecorder {
	return &FakeEventRecorder{done: make(chan struct{})}
}

func (r *FakeEventRecorder) RecordEvent(ctx context.Context, event models.RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	if r.done != nil && len(r.Events) == 1 {
		close(r.done)
	}
	return r.Err
}

// Recorded is closed once an event has been recorded.
func (r *FakeEventRecorder) Recorded() <-chan struct{} {
	return r.done
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
