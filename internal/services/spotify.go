// Spotify Web API implementation of [Library]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/desertthunder/rsc/internal/metrics"
	"github.com/desertthunder/rsc/internal/models"
	"github.com/desertthunder/rsc/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI is used when the config leaves redirect_uri empty.
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"

	playlistPageLimit = 50
	trackPageLimit    = 100
	trackFields       = "next,offset,total,items(added_at,track(uri,explicit,is_local,name))"

	maxErrorBody = 4096
)

// Operation labels used in errors, logs and metrics.
const (
	OpProfile        = "profile"
	OpPlaylists      = "playlists"
	OpPlaylistTracks = "playlist_tracks"
	OpCreatePlaylist = "create_playlist"
	OpAddTracks      = "add_tracks"
	OpUnfollow       = "unfollow"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// Owner is the owner of a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackTotal struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Owner         Owner      `json:"owner"`
	Public        *bool      `json:"public"`
	Collaborative bool       `json:"collaborative"`
	Tracks        trackTotal `json:"tracks"`
	URI           string     `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyTrack is the subset of a track object requested through the fields filter.
type SpotifyTrack struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	Explicit bool   `json:"explicit"`
	IsLocal  bool   `json:"is_local"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed content.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type errorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService implements [Library] over the Spotify Web API.
// Uses [oauth2] for authentication; an expired access token is refreshed transparently when a refresh token is present.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	baseClient *http.Client

	mu             sync.RWMutex
	token          *oauth2.Token
	httpClient     *http.Client
	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points API calls at a different host, e.g. an [httptest.Server].
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = u }
}

// WithHTTPClient sets the client used for API calls and token exchanges.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.baseClient = c }
}

// WithEndpoint overrides the OAuth2 authorize and token endpoints.
func WithEndpoint(e oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = e }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				"user-read-private",
				"playlist-read-private",
				"playlist-read-collaborative",
				"playlist-modify-public",
				"playlist-modify-private",
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		baseURL:    spotifyBaseURL,
		baseClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// clientContext carries the base client so oauth2 uses it for token requests.
func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// SetTokenRefreshCallback registers fn to receive every token obtained by a refresh.
// Must be called before [SpotifyService.Authenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Authenticate binds the service to a stored credential.
func (s *SpotifyService) Authenticate(ctx context.Context, cred models.Credential) error {
	if cred.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", shared.ErrNotAuthenticated)
	}

	token := TokenFromCredential(cred)
	base := s.clientContext(context.WithoutCancel(ctx))

	s.mu.Lock()
	defer s.mu.Unlock()

	source := &refreshableTokenSource{
		source:   s.config.TokenSource(base, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.token = token
	s.httpClient = oauth2.NewClient(base, source)
	return nil
}

// Refresh exchanges the credential's refresh token for a new access token.
func (s *SpotifyService) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	if cred.RefreshToken == "" {
		return models.Credential{}, fmt.Errorf("%w: no refresh token stored", shared.ErrNotAuthenticated)
	}

	expired := &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := s.config.TokenSource(s.clientContext(ctx), expired).Token()
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	return CredentialFromToken(token, cred.UserID), nil
}

// TokenFromCredential converts a stored credential to an oauth2 token.
func TokenFromCredential(cred models.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       cred.ExpiresAt,
	}
}

// CredentialFromToken converts an oauth2 token to a credential owned by userID.
func CredentialFromToken(token *oauth2.Token, userID string) models.Credential {
	return models.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		UserID:       userID,
	}
}

// refreshableTokenSource reports each new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// PlaylistsURL returns the first page of the current user's playlists.
func (s *SpotifyService) PlaylistsURL() string {
	return fmt.Sprintf("%s/me/playlists?limit=%d", s.baseURL, playlistPageLimit)
}

// PlaylistTracksURL returns the first page of a playlist's tracks, reduced by the fields filter.
func (s *SpotifyService) PlaylistTracksURL(playlistID string) string {
	q := url.Values{}
	q.Set("fields", trackFields)
	q.Set("market", "from_token")
	q.Set("limit", fmt.Sprint(trackPageLimit))
	return fmt.Sprintf("%s/playlists/%s/tracks?%s", s.baseURL, url.PathEscape(playlistID), q.Encode())
}

// doRequest performs an authenticated request and decodes a JSON response into result.
//
// Every failure is returned as an [*APIError]. A 2xx response with an empty body leaves result untouched.
func (s *SpotifyService) doRequest(ctx context.Context, op, method, endpoint string, body, result any) error {
	s.mu.RLock()
	client, token := s.httpClient, s.token
	s.mu.RUnlock()

	if client == nil || token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordRequest(op, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Op: op, Method: method, Endpoint: endpoint, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	metrics.RecordRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewStatusError(op, method, endpoint, resp.StatusCode, errorMessage(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, Method: method, Endpoint: endpoint, Status: resp.StatusCode, Kind: KindNetwork, Err: err}
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return &APIError{Op: op, Method: method, Endpoint: endpoint, Status: resp.StatusCode, Kind: KindDecode, Err: err}
		}
	}

	return nil
}

// errorMessage extracts the message from a Spotify error object, falling back to the raw body.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return string(bytes.TrimSpace(data))
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, OpProfile, http.MethodGet, s.baseURL+"/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PlaylistsPage fetches one page of the current user's playlists.
func (s *SpotifyService) PlaylistsPage(ctx context.Context, pageURL string) (*models.Page[models.PlaylistSummary], error) {
	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, OpPlaylists, http.MethodGet, pageURL, nil, &response); err != nil {
		return nil, err
	}

	page := &models.Page[models.PlaylistSummary]{
		Items:  make([]models.PlaylistSummary, 0, len(response.Items)),
		Offset: response.Offset,
		Total:  response.Total,
	}
	if response.Next != nil {
		page.Next = *response.Next
	}

	for _, sp := range response.Items {
		page.Items = append(page.Items, models.PlaylistSummary{
			ID:            sp.ID,
			Name:          sp.Name,
			Description:   sp.Description,
			OwnerID:       sp.Owner.ID,
			Public:        sp.Public != nil && *sp.Public,
			Collaborative: sp.Collaborative,
			TrackTotal:    sp.Tracks.Total,
		})
	}

	return page, nil
}

// PlaylistTracksPage fetches one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracksPage(ctx context.Context, pageURL string) (*models.Page[models.TrackRef], error) {
	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, OpPlaylistTracks, http.MethodGet, pageURL, nil, &response); err != nil {
		return nil, err
	}

	page := &models.Page[models.TrackRef]{
		Items:  make([]models.TrackRef, 0, len(response.Items)),
		Offset: response.Offset,
		Total:  response.Total,
	}
	if response.Next != nil {
		page.Next = *response.Next
	}

	for _, item := range response.Items {
		if item.Track == nil || item.Track.URI == "" {
			continue
		}

		// Spotify omits added_at for very old entries; a zero time reads as old.
		addedAt, _ := time.Parse(time.RFC3339, item.AddedAt)

		page.Items = append(page.Items, models.TrackRef{
			URI:      item.Track.URI,
			Name:     item.Track.Name,
			Explicit: item.Track.Explicit,
			Local:    item.Track.IsLocal,
			AddedAt:  addedAt,
		})
	}

	return page, nil
}

// CreatePlaylist creates a private playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Target, error) {
	endpoint := fmt.Sprintf("%s/users/%s/playlists", s.baseURL, url.PathEscape(userID))
	body := createPlaylistRequest{Name: name, Description: description, Public: false}

	var response SpotifySimplePlaylist
	if err := s.doRequest(ctx, OpCreatePlaylist, http.MethodPost, endpoint, body, &response); err != nil {
		return nil, err
	}

	if response.ID == "" {
		return nil, &APIError{Op: OpCreatePlaylist, Method: http.MethodPost, Endpoint: endpoint, Kind: KindSemantic, Message: "response has no playlist id"}
	}

	owner := response.Owner.ID
	if owner == "" {
		owner = userID
	}
	return &models.Target{ID: response.ID, Name: response.Name, OwnerID: owner}, nil
}

// AddTracks appends uris to a playlist and returns the snapshot id from the response.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	endpoint := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))

	var response snapshotResponse
	if err := s.doRequest(ctx, OpAddTracks, http.MethodPost, endpoint, addTracksRequest{URIs: uris}, &response); err != nil {
		return "", err
	}
	return response.SnapshotID, nil
}

// UnfollowPlaylist removes the playlist from the current user's library.
func (s *SpotifyService) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("%s/playlists/%s/followers", s.baseURL, url.PathEscape(playlistID))
	return s.doRequest(ctx, OpUnfollow, http.MethodDelete, endpoint, nil, nil)
}
