// Package services implements the Spotify Web API client behind the [Library] port used by collection runs.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication. When a stored credential carries a refresh token,
// the [oauth2] transport refreshes an expired access token and reports the new token through the
// callback registered with [SpotifyService.SetTokenRefreshCallback].
//
// Page methods take absolute urls so callers can follow the "next" link of each page verbatim.
//
// # Error Handling
//
// Every failed call is returned as an [*APIError] tagged with an [ErrorKind]:
//   - [KindTransient] : status >= 429, the only kind [IsRetryable] accepts
//   - [KindClient] : status < 429
//   - [KindSemantic] : 2xx response missing a required field
//   - [KindNetwork] : no response
//   - [KindDecode] : unparseable body
//
// APIError unwraps to the matching sentinels in the shared package, so callers can test with [errors.Is]:
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrServiceUnavailable] : 5xx
//   - [shared.ErrTokenExpired] : 401, reauthorization needed
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrAPIRequest] : any response-level failure
package services
