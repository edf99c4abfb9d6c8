package services

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/desertthunder/rsc/internal/shared"
)

func TestAPIError(t *testing.T) {
	t.Run("Classification", func(t *testing.T) {
		tests := []struct {
			status    int
			kind      ErrorKind
			sentinel  error
			retryable bool
		}{
			{400, KindClient, shared.ErrAPIRequest, false},
			{401, KindClient, shared.ErrTokenExpired, false},
			{404, KindClient, shared.ErrPlaylistNotFound, false},
			{428, KindClient, shared.ErrAPIRequest, false},
			{429, KindTransient, shared.ErrRateLimited, true},
			{500, KindTransient, shared.ErrServiceUnavailable, true},
			{503, KindTransient, shared.ErrServiceUnavailable, true},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
				err := NewStatusError(OpAddTracks, "POST", "/playlists/p/tracks", tt.status, "nope")

				if err.Kind != tt.kind {
					t.Errorf("kind = %v, want %v", err.Kind, tt.kind)
				}
				if !errors.Is(err, tt.sentinel) {
					t.Errorf("expected errors.Is(%v)", tt.sentinel)
				}
				if !errors.Is(err, shared.ErrAPIRequest) {
					t.Error("every status error should match ErrAPIRequest")
				}
				if got := IsRetryable(err); got != tt.retryable {
					t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
				}
			})
		}
	})

	t.Run("Wrapped", func(t *testing.T) {
		err := fmt.Errorf("batch 3: %w", NewStatusError(OpAddTracks, "POST", "/x", 502, ""))
		if !IsRetryable(err) {
			t.Error("wrapped transient error should stay retryable")
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 502 {
			t.Error("expected errors.As to find the APIError")
		}
	})

	t.Run("Terminal Kinds", func(t *testing.T) {
		tests := []struct {
			name     string
			err      *APIError
			sentinel error
		}{
			{"network", &APIError{Kind: KindNetwork, Err: io.ErrUnexpectedEOF}, shared.ErrNetwork},
			{"decode", &APIError{Kind: KindDecode, Status: 200, Err: io.ErrUnexpectedEOF}, shared.ErrDecode},
			{"semantic", &APIError{Kind: KindSemantic, Status: 201}, shared.ErrAPIRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if IsRetryable(tt.err) {
					t.Error("expected terminal error")
				}
				if !errors.Is(tt.err, tt.sentinel) {
					t.Errorf("expected errors.Is(%v)", tt.sentinel)
				}
				if tt.err.Err != nil && !errors.Is(tt.err, tt.err.Err) {
					t.Error("expected the cause to be reachable")
				}
			})
		}
	})

	t.Run("Plain Errors", func(t *testing.T) {
		if IsRetryable(errors.New("boom")) {
			t.Error("plain errors are not retryable")
		}
		if IsRetryable(nil) {
			t.Error("nil is not retryable")
		}
	})

	t.Run("Error Message", func(t *testing.T) {
		err := NewStatusError(OpCreatePlaylist, "POST", "/users/u/playlists", 403, "forbidden")
		want := "create_playlist POST /users/u/playlists: status 403: forbidden"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("Kind String", func(t *testing.T) {
		if KindTransient.String() != "transient" || KindDecode.String() != "decode" {
			t.Error("unexpected kind names")
		}
	})
}
