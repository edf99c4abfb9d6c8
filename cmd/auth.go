package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/rsc/internal/repositories"
	"github.com/desertthunder/rsc/internal/server"
	"github.com/desertthunder/rsc/internal/services"
	"github.com/desertthunder/rsc/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 2 * time.Minute

// AuthLogin runs the OAuth2 authorization code flow and stores the resulting credential.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(svc, state, callbackPath(r.config.Credentials.Spotify.RedirectURI))
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(handler)

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	ready := make(chan string, 1)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(srvCtx, addr, router, ready)
	}()

	select {
	case bound := <-ready:
		r.logger.Infof("starting OAuth server at %v", bound)
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	}

	authURL := svc.GetAuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	token, err := handler.Wait(ctx, timeout)
	stop()
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if err := svc.Authenticate(ctx, services.CredentialFromToken(token, "")); err != nil {
		return err
	}
	profile, err := svc.UserProfile(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	db, err := r.openDB()
	if err != nil {
		return err
	}
	if err := repositories.NewCredentialRepository(db).Save(ctx, services.CredentialFromToken(token, profile.ID)); err != nil {
		return err
	}

	name := profile.DisplayName
	if name == "" {
		name = profile.ID
	}
	r.writePlainln("✓ Logged in as %s", name)
	r.writePlain("You can now use: rsc run\n")
	return nil
}

// AuthStatus prints the stored credential without revealing its tokens.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}

	cred, err := repositories.NewCredentialRepository(db).Load(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		r.writePlain("Not logged in. Run `rsc auth login`.\n")
		return nil
	}
	if err != nil {
		return err
	}

	state := "valid"
	if cred.Expired(time.Now()) {
		state = "expired"
	}
	r.writePlain("User:       %s\n", cred.UserID)
	r.writePlain("Expires:    %s (%s)\n", cred.ExpiresAt.Local().Format(time.RFC1123), state)
	r.writePlain("Refreshable: %t\n", cred.RefreshToken != "")
	return nil
}

// AuthRefresh trades the stored refresh token for a new access token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	repo := repositories.NewCredentialRepository(db)

	cred, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	refreshed, err := svc.Refresh(ctx, cred)
	if err != nil {
		return err
	}
	if err := repo.Save(ctx, refreshed); err != nil {
		return err
	}

	r.writePlain("✓ Token refreshed, valid until %s\n", refreshed.ExpiresAt.Local().Format(time.Kitchen))
	return nil
}

// AuthLogout removes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	if err := repositories.NewCredentialRepository(db).Delete(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Logged out\n")
	return nil
}

// callbackPath extracts the path the OAuth callback is served on from the redirect URI.
func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return "/callback"
	}
	return u.Path
}
