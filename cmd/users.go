package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/server"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// userView is the printable form of a [models.User]. Sealed secrets are never shown.
type userView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ClientID   string     `json:"client_id"`
	Authorized bool       `json:"authorized"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:         u.ID(),
		Name:       u.DisplayName(),
		ClientID:   shared.MaskSecret(u.SpotifyClientID()),
		Authorized: u.HasTokens(),
		CreatedAt:  u.CreatedAt(),
		LastUsed:   u.LastUsed(),
	}
}

// UserCreate registers a user. Credentials default to the application in config.toml.
func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	clientID, clientSecret := cmd.String("client-id"), cmd.String("client-secret")
	if clientID == "" {
		clientID = r.config.Credentials.Spotify.ClientID
	}
	if clientSecret == "" {
		clientSecret = r.config.Credentials.Spotify.ClientSecret
	}

	user, err := r.accounts.Register(cmd.String("name"), clientID, clientSecret)
	if err != nil {
		return err
	}
	r.logger.Info("user created", "id", user.ID())

	if cmd.Bool("json") {
		return r.writeJSON(newUserView(user), true)
	}

	r.writePlain("✓ User created: %s\n", user.ID())
	r.writePlain("\nNext: ang2spot user auth %s\n", user.ID())
	return nil
}

// UserList prints registered users.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	users, err := r.users.List(nil)
	if err != nil {
		return err
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, true)
	}

	if len(views) == 0 {
		return r.writePlain("No users registered. Run 'ang2spot user create' first.\n")
	}

	r.writePlain("Found %d users:\n\n", len(views))
	for i, u := range views {
		r.writePlain("%d. %s\n", i+1, u.ID)
		if u.Name != "" {
			r.writePlain("   Name: %s\n", u.Name)
		}
		r.writePlain("   Client: %s\n", u.ClientID)
		if u.Authorized {
			r.writePlain("   Spotify: ✓ Authorized\n")
		} else {
			r.writePlain("   Spotify: ✗ Not authorized\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// UserRemove deletes a user.
func (r *Runner) UserRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	if err := r.accounts.Remove(id); err != nil {
		return err
	}
	return r.writePlain("✓ User %s removed\n", id)
}

// UserAuth performs the OAuth2 authorization flow for a user's Spotify application.
//
// Starts a local HTTP server on the redirect URI, opens the browser for consent, and stores the exchanged
// tokens in the vault.
func (r *Runner) UserAuth(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, id, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if err := r.accounts.SaveToken(id, token); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: ang2spot migrate run --user %s --playlist <id>\n", id)
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, userID string, timeout time.Duration) (*oauth2.Token, error) {
	svc, _, err := r.accounts.Client(ctx, userID)
	if err != nil {
		return nil, err
	}

	addr, err := callbackAddr(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return nil, err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(svc, state)
	httpServer := server.NewCallbackServer(addr, oauthHandler)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", addr)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := svc.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthentication)
	}
	return result.Token, nil
}

// callbackAddr returns the host:port the redirect URI points at.
func callbackAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Port() == "" {
		if u.Scheme == "https" {
			return net.JoinHostPort(u.Hostname(), "443"), nil
		}
		return net.JoinHostPort(u.Hostname(), "80"), nil
	}
	return u.Host, nil
}
