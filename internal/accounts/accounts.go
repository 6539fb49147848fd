// Package accounts connects registered users to their Spotify applications.
//
// A user's client secret and OAuth tokens are sealed by the vault before they reach the database. The
// [Manager] unseals them on demand to build an authorized [services.SpotifyService], and re-seals tokens
// whenever Spotify issues new ones.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/desertthunder/ang2spot/internal/vault"
	"golang.org/x/oauth2"
)

// Users persists user records. Implemented by repositories.UserRepository.
type Users interface {
	Create(user *models.User) error
	Get(id string) (*models.User, error)
	Delete(id string) error
	SaveTokens(id, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error
	Touch(id string) error
}

// Manager registers users and builds Spotify clients from their sealed credentials.
type Manager struct {
	users       Users
	vault       *vault.Vault
	redirectURI string
	spotifyOpts []services.SpotifyOption
	logger      *log.Logger
}

// New creates a Manager. spotifyOpts are applied to every client it builds.
func New(users Users, v *vault.Vault, redirectURI string, logger *log.Logger, spotifyOpts ...services.SpotifyOption) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		users:       users,
		vault:       v,
		redirectURI: redirectURI,
		spotifyOpts: spotifyOpts,
		logger:      shared.WithLogger(logger, "component", "accounts"),
	}
}

// Register creates a user for a Spotify application and seals its client secret.
func (m *Manager) Register(displayName, clientID, clientSecret string) (*models.User, error) {
	clientID, clientSecret = strings.TrimSpace(clientID), strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client id and secret are required", shared.ErrMissingCredentials)
	}

	user := models.NewUser(0, strings.TrimSpace(displayName), clientID)
	if err := m.users.Create(user); err != nil {
		return nil, err
	}

	ct, err := m.vault.Store(user.ID(), clientSecret)
	if err != nil {
		if derr := m.users.Delete(user.ID()); derr != nil {
			m.logger.Warn("failed to clean up user after vault error", "user", user.ID(), "error", derr)
		}
		return nil, fmt.Errorf("failed to store client secret: %w", err)
	}
	user.SetEncryptedSecret(ct)

	m.logger.Info("user registered", "user", user.ID(), "client_id", shared.MaskSecret(clientID))
	return user, nil
}

// Remove deletes the user and the sealed client secret.
func (m *Manager) Remove(userID string) error {
	if err := m.vault.Remove(userID); err != nil && !errors.Is(err, vault.ErrNotFound) {
		return fmt.Errorf("failed to remove client secret: %w", err)
	}
	if err := m.users.Delete(userID); err != nil {
		return err
	}
	m.logger.Info("user removed", "user", userID)
	return nil
}

// Client builds a Spotify client for the user. When the user has authorized Spotify, the stored token is
// installed and refreshed tokens are persisted automatically.
func (m *Manager) Client(ctx context.Context, userID string) (*services.SpotifyService, *models.User, error) {
	user, err := m.users.Get(userID)
	if err != nil {
		return nil, nil, err
	}

	secret, err := m.vault.Retrieve(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: client secret for user %s: %v", shared.ErrMissingCredentials, userID, err)
	}

	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     user.SpotifyClientID(),
		"client_secret": secret,
		"redirect_uri":  m.redirectURI,
	}, m.spotifyOpts...)
	if err != nil {
		return nil, nil, err
	}

	if user.HasTokens() {
		token, err := m.unsealToken(user)
		if err != nil {
			return nil, nil, err
		}
		svc.UseToken(ctx, token)
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := m.SaveToken(userID, t); err != nil {
			m.logger.Warn("failed to persist refreshed token", "user", userID, "error", err)
		}
	})
	return svc, user, nil
}

// Destination returns an authorized Spotify client for the user.
//
// Users that never completed the consent flow get an error wrapping [shared.ErrNotAuthenticated].
func (m *Manager) Destination(ctx context.Context, userID string) (services.Destination, error) {
	svc, user, err := m.Client(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasTokens() {
		return nil, fmt.Errorf("%w: user %s has not authorized Spotify", shared.ErrNotAuthenticated, userID)
	}
	if err := m.users.Touch(userID); err != nil {
		m.logger.Debug("failed to record user activity", "user", userID, "error", err)
	}
	return svc, nil
}

// Authorized reports whether the user exists and has completed the consent flow, without contacting Spotify.
func (m *Manager) Authorized(userID string) error {
	user, err := m.users.Get(userID)
	if err != nil {
		return err
	}
	if !user.HasTokens() {
		return fmt.Errorf("%w: user %s has not authorized Spotify", shared.ErrNotAuthenticated, userID)
	}
	return nil
}

// AuthURL returns the Spotify consent URL for the user's application.
func (m *Manager) AuthURL(ctx context.Context, userID, state string) (string, error) {
	svc, _, err := m.Client(ctx, userID)
	if err != nil {
		return "", err
	}
	return svc.GetAuthURL(state), nil
}

// CompleteAuth exchanges an authorization code and stores the resulting tokens.
func (m *Manager) CompleteAuth(ctx context.Context, userID, code string) error {
	svc, _, err := m.Client(ctx, userID)
	if err != nil {
		return err
	}

	token, err := svc.ExchangeCodeForTokens(ctx, code)
	if err != nil {
		return err
	}
	return m.SaveToken(userID, token)
}

// SaveToken seals and stores token for the user, marking the user as verified.
//
// A token without a refresh token keeps the one already stored.
func (m *Manager) SaveToken(userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidArgument)
	}

	access, err := m.vault.Seal(userID, token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}

	var refresh string
	if token.RefreshToken != "" {
		if refresh, err = m.vault.Seal(userID, token.RefreshToken); err != nil {
			return fmt.Errorf("failed to seal refresh token: %w", err)
		}
	} else {
		user, err := m.users.Get(userID)
		if err != nil {
			return err
		}
		if refresh = user.EncryptedRefreshToken(); refresh == "" {
			return fmt.Errorf("%w: user %s", shared.ErrNoRefreshToken, userID)
		}
	}

	if err := m.users.SaveTokens(userID, access, refresh, token.Expiry); err != nil {
		return err
	}
	m.logger.Debug("tokens stored", "user", userID, "expires_at", token.Expiry)
	return nil
}

func (m *Manager) unsealToken(user *models.User) (*oauth2.Token, error) {
	token := &oauth2.Token{TokenType: "Bearer"}

	refresh, err := m.vault.Unseal(user.ID(), user.EncryptedRefreshToken())
	if err != nil {
		return nil, fmt.Errorf("failed to unseal refresh token: %w", err)
	}
	token.RefreshToken = refresh

	if ct := user.EncryptedAccessToken(); ct != "" {
		if token.AccessToken, err = m.vault.Unseal(user.ID(), ct); err != nil {
			return nil, fmt.Errorf("failed to unseal access token: %w", err)
		}
	}
	if exp := user.TokenExpiresAt(); exp != nil {
		token.Expiry = *exp
	}
	return token, nil
}
