// Package auth verifies login credentials and resolves the principal a new
// session belongs to. Session lifecycle never depends on which authenticator
// is wired in.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"session-sentinel/internal/common/config"
	"session-sentinel/internal/common/errors"
	"session-sentinel/internal/common/httpclient"
	"session-sentinel/internal/common/logger"
)

// Authenticator verifies a username/password pair and returns the stable
// principal id the session record will carry.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// StaticAuthenticator checks credentials against a configured user list.
// Password hashes are bcrypt; plaintext never appears in configuration.
type StaticAuthenticator struct {
	users  map[string]config.StaticUser
	logger logger.Logger
}

func NewStaticAuthenticator(users []config.StaticUser, log logger.Logger) *StaticAuthenticator {
	byName := make(map[string]config.StaticUser, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	return &StaticAuthenticator{
		users:  byName,
		logger: log.WithFields(map[string]interface{}{"component": "static-auth"}),
	}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (string, error) {
	user, ok := a.users[username]
	if !ok {
		// Burn a comparison anyway so a missing user and a wrong
		// password take the same time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0pZtZ7C1r7A6sUkO5kR3yQeKj4m"), []byte(password))
		return "", errors.NewCredentialsInvalidError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Warn("password mismatch", map[string]interface{}{"username": username})
		return "", errors.NewCredentialsInvalidError()
	}

	return user.PrincipalID, nil
}

// RemoteAuthenticator delegates credential checks to an external identity
// provider over a form POST. The provider answers with the principal id.
type RemoteAuthenticator struct {
	tokenURL string
	client   *httpclient.Client
	logger   logger.Logger
}

type remoteAuthResponse struct {
	PrincipalID string `json:"principal_id"`
}

func NewRemoteAuthenticator(tokenURL string, timeout time.Duration, log logger.Logger) *RemoteAuthenticator {
	return &RemoteAuthenticator{
		tokenURL: strings.TrimSuffix(tokenURL, "/"),
		client:   httpclient.NewClient(timeout),
		logger:   log.WithFields(map[string]interface{}{"component": "remote-auth"}),
	}
}

func (a *RemoteAuthenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)

	req, err := http.NewRequest(http.MethodPost, a.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", errors.NewInternalError(fmt.Errorf("auth: build token request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.DoWithContext(ctx, req)
	if err != nil {
		return "", &errors.StandardError{
			Code:      errors.ErrCodeInternal,
			Message:   "Identity provider unreachable",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errors.NewCredentialsInvalidError()
	default:
		body, _ := io.ReadAll(resp.Body)
		a.logger.Warn("identity provider error", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return "", &errors.StandardError{
			Code:      errors.ErrCodeInternal,
			Message:   "Identity provider error",
			Details:   fmt.Sprintf("status %d", resp.StatusCode),
			Retryable: isTransientHTTPError(resp.StatusCode),
			Timestamp: time.Now().UTC(),
		}
	}

	var parsed remoteAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.NewInternalError(fmt.Errorf("auth: decode token response: %w", err))
	}
	if parsed.PrincipalID == "" {
		return "", errors.NewInternalError(fmt.Errorf("auth: identity provider returned no principal id"))
	}

	return parsed.PrincipalID, nil
}

func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// FromConfig builds the authenticator the configuration selects.
func FromConfig(cfg config.AuthConfig, log logger.Logger) (Authenticator, error) {
	switch cfg.Mode {
	case "static":
		return NewStaticAuthenticator(cfg.Users, log), nil
	case "remote":
		return NewRemoteAuthenticator(cfg.Remote.URL, time.Duration(cfg.Remote.Timeout)*time.Millisecond, log), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}
