// Package services contains the account service's business logic.
// SessionManager owns the credential and token lifecycle; UserService owns
// registration and profile changes.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
	"github.com/dmitrijs2005/gophaccount/internal/server/metrics"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	TokenPair
	User *models.PublicUser
}

// SessionManager verifies credentials, issues token pairs and keeps the one
// live refresh token of every user in the credential store.
type SessionManager struct {
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	log         logging.Logger
}

func NewSessionManager(m repomanager.RepositoryManager, codec *auth.Codec, log logging.Logger) *SessionManager {
	return &SessionManager{
		repomanager: m,
		codec:       codec,
		log:         log.With("module", "session"),
	}
}

// normalizeIdentity applies the case policy for usernames and emails.
func normalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Login resolves identifier as a username or an email, checks password and
// starts a new session. The new refresh token replaces any stored one.
func (s *SessionManager) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = normalizeIdentity(identifier)
	if identifier == "" {
		return nil, common.WithMessage(common.ErrValidation, "username or email is required")
	}
	if password == "" {
		return nil, common.WithMessage(common.ErrValidation, "password is required")
	}

	user, err := s.repomanager.Users().FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			metrics.LoginTotal.WithLabelValues(metrics.ResultNotFound).Inc()
			return nil, common.ErrorNotFound
		}
		metrics.LoginTotal.WithLabelValues(metrics.ResultError).Inc()
		s.log.Error(ctx, "login: user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := auth.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			metrics.LoginTotal.WithLabelValues(metrics.ResultInvalidCredential).Inc()
			return nil, common.ErrInvalidCredentials
		}
		metrics.LoginTotal.WithLabelValues(metrics.ResultError).Inc()
		s.log.Error(ctx, "login: password check failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		metrics.LoginTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	metrics.LoginTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{TokenPair: *pair, User: user.Public()}, nil
}

// Logout clears the stored refresh token. Logging out twice, or logging out a
// user that no longer exists, succeeds.
func (s *SessionManager) Logout(ctx context.Context, userID string) error {
	err := s.repomanager.Users().SetRefreshToken(ctx, userID, "")
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "logout: clear refresh token failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}
	s.log.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// equal the one stored for its user; on success it is replaced, so every
// refresh token can be used once.
func (s *SessionManager) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	if presented == "" {
		metrics.RefreshTotal.WithLabelValues(metrics.ResultMissingToken).Inc()
		return nil, common.ErrMissingToken
	}

	claims, err := s.codec.Verify(presented, auth.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			metrics.RefreshTotal.WithLabelValues(metrics.ResultExpired).Inc()
			return nil, common.ErrTokenExpired
		}
		metrics.RefreshTotal.WithLabelValues(metrics.ResultInvalidToken).Inc()
		return nil, common.ErrInvalidToken
	}

	user, err := s.repomanager.Users().FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			metrics.RefreshTotal.WithLabelValues(metrics.ResultInvalidToken).Inc()
			return nil, common.ErrInvalidToken
		}
		metrics.RefreshTotal.WithLabelValues(metrics.ResultError).Inc()
		s.log.Error(ctx, "refresh: user lookup failed", "user_id", claims.UserID, "error", err)
		return nil, common.ErrorInternal
	}

	if user.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		metrics.RefreshTotal.WithLabelValues(metrics.ResultInvalidToken).Inc()
		s.log.Warn(ctx, "refresh: token is not the current one", "user_id", user.ID)
		return nil, common.WithMessage(common.ErrInvalidToken, "refresh token is expired or used")
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	metrics.RefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return pair, nil
}

// Authenticate resolves an access token to its user, without secret fields.
// Every token or lookup failure is common.ErrorUnauthorized, except a store
// failure which is common.ErrorInternal.
func (s *SessionManager) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.codec.Verify(accessToken, auth.AccessToken)
	if err != nil {
		s.log.Debug(ctx, "authenticate: token rejected", "error", err)
		return nil, common.ErrorUnauthorized
	}

	user, err := s.repomanager.Users().FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "authenticate: user lookup failed", "user_id", claims.UserID, "error", err)
		return nil, common.ErrorInternal
	}

	return user.WithoutSecrets(), nil
}

// startSession issues a token pair and stores the refresh token. Failures are
// logged and reported as common.ErrTokenIssuance.
func (s *SessionManager) startSession(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.codec.IssueAccessToken(userID)
	if err != nil {
		s.log.Error(ctx, "issue access token failed", "user_id", userID, "error", err)
		return nil, common.ErrTokenIssuance
	}
	metrics.TokensIssued.WithLabelValues(auth.AccessToken.String()).Inc()

	refresh, err := s.codec.IssueRefreshToken(userID)
	if err != nil {
		s.log.Error(ctx, "issue refresh token failed", "user_id", userID, "error", err)
		return nil, common.ErrTokenIssuance
	}
	metrics.TokensIssued.WithLabelValues(auth.RefreshToken.String()).Inc()

	if err := s.repomanager.Users().SetRefreshToken(ctx, userID, refresh); err != nil {
		s.log.Error(ctx, "store refresh token failed", "user_id", userID, "error", err)
		return nil, common.ErrTokenIssuance
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
