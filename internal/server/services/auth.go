// Package services contains server-side business logic. AuthService turns
// credentials into bearer tokens and resolves tokens back to live users;
// UserService owns the account lifecycle.
package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/cryptox"
	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/config"
	"github.com/dmitrijs2005/webshelf/internal/server/metrics"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/repomanager"
)

// PasswordHasher is satisfied by *cryptox.Hasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// fallbackDummyHash is used for unknown emails when a dummy hash could not
// be derived with the configured parameters.
const fallbackDummyHash = "$argon2id$v=19$m=19456,t=2,p=1$c29tZXNhbHRzb21lc2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginResult is what a successful login returns to the client.
type LoginResult struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	secret      []byte
	ttl         time.Duration
	dummyHash   string
	logger      logging.Logger
	metrics     *metrics.Metrics
}

// NewAuthService wires the service. The dummy hash checked for unknown
// emails is derived once here with the same hasher as real records, so a
// miss costs the same as a wrong password.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, cfg *config.Config,
	logger logging.Logger, mtr *metrics.Metrics) *AuthService {
	if logger == nil {
		logger = logging.Nop{}
	}
	if hasher == nil {
		hasher = cryptox.NewHasher(cryptox.DefaultParams)
	}

	dummy, err := hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	if err != nil {
		dummy = fallbackDummyHash
	}

	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		secret:      []byte(cfg.SecretKey),
		ttl:         cfg.TokenTTL,
		dummyHash:   dummy,
		logger:      logger.With("module", "auth"),
		metrics:     mtr,
	}
}

// Login checks email and password and issues a token. Unknown emails and
// wrong passwords both yield common.ErrInvalidCredentials after the same
// amount of hashing work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "login lookup failed", "error", err)
			s.metrics.LoginAttempt("error")
			return nil, common.ErrorInternal
		}
		_, _ = s.hasher.Verify(password, s.dummyHash)
		s.metrics.LoginAttempt("invalid")
		return nil, common.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", err)
		s.metrics.LoginAttempt("error")
		return nil, common.ErrorInternal
	}
	if !ok {
		s.metrics.LoginAttempt("invalid")
		return nil, common.ErrInvalidCredentials
	}

	token, err := auth.Encode(user.ID.String(), user.Role, s.secret, s.ttl)
	if err != nil {
		s.logger.Error(ctx, "token encode failed", "user_id", user.ID, "error", err)
		s.metrics.LoginAttempt("error")
		return nil, common.ErrorInternal
	}

	s.metrics.LoginAttempt("success")
	s.logger.Info(ctx, "user logged in", "user_id", user.ID)

	return &LoginResult{
		Token:     token,
		TokenType: TokenTypeBearer,
		ExpiresIn: int64(s.ttl / time.Second),
		UserID:    user.ID.String(),
		Role:      user.Role,
	}, nil
}

// ValidateToken decodes token and loads its subject from the store, so a
// deleted or demoted account is noticed before the token expires. Token
// failures are *auth.TokenError; a vanished subject is common.ErrorNotFound.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.Decode(token, s.secret)
	if err != nil {
		return nil, err
	}
	ident, err := auth.IdentityFromClaims(claims)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).FindByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "token subject lookup failed", "user_id", ident.UserID, "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

// IssueToken signs a token for an existing user without a password check.
// It backs administrative tooling.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	return auth.Encode(user.ID.String(), user.Role, s.secret, s.ttl)
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
