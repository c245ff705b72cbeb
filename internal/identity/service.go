package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
}

// Login validates credentials and issues a bearer token. Every failure mode
// collapses into ErrInvalidCredentials so callers cannot probe for accounts.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*LoginResult, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RecordSession(ctx, token, account.ID, expiresAt, ip, ua); err != nil {
		// The token is already valid; the audit row is best-effort.
		if s.logger != nil {
			s.logger.Warn("record session", slog.Any("error", err))
		}
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// Logout revokes the token and drops its audit row.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, token); err != nil && s.logger != nil {
		s.logger.Warn("delete session", slog.Any("error", err))
	}
	return nil
}

// Authenticate resolves a bearer token to its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (*TokenClaims, error) {
	return s.tokens.Lookup(ctx, token)
}

// AccountByID fetches an account by its stable id.
func (s *Service) AccountByID(ctx context.Context, id string) (*Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrAccountNotFound
	}
	return s.repo.FindByID(ctx, accountID)
}

// PurgeExpiredSessions removes audit rows whose tokens have long expired.
func (s *Service) PurgeExpiredSessions(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteExpiredSessions(ctx, cutoff)
}
