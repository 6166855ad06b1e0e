package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/middleware"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthQueryService handles login and token refresh. There's no command side
// for these because they don't mutate application state.
type AuthQueryService struct {
	users  UserReader
	secret []byte
	ttl    time.Duration
}

func NewAuthQueryService(users UserReader, secret []byte, ttl time.Duration) *AuthQueryService {
	return &AuthQueryService{users: users, secret: secret, ttl: ttl}
}

func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(cmd.Email)))
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.IssueToken(user)
}

func (s *AuthQueryService) RefreshToken(_ context.Context, cmd cqrs.RefreshTokenCommand) (string, error) {
	claims, err := middleware.ParseToken(s.secret, cmd.Token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return middleware.SignToken(s.secret, claims.UserID, claims.Email, s.ttl)
}

// IssueToken signs a token for a freshly registered or authenticated user.
func (s *AuthQueryService) IssueToken(user *models.User) (string, error) {
	return middleware.SignToken(s.secret, user.ID, user.Email, s.ttl)
}
