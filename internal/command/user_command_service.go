package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/cqrs"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/utils"
)

// ErrEmailTaken is returned when registering an address that already exists.
var ErrEmailTaken = errors.New("email already registered")

type UserWriter interface {
	Create(ctx context.Context, user *models.User) error
}

// UserCommandService registers local users for the token issuer.
type UserCommandService struct {
	users UserWriter
	log   zerolog.Logger
}

func NewUserCommandService(users UserWriter, log zerolog.Logger) *UserCommandService {
	return &UserCommandService{users: users, log: log.With().Str("component", "user_commands").Logger()}
}

func (s *UserCommandService) RegisterUser(ctx context.Context, cmd cqrs.RegisterUserCommand) (*models.User, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           utils.GenerateID(utils.UserPrefix),
		Email:        strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConstraintViolation) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}
