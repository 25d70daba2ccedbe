package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/msomdec/usergraph/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// RegistrationService creates user accounts.
type RegistrationService struct {
	users      domain.UserRepository
	bcryptCost int
	logger     *slog.Logger
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(users domain.UserRepository, bcryptCost int, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		users:      users,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register validates the input and stores a new user with a hashed password.
//
// Validation and duplicate-email failures are returned as field errors with a
// nil error. A non-nil error means the store or the hasher failed. Both
// results nil means the user was created.
func (s *RegistrationService) Register(ctx context.Context, email, password string) ([]domain.FieldError, error) {
	email = strings.TrimSpace(email)
	if errs := ValidateRegistration(email, password); len(errs) > 0 {
		return errs, nil
	}
	email = strings.ToLower(email)

	existing, err := s.users.Find(ctx, domain.UserFilter{Email: email})
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if len(existing) > 0 {
		return duplicateEmail(), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Another request inserted the same email after our lookup.
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return duplicateEmail(), nil
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID.String()))
	return nil, nil
}

// Users returns the stored users matching filter.
func (s *RegistrationService) Users(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	if filter.Email != "" {
		filter.Email = strings.ToLower(strings.TrimSpace(filter.Email))
	}
	return s.users.Find(ctx, filter)
}

func duplicateEmail() []domain.FieldError {
	return []domain.FieldError{domain.NewFieldError(domain.PathEmail, domain.DuplicateEmail)}
}
