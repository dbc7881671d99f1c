package service

import (
	"context"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/repository"
	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

// UserService covers admin-only account management.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// List returns accounts newest first.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, mapStoreError(err, "users")
	}
	return users, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "user")
	}
	return user, nil
}

// UpdateRole changes an account's role.
func (s *UserService) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	switch role {
	case domain.RoleUser, domain.RoleAgent, domain.RoleAdmin:
	default:
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, mapStoreError(err, "user")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "user")
	}
	return user, nil
}

// Delete removes an account. An admin cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if actor.ID == id {
		return apperrors.NewValidationError("cannot delete your own account", nil)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return mapStoreError(err, "user")
	}
	return nil
}
