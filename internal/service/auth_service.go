package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kawal234/HelpDeskMIni/internal/auth"
	"github.com/kawal234/HelpDeskMIni/internal/config"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/repository"
	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

// AuthService coordinates registration, login and profile flows. The
// core never issues or verifies credentials beyond this boundary.
type AuthService struct {
	users      repository.UserRepository
	guard      *IdempotencyGuard
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// RegisterInput describes a new account request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

// RegisterResult reports registration outcome. On replay the token is
// empty: only the originally created resource id is echoed back.
type RegisterResult struct {
	User        *domain.User
	Token       string
	ExpiresAt   time.Time
	Replayed    bool
	ProcessedAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, guard *IdempotencyGuard) *AuthService {
	return &AuthService{
		users:      users,
		guard:      guard,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new account, guarded by the caller's idempotency
// key when one is supplied.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, idempotencyKey string) (*RegisterResult, error) {
	if idempotencyKey != "" {
		begin, err := s.guard.Begin(ctx, idempotencyKey, ResourceTypeUser)
		if err != nil {
			return nil, mapStoreError(err, "idempotency record")
		}
		if begin.Replay {
			user, err := s.users.GetByID(ctx, begin.ResourceID)
			if err != nil {
				return nil, mapStoreError(err, "user")
			}
			return &RegisterResult{User: user, Replayed: true, ProcessedAt: begin.ProcessedAt}, nil
		}
	}

	user, err := s.register(ctx, input)
	if err != nil {
		if idempotencyKey != "" {
			s.guard.Abort(ctx, idempotencyKey, ResourceTypeUser)
		}
		return nil, err
	}
	if idempotencyKey != "" {
		s.guard.Complete(ctx, idempotencyKey, ResourceTypeUser, user.ID)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &RegisterResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("user with this email already exists", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapStoreError(err, "user")
	}
	if _, err := s.users.GetByUsername(ctx, input.Username); err == nil {
		return nil, apperrors.NewConflict("username already taken", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapStoreError(err, "user")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperrors.NewConflict("username or email already taken", nil)
		}
		return nil, mapStoreError(err, "user")
	}
	return user, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, mapStoreError(err, "user")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// UpdateProfile changes username and/or email, keeping uniqueness.
func (s *AuthService) UpdateProfile(ctx context.Context, actor *domain.User, username, email string) (*domain.User, error) {
	if username == "" {
		username = actor.Username
	}
	if email == "" {
		email = actor.Email
	}

	if email != actor.Email {
		if other, err := s.users.GetByEmail(ctx, email); err == nil && other.ID != actor.ID {
			return nil, apperrors.NewConflict("email already taken by another user", nil)
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, mapStoreError(err, "user")
		}
	}
	if username != actor.Username {
		if other, err := s.users.GetByUsername(ctx, username); err == nil && other.ID != actor.ID {
			return nil, apperrors.NewConflict("username already taken by another user", nil)
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, mapStoreError(err, "user")
		}
	}

	if err := s.users.UpdateProfile(ctx, actor.ID, username, email); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperrors.NewConflict("username or email already taken", nil)
		}
		return nil, mapStoreError(err, "user")
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, mapStoreError(err, "user")
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new
// hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if err := auth.ComparePassword(actor.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, actor.ID, hash); err != nil {
		return mapStoreError(err, "user")
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
