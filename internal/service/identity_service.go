package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bengkel/internal/config"
	"bengkel/internal/domain"
	"bengkel/internal/metrics"
	"bengkel/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwbytes"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,pwbytes"`
}

// LoginResult is a freshly issued session plus the public user.
type LoginResult struct {
	Session *models.Session
	User    *models.User
}

type IdentityService struct {
	users      domain.UserRepository
	state      domain.StateRepository
	tokens     domain.TokenManager
	hasher     domain.PasswordHasher
	loginLimit config.LoginRateLimitConfig
	validate   *validator.Validate
	logger     *zerolog.Logger
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewIdentityService(
	users domain.UserRepository,
	state domain.StateRepository,
	tokens domain.TokenManager,
	hasher domain.PasswordHasher,
	loginLimit config.LoginRateLimitConfig,
	logger *zerolog.Logger,
) *IdentityService {
	return &IdentityService{
		users:      users,
		state:      state,
		tokens:     tokens,
		hasher:     hasher,
		loginLimit: loginLimit,
		validate:   newValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *IdentityService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(s.validate, req, "invalid registration"); err != nil {
		return nil, err
	}
	return s.createUser(ctx, req.Username, req.Email, req.Password, models.RoleUser)
}

func (s *IdentityService) createUser(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user registered")
	return user, nil
}

// Login returns domain.ErrInvalidCredentials for both an unknown email and
// a wrong password.
func (s *IdentityService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Email)
	req.Email = email
	if err := validateStruct(s.validate, req, "email and password are required"); err != nil {
		return nil, err
	}

	if s.loginLimit.Attempts > 0 {
		allowed, err := s.state.CheckRateLimit(ctx, "login:"+email, s.loginLimit.Attempts, s.loginLimit.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to check login rate limit: %w", err)
		}
		if !allowed {
			metrics.IncLogin("throttled")
			s.logger.Warn().Str("email", email).Msg("login throttled")
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		// spend the same bcrypt work as a real comparison
		_ = s.hasher.Compare(s.fallbackHash(), req.Password)
		metrics.IncLogin("failure")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		metrics.IncLogin("failure")
		s.logger.Debug().Err(err).Str("user_id", user.ID).Msg("password rejected")
		return nil, domain.ErrInvalidCredentials
	}

	session, err := s.tokens.Issue(user.Claims())
	if err != nil {
		return nil, err
	}

	metrics.IncLogin("success")
	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")
	return &LoginResult{Session: session, User: user}, nil
}

func (s *IdentityService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to prepare fallback hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Verify resolves a bearer token into its session.
func (s *IdentityService) Verify(ctx context.Context, token string) (*models.Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrUnauthenticated
	}

	session, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.state.IsTokenRevoked(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", domain.ErrInvalidToken)
	}
	return session, nil
}

// Logout revokes the session until its own expiry.
func (s *IdentityService) Logout(ctx context.Context, session *models.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if err := s.state.RevokeToken(ctx, session.ID, ttl); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", session.Claims.ID).Msg("user logged out")
	return nil
}

func (s *IdentityService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := validateStruct(s.validate, req, "invalid password change"); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

func (s *IdentityService) ListUsers(ctx context.Context, caller models.Claims) ([]*models.User, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.users.GetAllUsers(ctx)
}

// EnsureAdmin creates the configured admin account when its email is not
// registered yet. It reports whether an account was created.
func (s *IdentityService) EnsureAdmin(ctx context.Context, cfg config.BootstrapAdminConfig) (bool, error) {
	if !cfg.Enabled() {
		return false, nil
	}

	email := normalizeEmail(cfg.Email)
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			s.logger.Warn().Str("email", email).Msg("bootstrap admin email belongs to a regular user")
		}
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	req := RegisterRequest{Username: strings.TrimSpace(cfg.Username), Email: email, Password: cfg.Password}
	if err := validateStruct(s.validate, req, "invalid bootstrap admin"); err != nil {
		return false, err
	}
	if _, err := s.createUser(ctx, req.Username, req.Email, req.Password, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
