// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/metrics"
	"github.com/penshort/userauth/internal/model"
	"github.com/penshort/userauth/internal/repository"
)

// Service errors.
var (
	ErrEmailTaken         = errors.New("user with that email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("user is not active")
)

// ValidationError reports invalid input. Fields maps JSON field names to messages.
type ValidationError struct {
	Fields map[string]string
	err    error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

func newValidationError(err error) *ValidationError {
	fields := make(map[string]string)

	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, fieldErr := range errs {
			fields[field] = fieldErr.Error()
		}
	}

	return &ValidationError{Fields: fields, err: err}
}

// UserStore is the persistence boundary used by UserService.
// *repository.Repository implements it.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id int32) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenIssuer mints signed tokens. *auth.TokenService implements it.
type TokenIssuer interface {
	Issue(claims auth.Claims) (string, error)
}

// UserServiceConfig holds tunables for UserService.
type UserServiceConfig struct {
	PasswordCost int
	TokenTTL     time.Duration
}

// UserService handles registration, lookup and login.
// It is safe for concurrent use.
type UserService struct {
	store        UserStore
	tokens       TokenIssuer
	passwordCost int
	tokenTTL     time.Duration
	metrics      metrics.Recorder
	now          func() time.Time

	// decoyHash is compared against on logins for unknown emails so they
	// cost as much bcrypt work as a wrong password.
	decoyOnce sync.Once
	decoyHash string
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, tokens TokenIssuer, cfg UserServiceConfig, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = auth.DefaultPasswordCost
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &UserService{
		store:        store,
		tokens:       tokens,
		passwordCost: cfg.PasswordCost,
		tokenTTL:     cfg.TokenTTL,
		metrics:      recorder,
		now:          time.Now,
	}
}

// Register validates the request, hashes the password and creates the user.
//
// The email lookup before hashing only short-circuits obvious duplicates.
// Concurrent registrations can both pass it; the storage unique constraint
// decides, and its violation is reported as ErrEmailTaken as well.
func (s *UserService) Register(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		s.metrics.IncRegistrationConflict(metrics.ConflictPrecheck)
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password, s.passwordCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) || errors.Is(err, auth.ErrEmptyPassword) {
			return nil, newValidationError(validation.Errors{"password": err})
		}
		return nil, err
	}

	active := true
	user, err := s.store.CreateUser(ctx, &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Active:       &active,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncRegistrationConflict(metrics.ConflictConstraint)
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncUserRegistered()
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id int32) (*model.User, error) {
	if id <= 0 {
		return nil, ErrUserNotFound
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// Authenticate checks credentials and returns the matching active user.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = auth.VerifyPassword(password, s.decoy())
			s.metrics.IncLoginFailed()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		s.metrics.IncLoginFailed()
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive() {
		s.metrics.IncLoginFailed()
		return nil, ErrInactiveUser
	}

	return user, nil
}

// decoy returns a hash at the service's configured cost. It is built on
// first use.
func (s *UserService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := auth.HashPassword("decoy-password-for-unknown-users", s.passwordCost)
		if err == nil {
			s.decoyHash = hash
		}
	})
	return s.decoyHash
}

// IssueToken mints a token for an established identity.
func (s *UserService) IssueToken(user *model.User) (string, *auth.Claims, error) {
	claims, err := auth.NewClaims(user.Email, model.DefaultRole, user.ID, s.now(), s.tokenTTL)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(claims)
	if err != nil {
		return "", nil, err
	}

	s.metrics.IncTokenIssued()
	return token, &claims, nil
}

// Login authenticates the credentials and issues a token.
func (s *UserService) Login(ctx context.Context, req model.TokenRequest) (*model.TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &model.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}
