package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
	"github.com/stanislavNemch/psychologists-services/pkg/crypto"
	"github.com/stanislavNemch/psychologists-services/pkg/jwt"
)

var (
	// ErrEmailInUse signals a signup against an already registered address.
	ErrEmailInUse = errors.New("auth: email already in use")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses do not reveal which one failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrTokenRevoked signals a token that was explicitly logged out.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	letterChar   = regexp.MustCompile(`[a-zA-Z]`)
	digitChar    = regexp.MustCompile(`[0-9]`)
)

// SignupRequest carries one registration form submission.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest carries sign-in credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is issued on successful signup or login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Service implements registration, sign-in and session handling.
type Service struct {
	users   repository.UserRepository
	revoker TokenRevoker
	logger  *slog.Logger
	cfg     config.APIConfig
}

// New constructs an auth service.
func New(users repository.UserRepository, revoker TokenRevoker, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, revoker: revoker, logger: logger, cfg: cfg}
}

// ValidateSignup checks the registration form field by field.
func ValidateSignup(req SignupRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs = append(errs, domain.FieldError{Field: "name", Message: "Name is required"})
	case len([]rune(name)) < 2:
		errs = append(errs, domain.FieldError{Field: "name", Message: "Name must be at least 2 characters"})
	}

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		errs = append(errs, domain.FieldError{Field: "email", Message: "Email is required"})
	case !emailPattern.MatchString(email):
		errs = append(errs, domain.FieldError{Field: "email", Message: "Invalid email format"})
	}

	switch {
	case req.Password == "":
		errs = append(errs, domain.FieldError{Field: "password", Message: "Password is required"})
	case len(req.Password) < 8:
		errs = append(errs, domain.FieldError{Field: "password", Message: "Password must be at least 8 characters"})
	case !letterChar.MatchString(req.Password) || !digitChar.MatchString(req.Password):
		errs = append(errs, domain.FieldError{Field: "password", Message: "Password must contain letters and numbers"})
	}

	return errs
}

// ValidateLogin checks the sign-in form. Password rules are not re-applied
// here; any non-empty password is sent for comparison.
func ValidateLogin(req LoginRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		errs = append(errs, domain.FieldError{Field: "email", Message: "Email is required"})
	case !emailPattern.MatchString(email):
		errs = append(errs, domain.FieldError{Field: "email", Message: "Invalid email format"})
	}

	if req.Password == "" {
		errs = append(errs, domain.FieldError{Field: "password", Message: "Password is required"})
	}

	return errs
}

// Signup registers a new account and signs it in atomically from the
// caller's point of view: a successful response always carries tokens.
func (s Service) Signup(ctx context.Context, req SignupRequest) (*UserInfo, *TokenPair, error) {
	if errs := ValidateSignup(req); len(errs) > 0 {
		return nil, nil, errs
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrEmailInUse
		}
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return &UserInfo{ID: user.ID, Name: user.Name, Email: user.Email}, tokens, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email
// and wrong password collapse into the same error.
func (s Service) Login(ctx context.Context, req LoginRequest) (*UserInfo, *TokenPair, error) {
	if errs := ValidateLogin(req); len(errs) > 0 {
		return nil, nil, errs
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user signed in", "user_id", user.ID)
	return &UserInfo{ID: user.ID, Name: user.Name, Email: user.Email}, tokens, nil
}

// Authorize resolves a bearer token into a live session. Revoked tokens and
// tokens for deleted accounts are rejected.
func (s Service) Authorize(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := jwt.Parse(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &domain.Session{UserID: user.ID, Name: user.Name}, nil
}

// Logout revokes the presented token for the remainder of its lifetime.
// An already-expired token is a no-op success.
func (s Service) Logout(ctx context.Context, token string) error {
	claims, err := jwt.Parse(token, s.cfg.JWTSecret)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return err
	}
	s.logger.Info("user signed out", "user_id", claims.UserID)
	return nil
}

func (s Service) issueTokens(user *domain.User) (*TokenPair, error) {
	access, err := jwt.GenerateToken(user.ID, user.Name, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.GenerateToken(user.ID, user.Name, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}
