package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
)

type stubUserRepository struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if _, ok := s.byEmail[user.Email]; ok {
		return repository.ErrConflict
	}
	copied := *user
	s.byEmail[user.Email] = &copied
	s.byID[user.ID] = &copied
	return nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if user, ok := s.byEmail[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := s.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func testAuthService(repo *stubUserRepository) Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	return New(repo, NewMemoryRevoker(), log, cfg)
}

func validSignup() SignupRequest {
	return SignupRequest{Name: "Olena", Email: "olena@example.com", Password: "abc12345"}
}

func TestSignupPasswordPolicy(t *testing.T) {
	svc := testAuthService(newStubUserRepository())
	ctx := context.Background()

	req := validSignup()
	req.Password = "abcdefgh"
	_, _, err := svc.Signup(ctx, req)
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors for letters-only password, got %v", err)
	}
	if verrs.Fields()["password"] != "Password must contain letters and numbers" {
		t.Fatalf("unexpected password message: %q", verrs.Fields()["password"])
	}

	req.Password = "abc1234"
	_, _, err = svc.Signup(ctx, req)
	if !errors.As(err, &verrs) || verrs.Fields()["password"] != "Password must be at least 8 characters" {
		t.Fatalf("expected short-password rejection, got %v", err)
	}

	req.Password = "abc12345"
	user, tokens, err := svc.Signup(ctx, req)
	if err != nil {
		t.Fatalf("valid signup failed: %v", err)
	}
	if user.ID == "" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("signup response incomplete: user=%+v tokens=%+v", user, tokens)
	}
}

func TestSignupValidationMessages(t *testing.T) {
	svc := testAuthService(newStubUserRepository())

	_, _, err := svc.Signup(context.Background(), SignupRequest{Name: "O", Email: "bad", Password: "abc12345"})
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	fields := verrs.Fields()
	if fields["name"] != "Name must be at least 2 characters" {
		t.Fatalf("unexpected name message: %q", fields["name"])
	}
	if fields["email"] != "Invalid email format" {
		t.Fatalf("unexpected email message: %q", fields["email"])
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc := testAuthService(newStubUserRepository())
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, _, err := svc.Signup(ctx, validSignup()); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestLoginVerifiesCredentials(t *testing.T) {
	svc := testAuthService(newStubUserRepository())
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, validSignup()); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	user, tokens, err := svc.Login(ctx, LoginRequest{Email: "olena@example.com", Password: "abc12345"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.Email != "olena@example.com" || tokens.AccessToken == "" {
		t.Fatalf("login response incomplete: user=%+v", user)
	}

	if _, _, err := svc.Login(ctx, LoginRequest{Email: "olena@example.com", Password: "wrong1234"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "abc12345"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthorizeResolvesSession(t *testing.T) {
	svc := testAuthService(newStubUserRepository())
	ctx := context.Background()

	user, tokens, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	session, err := svc.Authorize(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if session.UserID != user.ID || session.Name != "Olena" {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := svc.Authorize(ctx, "not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := testAuthService(newStubUserRepository())
	ctx := context.Background()

	_, tokens, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if err := svc.Logout(ctx, tokens.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := svc.Authorize(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
	// The refresh token carries its own ID and stays valid.
	if _, err := svc.Authorize(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("refresh token unexpectedly revoked: %v", err)
	}
}
