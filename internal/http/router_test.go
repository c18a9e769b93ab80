package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"log/slog"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/internal/service/auth"
	"github.com/stanislavNemch/psychologists-services/internal/service/booking"
	"github.com/stanislavNemch/psychologists-services/internal/service/catalog"
	"github.com/stanislavNemch/psychologists-services/internal/service/favorites"
	"github.com/stanislavNemch/psychologists-services/internal/ws"
	"github.com/stanislavNemch/psychologists-services/pkg/config"
)

// memoryRepo backs every repository interface for handler tests.
type memoryRepo struct {
	users        map[string]*domain.User
	usersByEmail map[string]*domain.User
	profiles     map[string]domain.Psychologist
	favorites    map[string]map[string]bool
	appointments []domain.Appointment
	profileErr   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:        make(map[string]*domain.User),
		usersByEmail: make(map[string]*domain.User),
		profiles:     make(map[string]domain.Psychologist),
		favorites:    make(map[string]map[string]bool),
	}
}

func (m *memoryRepo) CreateUser(ctx context.Context, user *domain.User) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrConflict
	}
	copied := *user
	m.users[user.ID] = &copied
	m.usersByEmail[user.Email] = &copied
	return nil
}

func (m *memoryRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if user, ok := m.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRepo) UpsertPsychologist(ctx context.Context, profile *domain.Psychologist) error {
	m.profiles[profile.ID] = *profile
	return nil
}

func (m *memoryRepo) GetPsychologistByID(ctx context.Context, id string) (*domain.Psychologist, error) {
	if profile, ok := m.profiles[id]; ok {
		copied := profile
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRepo) ListPsychologists(ctx context.Context) ([]domain.Psychologist, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.Psychologist, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.profiles[id])
	}
	return out, nil
}

func (m *memoryRepo) ListPsychologistsByIDs(ctx context.Context, ids []string) ([]domain.Psychologist, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	var out []domain.Psychologist
	for _, id := range ids {
		if profile, ok := m.profiles[id]; ok {
			out = append(out, profile)
		}
	}
	return out, nil
}

func (m *memoryRepo) AddFavorite(ctx context.Context, entry *domain.FavoriteEntry) error {
	if m.favorites[entry.UserID] == nil {
		m.favorites[entry.UserID] = make(map[string]bool)
	}
	m.favorites[entry.UserID][entry.PsychologistID] = true
	return nil
}

func (m *memoryRepo) RemoveFavorite(ctx context.Context, userID, psychologistID string) error {
	delete(m.favorites[userID], psychologistID)
	return nil
}

func (m *memoryRepo) IsFavorite(ctx context.Context, userID, psychologistID string) (bool, error) {
	return m.favorites[userID][psychologistID], nil
}

func (m *memoryRepo) ListFavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	ids := make([]string, 0, len(m.favorites[userID]))
	for id := range m.favorites[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryRepo) CreateAppointment(ctx context.Context, appointment *domain.Appointment) error {
	m.appointments = append(m.appointments, *appointment)
	return nil
}

func (m *memoryRepo) ListAppointmentsByPsychologist(ctx context.Context, psychologistID string, limit int) ([]domain.Appointment, error) {
	return append([]domain.Appointment(nil), m.appointments...), nil
}

func testRouter(t *testing.T, repo *memoryRepo) *Router {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.APIConfig{
		JWTSecret:            "test-secret",
		ContactEncryptionKey: "contact-secret",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      24 * time.Hour,
		PageSize:             3,
	}

	authSvc := auth.New(repo, auth.NewMemoryRevoker(), log, cfg)
	catalogSvc := catalog.New(repo, log, cfg)
	favoritesSvc := favorites.New(repo, ws.NewHub(), log)
	bookingSvc := booking.New(repo, repo, log, cfg)
	feed := favorites.NewHubFeed(favoritesSvc)

	router := NewRouter(log, authSvc, catalogSvc, favoritesSvc, bookingSvc, feed, NewMemoryRateLimiter(), nil)
	t.Cleanup(router.Close)
	return router
}

func doJSON(t *testing.T, router *Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func signupUser(t *testing.T, router *Router) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"name":     "Olena",
		"email":    "olena@example.com",
		"password": "abc12345",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &payload)
	if payload.Tokens.AccessToken == "" {
		t.Fatal("signup response missing access token")
	}
	return payload.Tokens.AccessToken
}

func seedProfiles(repo *memoryRepo) {
	repo.profiles["psy-1"] = domain.Psychologist{ID: "psy-1", Name: "Bob", PricePerHour: 15, Rating: 4}
	repo.profiles["psy-2"] = domain.Psychologist{ID: "psy-2", Name: "Ann", PricePerHour: 5, Rating: 2}
}

func TestSignupDuplicateEmailMessage(t *testing.T) {
	router := testRouter(t, newMemoryRepo())
	signupUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"name":     "Olena",
		"email":    "olena@example.com",
		"password": "abc12345",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var payload struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &payload)
	if payload.Error != "Email is already in use." {
		t.Fatalf("unexpected error message: %q", payload.Error)
	}
}

func TestSignupValidationFields(t *testing.T) {
	router := testRouter(t, newMemoryRepo())
	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", map[string]string{
		"name":     "O",
		"email":    "bad",
		"password": "abcdefgh",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var payload struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &payload)
	if payload.Fields["password"] != "Password must contain letters and numbers" {
		t.Fatalf("unexpected password field: %q", payload.Fields["password"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router := testRouter(t, newMemoryRepo())
	signupUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "olena@example.com",
		"password": "wrong1234",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPsychologistsListingAndPaging(t *testing.T) {
	repo := newMemoryRepo()
	seedProfiles(repo)
	router := testRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/psychologists?filter=A+to+Z", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page catalog.Page
	decodeBody(t, rec, &page)
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].Name != "Ann" || page.Items[1].Name != "Bob" {
		t.Fatalf("A to Z order wrong: %+v", page.Items)
	}
}

func TestPsychologistsListingDegradesToEmptyPage(t *testing.T) {
	repo := newMemoryRepo()
	repo.profileErr = errors.New("catalog offline")
	router := testRouter(t, repo)

	rec := doJSON(t, router, http.MethodGet, "/psychologists", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on degraded listing, got %d", rec.Code)
	}
	var page catalog.Page
	decodeBody(t, rec, &page)
	if len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestPsychologistNotFound(t *testing.T) {
	router := testRouter(t, newMemoryRepo())
	rec := doJSON(t, router, http.MethodGet, "/psychologists/missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestFavoritesRequireAuth(t *testing.T) {
	router := testRouter(t, newMemoryRepo())

	rec := doJSON(t, router, http.MethodPost, "/favorites/psy-1", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/favorites", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestFavoriteToggleRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	seedProfiles(repo)
	router := testRouter(t, repo)
	token := signupUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/favorites/psy-1", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("toggle status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/favorites", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("favorites status %d", rec.Code)
	}
	var page catalog.Page
	decodeBody(t, rec, &page)
	if len(page.Items) != 1 || page.Items[0].ID != "psy-1" {
		t.Fatalf("unexpected favorites page: %+v", page)
	}

	rec = doJSON(t, router, http.MethodPost, "/favorites/psy-1", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("second toggle status %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/favorites", token, nil)
	decodeBody(t, rec, &page)
	if len(page.Items) != 0 {
		t.Fatalf("expected empty favorites after second toggle: %+v", page)
	}
}

func TestAppointmentBooking(t *testing.T) {
	repo := newMemoryRepo()
	seedProfiles(repo)
	router := testRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", "", booking.Request{
		PsychologistID: "psy-1",
		Name:           "Olena",
		Phone:          "+380998887766",
		Email:          "olena@example.com",
		Comment:        "Morning slot please",
		Time:           "09:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("booking status %d: %s", rec.Code, rec.Body.String())
	}
	var confirmation booking.Confirmation
	decodeBody(t, rec, &confirmation)
	if confirmation.Message != "Appointment request sent successfully!" || confirmation.PsychologistName != "Bob" {
		t.Fatalf("unexpected confirmation: %+v", confirmation)
	}
	if len(repo.appointments) != 1 {
		t.Fatalf("expected 1 stored appointment, got %d", len(repo.appointments))
	}
}

func TestAppointmentValidation(t *testing.T) {
	repo := newMemoryRepo()
	seedProfiles(repo)
	router := testRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", "", booking.Request{
		PsychologistID: "psy-1",
		Name:           "Olena",
		Phone:          "+38099888776",
		Email:          "olena@example.com",
		Comment:        "Morning slot please",
		Time:           "09:00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var payload struct {
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &payload)
	if payload.Fields["phone"] != "Phone number must match format +380xxxxxxxxx" {
		t.Fatalf("unexpected phone field: %q", payload.Fields["phone"])
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	router := testRouter(t, newMemoryRepo())
	token := signupUser(t, router)

	rec := doJSON(t, router, http.MethodPost, "/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/favorites", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := testRouter(t, newMemoryRepo())
	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	var payload struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &payload)
	if payload.Status != "ok" {
		t.Fatalf("unexpected health status %q", payload.Status)
	}
}
