package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginSendsCredentialsAndParsesTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["email"] != "olena@example.com" || payload["password"] != "abc12345" {
			t.Fatalf("unexpected credentials: %v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(AuthResponse{
			User:   User{ID: "user-1", Name: "Olena", Email: "olena@example.com"},
			Tokens: TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900},
		})
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	resp, err := cli.Login(context.Background(), "olena@example.com", "abc12345")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.User.ID != "user-1" || resp.Tokens.AccessToken != "access" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPsychologistsEncodesListOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("filter") != "A to Z" || query.Get("limit") != "3" || query.Get("offset") != "6" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Page{
			Items: []Psychologist{{ID: "psy-1", Name: "Ann"}},
			Total: 7,
		})
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	page, err := cli.Psychologists(context.Background(), ListOptions{Filter: "A to Z", Limit: 3, Offset: 6})
	if err != nil {
		t.Fatalf("Psychologists returned error: %v", err)
	}
	if page.Total != 7 || len(page.Items) != 1 || page.Items[0].Name != "Ann" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestToggleFavoriteSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/favorites/psy-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-123" {
			t.Fatalf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := cli.ToggleFavorite(context.Background(), "token-123", "psy-1"); err != nil {
		t.Fatalf("ToggleFavorite returned error: %v", err)
	}
}

func TestAPIErrorCarriesFieldMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"phone": "Phone number must match format +380xxxxxxxxx"},
		})
	}))
	defer server.Close()

	cli, err := New(server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = cli.BookAppointment(context.Background(), AppointmentInput{})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Fields["phone"] == "" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New("localhost:9000")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if cli.baseURL != "http://localhost:9000" {
		t.Fatalf("unexpected base url: %q", cli.baseURL)
	}
}
