package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the psychologists API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	if body == nil {
		return apiErr
	}
	var payload struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Error)
	apiErr.Fields = payload.Fields
	return apiErr
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse captures the payload emitted by signup and login.
type AuthResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Signup registers a new account and returns its first token pair.
func (c *Client) Signup(ctx context.Context, name, email, password string) (AuthResponse, error) {
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Logout revokes the supplied access token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, token, nil)
}

// Review mirrors a single catalog review.
type Review struct {
	Reviewer string  `json:"reviewer"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
}

// Psychologist mirrors a catalog profile.
type Psychologist struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	AvatarURL           string   `json:"avatar_url"`
	Experience          string   `json:"experience"`
	Reviews             []Review `json:"reviews"`
	PricePerHour        float64  `json:"price_per_hour"`
	Rating              float64  `json:"rating"`
	License             string   `json:"license"`
	Specialization      string   `json:"specialization"`
	InitialConsultation string   `json:"initial_consultation"`
	About               string   `json:"about"`
}

// Page is one slice of a filtered listing.
type Page struct {
	Items   []Psychologist `json:"items"`
	Total   int            `json:"total"`
	HasMore bool           `json:"has_more"`
}

// ListOptions narrows and pages catalog reads.
type ListOptions struct {
	Filter string
	Limit  int
	Offset int
}

func (o ListOptions) query() string {
	values := url.Values{}
	if strings.TrimSpace(o.Filter) != "" {
		values.Set("filter", o.Filter)
	}
	if o.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", o.Limit))
	}
	if o.Offset > 0 {
		values.Set("offset", fmt.Sprintf("%d", o.Offset))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// Psychologists returns one page of the filtered catalog.
func (c *Client) Psychologists(ctx context.Context, opts ListOptions) (Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/psychologists"+opts.query(), nil, "", &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Psychologist fetches a single profile by identifier.
func (c *Client) Psychologist(ctx context.Context, id string) (Psychologist, error) {
	path := fmt.Sprintf("/psychologists/%s", url.PathEscape(id))
	var profile Psychologist
	if err := c.do(ctx, http.MethodGet, path, nil, "", &profile); err != nil {
		return Psychologist{}, err
	}
	return profile, nil
}

// Favorites returns one page of the caller's favorite profiles.
func (c *Client) Favorites(ctx context.Context, token string, opts ListOptions) (Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/favorites"+opts.query(), nil, token, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// ToggleFavorite flips a profile in and out of the caller's favorite set.
func (c *Client) ToggleFavorite(ctx context.Context, token, psychologistID string) error {
	path := fmt.Sprintf("/favorites/%s", url.PathEscape(psychologistID))
	return c.do(ctx, http.MethodPost, path, nil, token, nil)
}

// AppointmentInput carries one appointment form submission.
type AppointmentInput struct {
	PsychologistID string `json:"psychologist_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Comment        string `json:"comment"`
	Time           string `json:"time"`
}

// Confirmation acknowledges a stored appointment request.
type Confirmation struct {
	Message          string `json:"message"`
	PsychologistName string `json:"psychologist_name"`
}

// BookAppointment submits an appointment request.
func (c *Client) BookAppointment(ctx context.Context, input AppointmentInput) (Confirmation, error) {
	var confirmation Confirmation
	if err := c.do(ctx, http.MethodPost, "/appointments", input, "", &confirmation); err != nil {
		return Confirmation{}, err
	}
	return confirmation, nil
}
