package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
	"github.com/stanislavNemch/psychologists-services/internal/repository"
	"github.com/stanislavNemch/psychologists-services/internal/service/auth"
	"github.com/stanislavNemch/psychologists-services/internal/service/booking"
	"github.com/stanislavNemch/psychologists-services/internal/service/catalog"
	"github.com/stanislavNemch/psychologists-services/internal/service/favorites"
	"github.com/stanislavNemch/psychologists-services/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	catalog   catalog.Service
	favorites favorites.Service
	booking   booking.Service
	feed      favorites.Feed
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	dbHealth  func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault    = time.Minute
	rateWindowRealtime   = 30 * time.Second
	rateLimitSignup      = 5
	rateLimitLogin       = 12
	rateLimitUserWrite   = 60
	rateLimitUserRead    = 120
	rateLimitPublicRead  = 120
	rateLimitAppointment = 10
	rateLimitStream      = 30
	healthCheckTimeout   = 2 * time.Second
	sseHeartbeatInterval = 25 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, catalogSvc catalog.Service, favoritesSvc favorites.Service, bookingSvc booking.Service, feed favorites.Feed, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		auth:      authSvc,
		catalog:   catalogSvc,
		favorites: favoritesSvc,
		booking:   bookingSvc,
		feed:      feed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.HandleFunc("/auth/signup", r.audit(r.withRateLimit("auth_signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit(r.withRateLimit("auth_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/logout", r.audit(r.withRateLimit("auth_logout", rateLimitUserWrite, rateWindowDefault, rateLimitKeyIP, r.handleLogout)))
	r.mux.HandleFunc("/psychologists", r.audit(r.withRateLimit("catalog_list", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handlePsychologists)))
	r.mux.HandleFunc("/psychologists/", r.audit(r.withRateLimit("catalog_get", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handlePsychologist)))
	r.mux.HandleFunc("/favorites", r.audit(r.handlerAuthRate("favorites_list", rateLimitUserRead, rateWindowDefault, r.handleFavorites)))
	r.mux.HandleFunc("/favorites/", r.audit(r.handlerAuthRate("favorites_toggle", rateLimitUserWrite, rateWindowDefault, r.handleFavoriteToggle)))
	r.mux.HandleFunc("/ws/favorites", r.audit(r.handlerAuthRate("favorites_ws", rateLimitStream, rateWindowRealtime, r.handleFavoritesWS)))
	r.mux.HandleFunc("/events/favorites", r.audit(r.handlerAuthRate("favorites_sse", rateLimitStream, rateWindowRealtime, r.handleFavoritesSSE)))
	r.mux.HandleFunc("/appointments", r.audit(r.withRateLimit("appointments", rateLimitAppointment, rateWindowDefault, rateLimitKeyIP, r.handleAppointments)))
	r.mux.Handle("/metrics", promhttp.Handler())
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload auth.SignupRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload)
	if err != nil {
		var verrs domain.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			writeFieldErrors(w, verrs)
		case errors.Is(err, auth.ErrEmailInUse):
			writeError(w, http.StatusBadRequest, "Email is already in use.")
		default:
			r.logger.Error("signup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not create account")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload auth.LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload)
	if err != nil {
		var verrs domain.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			writeFieldErrors(w, verrs)
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			r.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not sign in")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := r.auth.Logout(req.Context(), token); err != nil {
		r.logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not sign out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (r *Router) handlePsychologists(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	input := listInput(req)
	page, err := r.catalog.List(req.Context(), input)
	if err != nil {
		// A failed catalog read degrades to an empty listing rather than an
		// error page; the condition is still logged for operators.
		r.logger.Error("catalog listing failed", "error", err, "filter", input.Filter)
		writeJSON(w, http.StatusOK, catalog.Page{Items: []domain.Psychologist{}})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (r *Router) handlePsychologist(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(req.URL.Path, "/psychologists/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	profile, err := r.catalog.Get(req.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "psychologist not found")
			return
		}
		r.logger.Error("catalog lookup failed", "error", err, "psychologist_id", id)
		writeError(w, http.StatusInternalServerError, "could not load psychologist")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (r *Router) handleFavorites(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for favorites listing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	ids, err := r.favorites.IDs(req.Context(), info.UserID)
	if err != nil {
		r.logger.Error("favorites listing failed", "error", err, "user_id", info.UserID)
		writeJSON(w, http.StatusOK, catalog.Page{Items: []domain.Psychologist{}})
		return
	}
	page, err := r.catalog.ListByIDs(req.Context(), ids, listInput(req))
	if err != nil {
		r.logger.Error("favorites catalog read failed", "error", err, "user_id", info.UserID)
		writeJSON(w, http.StatusOK, catalog.Page{Items: []domain.Psychologist{}})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (r *Router) handleFavoriteToggle(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(req.URL.Path, "/favorites/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for favorite toggle", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if err := r.favorites.Toggle(req.Context(), info.UserID, id); err != nil {
		if errors.Is(err, favorites.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, "Please log in to add to favorites")
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "psychologist not found")
			return
		}
		r.logger.Error("favorite toggle failed", "error", err, "user_id", info.UserID, "psychologist_id", id)
		writeError(w, http.StatusInternalServerError, "could not update favorites")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "toggled"})
}

func (r *Router) handleFavoritesWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for favorites websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	ids, err := r.favorites.IDs(req.Context(), info.UserID)
	if err != nil {
		r.logger.Error("favorites snapshot load failed", "error", err, "user_id", info.UserID)
		writeError(w, http.StatusInternalServerError, "could not load favorites")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.favorites.Hub().Register(info.UserID, client)
	if payload, err := favorites.MarshalSnapshot(info.UserID, ids); err == nil {
		_ = client.Send(payload)
	}
	go func() {
		defer func() {
			r.favorites.Hub().Unregister(info.UserID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleFavoritesSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for favorites stream", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	store := favorites.NewStore(r.feed, r.logger)
	store.OnChange(func(ids []string) {
		payload, err := favorites.MarshalSnapshot(info.UserID, ids)
		if err != nil {
			return
		}
		_ = client.Send(payload)
	})
	store.Observe(&domain.Session{UserID: info.UserID, Name: info.Name})
	defer func() {
		store.Close()
		client.Close()
	}()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-heartbeat.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleAppointments(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload booking.Request
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	confirmation, err := r.booking.Book(req.Context(), payload)
	if err != nil {
		var verrs domain.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			writeFieldErrors(w, verrs)
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "psychologist not found")
		default:
			r.logger.Error("booking failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not book appointment")
		}
		return
	}
	writeJSON(w, http.StatusCreated, confirmation)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// listInput extracts paging and filter parameters from the query string.
func listInput(req *http.Request) catalog.ListInput {
	query := req.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	return catalog.ListInput{
		Filter: query.Get("filter"),
		Limit:  limit,
		Offset: offset,
	}
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
