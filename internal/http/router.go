package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardloop/users-api/internal/repository"
	"github.com/cardloop/users-api/internal/service/user"
	"github.com/cardloop/users-api/internal/ws"
	"github.com/cardloop/users-api/pkg/config"
)

// Router wires HTTP endpoints to the account service and the card event feed.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	users    user.Service
	feed     *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	cfg      config.Config
	dbHealth func(context.Context) error

	metricsOnce    sync.Once
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitCreate    = 5
	rateLimitLogin     = 12
	rateLimitWrite     = 60
	rateLimitRead      = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
	minPasswordLength  = 8
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, users user.Service, feed *ws.Hub, limiter RateLimiter, cfg config.Config, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		users:  users,
		feed:   feed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		cfg:      cfg,
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
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/users", r.audit(r.secure(r.handleUsers)))
	r.mux.HandleFunc("/users/", r.audit(r.secure(r.handleUserSubroutes)))
	r.mux.HandleFunc("/ws/cards", r.audit(r.handlerAuthRate("cards_feed", rateLimitWebsocket, rateWindowRealtime, r.handleCardsFeed)))
}

func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.withRateLimit("users_create", rateLimitCreate, rateWindowDefault, rateLimitKeyIP, r.handleCreate)(w, req)
	case http.MethodGet:
		r.handlerAuthRate("users_list", rateLimitRead, rateWindowDefault, r.handleList)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleUserSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/users/")
	if rest == "" || strings.Contains(rest, "/") {
		r.notFound(w)
		return
	}
	if rest == "login" {
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		r.withRateLimit("users_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)(w, req)
		return
	}
	id := rest
	switch req.Method {
	case http.MethodGet:
		r.handlerAuthRate("users_get", rateLimitRead, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleGet(w, req, id)
		})(w, req)
	case http.MethodPatch:
		r.handlerAuthRate("users_update", rateLimitWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleUpdate(w, req, id)
		})(w, req)
	case http.MethodDelete:
		r.handlerAuthRate("users_delete", rateLimitWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleRemove(w, req, id)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Name == "" || payload.Email == "" || payload.Username == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email, username and password are required")
		return
	}
	if len(payload.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	created, token, err := r.users.Create(req.Context(), user.CreateInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserDTO(created)})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	account, token, err := r.users.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(account)})
}

func (r *Router) handleList(w http.ResponseWriter, req *http.Request) {
	users, err := r.users.List(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toUserDTOs(users)})
}

func (r *Router) handleGet(w http.ResponseWriter, req *http.Request, id string) {
	callerID, _ := sessionUserID(req.Context())
	account, err := r.users.Get(req.Context(), callerID, id)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(account)})
}

func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request, id string) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Password != "" && len(payload.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	callerID, _ := sessionUserID(req.Context())
	account, err := r.users.Update(req.Context(), callerID, id, user.UpdateInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(account)})
}

func (r *Router) handleRemove(w http.ResponseWriter, req *http.Request, id string) {
	callerID, _ := sessionUserID(req.Context())
	account, err := r.users.Remove(req.Context(), callerID, id)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(account)})
}

func (r *Router) handleCardsFeed(w http.ResponseWriter, req *http.Request) {
	if r.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "card feed disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.feed.Register(client)
	go func() {
		defer func() {
			r.feed.Unregister(client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
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
			components["database"] = map[string]any{"status": "down"}
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

// writeServiceError maps service failures onto the wire. Internal causes are
// logged here and never leak into the response body.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "no user found")
	case errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		r.logger.Error("request failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}

func (r *Router) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(r.cfg.SessionTTL / time.Second),
	})
}

// secure applies the response headers every browser-facing route carries and
// answers CORS preflight. Origin stays wide open, matching existing clients.
func (r *Router) secure(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Access-Control-Allow-Origin", "*")
		if req.Method == http.MethodOptions {
			headers.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE")
			headers.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, req)
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
		actor := "anonymous"
		if userID, ok := sessionUserID(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", userID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
		r.recordRequestMetrics(req.Method, routeLabel(req.URL.Path), status, duration)
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
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

// routeLabel collapses user IDs out of the path so metric labels stay bounded.
func routeLabel(path string) string {
	if rest := strings.TrimPrefix(path, "/users/"); rest != path {
		if rest == "login" {
			return "/users/login"
		}
		return "/users/{id}"
	}
	return path
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
