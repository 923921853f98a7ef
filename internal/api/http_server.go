package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cliquesaude/internal/booking"
	"cliquesaude/internal/config"
	"cliquesaude/internal/domain"
	"cliquesaude/internal/metrics"
	"cliquesaude/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the public booking API and the back-office catalog
// endpoints.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      *booking.Service
	catalog  domain.CatalogRepository
	sessions domain.SessionRepository
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc *booking.Service, catalog domain.CatalogRepository, sessions domain.SessionRepository, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, svc: svc, catalog: catalog, sessions: sessions, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/appointments", srv.handleAppointments)
	mux.HandleFunc("/api/v1/appointments/", srv.handleAppointmentByID)
	mux.HandleFunc("/api/v1/professionals", srv.handleProfessionals)
	mux.HandleFunc("/api/v1/professionals/", srv.handleProfessionalByID)
	mux.HandleFunc("/api/v1/clinics", srv.handleClinics)
	mux.HandleFunc("/api/v1/clinics/", srv.handleClinicByID)
	mux.HandleFunc("/api/v1/specialties", srv.handleSpecialties)
	mux.HandleFunc("/api/v1/sessions/", srv.handleSessionByID)
	mux.HandleFunc("/api/v1/reports/appointments.xlsx", srv.handleAppointmentsReport)
	mux.HandleFunc("/healthz", srv.handleHealthz)

	handler := srv.loggingMiddleware(srv.auth.Wrap(srv.sessionMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.IsEnabled() && len(a.clients) > 0 {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = fmt.Errorf("permission denied")

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKeyHeader := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}
	extraHeader := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = "x-api-extra"
	}

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}

	return a.checkPermissions(client, r)
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermissionHTTP(r)
	if required == "" {
		return nil
	}
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/appointments"):
		if r.Method == http.MethodGet {
			return "read:appointments"
		}
		return "write:appointments"
	case strings.HasPrefix(path, "/api/v1/professionals"),
		strings.HasPrefix(path, "/api/v1/clinics"),
		strings.HasPrefix(path, "/api/v1/specialties"):
		if r.Method == http.MethodGet {
			return "read:catalog"
		}
		return "admin:catalog"
	case strings.HasPrefix(path, "/api/v1/reports"):
		return "read:reports"
	case strings.HasPrefix(path, "/api/v1/sessions"):
		return "admin:sessions"
	}
	return ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	key := a.clientKey(r)
	lim := a.getLimiter(key)
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	apiKeyHeader := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}

	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

// sessionMiddleware resolves the caller's session context from x-subject-id
// and applies the per-subject write limit. Anonymous and read traffic only
// goes through the per-key limiter; back-office sessions are exempt from the
// subject limit.
func (s *HTTPServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		subjectID := strings.TrimSpace(r.Header.Get("x-subject-id"))
		if subjectID == "" {
			next.ServeHTTP(w, r)
			return
		}

		session := s.resolveSession(r.Context(), subjectID, r.Header.Get("x-subject-role"))
		if session.IsAdmin() {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := s.sessions.CheckRateLimit(r.Context(), subjectID,
			models.RateLimitRequests, time.Duration(models.RateLimitWindow)*time.Second)
		if err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("subject rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveSession loads the cached caller context, creating one on first
// sight. A role change reported by the gateway invalidates the cached entry
// so stale privileges never outlive the window.
func (s *HTTPServer) resolveSession(ctx context.Context, subjectID, roleHeader string) *models.SessionContext {
	headerRole := strings.TrimSpace(roleHeader)

	session, err := s.sessions.GetSession(ctx, subjectID)
	if err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("session read failed")
		session = nil
	}
	if session != nil {
		if !models.ValidRole(headerRole) || session.Role == headerRole {
			return session
		}
		if err := s.sessions.ClearSession(ctx, subjectID); err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("stale session clear failed")
		}
	}

	role := headerRole
	if !models.ValidRole(role) {
		role = models.RolePaciente
	}
	session = &models.SessionContext{SubjectID: subjectID, Role: role, IssuedAt: time.Now()}
	if err := s.sessions.SetSession(ctx, session); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("session store failed")
	}
	return session
}

// handleSessionByID serves sign-out: DELETE drops the cached session context
// so the next request resolves a fresh one.
func (s *HTTPServer) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/sessions/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "Sessões indisponíveis")
		return
	}

	if err := s.sessions.ClearSession(r.Context(), id); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "Erro ao encerrar sessão", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeErrorDetails(w http.ResponseWriter, statusCode int, message, details string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "details": details})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
