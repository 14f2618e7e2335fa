package server

import (
	"encoding/json"
	"net/http"
	"time"

	"session-sentinel/internal/audit"
	"session-sentinel/internal/auth"
	"session-sentinel/internal/common/errors"
	"session-sentinel/internal/common/logger"
	"session-sentinel/internal/common/metrics"
	"session-sentinel/internal/session"
)

// Handlers implements the session lifecycle endpoints.
type Handlers struct {
	store          session.Store
	storeName      string
	policy         session.Policy
	clock          session.Clock
	authenticator  auth.Authenticator
	cookies        *CookieManager
	recorder       *audit.Recorder
	errs           *errors.ErrorHandler
	logger         logger.Logger
	pollIntervalMS int
}

func NewHandlers(
	store session.Store,
	storeName string,
	policy session.Policy,
	clock session.Clock,
	authenticator auth.Authenticator,
	cookies *CookieManager,
	recorder *audit.Recorder,
	errs *errors.ErrorHandler,
	log logger.Logger,
	pollIntervalMS int,
) *Handlers {
	return &Handlers{
		store:          store,
		storeName:      storeName,
		policy:         policy,
		clock:          clock,
		authenticator:  authenticator,
		cookies:        cookies,
		recorder:       recorder,
		errs:           errs,
		logger:         log.WithFields(map[string]interface{}{"component": "handlers"}),
		pollIntervalMS: pollIntervalMS,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token          string `json:"token"`
	PrincipalID    string `json:"principal_id"`
	ExpiresIn      int    `json:"expires_in"`
	PollIntervalMS int    `json:"poll_interval_ms"`
}

// Login verifies credentials, mints a session, and installs the cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must be JSON with username and password",
		})
		return
	}

	principalID, err := h.authenticator.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.errs.WriteHTTP(w, r, err)
		return
	}

	token, err := session.NewSessionID()
	if err != nil {
		h.errs.WriteHTTP(w, r, errors.NewInternalError(err))
		return
	}

	now := h.clock.Now()
	rec := session.NewRecord(token, principalID, now)
	if err := h.store.Create(r.Context(), rec); err != nil {
		h.errs.WriteHTTP(w, r, errors.NewStoreUnavailableError(err))
		return
	}

	metrics.SessionsCreated.WithLabelValues(h.storeName).Inc()
	metrics.SessionsActive.Inc()

	event := audit.NewEvent(audit.EventSessionCreated, token, principalID, now)
	event.ClientIP = clientIP(r)
	h.recorder.Record(event)

	h.logger.Info("session created", map[string]interface{}{
		"session_id":   token,
		"principal_id": principalID,
	})

	h.cookies.Set(w, token)
	writeJSON(w, http.StatusCreated, loginResponse{
		Token:          token,
		PrincipalID:    principalID,
		ExpiresIn:      int(h.policy.InactivityTimeout / time.Second),
		PollIntervalMS: h.pollIntervalMS,
	})
}

// Status reports the oracle snapshot taken before this request's touch.
// The poll itself still counts as activity, so a client that keeps polling
// keeps its session alive.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	status, ok := StatusFromContext(r.Context())
	if !ok {
		h.errs.WriteHTTP(w, r, errors.NewUnauthenticatedError("no session in request context"))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type extendResponse struct {
	Message       string `json:"message"`
	TimeRemaining int    `json:"time_remaining"`
}

// Extend acknowledges a "stay logged in" click. The interceptor already
// counted this request as activity, so the window is at its full width.
func (h *Handlers) Extend(w http.ResponseWriter, r *http.Request) {
	rec, ok := SessionFromContext(r.Context())
	if !ok {
		h.errs.WriteHTTP(w, r, errors.NewUnauthenticatedError("no session in request context"))
		return
	}

	event := audit.NewEvent(audit.EventSessionExtended, rec.SessionID, rec.PrincipalID, h.clock.Now())
	event.ClientIP = clientIP(r)
	h.recorder.Record(event)

	writeJSON(w, http.StatusOK, extendResponse{
		Message:       "Session extended",
		TimeRemaining: int(h.policy.InactivityTimeout / time.Second),
	})
}

type detailResponse struct {
	SessionID      string    `json:"session_id"`
	PrincipalID    string    `json:"principal_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Detail exposes the full record for the calling session.
func (h *Handlers) Detail(w http.ResponseWriter, r *http.Request) {
	rec, ok := SessionFromContext(r.Context())
	if !ok {
		h.errs.WriteHTTP(w, r, errors.NewUnauthenticatedError("no session in request context"))
		return
	}

	writeJSON(w, http.StatusOK, detailResponse{
		SessionID:      rec.SessionID,
		PrincipalID:    rec.PrincipalID,
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivityAt,
		ExpiresAt:      rec.ExpiresAt(h.policy),
	})
}

// Logout destroys the caller's session. Registered outside the interceptor
// on purpose: logging out an already-expired or missing session must
// succeed, so the handler resolves the token itself and treats every
// outcome as a clean logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.cookies.Token(r)
	if token != "" {
		rec, err := h.store.Get(r.Context(), token)
		existed := err == nil

		if err := h.store.Destroy(r.Context(), token); err != nil {
			h.errs.WriteHTTP(w, r, errors.NewStoreUnavailableError(err))
			return
		}

		if existed {
			metrics.SessionsDestroyed.WithLabelValues(metrics.ReasonLogout).Inc()
			metrics.SessionsActive.Dec()

			event := audit.NewEvent(audit.EventSessionDestroyed, rec.SessionID, rec.PrincipalID, h.clock.Now())
			event.ClientIP = clientIP(r)
			event.Reason = errors.ReasonUserLogout
			h.recorder.Record(event)

			h.logger.Info("session destroyed", map[string]interface{}{
				"session_id":   rec.SessionID,
				"principal_id": rec.PrincipalID,
			})
		}
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the session store answers.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	// A lookup of a token that cannot exist exercises the backend round
	// trip without touching real state.
	_, err := h.store.Get(r.Context(), "readiness-probe")
	if err != nil && err != session.ErrNotFound {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
