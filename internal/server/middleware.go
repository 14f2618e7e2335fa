// Package server exposes the session lifecycle over HTTP: login, the status
// oracle, explicit extension, and logout, plus the activity interceptor that
// keeps the rolling inactivity window honest.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"session-sentinel/internal/audit"
	"session-sentinel/internal/common/errors"
	"session-sentinel/internal/common/logger"
	"session-sentinel/internal/common/metrics"
	"session-sentinel/internal/session"
)

// Response headers carrying the oracle snapshot on every authenticated
// request, so clients get lifecycle state without a dedicated poll.
const (
	HeaderTimeoutRemaining = "X-Session-Timeout-Remaining"
	HeaderWarning          = "X-Session-Warning"
)

type contextKey int

const (
	ctxKeySession contextKey = iota
	ctxKeyStatus
)

// SessionFromContext returns the post-touch session record installed by the
// interceptor.
func SessionFromContext(ctx context.Context) (session.Record, bool) {
	rec, ok := ctx.Value(ctxKeySession).(session.Record)
	return rec, ok
}

// StatusFromContext returns the status snapshot taken BEFORE the request's
// own touch, so the oracle reports the window the request arrived in.
func StatusFromContext(ctx context.Context) (session.Status, bool) {
	status, ok := ctx.Value(ctxKeyStatus).(session.Status)
	return status, ok
}

// Interceptor guards authenticated routes. Every request it admits counts
// as activity and slides the inactivity window forward.
type Interceptor struct {
	store     session.Store
	storeName string
	policy    session.Policy
	clock     session.Clock
	cookies   *CookieManager
	recorder  *audit.Recorder
	errs      *errors.ErrorHandler
	logger    logger.Logger
}

func NewInterceptor(
	store session.Store,
	storeName string,
	policy session.Policy,
	clock session.Clock,
	cookies *CookieManager,
	recorder *audit.Recorder,
	errs *errors.ErrorHandler,
	log logger.Logger,
) *Interceptor {
	return &Interceptor{
		store:     store,
		storeName: storeName,
		policy:    policy,
		clock:     clock,
		cookies:   cookies,
		recorder:  recorder,
		errs:      errs,
		logger:    log.WithFields(map[string]interface{}{"component": "interceptor"}),
	}
}

// RequireSession authenticates the request, evaluates expiry against the
// PRE-touch snapshot, then records the request as activity. Ordering
// matters: checking first means a request landing just inside the window
// still sees its true remaining time in the headers.
func (i *Interceptor) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := i.cookies.Token(r)
		if token == "" {
			i.errs.WriteHTTP(w, r, errors.NewUnauthenticatedError("no session cookie or bearer token"))
			return
		}

		ctx := r.Context()
		rec, err := i.store.Get(ctx, token)
		if err == session.ErrNotFound {
			i.errs.WriteHTTP(w, r, errors.NewSessionNotFoundError(token))
			return
		}
		if err != nil {
			i.errs.WriteHTTP(w, r, errors.NewStoreUnavailableError(err))
			return
		}

		now := i.clock.Now()
		if rec.Expired(now, i.policy) {
			i.expire(ctx, rec, now, clientIP(r))
			i.errs.WriteHTTP(w, r, errors.NewSessionExpiredError(token, now.Sub(rec.LastActivityAt)))
			return
		}

		status := i.policy.StatusOf(rec, now)
		w.Header().Set(HeaderTimeoutRemaining, strconv.Itoa(status.TimeRemaining))
		if status.ShowWarning {
			w.Header().Set(HeaderWarning, "true")
			metrics.WarningResponses.Inc()
		}

		// The request itself is activity. A failed touch is logged but
		// never fails the request; the session just times out sooner.
		if err := i.store.Touch(ctx, token, now); err != nil {
			i.logger.Warn("touch failed", map[string]interface{}{
				"session_id": token,
				"error":      err.Error(),
			})
		} else {
			metrics.SessionTouches.WithLabelValues(i.storeName).Inc()
			rec.LastActivityAt = now
		}

		ctx = context.WithValue(ctx, ctxKeySession, rec)
		ctx = context.WithValue(ctx, ctxKeyStatus, status)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (i *Interceptor) expire(ctx context.Context, rec session.Record, now time.Time, ip string) {
	if err := i.store.Destroy(ctx, rec.SessionID); err != nil {
		i.logger.Warn("destroy of expired session failed", map[string]interface{}{
			"session_id": rec.SessionID,
			"error":      err.Error(),
		})
		return
	}

	metrics.SessionsDestroyed.WithLabelValues(metrics.ReasonExpired).Inc()
	metrics.SessionsActive.Dec()

	event := audit.NewEvent(audit.EventSessionExpired, rec.SessionID, rec.PrincipalID, now)
	event.ClientIP = ip
	event.Reason = errors.ReasonInactivityTimeout
	i.recorder.Record(event)

	i.logger.Info("session expired", map[string]interface{}{
		"session_id":   rec.SessionID,
		"principal_id": rec.PrincipalID,
		"idle_seconds": int(now.Sub(rec.LastActivityAt).Seconds()),
	})
}

// clientIP prefers the first X-Forwarded-For hop, then the peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
