// Package poller is the embeddable client-side companion of the lifecycle
// service. It polls the status oracle on a fixed cadence, raises and clears
// the expiry warning, and redirects to login when the server declares the
// session dead. Host applications hook in through Callbacks.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"session-sentinel/internal/common/httpclient"
	"session-sentinel/internal/common/logger"
	"session-sentinel/internal/session"
)

// State is the poller's view of the session.
type State int

const (
	// StateIdle: session live, no warning showing.
	StateIdle State = iota
	// StateWarned: the warning dialog should be visible.
	StateWarned
	// StateExpired: terminal. Only the server's word reaches this state;
	// local clock math alone never does.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarned:
		return "warned"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Callbacks are the host application's hooks. Nil callbacks are skipped.
// All callbacks fire on the poller's own goroutine.
type Callbacks struct {
	// OnWarn fires when the session enters the warning window.
	OnWarn func(remaining time.Duration)
	// OnWarningCleared fires when activity or an extend dismisses the warning.
	OnWarningCleared func()
	// OnExpired fires once, with the login redirect to navigate to.
	OnExpired func(redirectURL string)
	// OnStatus fires after every successful poll.
	OnStatus func(status session.Status)
}

// Config wires a Poller to its server.
type Config struct {
	// BaseURL of the lifecycle service, without trailing slash.
	BaseURL string
	// Token is the session credential, sent as a Bearer header.
	Token string
	// Interval between status polls.
	Interval time.Duration
	// LoginURL is where OnExpired redirects, with the return path appended.
	LoginURL string
	// ReturnPath is propagated as ?next= so login can come back here.
	ReturnPath string
	// HTTPTimeout bounds each poll request.
	HTTPTimeout time.Duration
	Callbacks   Callbacks
	Logger      logger.Logger
}

// Poller runs the polling loop. All state lives on the Run goroutine;
// Activity and StayLoggedIn only pass messages to it.
type Poller struct {
	cfg    Config
	client *httpclient.Client
	logger logger.Logger

	activityCh chan struct{}
	extendCh   chan struct{}

	mu    sync.Mutex
	state State

	// lastRemaining backs the verification timer between polls.
	lastRemaining time.Duration
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Poller{
		cfg:        cfg,
		client:     httpclient.NewClient(cfg.HTTPTimeout),
		logger:     log.WithFields(map[string]interface{}{"component": "poller"}),
		activityCh: make(chan struct{}, 1),
		extendCh:   make(chan struct{}, 1),
	}
}

// State reports the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Activity reports user activity. The warning clears optimistically; the
// next poll reconciles against the server. Never blocks.
func (p *Poller) Activity() {
	select {
	case p.activityCh <- struct{}{}:
	default:
	}
}

// StayLoggedIn requests an immediate server-side extension, out of cadence.
// Never blocks.
func (p *Poller) StayLoggedIn() {
	select {
	case p.extendCh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled or the session expires. The expiry
// transition is terminal; Run returns nil after firing OnExpired.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// The verification timer fires when the locally projected remaining
	// time hits zero between polls, forcing an immediate check instead of
	// a local expiry verdict.
	verify := time.NewTimer(time.Hour)
	verify.Stop()
	defer verify.Stop()

	// Prime state with one poll so embedders see fresh data right away.
	if done := p.poll(ctx, verify); done {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if done := p.poll(ctx, verify); done {
				return nil
			}
		case <-verify.C:
			if done := p.poll(ctx, verify); done {
				return nil
			}
		case <-p.activityCh:
			p.handleActivity()
		case <-p.extendCh:
			if done := p.extend(ctx, verify); done {
				return nil
			}
		}
	}
}

// poll fetches the status oracle and reconciles local state. Returns true
// when the session is terminally expired.
func (p *Poller) poll(ctx context.Context, verify *time.Timer) bool {
	req, err := http.NewRequest(http.MethodGet, p.cfg.BaseURL+"/api/session/status", nil)
	if err != nil {
		p.logger.Error("build status request", map[string]interface{}{"error": err.Error()})
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		// Transient by definition. Keep the current state; a flaky
		// network must never log the user out.
		p.logger.Warn("status poll failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var status session.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			p.logger.Warn("malformed status payload", map[string]interface{}{"error": err.Error()})
			return false
		}
		p.reconcile(status, verify)
		return false

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Only the server's explicit word moves us to expired.
		p.expire()
		return true

	default:
		p.logger.Warn("status poll error", map[string]interface{}{"status": resp.StatusCode})
		return false
	}
}

func (p *Poller) reconcile(status session.Status, verify *time.Timer) {
	remaining := time.Duration(status.TimeRemaining) * time.Second
	p.lastRemaining = remaining

	// Re-arm the verification timer for the projected expiry instant.
	if !verify.Stop() {
		select {
		case <-verify.C:
		default:
		}
	}
	if remaining > 0 {
		verify.Reset(remaining)
	}

	prev := p.State()
	switch {
	case status.ShowWarning && prev == StateIdle:
		p.setState(StateWarned)
		if p.cfg.Callbacks.OnWarn != nil {
			p.cfg.Callbacks.OnWarn(remaining)
		}
	case !status.ShowWarning && prev == StateWarned:
		p.setState(StateIdle)
		if p.cfg.Callbacks.OnWarningCleared != nil {
			p.cfg.Callbacks.OnWarningCleared()
		}
	}

	if p.cfg.Callbacks.OnStatus != nil {
		p.cfg.Callbacks.OnStatus(status)
	}
}

func (p *Poller) handleActivity() {
	if p.State() != StateWarned {
		return
	}
	// Optimistic: activity implies an interceptor touch happened (or is
	// about to). The next poll corrects us if that was wrong.
	p.setState(StateIdle)
	if p.cfg.Callbacks.OnWarningCleared != nil {
		p.cfg.Callbacks.OnWarningCleared()
	}
}

// extend performs the explicit "stay logged in" round trip. Returns true on
// terminal expiry.
func (p *Poller) extend(ctx context.Context, verify *time.Timer) bool {
	req, err := http.NewRequest(http.MethodPost, p.cfg.BaseURL+"/api/session/extend", nil)
	if err != nil {
		p.logger.Error("build extend request", map[string]interface{}{"error": err.Error()})
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)

	resp, err := p.client.DoWithContext(ctx, req)
	if err != nil {
		p.logger.Warn("extend failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed struct {
			TimeRemaining int `json:"time_remaining"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			p.logger.Warn("malformed extend payload", map[string]interface{}{"error": err.Error()})
			return false
		}
		p.reconcile(session.Status{
			Authenticated: true,
			TimeRemaining: parsed.TimeRemaining,
		}, verify)
		return false

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		p.expire()
		return true

	default:
		p.logger.Warn("extend error", map[string]interface{}{"status": resp.StatusCode})
		return false
	}
}

func (p *Poller) expire() {
	p.setState(StateExpired)
	redirect := p.redirectURL()
	p.logger.Info("session expired, redirecting", map[string]interface{}{"redirect": redirect})
	if p.cfg.Callbacks.OnExpired != nil {
		p.cfg.Callbacks.OnExpired(redirect)
	}
}

func (p *Poller) redirectURL() string {
	if p.cfg.ReturnPath == "" {
		return p.cfg.LoginURL
	}
	return fmt.Sprintf("%s?next=%s", p.cfg.LoginURL, url.QueryEscape(p.cfg.ReturnPath))
}
