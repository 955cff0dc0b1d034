package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
)

// State is the session lifecycle state
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

var errLoginInProgress = errors.New("login already in progress")

// Session owns one broker account's credential and its state transitions
type Session struct {
	broker string
	auth   Authenticator
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
	cred  atomic.Pointer[Credential]
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the logger for state transitions
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock overrides time.Now for expiry checks
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates an unauthenticated session. auth may be nil when the
// credential is always supplied through Restore.
func NewSession(brokerName string, auth Authenticator, opts ...SessionOption) *Session {
	s := &Session{
		broker: brokerName,
		auth:   auth,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login runs the broker login flow. On failure the session returns to the
// state it was in before.
func (s *Session) Login(ctx context.Context, req LoginRequest) error {
	if s.auth == nil {
		return broker.NewErrorResponse(broker.ErrNotAuthenticated, "", s.broker+" has no login flow configured", nil)
	}

	s.mu.Lock()
	if s.state == Authenticating {
		s.mu.Unlock()
		return broker.NewErrorResponse(broker.ErrNotAuthenticated, "", errLoginInProgress.Error(), nil)
	}
	prev := s.state
	s.transition(Authenticating)
	s.mu.Unlock()

	if req.TOTP == "" && req.TOTPSecret != "" {
		code, err := TOTP(req.TOTPSecret, s.now())
		if err != nil {
			s.setState(prev)
			return broker.NewErrorResponse(broker.ErrNotAuthenticated, "", err.Error(), nil)
		}
		req.TOTP = code
	}

	cred, err := s.auth.Login(ctx, req)
	if err != nil {
		s.setState(prev)
		return broker.AsErrorResponse(fmt.Errorf("%s login: %w", s.broker, err))
	}

	s.adopt(cred)
	return nil
}

// Restore adopts an externally issued credential, such as a portal token
func (s *Session) Restore(cred Credential) {
	s.adopt(cred)
}

func (s *Session) adopt(cred Credential) {
	if cred.ExpiresAt.IsZero() {
		if exp, err := TokenExpiry(cred.AccessToken); err == nil {
			cred.ExpiresAt = exp
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.Store(&cred)
	s.transition(Authenticated)
}

// Credential returns the live credential or fails fast with
// broker.ErrNotAuthenticated. An elapsed expiry moves the session to Expired.
func (s *Session) Credential() (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Authenticated {
		return Credential{}, fmt.Errorf("%w: %s session is %s", broker.ErrNotAuthenticated, s.broker, s.state)
	}

	cred := s.cred.Load()
	if !cred.ExpiresAt.IsZero() && !s.now().Before(cred.ExpiresAt) {
		s.transition(Expired)
		return Credential{}, fmt.Errorf("%w: %s token expired at %s", broker.ErrNotAuthenticated, s.broker, cred.ExpiresAt.Format(time.RFC3339))
	}
	return *cred, nil
}

// OnUnauthorized records that the broker rejected the credential. A
// rejection of a credential that has since been replaced is ignored. It
// reports whether a usable credential is now live.
func (s *Session) OnUnauthorized(ctx context.Context, rejected Credential) bool {
	s.mu.Lock()
	cur := s.cred.Load()
	if cur == nil || cur.AccessToken != rejected.AccessToken {
		live := s.state == Authenticated
		s.mu.Unlock()
		return live
	}
	if s.state == Authenticated {
		s.transition(Expired)
	}

	refresher, ok := s.auth.(Refresher)
	if !ok || cur.RefreshToken == "" || s.state != Expired {
		s.mu.Unlock()
		return false
	}
	s.transition(Authenticating)
	s.mu.Unlock()

	next, err := refresher.Refresh(ctx, *cur)
	if err != nil {
		s.logger.Warn().Err(err).Str("broker", s.broker).Msg("session refresh failed")
		s.setState(Expired)
		return false
	}

	s.adopt(next)
	return true
}

// Logout expires the session and calls the broker logout when supported
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	cur := s.cred.Load()
	s.transition(Expired)
	s.mu.Unlock()

	lo, ok := s.auth.(Logouter)
	if !ok || cur == nil {
		return nil
	}
	if err := lo.Logout(ctx, *cur); err != nil {
		return broker.AsErrorResponse(fmt.Errorf("%s logout: %w", s.broker, err))
	}
	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transition(state)
}

// transition must be called with mu held
func (s *Session) transition(to State) {
	if s.state == to {
		return
	}
	s.logger.Info().
		Str("broker", s.broker).
		Stringer("from", s.state).
		Stringer("to", to).
		Msg("session state changed")
	s.state = to
}
