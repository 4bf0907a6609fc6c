// Package auth owns the session state machine: it drives register, login
// and logout against the backend and derives the authenticated state from
// credential presence.
package auth

import (
	"context"
	"log/slog"

	"polling-client/internal/api"
	"polling-client/internal/observable"
	"polling-client/internal/platform/apperr"
	"polling-client/internal/store"
)

type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// State is derived, never stored: credential presence plus in-flight
// request status. Message carries the error or informational text.
type State struct {
	Status  Status
	Message string
}

// Service is the slice of the API client the controller calls.
type Service interface {
	Login(ctx context.Context, email, password string) (api.AuthResponse, error)
	Register(ctx context.Context, email, name, password string) (api.AuthResponse, error)
}

// Credentials is the credential store contract the controller writes.
type Credentials interface {
	Save(token string) error
	Load() string
	Clear() error
	Observe() (<-chan bool, func())
}

// Profiles is the session profile store contract.
type Profiles interface {
	Save(ctx context.Context, p store.Profile) error
	Clear(ctx context.Context) error
}

const (
	msgMissingLoginFields    = "email and password are required"
	msgMissingRegisterFields = "email, name and password are required"
	msgAccountCreated        = "account created, please log in"
	msgSessionSaveFailed     = "could not save session"
	msgNoToken               = "server returned no session token"
)

type Controller struct {
	svc      Service
	creds    Credentials
	profiles Profiles
	state    *observable.Value[State]
	log      *slog.Logger
	stop     func()
}

// NewController derives the initial state from the current credential and
// keeps it in sync with the store's presence stream, so a logout issued
// elsewhere in the process is reflected here without polling.
func NewController(svc Service, creds Credentials, profiles Profiles, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}

	initial := State{Status: StatusUnauthenticated}
	if creds.Load() != "" {
		initial.Status = StatusAuthenticated
	}

	c := &Controller{
		svc:      svc,
		creds:    creds,
		profiles: profiles,
		state:    observable.New(initial),
		log:      log,
	}

	presence, cancel := creds.Observe()
	c.stop = cancel
	go c.watchPresence(presence)

	return c
}

// Close stops the presence watcher. Pending intents finish on their own
// contexts.
func (c *Controller) Close() {
	c.stop()
}

func (c *Controller) Current() State {
	return c.state.Get()
}

// Observe streams the session state; dependents gating on "is a session
// active" subscribe here rather than reading once.
func (c *Controller) Observe() (<-chan State, func()) {
	return c.state.Subscribe()
}

// watchPresence mirrors credential presence into the in-flight-free
// states. Authenticating and Error transitions stay owned by the intents.
func (c *Controller) watchPresence(ch <-chan bool) {
	for present := range ch {
		c.state.Update(func(s State) State {
			switch {
			case !present && s.Status == StatusAuthenticated:
				return State{Status: StatusUnauthenticated}
			case present && s.Status == StatusUnauthenticated:
				return State{Status: StatusAuthenticated}
			}
			return s
		})
	}
}

// Login authenticates and establishes the session. The password is used
// for the one call and never retained.
func (c *Controller) Login(ctx context.Context, email, password string) {
	if email == "" || password == "" {
		c.state.Set(State{Status: StatusError, Message: msgMissingLoginFields})
		return
	}

	c.state.Set(State{Status: StatusAuthenticating})

	resp, err := c.svc.Login(ctx, email, password)
	if err != nil {
		c.log.Warn("login failed", "email", email, "error", err)
		c.state.Set(State{Status: StatusError, Message: apperr.UserMessage(err)})
		return
	}

	// An empty credential means unauthenticated no matter what else the
	// response carried; a 2xx without a token must not create a session.
	if resp.Token == "" {
		c.log.Warn("login response carried no token", "email", email)
		c.state.Set(State{Status: StatusError, Message: msgNoToken})
		return
	}

	// A canceled intent must not leave half a session behind.
	if ctx.Err() != nil {
		return
	}

	if err := c.creds.Save(resp.Token); err != nil {
		c.log.Error("credential save failed", "error", err)
		c.state.Set(State{Status: StatusError, Message: msgSessionSaveFailed})
		return
	}
	if err := c.profiles.Save(ctx, store.Profile{
		UserID:      resp.User.ID,
		Email:       resp.User.Email,
		DisplayName: resp.User.Name,
	}); err != nil {
		// Advisory display data; the session itself is established.
		c.log.Warn("profile save failed", "error", err)
	}

	c.state.Set(State{Status: StatusAuthenticated})
}

// Register creates the account but never establishes a session: the
// caller must log in explicitly afterwards. Any token in the response is
// deliberately discarded.
func (c *Controller) Register(ctx context.Context, email, name, password string) {
	if email == "" || name == "" || password == "" {
		c.state.Set(State{Status: StatusError, Message: msgMissingRegisterFields})
		return
	}

	c.state.Set(State{Status: StatusAuthenticating})

	if _, err := c.svc.Register(ctx, email, name, password); err != nil {
		c.log.Warn("register failed", "email", email, "error", err)
		c.state.Set(State{Status: StatusError, Message: apperr.UserMessage(err)})
		return
	}

	c.state.Set(State{Status: StatusUnauthenticated, Message: msgAccountCreated})
}

// Logout clears both stores unconditionally and is idempotent.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.creds.Clear(); err != nil {
		c.log.Warn("credential clear failed", "error", err)
	}
	if err := c.profiles.Clear(ctx); err != nil {
		c.log.Warn("profile clear failed", "error", err)
	}
	c.state.Set(State{Status: StatusUnauthenticated})
}
