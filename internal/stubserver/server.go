// Package stubserver is an in-memory stand-in for the polls backend. It
// implements the same REST contract the client consumes, so integration
// tests and local development run against real HTTP instead of mocks.
package stubserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"polling-client/internal/platform/jwtx"
)

type Options struct {
	JWTSecret string
	// VotesPerMin enables per-user vote rate limiting when > 0.
	VotesPerMin int
	Logger      *slog.Logger
}

type user struct {
	ID           string
	Email        string
	Name         string
	passwordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type option struct {
	ID    string
	Text  string
	Votes int
}

type poll struct {
	ID      string
	Title   string
	IsOpen  bool
	Options []*option
	// votes maps user id to the chosen option id.
	votes map[string]string
}

// VoteEvent is emitted after every accepted vote and consumed by the
// stats logger.
type VoteEvent struct {
	PollID   string
	OptionID string
	UserID   string
}

type Server struct {
	mu      sync.Mutex
	users   map[string]*user // by email
	byID    map[string]*user
	polls   map[string]*poll
	order   []string // poll ids in creation order
	jwt     *jwtx.Manager
	log     *slog.Logger
	voteCh  chan VoteEvent
	limiter *userRateLimiter
	router  http.Handler
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		users:  make(map[string]*user),
		byID:   make(map[string]*user),
		polls:  make(map[string]*poll),
		jwt:    jwtx.NewManager(opts.JWTSecret, "polling-stub"),
		log:    log,
		voteCh: make(chan VoteEvent, 100),
	}
	if opts.VotesPerMin > 0 {
		s.limiter = newUserRateLimiter(rate.Every(time.Minute/time.Duration(opts.VotesPerMin)), opts.VotesPerMin, 10*time.Minute)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/profile", s.handleProfile)
		r.Get("/polls", s.handleListPolls)
		r.Post("/polls", s.handleCreatePoll)
		r.Get("/polls/{id}", s.handleGetPoll)
		r.Put("/polls/{id}", s.handleUpdatePoll)
		r.Delete("/polls/{id}", s.handleDeletePoll)
		r.Post("/polls/{poll_id}/vote/{option_id}", s.handleVote)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run consumes vote events until the context is canceled. Optional: when
// nobody runs it, events are dropped rather than blocking the handlers.
func (s *Server) Run(ctx context.Context) {
	s.log.Info("stub vote logger started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stub vote logger stopped")
			return
		case ev := <-s.voteCh:
			s.log.Info("vote recorded",
				"poll_id", ev.PollID,
				"option_id", ev.OptionID,
				"user_id", ev.UserID,
			)
		}
	}
}

func (s *Server) emitVote(ev VoteEvent) {
	select {
	case s.voteCh <- ev:
	default:
	}
}

func newUserID() string   { return uuid.NewString() }
func newPollID() string   { return uuid.NewString() }
func newOptionID() string { return uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}
