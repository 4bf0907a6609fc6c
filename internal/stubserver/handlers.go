package stubserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type optionResponse struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	VotesCount int    `json:"votes_count"`
}

type pollResponse struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Options          []optionResponse `json:"options"`
	Voted            bool             `json:"voted"`
	SelectedOptionID string           `json:"selected_option_id"`
	IsOpen           bool             `json:"is_open"`
}

type createPollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type updatePollRequest struct {
	Title   string   `json:"title"`
	IsOpen  bool     `json:"is_open"`
	Options []string `json:"options"`
}

func renderUser(u *user) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Active:    true,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// renderPoll is per-requester: voted and selected_option_id reflect the
// authenticated user's own ballot.
func renderPoll(p *poll, userID string) pollResponse {
	resp := pollResponse{
		ID:     p.ID,
		Title:  p.Title,
		IsOpen: p.IsOpen,
	}
	for _, opt := range p.Options {
		resp.Options = append(resp.Options, optionResponse{
			ID:         opt.ID,
			Text:       opt.Text,
			VotesCount: opt.Votes,
		})
	}
	if selected, ok := p.votes[userID]; ok {
		resp.Voted = true
		resp.SelectedOptionID = selected
	}
	return resp
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "invalid body")
		return
	}
	if req.Email == "" || req.Name == "" || req.Password == "" {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "email, name and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Email]; exists {
		errorJSON(w, http.StatusBadRequest, "email_taken", "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	now := time.Now()
	u := &user{
		ID:           newUserID(),
		Email:        req.Email,
		Name:         req.Name,
		passwordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.Email] = u
	s.byID[u.ID] = u

	token, err := s.jwt.Generate(u.ID, tokenTTL)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  renderUser(u),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[req.Email]
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(req.Password)) != nil {
		errorJSON(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	token, err := s.jwt.Generate(u.ID, tokenTTL)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  renderUser(u),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userIDFromCtx(r)]
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "invalid_token", "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, renderUser(u))
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]pollResponse, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, renderPoll(s.polls[id], userID))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "title is required")
		return
	}
	if len(req.Options) < 2 {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "poll must have at least 2 options")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := &poll{
		ID:     newPollID(),
		Title:  req.Title,
		IsOpen: true,
		votes:  make(map[string]string),
	}
	for _, text := range req.Options {
		p.Options = append(p.Options, &option{ID: newOptionID(), Text: text})
	}
	s.polls[p.ID] = p
	s.order = append(s.order, p.ID)

	writeJSON(w, http.StatusCreated, renderPoll(p, userIDFromCtx(r)))
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[chi.URLParam(r, "id")]
	if !ok {
		errorJSON(w, http.StatusNotFound, "poll_not_found", "poll not found")
		return
	}
	writeJSON(w, http.StatusOK, renderPoll(p, userIDFromCtx(r)))
}

func (s *Server) handleUpdatePoll(w http.ResponseWriter, r *http.Request) {
	var req updatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "invalid body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		errorJSON(w, http.StatusBadRequest, "invalid_input", "title is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[chi.URLParam(r, "id")]
	if !ok {
		errorJSON(w, http.StatusNotFound, "poll_not_found", "poll not found")
		return
	}

	if len(p.votes) > 0 {
		if req.Options != nil {
			errorJSON(w, http.StatusConflict, "poll_locked", "poll options are locked once voted")
			return
		}
		if req.Title != p.Title {
			errorJSON(w, http.StatusConflict, "poll_locked", "poll title is locked once voted")
			return
		}
	}

	if req.Options != nil {
		if len(req.Options) < 2 {
			errorJSON(w, http.StatusBadRequest, "invalid_input", "poll must have at least 2 options")
			return
		}
		opts := make([]*option, 0, len(req.Options))
		for _, text := range req.Options {
			opts = append(opts, &option{ID: newOptionID(), Text: text})
		}
		p.Options = opts
	}

	p.Title = req.Title
	p.IsOpen = req.IsOpen

	writeJSON(w, http.StatusOK, renderPoll(p, userIDFromCtx(r)))
}

func (s *Server) handleDeletePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.polls[id]; !ok {
		errorJSON(w, http.StatusNotFound, "poll_not_found", "poll not found")
		return
	}
	delete(s.polls, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "poll_id")
	optionID := chi.URLParam(r, "option_id")
	userID := userIDFromCtx(r)

	if s.limiter != nil && !s.limiter.allow(userID) {
		errorJSON(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[pollID]
	if !ok {
		errorJSON(w, http.StatusNotFound, "poll_not_found", "poll not found")
		return
	}
	if !p.IsOpen {
		errorJSON(w, http.StatusBadRequest, "poll_closed", "poll is not open")
		return
	}
	if _, voted := p.votes[userID]; voted {
		errorJSON(w, http.StatusConflict, "already_voted", "user already voted in this poll")
		return
	}

	var target *option
	for _, opt := range p.Options {
		if opt.ID == optionID {
			target = opt
			break
		}
	}
	if target == nil {
		errorJSON(w, http.StatusBadRequest, "invalid_option", "option does not belong to poll")
		return
	}

	p.votes[userID] = optionID
	target.Votes++
	s.emitVote(VoteEvent{PollID: pollID, OptionID: optionID, UserID: userID})

	w.WriteHeader(http.StatusNoContent)
}
