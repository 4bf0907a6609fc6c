// Package poll holds the controllers for the poll list and for the
// editable draft of a single poll. The server stays the single source of
// truth: every mutation reloads rather than patching local state.
package poll

import (
	"context"
	"log/slog"
	"strings"

	"polling-client/internal/api"
	"polling-client/internal/observable"
	"polling-client/internal/platform/apperr"
)

// Service is the slice of the API client the poll controllers call.
type Service interface {
	ListPolls(ctx context.Context) ([]api.Poll, error)
	GetPoll(ctx context.Context, id string) (api.Poll, error)
	CreatePoll(ctx context.Context, title string, options []string) (*api.Poll, error)
	UpdatePoll(ctx context.Context, id, title string, isOpen bool, options []string) (*api.Poll, error)
	DeletePoll(ctx context.Context, id string) error
	CastVote(ctx context.Context, pollID, optionID string) error
}

const msgInvalidPollID = "invalid poll id"

// ListState keeps the server's order; Polls is only ever replaced
// wholesale by a successful load.
type ListState struct {
	Polls     []api.Poll
	IsLoading bool
	Error     string
}

type ListController struct {
	svc   Service
	state *observable.Value[ListState]
	log   *slog.Logger
}

func NewListController(svc Service, log *slog.Logger) *ListController {
	if log == nil {
		log = slog.Default()
	}
	return &ListController{
		svc:   svc,
		state: observable.New(ListState{}),
		log:   log,
	}
}

func (c *ListController) Current() ListState {
	return c.state.Get()
}

func (c *ListController) Observe() (<-chan ListState, func()) {
	return c.state.Subscribe()
}

// Load replaces the list wholesale with the server's order. On failure the
// previous polls stay visible alongside the error.
func (c *ListController) Load(ctx context.Context) {
	c.state.Update(func(s ListState) ListState {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	polls, err := c.svc.ListPolls(ctx)
	if err != nil {
		c.log.Warn("poll list load failed", "error", err)
		c.state.Update(func(s ListState) ListState {
			s.IsLoading = false
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}

	c.state.Update(func(s ListState) ListState {
		s.Polls = polls
		s.IsLoading = false
		s.Error = ""
		return s
	})
}

// Refresh re-runs Load; the retry affordance in any UI maps here.
func (c *ListController) Refresh(ctx context.Context) {
	c.Load(ctx)
}

// Vote casts a vote and then reloads the full list for authoritative
// counts. Vote totals are computed across all users on the server, so
// there is nothing sensible to mutate locally and nothing to roll back on
// failure.
func (c *ListController) Vote(ctx context.Context, pollID, optionID string) {
	if err := c.svc.CastVote(ctx, pollID, optionID); err != nil {
		c.log.Warn("vote failed", "poll_id", pollID, "option_id", optionID, "error", err)
		c.state.Update(func(s ListState) ListState {
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}
	c.Load(ctx)
}

// Delete removes a poll and reloads. A blank id never reaches the network.
func (c *ListController) Delete(ctx context.Context, pollID string) {
	if strings.TrimSpace(pollID) == "" {
		c.state.Update(func(s ListState) ListState {
			s.Error = msgInvalidPollID
			return s
		})
		return
	}

	c.state.Update(func(s ListState) ListState {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	if err := c.svc.DeletePoll(ctx, pollID); err != nil {
		c.log.Warn("poll delete failed", "poll_id", pollID, "error", err)
		c.state.Update(func(s ListState) ListState {
			s.IsLoading = false
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}

	c.Load(ctx)
}
