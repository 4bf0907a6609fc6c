package poll

import (
	"context"
	"log/slog"
	"strings"

	"polling-client/internal/api"
	"polling-client/internal/observable"
	"polling-client/internal/platform/apperr"
)

const (
	msgTitleRequired    = "title is required"
	msgTwoOptionsNeeded = "at least 2 options are required"
	minOptions          = 2
)

// CreatorState is the draft for a new poll. The pristine draft has an
// empty title and two empty option slots.
type CreatorState struct {
	Title     string
	Options   []string
	IsLoading bool
	Error     string
	Success   bool
	Created   *api.Poll
}

func pristineDraft() CreatorState {
	return CreatorState{Options: []string{"", ""}}
}

// Creator manages the create-poll draft until submission.
type Creator struct {
	svc   Service
	state *observable.Value[CreatorState]
	log   *slog.Logger
}

func NewCreator(svc Service, log *slog.Logger) *Creator {
	if log == nil {
		log = slog.Default()
	}
	return &Creator{
		svc:   svc,
		state: observable.New(pristineDraft()),
		log:   log,
	}
}

func (c *Creator) Current() CreatorState {
	return c.state.Get()
}

func (c *Creator) Observe() (<-chan CreatorState, func()) {
	return c.state.Subscribe()
}

func (c *Creator) SetTitle(title string) {
	c.state.Update(func(s CreatorState) CreatorState {
		s.Title = title
		return s
	})
}

func (c *Creator) SetOption(index int, text string) {
	c.state.Update(func(s CreatorState) CreatorState {
		if index < 0 || index >= len(s.Options) {
			return s
		}
		opts := append([]string(nil), s.Options...)
		opts[index] = text
		s.Options = opts
		return s
	})
}

// AddOption appends one empty slot.
func (c *Creator) AddOption() {
	c.state.Update(func(s CreatorState) CreatorState {
		s.Options = append(append([]string(nil), s.Options...), "")
		return s
	})
}

// RemoveOption is a no-op at the floor of two options.
func (c *Creator) RemoveOption(index int) {
	c.state.Update(func(s CreatorState) CreatorState {
		if len(s.Options) <= minOptions || index < 0 || index >= len(s.Options) {
			return s
		}
		opts := append([]string(nil), s.Options[:index]...)
		s.Options = append(opts, s.Options[index+1:]...)
		return s
	})
}

// Reset restores the pristine draft.
func (c *Creator) Reset() {
	c.state.Set(pristineDraft())
}

// Submit validates the draft locally and only then calls the server:
// non-blank title and at least two non-blank options after trimming.
func (c *Creator) Submit(ctx context.Context) {
	draft := c.state.Get()

	if strings.TrimSpace(draft.Title) == "" {
		c.state.Update(func(s CreatorState) CreatorState {
			s.Error = msgTitleRequired
			return s
		})
		return
	}

	options := nonBlank(draft.Options)
	if len(options) < minOptions {
		c.state.Update(func(s CreatorState) CreatorState {
			s.Error = msgTwoOptionsNeeded
			return s
		})
		return
	}

	c.state.Update(func(s CreatorState) CreatorState {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	created, err := c.svc.CreatePoll(ctx, strings.TrimSpace(draft.Title), options)
	if err != nil {
		c.log.Warn("poll create failed", "error", err)
		c.state.Update(func(s CreatorState) CreatorState {
			s.IsLoading = false
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}

	c.state.Update(func(s CreatorState) CreatorState {
		s.IsLoading = false
		s.Success = true
		s.Error = ""
		s.Created = created
		return s
	})
}

func nonBlank(options []string) []string {
	out := make([]string, 0, len(options))
	for _, opt := range options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
