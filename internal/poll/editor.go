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
	msgPollLocked   = "title and options are locked once a poll has votes"
	msgPollNotReady = "poll is not loaded"
	msgNoChanges    = "no changes to save"
)

// EditorState is the draft for an existing poll. CanEditOptions is derived
// from the loaded poll: once any vote is recorded, title and option text
// are read-only while the open/closed flag stays toggleable.
type EditorState struct {
	Poll           *api.Poll
	Title          string
	Options        []string
	IsOpen         bool
	CanEditOptions bool
	IsLoading      bool
	Error          string
	Saved          bool
	Deleted        bool
}

// Editor manages the edit draft for one poll.
type Editor struct {
	svc    Service
	pollID string
	state  *observable.Value[EditorState]
	log    *slog.Logger
}

func NewEditor(svc Service, pollID string, log *slog.Logger) *Editor {
	if log == nil {
		log = slog.Default()
	}
	return &Editor{
		svc:    svc,
		pollID: pollID,
		state:  observable.New(EditorState{}),
		log:    log,
	}
}

func (e *Editor) Current() EditorState {
	return e.state.Get()
}

func (e *Editor) Observe() (<-chan EditorState, func()) {
	return e.state.Subscribe()
}

// Load fetches the poll and seeds the draft from it.
func (e *Editor) Load(ctx context.Context) {
	if strings.TrimSpace(e.pollID) == "" {
		e.state.Update(func(s EditorState) EditorState {
			s.Error = msgInvalidPollID
			return s
		})
		return
	}

	e.state.Update(func(s EditorState) EditorState {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	p, err := e.svc.GetPoll(ctx, e.pollID)
	if err != nil {
		e.log.Warn("poll load failed", "poll_id", e.pollID, "error", err)
		e.state.Update(func(s EditorState) EditorState {
			s.IsLoading = false
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}

	options := make([]string, len(p.Options))
	for i, opt := range p.Options {
		options[i] = opt.Text
	}

	e.state.Set(EditorState{
		Poll:           &p,
		Title:          p.Title,
		Options:        options,
		IsOpen:         p.IsOpen,
		CanEditOptions: !p.HasVotes(),
	})
}

// SetTitle rejects the change locally while the poll is locked.
func (e *Editor) SetTitle(title string) {
	e.state.Update(func(s EditorState) EditorState {
		if !s.CanEditOptions {
			s.Error = msgPollLocked
			return s
		}
		s.Title = title
		return s
	})
}

func (e *Editor) SetOption(index int, text string) {
	e.state.Update(func(s EditorState) EditorState {
		if !s.CanEditOptions {
			s.Error = msgPollLocked
			return s
		}
		if index < 0 || index >= len(s.Options) {
			return s
		}
		opts := append([]string(nil), s.Options...)
		opts[index] = text
		s.Options = opts
		return s
	})
}

func (e *Editor) AddOption() {
	e.state.Update(func(s EditorState) EditorState {
		if !s.CanEditOptions {
			s.Error = msgPollLocked
			return s
		}
		s.Options = append(append([]string(nil), s.Options...), "")
		return s
	})
}

// RemoveOption keeps the floor of two options.
func (e *Editor) RemoveOption(index int) {
	e.state.Update(func(s EditorState) EditorState {
		if !s.CanEditOptions {
			s.Error = msgPollLocked
			return s
		}
		if len(s.Options) <= minOptions || index < 0 || index >= len(s.Options) {
			return s
		}
		opts := append([]string(nil), s.Options[:index]...)
		s.Options = append(opts, s.Options[index+1:]...)
		return s
	})
}

// ToggleOpen flips the open/closed flag; allowed regardless of vote state.
func (e *Editor) ToggleOpen() {
	e.state.Update(func(s EditorState) EditorState {
		s.IsOpen = !s.IsOpen
		return s
	})
}

// Submit sends the edit. With options locked, only an open/closed change
// is permitted and the options field is omitted from the request entirely.
func (e *Editor) Submit(ctx context.Context) {
	draft := e.state.Get()
	if draft.Poll == nil {
		e.state.Update(func(s EditorState) EditorState {
			s.Error = msgPollNotReady
			return s
		})
		return
	}
	if strings.TrimSpace(draft.Title) == "" {
		e.state.Update(func(s EditorState) EditorState {
			s.Error = msgTitleRequired
			return s
		})
		return
	}

	var options []string
	if draft.CanEditOptions {
		options = nonBlank(draft.Options)
		if len(options) < minOptions {
			e.state.Update(func(s EditorState) EditorState {
				s.Error = msgTwoOptionsNeeded
				return s
			})
			return
		}
	} else if draft.IsOpen == draft.Poll.IsOpen {
		e.state.Update(func(s EditorState) EditorState {
			s.Error = msgNoChanges
			return s
		})
		return
	}

	e.state.Update(func(s EditorState) EditorState {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	updated, err := e.svc.UpdatePoll(ctx, draft.Poll.ID, strings.TrimSpace(draft.Title), draft.IsOpen, options)
	if err != nil {
		e.log.Warn("poll update failed", "poll_id", draft.Poll.ID, "error", err)
		e.state.Update(func(s EditorState) EditorState {
			s.IsLoading = false
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}

	e.state.Update(func(s EditorState) EditorState {
		s.IsLoading = false
		s.Saved = true
		s.Error = ""
		if updated != nil {
			s.Poll = updated
			s.CanEditOptions = !updated.HasVotes()
		}
		return s
	})
}

// Delete removes the poll under edit, with the same blank-id guard as the
// list controller.
func (e *Editor) Delete(ctx context.Context) {
	draft := e.state.Get()
	id := e.pollID
	if draft.Poll != nil {
		id = draft.Poll.ID
	}
	if strings.TrimSpace(id) == "" {
		e.state.Update(func(s EditorState) EditorState {
			s.Error = msgInvalidPollID
			return s
		})
		return
	}

	e.state.Update(func(s EditorState) EditorState {
		s.IsLoading = true
		s.Error = ""
		return s
	})

	if err := e.svc.DeletePoll(ctx, id); err != nil {
		e.log.Warn("poll delete failed", "poll_id", id, "error", err)
		e.state.Update(func(s EditorState) EditorState {
			s.IsLoading = false
			s.Error = apperr.UserMessage(err)
			return s
		})
		return
	}

	e.state.Update(func(s EditorState) EditorState {
		s.IsLoading = false
		s.Deleted = true
		return s
	})
}
