// Package form implements the questionnaire conversation as a transition function
// over a per-user session.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/linzabot/internal/storage"
)

// QuestionCount is the number of questions in the questionnaire.
const QuestionCount = storage.QuestionCount

// State is the coarse conversation mode.
type State string

// Conversation states. StateIdle means no conversation; it matches the session
// manager's idle label.
const (
	StateIdle        State = "idle"
	StateMenu        State = "menu"
	StateFillForm    State = "fill_form"
	StatePartnership State = "partnership"
)

// EventKind distinguishes inbound events.
type EventKind uint8

// Event kinds.
const (
	EventText EventKind = iota
	EventStart
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventCancel:
		return "cancel"
	default:
		return "text"
	}
}

// Event is one inbound user action.
type Event struct {
	Kind EventKind
	Text string
}

// StartEvent is the /start command.
func StartEvent() Event { return Event{Kind: EventStart} }

// CancelEvent is the /cancel command.
func CancelEvent() Event { return Event{Kind: EventCancel} }

// TextEvent is a plain text message or a reply keyboard press.
func TextEvent(text string) Event { return Event{Kind: EventText, Text: text} }

// MarkupKind selects how an action's keyboard is rendered.
type MarkupKind uint8

// Markup kinds.
const (
	// MarkupNone leaves the current keyboard as is.
	MarkupNone MarkupKind = iota
	// MarkupRemove hides the reply keyboard.
	MarkupRemove
	// MarkupReply shows a grid of text buttons.
	MarkupReply
	// MarkupLink attaches one button opening an external URL.
	MarkupLink
)

// Markup describes the keyboard attached to an outbound message.
type Markup struct {
	Kind  MarkupKind
	Rows  [][]string
	Label string
	URL   string
}

// Action is one outbound message.
type Action struct {
	Text   string
	Markup Markup
}

// Session is the per-user conversation data. Index is the 1-based current
// question while filling the form; answers past Index are always empty.
type Session struct {
	State   State
	Index   int
	Answers [QuestionCount]string
}

// Store is the answer store used by the machine.
type Store interface {
	HasSubmitted(ctx context.Context, userID int64) (bool, error)
	RecordSubmission(ctx context.Context, userID int64, answers [QuestionCount]string) (storage.ResponseID, error)
}

// Options configure a Machine.
type Options struct {
	// Prompts overrides the question prompts; it must hold QuestionCount entries.
	Prompts []string
	// SupportURL is opened by the support button.
	SupportURL string
}

// Machine computes conversation transitions. It keeps no per-user state and is
// safe for concurrent use; callers serialize events of one user.
type Machine struct {
	store      Store
	prompts    [QuestionCount]string
	supportURL string
}

// NewMachine validates opts and returns a Machine backed by store.
func NewMachine(store Store, opts Options) (*Machine, error) {
	if store == nil {
		return nil, errors.New("form: nil store")
	}
	m := &Machine{store: store, prompts: DefaultPrompts, supportURL: DefaultSupportURL}
	if len(opts.Prompts) > 0 {
		if len(opts.Prompts) != QuestionCount {
			return nil, fmt.Errorf("form: %d prompts configured, want %d", len(opts.Prompts), QuestionCount)
		}
		for i, p := range opts.Prompts {
			if strings.TrimSpace(p) == "" {
				return nil, fmt.Errorf("form: prompt %d is empty", i+1)
			}
			m.prompts[i] = p
		}
	}
	if u := strings.TrimSpace(opts.SupportURL); u != "" {
		m.supportURL = u
	}
	return m, nil
}

// Prompt returns the text asking question n (1-based).
func (m *Machine) Prompt(n int) string {
	return fmt.Sprintf("Вопрос %d: %s", n, m.prompts[n-1])
}

// Handle applies ev to s for userID and returns the next session with the
// messages to send. On a store failure it returns s unchanged, a generic
// failure message and the wrapped error.
func (m *Machine) Handle(ctx context.Context, userID int64, s Session, ev Event) (Session, []Action, error) {
	switch ev.Kind {
	case EventStart:
		return m.entry()
	case EventCancel:
		return Session{State: StateIdle}, []Action{say(TextCancelled, removeKeyboard())}, nil
	}

	switch s.State {
	case StateMenu:
		return m.onMenu(ctx, userID, s, ev.Text)
	case StateFillForm:
		return m.onAnswer(ctx, userID, s, ev.Text)
	case StatePartnership:
		return m.onPartnership(s, ev.Text)
	default:
		return Session{State: StateIdle}, []Action{say(TextStartHint, Markup{})}, nil
	}
}

func (m *Machine) entry(prefix ...Action) (Session, []Action, error) {
	actions := append(prefix, say(TextWelcome, reply(mainMenuRows)))
	return Session{State: StateMenu}, actions, nil
}

func (m *Machine) onMenu(ctx context.Context, userID int64, s Session, text string) (Session, []Action, error) {
	switch text {
	case BtnFillForm:
		submitted, err := m.store.HasSubmitted(ctx, userID)
		if err != nil {
			return s, []Action{say(TextFailure, Markup{})}, fmt.Errorf("check submission: %w", err)
		}
		if submitted {
			return s, []Action{say(TextAlreadySubmitted, Markup{})}, nil
		}
		return Session{State: StateFillForm, Index: 1}, []Action{say(m.Prompt(1), removeKeyboard())}, nil
	case BtnPartnership:
		return Session{State: StatePartnership}, []Action{say(TextChoosePartner, reply(partnershipRows))}, nil
	case BtnSupport:
		return s, []Action{say(TextSupport, Markup{Kind: MarkupLink, Label: BtnWriteManager, URL: m.supportURL})}, nil
	case BtnRestart:
		return m.entry()
	default:
		return s, []Action{say(TextChooseOption, reply(mainMenuRows))}, nil
	}
}

func (m *Machine) onAnswer(ctx context.Context, userID int64, s Session, text string) (Session, []Action, error) {
	if s.Index < 1 || s.Index > QuestionCount {
		s.Index = 1
	}

	switch text {
	case BtnHome:
		return m.entry(say(TextBackToMenu, removeKeyboard()))
	case BtnBack:
		if s.Index == 1 {
			return s, []Action{say(TextFirstQuestion, Markup{})}, nil
		}
		s.Index--
		s.Answers[s.Index-1] = ""
		return s, []Action{say(fmt.Sprintf("Вопрос %d: %s", s.Index, TextRepeatAnswer), reply(navRows))}, nil
	}

	next := s
	next.Answers[s.Index-1] = text
	next.Index++
	if next.Index <= QuestionCount {
		return next, []Action{say(m.Prompt(next.Index), reply(navRows))}, nil
	}

	_, err := m.store.RecordSubmission(ctx, userID, next.Answers)
	switch {
	case err == nil:
		return m.entry(say(TextSaved, Markup{}))
	case errors.Is(err, storage.ErrAlreadySubmitted):
		return m.entry(say(TextAlreadySubmitted, Markup{}))
	default:
		return s, []Action{say(TextFailure, Markup{})}, fmt.Errorf("record submission: %w", err)
	}
}

func (m *Machine) onPartnership(s Session, text string) (Session, []Action, error) {
	if text == BtnBack {
		return m.entry()
	}
	if info, ok := partnershipInfo[text]; ok {
		return s, []Action{say(info, Markup{})}, nil
	}
	return s, []Action{say(TextChooseOption, reply(partnershipRows))}, nil
}

func say(text string, markup Markup) Action {
	return Action{Text: text, Markup: markup}
}

func reply(rows [][]string) Markup {
	return Markup{Kind: MarkupReply, Rows: rows}
}

func removeKeyboard() Markup {
	return Markup{Kind: MarkupRemove}
}
