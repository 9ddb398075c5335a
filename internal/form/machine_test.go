package form

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/linzabot/internal/storage"
)

type fakeStore struct {
	mu        sync.Mutex
	submitted map[int64]bool
	rows      [][QuestionCount]string
	hasErr    error
	recordErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{submitted: map[int64]bool{}}
}

func (f *fakeStore) HasSubmitted(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.submitted[userID], nil
}

func (f *fakeStore) RecordSubmission(_ context.Context, userID int64, answers [QuestionCount]string) (storage.ResponseID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	if f.submitted[userID] {
		return 0, storage.ErrAlreadySubmitted
	}
	f.submitted[userID] = true
	f.rows = append(f.rows, answers)
	return storage.ResponseID(len(f.rows)), nil
}

func newMachine(t *testing.T, store Store) *Machine {
	t.Helper()
	m, err := NewMachine(store, Options{})
	require.NoError(t, err)
	return m
}

// step applies events in order and returns the final session and the actions of the last event.
func step(t *testing.T, m *Machine, userID int64, s Session, events ...Event) (Session, []Action) {
	t.Helper()
	var actions []Action
	for _, ev := range events {
		var err error
		s, actions, err = m.Handle(context.Background(), userID, s, ev)
		require.NoError(t, err)
	}
	return s, actions
}

func texts(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Text)
	}
	return out
}

func TestEntryShowsMainMenu(t *testing.T) {
	m := newMachine(t, newFakeStore())

	s, actions := step(t, m, 1, Session{State: StateFillForm, Index: 3}, StartEvent())

	assert.Equal(t, Session{State: StateMenu}, s)
	require.Len(t, actions, 1)
	assert.Equal(t, TextWelcome, actions[0].Text)
	assert.Equal(t, MarkupReply, actions[0].Markup.Kind)
	assert.Equal(t, [][]string{{BtnFillForm}, {BtnPartnership}, {BtnSupport}, {BtnRestart}}, actions[0].Markup.Rows)
}

func TestFillFormStartsAtQuestionOne(t *testing.T) {
	m := newMachine(t, newFakeStore())

	s, actions := step(t, m, 1, Session{}, StartEvent(), TextEvent(BtnFillForm))

	assert.Equal(t, StateFillForm, s.State)
	assert.Equal(t, 1, s.Index)
	require.Len(t, actions, 1)
	assert.Equal(t, "Вопрос 1: Как вас зовут?", actions[0].Text)
	assert.Equal(t, MarkupRemove, actions[0].Markup.Kind)
}

func TestCompletedFlowPersistsAnswersInOrder(t *testing.T) {
	store := newFakeStore()
	m := newMachine(t, store)

	s, actions := step(t, m, 1, Session{}, StartEvent(), TextEvent(BtnFillForm),
		TextEvent("Anna"), TextEvent("a"), TextEvent("b"), TextEvent("c"))
	assert.Equal(t, 5, s.Index)
	assert.Equal(t, "Вопрос 5: Ваш опыт работы?", actions[0].Text)

	s, actions = step(t, m, 1, s, TextEvent("5 years"))

	assert.Equal(t, Session{State: StateMenu}, s)
	assert.Equal(t, []string{TextSaved, TextWelcome}, texts(actions))
	require.Len(t, store.rows, 1)
	assert.Equal(t, [QuestionCount]string{"Anna", "a", "b", "c", "5 years"}, store.rows[0])
	assert.True(t, store.submitted[1])
}

func TestGenericPromptForLaterQuestions(t *testing.T) {
	m := newMachine(t, newFakeStore())
	s := Session{State: StateFillForm, Index: 1}

	for n := 2; n <= QuestionCount; n++ {
		var actions []Action
		s, actions = step(t, m, 1, s, TextEvent("answer"))
		require.Len(t, actions, 1)
		assert.Equal(t, m.Prompt(n), actions[0].Text)
		assert.Contains(t, actions[0].Text, "Ваш опыт работы?")
		assert.Equal(t, [][]string{{BtnBack, BtnHome}}, actions[0].Markup.Rows)
	}
}

func TestSubmittedUserIsRejected(t *testing.T) {
	store := newFakeStore()
	store.submitted[9] = true
	m := newMachine(t, store)

	s, actions := step(t, m, 9, Session{State: StateMenu}, TextEvent(BtnFillForm))

	assert.Equal(t, StateMenu, s.State)
	assert.Equal(t, []string{TextAlreadySubmitted}, texts(actions))
	assert.Empty(t, store.rows)
}

func TestBackNavigation(t *testing.T) {
	m := newMachine(t, newFakeStore())

	s, actions := step(t, m, 1, Session{State: StateFillForm, Index: 1}, TextEvent(BtnBack))
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, []string{TextFirstQuestion}, texts(actions))

	s, _ = step(t, m, 1, s, TextEvent("Anna"), TextEvent("two"))
	require.Equal(t, 3, s.Index)

	s, actions = step(t, m, 1, s, TextEvent(BtnBack))
	assert.Equal(t, StateFillForm, s.State)
	assert.Equal(t, 2, s.Index)
	assert.Equal(t, []string{"Вопрос 2: Повторно введите ответ."}, texts(actions))
	assert.Equal(t, "", s.Answers[1], "back clears the revisited answer")
	assert.Equal(t, "Anna", s.Answers[0])
}

func TestBackThenAnswerOverwrites(t *testing.T) {
	store := newFakeStore()
	m := newMachine(t, store)

	s, _ := step(t, m, 1, Session{State: StateFillForm, Index: 1},
		TextEvent("q1"), TextEvent("wrong"), TextEvent(BtnBack), TextEvent("right"),
		TextEvent("q3"), TextEvent("q4"), TextEvent("q5"))

	assert.Equal(t, StateMenu, s.State)
	require.Len(t, store.rows, 1)
	assert.Equal(t, [QuestionCount]string{"q1", "right", "q3", "q4", "q5"}, store.rows[0])
}

func TestHomeDiscardsPartialAnswers(t *testing.T) {
	store := newFakeStore()
	m := newMachine(t, store)

	for idx := 1; idx <= QuestionCount; idx++ {
		s := Session{State: StateFillForm, Index: idx}
		for i := 0; i < idx-1; i++ {
			s.Answers[i] = "x"
		}
		next, actions := step(t, m, 1, s, TextEvent(BtnHome))

		assert.Equal(t, Session{State: StateMenu}, next)
		assert.Equal(t, []string{TextBackToMenu, TextWelcome}, texts(actions))
		assert.Equal(t, MarkupRemove, actions[0].Markup.Kind)
	}
	assert.Empty(t, store.rows)
}

func TestPartnership(t *testing.T) {
	m := newMachine(t, newFakeStore())

	s, actions := step(t, m, 1, Session{State: StateMenu}, TextEvent(BtnPartnership))
	assert.Equal(t, StatePartnership, s.State)
	assert.Equal(t, TextChoosePartner, actions[0].Text)
	assert.Len(t, actions[0].Markup.Rows, 4)

	s, actions = step(t, m, 1, s, TextEvent(BtnRecruiters))
	assert.Equal(t, StatePartnership, s.State)
	assert.Equal(t, []string{TextRecruiters}, texts(actions))

	s, actions = step(t, m, 1, s, TextEvent("???"))
	assert.Equal(t, StatePartnership, s.State)
	assert.Equal(t, TextChooseOption, actions[0].Text)

	s, actions = step(t, m, 1, s, TextEvent(BtnBack))
	assert.Equal(t, StateMenu, s.State)
	assert.Equal(t, []string{TextWelcome}, texts(actions))
}

func TestSupportLink(t *testing.T) {
	m, err := NewMachine(newFakeStore(), Options{SupportURL: "https://t.me/help"})
	require.NoError(t, err)

	s, actions := step(t, m, 1, Session{State: StateMenu}, TextEvent(BtnSupport))
	assert.Equal(t, StateMenu, s.State)
	require.Len(t, actions, 1)
	assert.Equal(t, Markup{Kind: MarkupLink, Label: BtnWriteManager, URL: "https://t.me/help"}, actions[0].Markup)
}

func TestMenuRestartAndUnknown(t *testing.T) {
	m := newMachine(t, newFakeStore())

	s, actions := step(t, m, 1, Session{State: StateMenu}, TextEvent(BtnRestart))
	assert.Equal(t, StateMenu, s.State)
	assert.Equal(t, []string{TextWelcome}, texts(actions))

	s, actions = step(t, m, 1, s, TextEvent("hello"))
	assert.Equal(t, StateMenu, s.State)
	assert.Equal(t, TextChooseOption, actions[0].Text)
	assert.Equal(t, MarkupReply, actions[0].Markup.Kind)
}

func TestCancelFromAnyState(t *testing.T) {
	store := newFakeStore()
	m := newMachine(t, store)

	for _, st := range []State{StateIdle, StateMenu, StateFillForm, StatePartnership} {
		s := Session{State: st, Index: 4, Answers: [QuestionCount]string{"a", "b", "c"}}
		next, actions := step(t, m, 1, s, CancelEvent())
		assert.Equal(t, Session{State: StateIdle}, next)
		assert.Equal(t, []string{TextCancelled}, texts(actions))
		assert.Equal(t, MarkupRemove, actions[0].Markup.Kind)
	}
	assert.Empty(t, store.rows)
}

func TestIdleTextGetsHint(t *testing.T) {
	m := newMachine(t, newFakeStore())
	s, actions := step(t, m, 1, Session{State: StateIdle}, TextEvent("hi"))
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, []string{TextStartHint}, texts(actions))
}

func TestStoreFailureKeepsSession(t *testing.T) {
	store := newFakeStore()
	store.recordErr = errors.New("disk full")
	m := newMachine(t, store)

	s := Session{State: StateFillForm, Index: 5, Answers: [QuestionCount]string{"a", "b", "c", "d"}}
	next, actions, err := m.Handle(context.Background(), 1, s, TextEvent("e"))

	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, s, next)
	assert.Equal(t, []string{TextFailure}, texts(actions))

	store.recordErr = nil
	next, _ = step(t, m, 1, next, TextEvent("e"))
	assert.Equal(t, StateMenu, next.State)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "e", store.rows[0][4])
}

func TestHasSubmittedFailure(t *testing.T) {
	store := newFakeStore()
	store.hasErr = errors.New("locked")
	m := newMachine(t, store)

	s := Session{State: StateMenu}
	next, actions, err := m.Handle(context.Background(), 1, s, TextEvent(BtnFillForm))
	require.Error(t, err)
	assert.Equal(t, s, next)
	assert.Equal(t, []string{TextFailure}, texts(actions))
}

func TestDuplicateAtWriteTimeReturnsToMenu(t *testing.T) {
	store := newFakeStore()
	m := newMachine(t, store)

	// Another session of the same user finished first.
	s := Session{State: StateFillForm, Index: 5, Answers: [QuestionCount]string{"a", "b", "c", "d"}}
	store.submitted[1] = true

	next, actions := step(t, m, 1, s, TextEvent("e"))
	assert.Equal(t, Session{State: StateMenu}, next)
	assert.Equal(t, []string{TextAlreadySubmitted, TextWelcome}, texts(actions))
	assert.Empty(t, store.rows)
}

func TestConcurrentUsersFinishTogether(t *testing.T) {
	store := newFakeStore()
	m := newMachine(t, store)

	var wg sync.WaitGroup
	for _, uid := range []int64{1, 2} {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			s := Session{State: StateFillForm, Index: 5, Answers: [QuestionCount]string{"a", "b", "c", "d"}}
			next, _, err := m.Handle(context.Background(), uid, s, TextEvent("e"))
			assert.NoError(t, err)
			assert.Equal(t, StateMenu, next.State)
		}(uid)
	}
	wg.Wait()

	assert.Len(t, store.rows, 2)
	assert.True(t, store.submitted[1])
	assert.True(t, store.submitted[2])
}

func TestNewMachineOptions(t *testing.T) {
	_, err := NewMachine(nil, Options{})
	assert.Error(t, err)

	_, err = NewMachine(newFakeStore(), Options{Prompts: []string{"only one"}})
	assert.Error(t, err)

	_, err = NewMachine(newFakeStore(), Options{Prompts: []string{"a", "b", " ", "d", "e"}})
	assert.Error(t, err)

	m, err := NewMachine(newFakeStore(), Options{Prompts: []string{"Name?", "Age?", "City?", "Job?", "Years?"}})
	require.NoError(t, err)
	assert.Equal(t, "Вопрос 3: City?", m.Prompt(3))
	assert.Equal(t, DefaultSupportURL, m.supportURL)
}
