package uploadflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID string
}

func allStates() []State {
	return []State{StateIdle, StateSelected, StateUploading, StateAnalyzing, StateDone, StateError}
}

func allEvents() []Event {
	return []Event{
		Select{File: File{Name: "meal.jpg", SizeBytes: 2 << 20, ContentType: "image/jpeg"}},
		StartUpload{},
		Progress{Percent: 42},
		UploadComplete{ObjectKey: "meals/o/abc.jpg"},
		AnalyzeComplete[record]{Record: &record{ID: "r1"}},
		Fail{Message: "boom"},
		Retry{},
		Reset{},
	}
}

func sessionIn(state State) Session[record] {
	s := NewSession[record]()
	s.State = state
	return s
}

func TestTransitionIsTotal(t *testing.T) {
	t.Parallel()

	for _, state := range allStates() {
		for _, event := range allEvents() {
			next := Transition(sessionIn(state), event)

			assert.Contains(t, allStates(), next.State,
				"transition(%s, %T) left the machine in undefined state %q", state, event, next.State)
		}
	}
}

func TestSelectFromAnyState(t *testing.T) {
	t.Parallel()

	file := File{Name: "dinner.png", SizeBytes: 1024, ContentType: "image/png"}

	for _, state := range allStates() {
		s := sessionIn(state)
		s.ErrMessage = "stale error"
		s.Record = &record{ID: "stale"}
		s.ObjectKey = "meals/o/stale.jpg"
		s.ProgressPercent = 80

		next := Transition(s, Select{File: file})

		require.Equal(t, StateSelected, next.State, "select from %s", state)
		require.NotNil(t, next.File)
		require.Equal(t, file, *next.File)
		require.Empty(t, next.ErrMessage)
		require.Nil(t, next.Record)
		require.Empty(t, next.ObjectKey)
		require.Zero(t, next.ProgressPercent)
	}
}

func TestRetryOnlyFromError(t *testing.T) {
	t.Parallel()

	file := File{Name: "lunch.jpg"}

	t.Run("from error clears message and keeps file", func(t *testing.T) {
		t.Parallel()

		s := sessionIn(StateError)
		s.File = &file
		s.ErrMessage = "engine down"

		next := Transition(s, Retry{})

		require.Equal(t, StateSelected, next.State)
		require.Empty(t, next.ErrMessage)
		require.Equal(t, &file, next.File)
	})

	t.Run("no-op elsewhere", func(t *testing.T) {
		t.Parallel()

		for _, state := range []State{StateIdle, StateSelected, StateUploading, StateAnalyzing, StateDone} {
			s := sessionIn(state)
			next := Transition(s, Retry{})
			require.Equal(t, s, next, "retry from %s must be a no-op", state)
		}
	})
}

func TestHappyPathTransitions(t *testing.T) {
	t.Parallel()

	s := NewSession[record]()
	require.Equal(t, StateIdle, s.State)

	s = Transition(s, Select{File: File{Name: "meal.jpg", SizeBytes: 2 << 20, ContentType: "image/jpeg"}})
	require.Equal(t, StateSelected, s.State)

	s = Transition(s, StartUpload{})
	require.Equal(t, StateUploading, s.State)
	require.Zero(t, s.ProgressPercent)

	s = Transition(s, Progress{Percent: 55})
	require.Equal(t, StateUploading, s.State)
	require.Equal(t, 55, s.ProgressPercent)

	s = Transition(s, UploadComplete{ObjectKey: "meals/owner/01ABC.jpg"})
	require.Equal(t, StateAnalyzing, s.State)
	require.Equal(t, "meals/owner/01ABC.jpg", s.ObjectKey)

	s = Transition(s, AnalyzeComplete[record]{Record: &record{ID: "rec-1"}})
	require.Equal(t, StateDone, s.State)
	require.NotNil(t, s.Record)
	require.Equal(t, "rec-1", s.Record.ID)

	s = Transition(s, Reset{})
	require.Equal(t, NewSession[record](), s)
}

func TestNonsensicalPairsAreNoOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state State
		event Event
	}{
		{"progress while idle", StateIdle, Progress{Percent: 50}},
		{"progress while done", StateDone, Progress{Percent: 50}},
		{"start upload while uploading", StateUploading, StartUpload{}},
		{"start upload while done", StateDone, StartUpload{}},
		{"upload complete while idle", StateIdle, UploadComplete{ObjectKey: "k"}},
		{"upload complete while analyzing", StateAnalyzing, UploadComplete{ObjectKey: "k"}},
		{"analyze complete while uploading", StateUploading, AnalyzeComplete[record]{Record: &record{}}},
		{"analyze complete while idle", StateIdle, AnalyzeComplete[record]{Record: &record{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := sessionIn(tt.state)
			require.Equal(t, s, Transition(s, tt.event))
		})
	}
}

func TestFailFromAnyState(t *testing.T) {
	t.Parallel()

	for _, state := range allStates() {
		s := sessionIn(state)
		s.ProgressPercent = 73

		next := Transition(s, Fail{Message: "network unreachable"})

		require.Equal(t, StateError, next.State, "fail from %s", state)
		require.Equal(t, "network unreachable", next.ErrMessage)
		require.Zero(t, next.ProgressPercent)
	}
}

func TestProgressClamped(t *testing.T) {
	t.Parallel()

	s := sessionIn(StateUploading)

	require.Equal(t, 100, Transition(s, Progress{Percent: 250}).ProgressPercent)
	require.Equal(t, 0, Transition(s, Progress{Percent: -1}).ProgressPercent)
}
