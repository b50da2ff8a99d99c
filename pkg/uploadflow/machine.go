// Package uploadflow drives the client side of the capture-to-analysis
// pipeline: a pure state machine over select → upload → analyze → done/error,
// and a driver that performs the network calls and feeds results back in as
// events.
//
// The reducer is total: every (state, event) pair yields a defined next
// state. Pairs that make no sense for the current state are no-ops returning
// the session unchanged, never panics. All I/O belongs to the Driver; the
// machine itself never blocks.
package uploadflow

// State is the position of an upload session in the pipeline.
type State string

const (
	StateIdle      State = "idle"
	StateSelected  State = "selected"
	StateUploading State = "uploading"
	StateAnalyzing State = "analyzing"
	StateDone      State = "done"
	StateError     State = "error"
)

// File describes the photo picked by the user.
type File struct {
	Name        string `json:"name"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

// Session is the in-memory state of one upload. R is the analysis record
// type produced by the server; the machine treats it as opaque.
type Session[R any] struct {
	State           State  `json:"state"`
	File            *File  `json:"file,omitempty"`
	ProgressPercent int    `json:"progress_percent"`
	ObjectKey       string `json:"object_key,omitempty"`
	Record          *R     `json:"record,omitempty"`
	ErrMessage      string `json:"err_message,omitempty"`
}

// NewSession returns a fresh idle session.
func NewSession[R any]() Session[R] {
	return Session[R]{State: StateIdle}
}

// Event is a state machine input. The concrete types below are the only
// implementations.
type Event interface {
	isEvent()
}

// Select picks a file. Accepted from every state: it is the universal escape
// hatch, so the UI never needs disabled-state logic to block mid-flow
// reselection.
type Select struct {
	File File
}

// StartUpload begins the network transfer for the selected file.
type StartUpload struct{}

// Progress reports transfer progress in percent.
type Progress struct {
	Percent int
}

// UploadComplete records the object key the photo landed under.
type UploadComplete struct {
	ObjectKey string
}

// AnalyzeComplete carries the persisted analysis record.
type AnalyzeComplete[R any] struct {
	Record *R
}

// Fail moves the session to the error state with a human-readable message.
type Fail struct {
	Message string
}

// Retry goes back to selected, keeping the file. Only effective from error.
type Retry struct{}

// Reset wipes the session back to idle.
type Reset struct{}

func (Select) isEvent()             {}
func (StartUpload) isEvent()        {}
func (Progress) isEvent()           {}
func (UploadComplete) isEvent()     {}
func (AnalyzeComplete[R]) isEvent() {}
func (Fail) isEvent()               {}
func (Retry) isEvent()              {}
func (Reset) isEvent()              {}

// Transition applies an event to a session and returns the next session.
// Pure and synchronous; the caller is responsible for serializing dispatch
// so no two events race on one session.
func Transition[R any](s Session[R], e Event) Session[R] {
	switch ev := e.(type) {
	case Select:
		// Replace the file and clear everything from a previous run.
		f := ev.File
		return Session[R]{State: StateSelected, File: &f}

	case Reset:
		return NewSession[R]()

	case Fail:
		s.State = StateError
		s.ErrMessage = ev.Message
		s.ProgressPercent = 0
		return s

	case StartUpload:
		if s.State != StateSelected {
			return s
		}
		s.State = StateUploading
		s.ProgressPercent = 0
		return s

	case Progress:
		if s.State != StateUploading {
			return s
		}
		s.ProgressPercent = min(max(ev.Percent, 0), 100)
		return s

	case UploadComplete:
		if s.State != StateUploading {
			return s
		}
		s.State = StateAnalyzing
		s.ObjectKey = ev.ObjectKey
		return s

	case AnalyzeComplete[R]:
		if s.State != StateAnalyzing {
			return s
		}
		s.State = StateDone
		s.Record = ev.Record
		return s

	case Retry:
		if s.State != StateError {
			return s
		}
		s.State = StateSelected
		s.ErrMessage = ""
		return s
	}

	// Unknown event types are no-ops, keeping the transition function total.
	return s
}
