package uploadflow

import "encoding/json"

// DraftVersion tags serialized session drafts. Bump it whenever the session
// shape changes; restore discards mismatched drafts instead of attempting a
// partial migration.
const DraftVersion = 1

type draft[R any] struct {
	Version int        `json:"version"`
	Session Session[R] `json:"session"`
}

// MarshalDraft serializes the session with its schema version so it can be
// stashed across page loads or process restarts.
func MarshalDraft[R any](s Session[R]) ([]byte, error) {
	return json.Marshal(draft[R]{Version: DraftVersion, Session: s})
}

// RestoreDraft deserializes a stashed session. Unparseable drafts and drafts
// written under a different version are discarded: the caller gets a fresh
// idle session rather than a half-migrated one.
func RestoreDraft[R any](data []byte) Session[R] {
	var d draft[R]
	if err := json.Unmarshal(data, &d); err != nil {
		return NewSession[R]()
	}
	if d.Version != DraftVersion {
		return NewSession[R]()
	}
	if d.Session.State == "" {
		return NewSession[R]()
	}
	return d.Session
}
