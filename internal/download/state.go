package download

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// StateKind enumerates the lifecycle states of a download.
type StateKind string

const (
	KindCreated  StateKind = "Created"
	KindRunning  StateKind = "Running"
	KindPaused   StateKind = "Paused"
	KindComplete StateKind = "Complete"
	KindError    StateKind = "Error"
)

// State is the externally observable state of one download. Exactly one
// kind is active at a time; payload fields are meaningful only for the
// kinds that carry them. BytesDownloaded is kept populated on Error so
// an explicit resume can pick up from the last known offset, but it is
// never serialized for that kind.
type State struct {
	Kind            StateKind
	BytesDownloaded int64
	BytesPerSecond  int64
	Err             string
}

// Created returns the initial state of a freshly registered download.
func Created() State { return State{Kind: KindCreated} }

// Running returns an in-progress state snapshot.
func Running(bytesDownloaded, bytesPerSecond int64) State {
	return State{Kind: KindRunning, BytesDownloaded: bytesDownloaded, BytesPerSecond: bytesPerSecond}
}

// Paused returns a paused state holding the resume offset.
func Paused(bytesDownloaded int64) State {
	return State{Kind: KindPaused, BytesDownloaded: bytesDownloaded}
}

// Complete returns the terminal success state.
func Complete() State { return State{Kind: KindComplete} }

// Errored returns a failure state carrying the byte offset reached
// before the failure and a human-readable cause.
func Errored(bytesDownloaded int64, err error) State {
	return State{Kind: KindError, BytesDownloaded: bytesDownloaded, Err: err.Error()}
}

// stateJSON is the wire form of State: a tagged union keyed by "state".
type stateJSON struct {
	State           StateKind `json:"state"`
	BytesDownloaded *int64    `json:"bytes_downloaded,omitempty"`
	BytesPerSecond  *int64    `json:"bytes_per_second,omitempty"`
	Error           *string   `json:"error,omitempty"`
}

// MarshalJSON serializes the state as a tagged union, e.g.
// {"state":"Running","bytes_downloaded":100,"bytes_per_second":10}.
func (s State) MarshalJSON() ([]byte, error) {
	doc := stateJSON{State: s.Kind}
	switch s.Kind {
	case KindCreated, KindComplete:
	case KindPaused:
		doc.BytesDownloaded = &s.BytesDownloaded
	case KindRunning:
		doc.BytesDownloaded = &s.BytesDownloaded
		doc.BytesPerSecond = &s.BytesPerSecond
	case KindError:
		doc.Error = &s.Err
	default:
		return nil, fmt.Errorf("unknown state kind %q", s.Kind)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON parses the tagged-union wire form produced by MarshalJSON.
func (s *State) UnmarshalJSON(b []byte) error {
	var doc stateJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	st := State{Kind: doc.State}
	switch doc.State {
	case KindCreated, KindComplete:
	case KindPaused, KindRunning:
		if doc.BytesDownloaded != nil {
			st.BytesDownloaded = *doc.BytesDownloaded
		}
		if doc.State == KindRunning && doc.BytesPerSecond != nil {
			st.BytesPerSecond = *doc.BytesPerSecond
		}
	case KindError:
		if doc.Error != nil {
			st.Err = *doc.Error
		}
	default:
		return fmt.Errorf("unknown state kind %q", doc.State)
	}
	*s = st
	return nil
}

// Metadata is the immutable description of a download, fixed at
// creation time from the initial probe of the source URL.
// ContentLength is 0 when the server did not report a length.
type Metadata struct {
	ID            uuid.UUID `json:"id"`
	URL           string    `json:"url"`
	FilePath      string    `json:"file_path"`
	ContentLength int64     `json:"content_length"`
}

// Data pairs a download's metadata with a point-in-time state snapshot.
type Data struct {
	Metadata Metadata `json:"metadata"`
	State    State    `json:"state"`
}
