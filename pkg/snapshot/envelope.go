package snapshot

import (
	"encoding/json"
	"time"
)

// Envelope is the standard snapshot payload: what a server needs to
// re-bootstrap a session after a reconnect or a restart.
type Envelope struct {
	// SessionID is the unique session identifier.
	SessionID string `json:"session_id"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// LastActive is when the session last processed an event.
	LastActive time.Time `json:"last_active"`

	// Seq is the sequence number of the last patches frame sent to the
	// client. A resuming client reports its own last seen sequence; the
	// server compares against this to decide between replay and resync.
	Seq uint64 `json:"seq,omitempty"`

	// HTML is the rendered document snapshot at save time.
	HTML string `json:"html,omitempty"`

	// Values carries application state by key.
	Values map[string]json.RawMessage `json:"values,omitempty"`

	// Version is the serialization format version.
	Version int `json:"version"`
}

// EnvelopeVersion is the current version of the envelope format.
// Increment when making breaking changes to the format.
const EnvelopeVersion = 1

// Marshal converts an Envelope to bytes, stamping the current format version.
func Marshal(env *Envelope) ([]byte, error) {
	env.Version = EnvelopeVersion
	return json.Marshal(env)
}

// Unmarshal converts bytes back to an Envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
