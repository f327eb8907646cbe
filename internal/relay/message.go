package relay

import (
	"encoding/json"
	"time"
)

// Inbound is a client→server message. Type discriminates join/edit/cursor;
// the remaining fields are populated depending on the type.
type Inbound struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"roomId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	GuestToken string          `json:"guestToken,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Envelope is the server-constructed wrapper relayed to every connection in
// a room. Edit envelopes carry a timestamp, cursor envelopes never do.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	UserID    string          `json:"userId"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// NewEditEnvelope builds an edit envelope stamped with the current time.
func NewEditEnvelope(data json.RawMessage, identity string) Envelope {
	return Envelope{
		Type:      "edit",
		Data:      data,
		UserID:    identity,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewCursorEnvelope builds a cursor envelope. No timestamp: cursor updates
// are transient and the source protocol never stamped them.
func NewCursorEnvelope(data json.RawMessage, identity string) Envelope {
	return Envelope{
		Type:   "cursor",
		Data:   data,
		UserID: identity,
	}
}

// busEnvelope is the bus wire format. Origin is the originating connection
// id, used for sender exclusion during fan-out; it is never exposed to
// clients.
type busEnvelope struct {
	Origin   string   `json:"origin,omitempty"`
	Envelope Envelope `json:"envelope"`
}
