// Package protocol defines the WebSocket message types and structures used
// for communication between the client and server. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/consilience/collab-chat/internal/chat"
	"github.com/consilience/collab-chat/internal/matching"
	"github.com/consilience/collab-chat/internal/profile"
)

// Client -> Server message types.
const (
	TypeJoin        = "join"
	TypeMessage     = "message"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated  = "session_created"
	TypeJoined          = "joined"
	TypeMatches         = "matches"
	TypePresenceChanged = "presence_changed"
	TypeRateLimited     = "rate_limited"
	TypeError           = "error"
	TypePong            = "pong"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinMsg binds the connection to a wallet identity and enters a channel.
// The channel defaults to "general" when empty.
type JoinMsg struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
	Channel  string `json:"channel,omitempty"`
}

// ChatMsg is a text message sent by the client into a channel.
type ChatMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// SubscribeMsg adds the connection to a channel's broadcast set.
type SubscribeMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// UnsubscribeMsg removes the connection from a channel's broadcast set.
type UnsubscribeMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent when a new connection is established, before the
// client has joined with an identity.
type SessionCreatedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// JoinedMsg acknowledges a join with the recent channel history and an
// initial match list.
type JoinedMsg struct {
	Type    string           `json:"type"`
	Channel string           `json:"channel"`
	History []chat.Message   `json:"history"`
	Matches []matching.Match `json:"matches"`
}

// ServerChatMsg carries one stored message to subscribers.
type ServerChatMsg struct {
	Type    string       `json:"type"`
	Message chat.Message `json:"message"`
}

// MatchesMsg pushes an updated ranked match list to one identity.
type MatchesMsg struct {
	Type    string           `json:"type"`
	Matches []matching.Match `json:"matches"`
	Profile *profile.Profile `json:"profile,omitempty"`
}

// PresenceChangedMsg carries the current online identity set.
type PresenceChangedMsg struct {
	Type   string   `json:"type"`
	Online []string `json:"online"`
}

// RateLimitedMsg is sent when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg communicates an error condition to the client.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoin:
		var m JoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSubscribe:
		var m SubscribeMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUnsubscribe:
		var m UnsubscribeMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
