// Package chat defines the message model and the in-memory message store.
// The store keeps a bounded append-only log per channel (for replay and
// broadcast) and per identity (for profile inference). Identities are wallet
// addresses; the store treats them as opaque strings.
package chat

import "time"

// Message kinds.
const (
	KindUser      = "user"
	KindAssistant = "assistant"
	KindSystem    = "system"
)

// AssistantSender is the reserved sender identity for synthetic messages
// produced by the assistant command router.
const AssistantSender = "AI_ASSISTANT"

// Message is a single chat message. Once appended to the store it is never
// mutated or reordered.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Channel   string    `json:"channel"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
}
