package chat

import (
	"sync"
	"time"
)

const (
	// MaxRetainedMessages is the retention bound for each channel log and
	// each identity log. When the bound is exceeded the oldest entries are
	// evicted, FIFO.
	MaxRetainedMessages = 1000

	// DefaultHistoryLimit is the history window returned when no explicit
	// limit is requested.
	DefaultHistoryLimit = 50
)

// Store is the append-only message log. It maintains two views of the same
// messages: per channel (append order, used for replay and broadcast) and
// per sender identity (used for profile inference). Both views are bounded
// to MaxRetainedMessages entries. The store is goroutine-safe; an append is
// atomic with respect to readers.
type Store struct {
	mu         sync.RWMutex
	channels   map[string][]Message
	identities map[string][]Message
	order      []string // identities in first-message order, for stable match ranking
	seq        int64
	total      int64 // messages ever appended (not reduced by eviction)
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{
		channels:   make(map[string][]Message),
		identities: make(map[string][]Message),
	}
}

// Append validates the message, assigns an ID (monotonic per store) and a
// timestamp if absent, and appends it to both the channel log and the
// sender's identity log. It returns the stored message. Retention truncation
// is applied here and nowhere else.
func (s *Store) Append(msg Message) (Message, error) {
	if err := validate(&msg); err != nil {
		return Message{}, err
	}
	if msg.Kind == "" {
		msg.Kind = KindUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.ID = s.seq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.channels[msg.Channel] = appendBounded(s.channels[msg.Channel], msg)

	if _, seen := s.identities[msg.Sender]; !seen {
		s.order = append(s.order, msg.Sender)
	}
	s.identities[msg.Sender] = appendBounded(s.identities[msg.Sender], msg)

	s.total++
	return msg, nil
}

// appendBounded appends msg and evicts the oldest entries when the log
// exceeds the retention bound.
func appendBounded(log []Message, msg Message) []Message {
	log = append(log, msg)
	if len(log) > MaxRetainedMessages {
		over := len(log) - MaxRetainedMessages
		log = append(log[:0], log[over:]...)
	}
	return log
}

// History returns the most recent limit messages for a channel in append
// order (oldest first within the window). A limit <= 0 selects
// DefaultHistoryLimit. An unknown channel yields an empty slice.
func (s *Store) History(channel string, limit int) []Message {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.channels[channel]
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// HistoryFor returns all retained messages sent by the given identity in
// append order. An identity with no messages yields an empty slice.
func (s *Store) HistoryFor(identity string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.identities[identity]
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// Identities returns every identity with at least one retained message, in
// the order each identity first appeared. This order is the documented
// tie-break for equal match scores.
func (s *Store) Identities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// IdentityCount returns the number of distinct identities that have sent at
// least one message.
func (s *Store) IdentityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// TotalMessages returns the number of messages ever appended, including
// entries already evicted by retention.
func (s *Store) TotalMessages() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
