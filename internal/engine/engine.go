// Package engine composes the message store, presence registry, broadcast
// dispatcher, matching engine, and assistant router behind the operations the
// transport layer consumes: join, message handling, disconnect, and the
// synchronous match/analytics queries. The engine owns the mapping from
// connection handles to their write sinks; all other state lives in the
// leaf components.
package engine

import (
	"fmt"
	"log"
	"sync"

	"github.com/consilience/collab-chat/internal/assistant"
	"github.com/consilience/collab-chat/internal/broadcast"
	"github.com/consilience/collab-chat/internal/chat"
	"github.com/consilience/collab-chat/internal/matching"
	"github.com/consilience/collab-chat/internal/metrics"
	"github.com/consilience/collab-chat/internal/presence"
	"github.com/consilience/collab-chat/internal/profile"
	"github.com/consilience/collab-chat/internal/protocol"
)

// DefaultChannel is used when a join or message names no channel.
const DefaultChannel = "general"

// Relay mirrors stored messages to an external stream (NATS) for other
// server instances and the archiver. Optional; delivery is best-effort.
type Relay interface {
	PublishMessage(msg chat.Message) error
}

// Config holds engine tuning parameters.
type Config struct {
	DefaultChannel string
	Assistant      assistant.Config
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultChannel: DefaultChannel,
		Assistant:      assistant.DefaultConfig(),
	}
}

// JoinResult is returned to a joining connection: the recent channel history
// and an initial match list.
type JoinResult struct {
	Channel string
	History []chat.Message
	Matches []matching.Match
}

// MatchResult is the synchronous match query response.
type MatchResult struct {
	Matches []matching.Match `json:"matches"`
	Profile profile.Profile  `json:"profile"`
}

// Analytics is the synchronous analytics query response.
type Analytics struct {
	TotalUsers     int            `json:"totalUsers"`
	ActiveUsers    int            `json:"activeUsers"`
	TotalMessages  int64          `json:"totalMessages"`
	TopSkillCounts map[string]int `json:"topSkillCounts"`
}

// Engine is the core service. It is safe for concurrent use.
type Engine struct {
	cfg        Config
	store      *chat.Store
	registry   *presence.Registry
	dispatcher *broadcast.Dispatcher
	matcher    *matching.Engine
	router     *assistant.Router
	relay      Relay

	mu    sync.RWMutex
	sinks map[string]broadcast.Sink // connection handle -> write sink
}

// New creates an engine over the given leaves. relay may be nil.
func New(cfg Config, store *chat.Store, registry *presence.Registry, dispatcher *broadcast.Dispatcher, relay Relay) *Engine {
	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = DefaultChannel
	}

	e := &Engine{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		matcher:    matching.NewEngine(store),
		relay:      relay,
		sinks:      make(map[string]broadcast.Sink),
	}
	e.router = assistant.NewRouter(cfg.Assistant, e.matcher, e, registry.OnlineCount)
	return e
}

// Store exposes the message store for query-layer consumers.
func (e *Engine) Store() *chat.Store { return e.store }

// Join registers the connection for an identity, subscribes it to the
// channel, and returns the recent history plus an initial match list. The
// online set is broadcast to every connected client.
func (e *Engine) Join(sink broadcast.Sink, identity, channel string) (JoinResult, error) {
	if identity == "" {
		return JoinResult{}, &chat.ValidationError{Field: "identity", Reason: "unset"}
	}
	if channel == "" {
		channel = e.cfg.DefaultChannel
	}

	handle := sink.ID()
	e.registry.Register(handle, identity)
	e.dispatcher.Subscribe(channel, sink)

	e.mu.Lock()
	e.sinks[handle] = sink
	e.mu.Unlock()

	e.broadcastPresence()
	log.Printf("[engine] join identity=%s conn=%s channel=%s (online=%d)",
		identity, handle, channel, e.registry.OnlineCount())

	return JoinResult{
		Channel: channel,
		History: e.store.History(channel, 0),
		Matches: e.matcher.FindMatches(identity, 0),
	}, nil
}

// HandleMessage appends an inbound message, fans it out to the channel, and
// routes assistant commands. The identity is resolved from the connection's
// presence entry; a connection that has not joined is rejected.
func (e *Engine) HandleMessage(handle, channel, content string) (chat.Message, error) {
	entry, ok := e.registry.Get(handle)
	if !ok {
		return chat.Message{}, fmt.Errorf("engine: connection %s has not joined", handle)
	}
	if channel == "" {
		channel = e.cfg.DefaultChannel
	}
	e.registry.Touch(handle)

	stored, err := e.appendAndPublish(chat.Message{
		Sender:  entry.Identity,
		Channel: channel,
		Content: content,
		Kind:    chat.KindUser,
	})
	if err != nil {
		return chat.Message{}, err
	}

	if assistant.IsCommand(content) {
		e.router.Handle(entry.Identity, channel, assistant.StripCommand(content))
	}
	return stored, nil
}

// Subscribe adds a joined connection to a channel's broadcast set.
func (e *Engine) Subscribe(handle, channel string) error {
	e.mu.RLock()
	sink, ok := e.sinks[handle]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("engine: connection %s has not joined", handle)
	}
	if channel == "" {
		return &chat.ValidationError{Field: "channel", Reason: "unset"}
	}
	e.dispatcher.Subscribe(channel, sink)
	return nil
}

// Unsubscribe removes a connection from a channel's broadcast set.
func (e *Engine) Unsubscribe(handle, channel string) {
	e.dispatcher.Unsubscribe(channel, handle)
}

// Disconnect removes a connection from presence and every channel, then
// broadcasts the updated online set. Safe to call more than once.
func (e *Engine) Disconnect(handle string) {
	e.mu.Lock()
	_, known := e.sinks[handle]
	delete(e.sinks, handle)
	e.mu.Unlock()

	e.registry.Unregister(handle)
	e.dispatcher.UnsubscribeAll(handle)

	if known {
		e.broadcastPresence()
		log.Printf("[engine] disconnect conn=%s (online=%d)", handle, e.registry.OnlineCount())
	}
}

// GetMatches is the synchronous match query: ranked matches plus the
// requester's inferred profile.
func (e *Engine) GetMatches(identity string) MatchResult {
	return MatchResult{
		Matches: e.matcher.FindMatches(identity, 0),
		Profile: e.matcher.Profile(identity),
	}
}

// GetAnalytics aggregates store and presence counters with the per-skill
// distinct-identity counts.
func (e *Engine) GetAnalytics() Analytics {
	return Analytics{
		TotalUsers:     e.store.IdentityCount(),
		ActiveUsers:    e.registry.OnlineCount(),
		TotalMessages:  e.store.TotalMessages(),
		TopSkillCounts: e.matcher.SkillCounts(),
	}
}

// EmitAssistant implements assistant.Emitter: the reply is stored and fanned
// out through the same append+publish path as user messages.
func (e *Engine) EmitAssistant(channel, content string) {
	_, err := e.appendAndPublish(chat.Message{
		Sender:  chat.AssistantSender,
		Channel: channel,
		Content: content,
		Kind:    chat.KindAssistant,
	})
	if err != nil {
		log.Printf("[engine] assistant reply rejected channel=%s: %v", channel, err)
	}
}

// EmitMatches implements assistant.Emitter: the updated match list is sent
// to every live connection of the identity.
func (e *Engine) EmitMatches(identity string, matches []matching.Match) {
	data, err := protocol.NewServerMessage(protocol.TypeMatches, protocol.MatchesMsg{
		Matches: matches,
	})
	if err != nil {
		log.Printf("[engine] failed to build matches message: %v", err)
		return
	}

	for _, handle := range e.registry.HandlesFor(identity) {
		e.mu.RLock()
		sink, ok := e.sinks[handle]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		if err := sink.Send(data); err != nil {
			log.Printf("[engine] matches push failed conn=%s: %v", handle, err)
		}
	}
}

// appendAndPublish stores a message, then fans it out to the channel and to
// the relay. Store visibility precedes fan-out: a subscriber that reacts to
// the event will observe the message in history.
func (e *Engine) appendAndPublish(msg chat.Message) (chat.Message, error) {
	stored, err := e.store.Append(msg)
	if err != nil {
		return chat.Message{}, err
	}
	metrics.MessagesTotal.WithLabelValues(stored.Kind).Inc()

	data, err := protocol.NewServerMessage(protocol.TypeMessage, protocol.ServerChatMsg{
		Message: stored,
	})
	if err != nil {
		return stored, fmt.Errorf("engine: encode message event: %w", err)
	}
	e.dispatcher.Publish(stored.Channel, data)

	if e.relay != nil {
		if err := e.relay.PublishMessage(stored); err != nil {
			log.Printf("[engine] relay publish failed id=%d: %v", stored.ID, err)
		}
	}
	return stored, nil
}

// InjectRemote fans out a message stored by another server instance without
// re-appending or re-relaying it. Called from the NATS subscription.
func (e *Engine) InjectRemote(msg chat.Message) {
	data, err := protocol.NewServerMessage(protocol.TypeMessage, protocol.ServerChatMsg{
		Message: msg,
	})
	if err != nil {
		log.Printf("[engine] encode remote message: %v", err)
		return
	}
	e.dispatcher.Publish(msg.Channel, data)
}

// broadcastPresence sends the current online identity set to every
// registered connection.
func (e *Engine) broadcastPresence() {
	data, err := protocol.NewServerMessage(protocol.TypePresenceChanged, protocol.PresenceChangedMsg{
		Online: e.registry.OnlineIdentities(),
	})
	if err != nil {
		log.Printf("[engine] failed to build presence message: %v", err)
		return
	}

	e.mu.RLock()
	sinks := make([]broadcast.Sink, 0, len(e.sinks))
	for _, s := range e.sinks {
		sinks = append(sinks, s)
	}
	e.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(data); err != nil {
			log.Printf("[engine] presence push failed conn=%s: %v", s.ID(), err)
		}
	}
}
