// Package assistant implements the in-band assistant command router. A chat
// message beginning with the "/ai " prefix is treated as a one-shot command:
// intent is detected from keywords, the matching engine is consulted, and a
// synthetic assistant message is published back to the same channel after a
// short simulated thinking delay. There is no multi-turn conversation state.
package assistant

import (
	"log"
	"strings"
	"time"

	"github.com/consilience/collab-chat/internal/matching"
	"github.com/consilience/collab-chat/internal/metrics"
)

// CommandPrefix marks a message as an assistant command. Matching is
// case-insensitive and requires the trailing space.
const CommandPrefix = "/ai "

// FallbackReply is published when reply generation fails for any reason.
// Failures are never silently dropped and never crash the dispatcher.
const FallbackReply = "AI service temporarily unavailable. Please try again."

// DefaultReplyDelay simulates assistant thinking time. The delay is
// scheduled on a timer, never slept on the handling goroutine.
const DefaultReplyDelay = 1 * time.Second

// Config holds router tuning parameters.
type Config struct {
	ReplyDelay time.Duration
	TopSkills  int // skills quoted in the task-creation reply
}

// DefaultConfig returns the router defaults.
func DefaultConfig() Config {
	return Config{
		ReplyDelay: DefaultReplyDelay,
		TopSkills:  3,
	}
}

// Emitter receives the router's output. The implementation (the engine)
// owns appending the assistant message to the store and broadcasting it.
type Emitter interface {
	// EmitAssistant publishes an assistant reply to a channel.
	EmitAssistant(channel, content string)
	// EmitMatches pushes an updated match list to the requesting identity.
	EmitMatches(identity string, matches []matching.Match)
}

// Router detects assistant commands and produces replies.
type Router struct {
	cfg     Config
	engine  *matching.Engine
	emitter Emitter
	online  func() int // current online identity count

	// schedule defers a function by a delay; replaced in tests.
	schedule func(time.Duration, func())
}

// NewRouter creates an assistant command router.
func NewRouter(cfg Config, engine *matching.Engine, emitter Emitter, online func() int) *Router {
	if cfg.ReplyDelay < 0 {
		cfg.ReplyDelay = 0
	}
	if cfg.TopSkills <= 0 {
		cfg.TopSkills = 3
	}
	return &Router{
		cfg:     cfg,
		engine:  engine,
		emitter: emitter,
		online:  online,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// IsCommand reports whether content invokes the assistant.
func IsCommand(content string) bool {
	return len(content) >= len(CommandPrefix) &&
		strings.EqualFold(content[:len(CommandPrefix)], CommandPrefix)
}

// StripCommand returns the query text after the command prefix.
func StripCommand(content string) string {
	if !IsCommand(content) {
		return content
	}
	return strings.TrimSpace(content[len(CommandPrefix):])
}

// Handle processes one assistant command from identity on channel. The reply
// is composed immediately but emitted after the configured delay so the
// calling goroutine is never blocked. Once triggered, emission is
// best-effort: a disconnected requester simply misses it.
func (r *Router) Handle(identity, channel, query string) {
	start := time.Now()

	reply, matches := r.composeSafely(identity, query)

	r.schedule(r.cfg.ReplyDelay, func() {
		r.emitter.EmitAssistant(channel, reply)
		if matches != nil {
			r.emitter.EmitMatches(identity, matches)
		}
		metrics.AssistantReplyLatency.Observe(time.Since(start).Seconds())
	})
}

// composeSafely generates the reply, converting any panic into the visible
// fallback message.
func (r *Router) composeSafely(identity, query string) (reply string, matches []matching.Match) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[assistant] reply generation failed identity=%s: %v", identity, rec)
			reply = FallbackReply
			matches = nil
		}
	}()
	return r.compose(identity, query)
}
