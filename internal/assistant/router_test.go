package assistant

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/consilience/collab-chat/internal/chat"
	"github.com/consilience/collab-chat/internal/matching"
)

// recordingEmitter captures emitted replies and match pushes.
type recordingEmitter struct {
	mu       sync.Mutex
	replies  []string
	channels []string
	matches  map[string][]matching.Match
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{matches: make(map[string][]matching.Match)}
}

func (e *recordingEmitter) EmitAssistant(channel, content string) {
	e.mu.Lock()
	e.replies = append(e.replies, content)
	e.channels = append(e.channels, channel)
	e.mu.Unlock()
}

func (e *recordingEmitter) EmitMatches(identity string, matches []matching.Match) {
	e.mu.Lock()
	e.matches[identity] = matches
	e.mu.Unlock()
}

func (e *recordingEmitter) lastReply() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.replies) == 0 {
		return ""
	}
	return e.replies[len(e.replies)-1]
}

// newTestRouter builds a router with synchronous scheduling.
func newTestRouter(store *chat.Store, emitter Emitter, online int) *Router {
	cfg := DefaultConfig()
	cfg.ReplyDelay = 0
	r := NewRouter(cfg, matching.NewEngine(store), emitter, func() int { return online })
	r.schedule = func(_ time.Duration, f func()) { f() }
	return r
}

func TestIsCommand(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"/ai find me a cofounder", true},
		{"/AI find me a cofounder", true},
		{"/Ai hello", true},
		{"/ai", false},       // no trailing space
		{"/aihello", false},  // prefix must end with a space
		{" /ai hello", false},
		{"hello /ai", false},
		{"plain message", false},
	}

	for _, tc := range cases {
		if got := IsCommand(tc.content); got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestStripCommand(t *testing.T) {
	if got := StripCommand("/ai find me a cofounder"); got != "find me a cofounder" {
		t.Errorf("got %q", got)
	}
	if got := StripCommand("/AI   spaced out  "); got != "spaced out" {
		t.Errorf("got %q", got)
	}
}

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"find me a cofounder", IntentCollaboration},
		{"looking for a partner", IntentCollaboration},
		{"I need a team", IntentCollaboration},
		{"yes please", IntentAffirmative},
		{"create task for the contract", IntentTask},
		{"make me an nft", IntentNFT},
		{"launch a token", IntentToken},
		{"what can you do", IntentHelp},
	}

	for _, tc := range cases {
		if got := DetectIntent(tc.query); got != tc.want {
			t.Errorf("DetectIntent(%q) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestCofounderReplyNamesTopMatch(t *testing.T) {
	store := chat.NewStore()
	// D and E share rust and nft; E also knows defi, so the score is
	// 2/max(2,3,1) = 0.666 for D's request.
	for i := 0; i < 3; i++ {
		store.Append(chat.Message{Sender: "D-wallet-address", Channel: "general", Content: "rust nft work"})
	}
	store.Append(chat.Message{Sender: "E-wallet-address", Channel: "general", Content: "rust nft defi"})

	emitter := newRecordingEmitter()
	r := newTestRouter(store, emitter, 2)

	r.Handle("D-wallet-address", "general", "find me a cofounder")

	reply := emitter.lastReply()
	if !strings.Contains(reply, "E-wallet") {
		t.Errorf("reply must name the candidate: %q", reply)
	}
	if !strings.Contains(reply, "rust") || !strings.Contains(reply, "nft") {
		t.Errorf("reply must list common skills: %q", reply)
	}
	if !strings.Contains(reply, matching.RoleCollaborator) {
		t.Errorf("reply must carry the suggested role: %q", reply)
	}

	pushed := emitter.matches["D-wallet-address"]
	if len(pushed) == 0 || pushed[0].Candidate != "E-wallet-address" {
		t.Errorf("updated matches must be pushed to the requester: %+v", pushed)
	}
}

func TestCollaborationReplyWithoutMatches(t *testing.T) {
	store := chat.NewStore()
	store.Append(chat.Message{Sender: "lonely", Channel: "general", Content: "anyone here"})

	emitter := newRecordingEmitter()
	r := newTestRouter(store, emitter, 7)

	r.Handle("lonely", "general", "find me a partner")

	reply := emitter.lastReply()
	if !strings.Contains(reply, "7 active users") {
		t.Errorf("no-match reply must report the online count: %q", reply)
	}
}

func TestAffirmativeProducesIntroduction(t *testing.T) {
	store := chat.NewStore()
	store.Append(chat.Message{Sender: "alice", Channel: "general", Content: "rust nft"})
	store.Append(chat.Message{Sender: "bob", Channel: "general", Content: "rust defi"})

	emitter := newRecordingEmitter()
	r := newTestRouter(store, emitter, 2)

	r.Handle("alice", "general", "yes")

	reply := emitter.lastReply()
	if !strings.Contains(reply, "introduction") {
		t.Errorf("expected an introduction, got %q", reply)
	}
	if !strings.Contains(reply, "rust") {
		t.Errorf("introduction must mention the common skill: %q", reply)
	}
}

func TestTaskReplyQuotesSkills(t *testing.T) {
	store := chat.NewStore()
	store.Append(chat.Message{Sender: "alice", Channel: "general", Content: "rust react defi frontend"})

	emitter := newRecordingEmitter()
	r := newTestRouter(store, emitter, 1)

	r.Handle("alice", "general", "create task")

	reply := emitter.lastReply()
	if !strings.Contains(reply, "Task created") {
		t.Errorf("expected task confirmation, got %q", reply)
	}
	if !strings.Contains(reply, "rust") {
		t.Errorf("task reply must quote the requester's skills: %q", reply)
	}
}

func TestHelpFallback(t *testing.T) {
	store := chat.NewStore()
	store.Append(chat.Message{Sender: "alice", Channel: "general", Content: "hello"})

	emitter := newRecordingEmitter()
	r := newTestRouter(store, emitter, 1)

	r.Handle("alice", "general", "what else")

	if !strings.Contains(emitter.lastReply(), "I can help you with") {
		t.Errorf("expected help fallback, got %q", emitter.lastReply())
	}
}

func TestPanicBecomesFallbackReply(t *testing.T) {
	store := chat.NewStore()
	store.Append(chat.Message{Sender: "alice", Channel: "general", Content: "hi"})

	emitter := newRecordingEmitter()
	r := newTestRouter(store, emitter, 1)
	// Online counter blowing up stands in for any internal failure.
	r.online = func() int { panic("presence backend down") }

	r.Handle("alice", "general", "find me a partner")

	if emitter.lastReply() != FallbackReply {
		t.Errorf("expected fallback reply, got %q", emitter.lastReply())
	}
}

func TestReplyIsDeferredNotBlocking(t *testing.T) {
	store := chat.NewStore()
	store.Append(chat.Message{Sender: "alice", Channel: "general", Content: "hi"})

	emitter := newRecordingEmitter()
	cfg := DefaultConfig()
	cfg.ReplyDelay = 20 * time.Millisecond
	r := NewRouter(cfg, matching.NewEngine(store), emitter, func() int { return 1 })

	start := time.Now()
	r.Handle("alice", "general", "what can you do")
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("Handle must not block on the reply delay (took %s)", elapsed)
	}

	deadline := time.After(2 * time.Second)
	for emitter.lastReply() == "" {
		select {
		case <-deadline:
			t.Fatal("deferred reply never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
