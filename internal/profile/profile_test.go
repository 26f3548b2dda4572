package profile

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/consilience/collab-chat/internal/chat"
)

func msgs(contents ...string) []chat.Message {
	out := make([]chat.Message, len(contents))
	for i, c := range contents {
		out[i] = chat.Message{Sender: "w", Channel: "general", Content: c}
	}
	return out
}

func TestEmptyLogReturnsDefaultProfile(t *testing.T) {
	got := Infer(nil)
	want := Profile{
		Skills:             []string{"blockchain", "solana"},
		Interests:          []string{"collaboration"},
		CommunicationStyle: StyleBalanced,
		ActivityLevel:      ActivityMedium,
		Expertise:          ExpertiseIntermediate,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("default profile mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestInferIsDeterministic(t *testing.T) {
	log := msgs("building a rust nft marketplace", "deploying to production soon")

	first := Infer(log)
	for i := 0; i < 5; i++ {
		if got := Infer(log); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged:\n got %+v\nwant %+v", i, got, first)
		}
	}
}

func TestSkillDetection(t *testing.T) {
	cases := []struct {
		content string
		skills  []string
	}{
		{"I love rust", []string{"rust"}},
		{"react frontend with javascript", []string{"javascript", "react", "frontend"}},
		{"writing a smart contract for defi", []string{"smart contract", "defi"}},
		// Substring containment is intentional: "sol" matches inside "solve".
		{"let me solve this", []string{"solana"}},
		{"no keywords here at all", []string{"blockchain", "solana"}}, // fallback
	}

	for _, tc := range cases {
		t.Run(tc.content, func(t *testing.T) {
			got := Infer(msgs(tc.content))
			if !reflect.DeepEqual(got.Skills, tc.skills) {
				t.Errorf("skills for %q: got %v, want %v", tc.content, got.Skills, tc.skills)
			}
		})
	}
}

func TestInterestDetection(t *testing.T) {
	got := Infer(msgs("a gaming dao with its own token"))
	want := []string{"gaming", "dao", "token"}
	if !reflect.DeepEqual(got.Interests, want) {
		t.Errorf("interests: got %v, want %v", got.Interests, want)
	}

	fallback := Infer(msgs("rust only"))
	if !reflect.DeepEqual(fallback.Interests, []string{"collaboration"}) {
		t.Errorf("expected interest fallback, got %v", fallback.Interests)
	}
}

func TestActivityAndStyleThresholds(t *testing.T) {
	cases := []struct {
		count    int
		style    string
		activity string
	}{
		{1, StyleBalanced, ActivityLow},
		{5, StyleBalanced, ActivityLow},
		{6, StyleBalanced, ActivityMedium},
		{10, StyleBalanced, ActivityMedium},
		{11, StyleActive, ActivityMedium},
		{20, StyleActive, ActivityMedium},
		{21, StyleActive, ActivityHigh},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("count=%d", tc.count), func(t *testing.T) {
			log := make([]chat.Message, tc.count)
			for i := range log {
				log[i] = chat.Message{Content: "plain text"}
			}
			got := Infer(log)
			if got.CommunicationStyle != tc.style {
				t.Errorf("style: got %s, want %s", got.CommunicationStyle, tc.style)
			}
			if got.ActivityLevel != tc.activity {
				t.Errorf("activity: got %s, want %s", got.ActivityLevel, tc.activity)
			}
		})
	}
}

func TestExpertisePriority(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"shipping to production", ExpertiseExpert},
		{"how do I deploy this", ExpertiseExpert},
		{"want to learn rust", ExpertiseBeginner},
		{"can someone help me", ExpertiseBeginner},
		// Deployment language outranks learning language.
		{"help me deploy to production", ExpertiseExpert},
		{"just chatting", ExpertiseIntermediate},
	}

	for _, tc := range cases {
		t.Run(tc.content, func(t *testing.T) {
			if got := Infer(msgs(tc.content)).Expertise; got != tc.want {
				t.Errorf("expertise for %q: got %s, want %s", tc.content, got, tc.want)
			}
		})
	}
}

func TestActiveRustNftScenario(t *testing.T) {
	// 12 messages containing "rust" and "nft": skills include both and the
	// style flips to active (12 > 10).
	log := make([]chat.Message, 12)
	for i := range log {
		log[i] = chat.Message{Content: "minting a rust nft collection"}
	}

	got := Infer(log)
	if !got.HasSkill("rust") || !got.HasSkill("nft") {
		t.Errorf("expected skills to include rust and nft, got %v", got.Skills)
	}
	if got.CommunicationStyle != StyleActive {
		t.Errorf("expected active style, got %s", got.CommunicationStyle)
	}
}
