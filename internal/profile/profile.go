// Package profile derives a lightweight behavioral profile from an identity's
// message log. Inference is a pure function: the same log always produces the
// same profile, and nothing is stored. Detection is deliberately coarse
// substring containment over the concatenated, case-folded log; short terms
// like "js" or "sol" can match inside unrelated words, and that imprecision
// is part of the contract rather than something to tokenize away.
package profile

import (
	"strings"

	"github.com/consilience/collab-chat/internal/chat"
)

// Communication styles.
const (
	StyleBalanced = "balanced"
	StyleActive   = "active"
)

// Activity levels.
const (
	ActivityLow    = "low"
	ActivityMedium = "medium"
	ActivityHigh   = "high"
)

// Expertise levels.
const (
	ExpertiseBeginner     = "beginner"
	ExpertiseIntermediate = "intermediate"
	ExpertiseExpert       = "expert"
)

// Activity thresholds (message counts).
const (
	activeStyleThreshold   = 10
	highActivityThreshold  = 20
	mediumActivityThreshold = 5
)

// Profile is the derived behavioral summary for one identity.
type Profile struct {
	Skills             []string `json:"skills"`
	Interests          []string `json:"interests"`
	CommunicationStyle string   `json:"communicationStyle"`
	ActivityLevel      string   `json:"activityLevel"`
	Expertise          string   `json:"expertise"`
}

// keywordEntry maps a canonical label to the substrings that imply it.
type keywordEntry struct {
	label string
	terms []string
}

// skillVocabulary and interestVocabulary define the fixed detection tables.
// Order determines the order of labels in the resulting profile.
var skillVocabulary = []keywordEntry{
	{"solana", []string{"solana", "sol"}},
	{"rust", []string{"rust"}},
	{"javascript", []string{"javascript", "js"}},
	{"react", []string{"react"}},
	{"smart contract", []string{"smart contract"}},
	{"nft", []string{"nft"}},
	{"defi", []string{"defi"}},
	{"frontend", []string{"frontend"}},
	{"backend", []string{"backend"}},
	{"design", []string{"design"}},
}

var interestVocabulary = []keywordEntry{
	{"marketplace", []string{"marketplace"}},
	{"gaming", []string{"game", "gaming"}},
	{"dao", []string{"dao"}},
	{"token", []string{"token"}},
}

// Default cold-start values so matching never fails on a fresh identity.
var (
	defaultSkills    = []string{"blockchain", "solana"}
	defaultInterests = []string{"collaboration"}
)

// DefaultProfile is the fixed profile returned for an identity with an empty
// message log.
func DefaultProfile() Profile {
	return Profile{
		Skills:             append([]string(nil), defaultSkills...),
		Interests:          append([]string(nil), defaultInterests...),
		CommunicationStyle: StyleBalanced,
		ActivityLevel:      ActivityMedium,
		Expertise:          ExpertiseIntermediate,
	}
}

// Infer computes a profile from an identity's message log. An empty log
// yields DefaultProfile.
func Infer(msgs []chat.Message) Profile {
	if len(msgs) == 0 {
		return DefaultProfile()
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.ToLower(m.Content))
	}
	content := b.String()

	skills := scan(content, skillVocabulary)
	if len(skills) == 0 {
		skills = append([]string(nil), defaultSkills...)
	}
	interests := scan(content, interestVocabulary)
	if len(interests) == 0 {
		interests = append([]string(nil), defaultInterests...)
	}

	return Profile{
		Skills:             skills,
		Interests:          interests,
		CommunicationStyle: styleFor(len(msgs)),
		ActivityLevel:      activityFor(len(msgs)),
		Expertise:          expertiseFor(content),
	}
}

// scan returns the labels whose terms appear anywhere in content, in
// vocabulary order.
func scan(content string, vocab []keywordEntry) []string {
	var labels []string
	for _, entry := range vocab {
		for _, term := range entry.terms {
			if strings.Contains(content, term) {
				labels = append(labels, entry.label)
				break
			}
		}
	}
	return labels
}

func styleFor(count int) string {
	if count > activeStyleThreshold {
		return StyleActive
	}
	return StyleBalanced
}

func activityFor(count int) string {
	switch {
	case count > highActivityThreshold:
		return ActivityHigh
	case count > mediumActivityThreshold:
		return ActivityMedium
	default:
		return ActivityLow
	}
}

// expertiseFor classifies expertise by keyword priority: deployment language
// wins over learning language, which wins over the intermediate default.
func expertiseFor(content string) string {
	if strings.Contains(content, "deploy") || strings.Contains(content, "production") {
		return ExpertiseExpert
	}
	if strings.Contains(content, "learn") || strings.Contains(content, "help") {
		return ExpertiseBeginner
	}
	return ExpertiseIntermediate
}

// HasSkill reports whether the profile includes the given canonical skill.
func (p Profile) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
