// Package matching scores all-pairs compatibility between identities based on
// their inferred profiles and produces ranked collaborator suggestions.
// Matches are computed fresh on every request; the engine holds no state of
// its own beyond a reference to the message store.
package matching

import (
	"sort"
	"time"

	"github.com/consilience/collab-chat/internal/chat"
	"github.com/consilience/collab-chat/internal/metrics"
	"github.com/consilience/collab-chat/internal/profile"
)

const (
	// DefaultTopK is the number of matches returned when no explicit limit
	// is requested.
	DefaultTopK = 5

	// scoreCutoff is the exclusive lower bound for a candidate to qualify.
	scoreCutoff = 0.2
)

// Role suggestions, evaluated by SuggestRole in order.
const (
	RoleMentor       = "mentor"
	RoleFrontendLead = "frontend-lead"
	RoleBackendLead  = "backend-lead"
	RoleDesignLead   = "design-lead"
	RoleCollaborator = "collaborator"
)

// Match is a scored candidate for collaboration with the requesting identity.
type Match struct {
	Candidate     string   `json:"candidate"`
	Score         float64  `json:"score"`
	CommonSkills  []string `json:"commonSkills"`
	SuggestedRole string   `json:"suggestedRole"`
}

// Introduction is the rendered pairwise introduction between two identities.
type Introduction struct {
	Text               string   `json:"text"`
	CompatibilityScore float64  `json:"compatibilityScore"`
	CommonSkills       []string `json:"commonSkills"`
}

// Engine computes matches over the message store. It is safe for concurrent
// use; all state lives in the store.
type Engine struct {
	store *chat.Store
}

// NewEngine creates a matching engine over the given message store.
func NewEngine(store *chat.Store) *Engine {
	return &Engine{store: store}
}

// Profile infers the current profile for an identity from its message log.
func (e *Engine) Profile(identity string) profile.Profile {
	return profile.Infer(e.store.HistoryFor(identity))
}

// FindMatches returns up to topK candidates ranked by compatibility with the
// requester, best first. A topK <= 0 selects DefaultTopK. The requester is
// never its own candidate. An identity that has sent no messages gets no
// matches: with no log there is nothing to compare against. Candidates with
// a score at or below the cutoff are discarded. Ties rank by the store's
// identity insertion order (the sort is stable).
func (e *Engine) FindMatches(identity string, topK int) []Match {
	start := time.Now()
	defer func() {
		metrics.MatchComputeDuration.Observe(time.Since(start).Seconds())
	}()

	if topK <= 0 {
		topK = DefaultTopK
	}

	if len(e.store.HistoryFor(identity)) == 0 {
		return []Match{}
	}
	requester := e.Profile(identity)

	matches := make([]Match, 0)
	for _, candidate := range e.store.Identities() {
		if candidate == identity {
			continue
		}
		candidateProfile := profile.Infer(e.store.HistoryFor(candidate))

		common := intersectSkills(requester.Skills, candidateProfile.Skills)
		score := overlapScore(len(common), len(requester.Skills), len(candidateProfile.Skills))
		if score <= scoreCutoff {
			continue
		}

		matches = append(matches, Match{
			Candidate:     candidate,
			Score:         score,
			CommonSkills:  common,
			SuggestedRole: SuggestRole(requester, candidateProfile),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	metrics.MatchesReturned.Add(float64(len(matches)))
	return matches
}

// SuggestRole picks a collaboration role from a fixed decision table,
// evaluated top to bottom, first hit wins.
func SuggestRole(requester, candidate profile.Profile) string {
	switch {
	case requester.Expertise == profile.ExpertiseExpert && candidate.Expertise == profile.ExpertiseBeginner:
		return RoleMentor
	case requester.HasSkill("frontend") && candidate.HasSkill("backend"):
		return RoleFrontendLead
	case requester.HasSkill("backend") && candidate.HasSkill("frontend"):
		return RoleBackendLead
	case requester.HasSkill("design"):
		return RoleDesignLead
	default:
		return RoleCollaborator
	}
}

// GenerateIntroduction recomputes the pairwise compatibility between two
// identities and renders a fixed-template introduction. It reads but never
// writes store state.
func (e *Engine) GenerateIntroduction(a, b, context string) Introduction {
	profileA := e.Profile(a)
	profileB := e.Profile(b)

	common := intersectSkills(profileA.Skills, profileB.Skills)
	score := overlapScore(len(common), len(profileA.Skills), len(profileB.Skills))

	return Introduction{
		Text:               renderIntroduction(a, b, context, score, common),
		CompatibilityScore: score,
		CommonSkills:       common,
	}
}

// SkillCounts returns, for every skill in any inferred profile, the number
// of distinct identities whose profile includes it.
func (e *Engine) SkillCounts() map[string]int {
	counts := make(map[string]int)
	for _, identity := range e.store.Identities() {
		for _, skill := range profile.Infer(e.store.HistoryFor(identity)).Skills {
			counts[skill]++
		}
	}
	return counts
}

// overlapScore is |common| / max(|a|, |b|, 1).
func overlapScore(common, a, b int) float64 {
	max := a
	if b > max {
		max = b
	}
	if max < 1 {
		max = 1
	}
	return float64(common) / float64(max)
}

// intersectSkills returns the skills present in both lists, preserving the
// order of the first list.
func intersectSkills(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	common := make([]string, 0)
	for _, s := range a {
		if set[s] {
			common = append(common, s)
		}
	}
	return common
}
