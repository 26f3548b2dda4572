package assistant

import (
	"fmt"
	"strings"

	"github.com/consilience/collab-chat/internal/matching"
)

// Intent categories, checked in order; the first hit wins.
const (
	IntentCollaboration = "collaboration"
	IntentAffirmative   = "affirmative"
	IntentTask          = "task"
	IntentNFT           = "nft"
	IntentToken         = "token"
	IntentHelp          = "help"
)

// DetectIntent classifies a stripped assistant query by keyword containment.
func DetectIntent(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "cofounder", "co-founder", "partner", "collaborator", "collaborate", "team"):
		return IntentCollaboration
	case containsAny(q, "yes", "sure", "introduce"):
		return IntentAffirmative
	case containsAny(q, "task"):
		return IntentTask
	case containsAny(q, "nft"):
		return IntentNFT
	case containsAny(q, "token"):
		return IntentToken
	default:
		return IntentHelp
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// compose builds the reply text for a query. The returned match list, when
// non-nil, is pushed to the requester alongside the reply.
func (r *Router) compose(identity, query string) (string, []matching.Match) {
	matches := r.engine.FindMatches(identity, 0)

	switch DetectIntent(query) {
	case IntentCollaboration:
		if len(matches) == 0 {
			return fmt.Sprintf(
				"I don't see any obvious matches right now. There are %d active users.\n\n"+
					"Tell me more about your project - what skills are you looking for?",
				r.online()), matches
		}
		return renderTopMatch(matches[0]), matches

	case IntentAffirmative:
		if len(matches) == 0 {
			return "There is nobody to introduce you to yet - ask me to find a collaborator first.", matches
		}
		top := matches[0]
		intro := r.engine.GenerateIntroduction(identity, top.Candidate, "Collaboration request")
		return fmt.Sprintf("Great! Here's your introduction:\n\n%s\n\nYou can now connect directly!", intro.Text), matches

	case IntentTask:
		skills := r.engine.Profile(identity).Skills
		if len(skills) > r.cfg.TopSkills {
			skills = skills[:r.cfg.TopSkills]
		}
		return fmt.Sprintf(
			"Task created: Smart Contract Development\n\n"+
				"Develop and test smart contracts for your project.\n\n"+
				"- Estimated: 8-12 hours\n- Skills needed: %s\n- Priority: high\n\n"+
				"Task added to your project board!",
			strings.Join(skills, ", ")), nil

	case IntentNFT:
		return "I can help you create NFTs! The system will generate a unique NFT for your wallet.\n\n" +
			"Just use the CREATE NFT action in the sidebar.", nil

	case IntentToken:
		return "Token creation is available! You can create custom tokens on Solana.\n\n" +
			"Use the CREATE TOKEN action or tell me what kind of token you want.", nil

	default:
		return fmt.Sprintf(
			"I can help you with:\n"+
				"- Finding collaborators (%d potential matches)\n"+
				"- Creating tasks and projects\n"+
				"- Token and NFT creation\n"+
				"- Blockchain development\n\n"+
				"What would you like to work on?",
			len(matches)), matches
	}
}

// renderTopMatch formats the collaboration reply for the best candidate.
func renderTopMatch(m matching.Match) string {
	skills := strings.Join(m.CommonSkills, ", ")
	if skills == "" {
		skills = "complementary expertise"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "I found a potential collaborator: %s\n\n", shortIdentity(m.Candidate))
	fmt.Fprintf(&sb, "- %d%% compatibility\n", int(m.Score*100+0.5))
	fmt.Fprintf(&sb, "- Common skills: %s\n", skills)
	fmt.Fprintf(&sb, "- Suggested role: %s\n\n", m.SuggestedRole)
	sb.WriteString("Want me to introduce you?")
	return sb.String()
}

// shortIdentity abbreviates a wallet address for display.
func shortIdentity(identity string) string {
	if len(identity) <= 8 {
		return identity
	}
	return identity[:8]
}
