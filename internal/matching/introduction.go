package matching

import (
	"fmt"
	"strings"
)

// renderIntroduction builds the introduction text between two identities.
// Presentation only; the score and skills are computed by the caller.
func renderIntroduction(a, b, context string, score float64, common []string) string {
	skills := "Complementary expertise"
	if len(common) > 0 {
		skills = strings.Join(common, ", ")
	}

	var sb strings.Builder
	sb.WriteString("Smart Introduction\n\n")
	fmt.Fprintf(&sb, "%s <-> %s\n\n", shortIdentity(a), shortIdentity(b))
	fmt.Fprintf(&sb, "Compatibility: %d%%\n", int(score*100+0.5))
	fmt.Fprintf(&sb, "Common skills: %s\n", skills)
	if context != "" {
		fmt.Fprintf(&sb, "Context: %s\n", context)
	}
	sb.WriteString("\nYou should collaborate!")
	return sb.String()
}

// shortIdentity abbreviates a wallet address for display.
func shortIdentity(identity string) string {
	if len(identity) <= 8 {
		return identity
	}
	return identity[:8]
}
