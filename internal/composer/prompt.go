// Package composer assembles system and user prompts for the model gateway
// from profile state, tone directives, and the conversation mode.
package composer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/tone"
)

// Prompt is a composed request ready for the gateway.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// textSampleLimit caps how much of the user's writing samples is quoted
// into a prompt.
const textSampleLimit = 200

// requestTag returns a short unique marker prepended to user prompts so no
// upstream layer can ever serve a cached analysis for a new image.
func requestTag() string {
	return "[" + uuid.New().String()[:8] + "] "
}

// styleInstructions renders the three slider clauses on one line.
func styleInstructions(s tone.Sliders) string {
	length, emoji, flirt := tone.Clauses(s)
	return fmt.Sprintf("LENGTH: %s | EMOJIS: %s | FLIRT: %s", length, emoji, flirt)
}

// displayName returns the name used when talking about the user in a
// prompt, with the original's fallback.
func displayName(p profile.Profile) string {
	if p.Name != "" {
		return p.Name
	}
	return "someone"
}

// truncate cuts s to at most n bytes on a rune boundary-agnostic basis;
// prompt text is ASCII-dominated and the cut is cosmetic.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// personalityContext renders the deep-personality answers the user has
// filled in, empty string when there are none.
func personalityContext(p profile.Profile) string {
	var b strings.Builder
	if v := p.DeepAnswers["noReplyThought"]; v != "" {
		fmt.Fprintf(&b, " When no reply: %q.", v)
	}
	if v := p.DeepAnswers["whenYouLikeSomeone"]; v != "" {
		fmt.Fprintf(&b, " When they like someone: %q.", v)
	}
	if v := p.DeepAnswers["whatKillsConvos"]; v != "" {
		fmt.Fprintf(&b, " What kills their convos: %q.", v)
	}
	if v := p.DeepAnswers["confidenceLevel"]; v != "" {
		fmt.Fprintf(&b, " Confidence: %q.", v)
	}
	if v := p.DeepAnswers["whatYouWant"]; v != "" {
		fmt.Fprintf(&b, " Looking for: %q.", v)
	}
	return b.String()
}

// relationshipVibe maps the "who are you texting" answer onto a framing
// directive via substring buckets. Unknown or empty answers get none.
func relationshipVibe(who string) string {
	switch {
	case strings.Contains(who, "crush") || strings.Contains(who, "dating"):
		return "this is someone they like so the stakes feel high. help them be smooth but not try-hard."
	case strings.Contains(who, "ex"):
		return "this is an ex so tread carefully. help them stay cool and unbothered, not desperate or bitter."
	case strings.Contains(who, "friend") || strings.Contains(who, "talking"):
		return "this is casual so keep it light and natural. no pressure."
	default:
		return ""
	}
}

// upgradeNudge is the instruction appended to every trial-tier system
// prompt.
const upgradeNudge = `end with: "upgrade for personalized replies that match your style"`
