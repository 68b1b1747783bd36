package composer

import (
	"fmt"
	"strings"

	"github.com/wingmanlabs/wingman/internal/profile"
)

// Suggest composes the keyboard quick-suggest prompt. Input is the raw text
// of the other person's message; output is asked for as a bare JSON object
// that the extractor can pull apart.
func Suggest(p profile.Profile, theirMessage string) Prompt {
	var b strings.Builder
	b.WriteString(`You generate text message replies. The user pastes what someone sent them; you reply with 3 options.

Rules:
- Each option responds directly to their message
- Sound human: lowercase, casual, no trailing periods
- 3 different vibes: chill, interested, playful
- Output ONLY the JSON, nothing else:

{"suggestions": ["reply 1", "reply 2", "reply 3"]}
`)
	b.WriteString("\n" + imageStyleGuide(p))
	if p.TextSamples != "" {
		fmt.Fprintf(&b, "\n\nMATCH THIS TEXTING STYLE:\n%q", truncate(p.TextSamples, 150))
	}

	user := requestTag() + fmt.Sprintf("They said: %q\n\nGive me 3 reply options as JSON.", truncate(theirMessage, 500))

	return Prompt{
		System:    b.String(),
		User:      user,
		MaxTokens: 300,
	}
}
