// Package tone maps the discrete style knobs a user picks in the app into
// natural-language instruction fragments for prompt composition.
package tone

// Style is the overall response style selected by the user.
type Style string

const (
	StyleNormal    Style = "normal"
	StyleBold      Style = "bold"
	StyleSuperBold Style = "super-bold"
	StyleSpicy     Style = "spicy"
)

// ParseStyle returns the Style for s, falling back to StyleNormal for any
// unrecognized value. Client input is not strictly validated upstream, so
// unknown strings are an expected condition, not an error.
func ParseStyle(s string) Style {
	switch Style(s) {
	case StyleNormal, StyleBold, StyleSuperBold, StyleSpicy:
		return Style(s)
	default:
		return StyleNormal
	}
}

// Sliders holds the three 1-3 style sliders. The zero value is "unset";
// Normalize resolves it to the documented defaults.
type Sliders struct {
	Length int
	Emoji  int
	Flirt  int
}

// DefaultSliders are applied wherever a slider is missing or out of range.
var DefaultSliders = Sliders{Length: 2, Emoji: 2, Flirt: 1}

// Normalize clamps every slider into {1,2,3}, substituting the default for
// anything outside that range.
func (s Sliders) Normalize() Sliders {
	out := s
	if out.Length < 1 || out.Length > 3 {
		out.Length = DefaultSliders.Length
	}
	if out.Emoji < 1 || out.Emoji > 3 {
		out.Emoji = DefaultSliders.Emoji
	}
	if out.Flirt < 1 || out.Flirt > 3 {
		out.Flirt = DefaultSliders.Flirt
	}
	return out
}

var styleDirectives = map[Style]string{
	StyleNormal:    "Keep the tone friendly, warm, and casual. Like texting a good friend.",
	StyleBold:      "Be confident and direct. Don't be afraid to make bold statements or give assertive suggestions.",
	StyleSuperBold: "Be daring and assertive. Push the conversation forward with strong energy and direct compliments.",
	StyleSpicy:     "Be flirty and playful. Add some charm, wit, and subtle romantic energy. Keep it fun and enticing.",
}

var lengthClauses = map[int]string{
	1: "short (1 sentence)",
	2: "medium (1-2 sentences)",
	3: "longer (2-3 sentences)",
}

var emojiClauses = map[int]string{
	1: "no emojis",
	2: "occasional emoji",
	3: "use emojis freely",
}

var flirtClauses = map[int]string{
	1: "friendly only",
	2: "subtly flirty",
	3: "openly flirty",
}

// Directive returns the one-sentence tone directive for a style.
func Directive(style Style) string {
	if d, ok := styleDirectives[style]; ok {
		return d
	}
	return styleDirectives[StyleNormal]
}

// Clauses returns the three independent slider fragments (length, emoji,
// flirt) after normalization.
func Clauses(s Sliders) (length, emoji, flirt string) {
	n := s.Normalize()
	return lengthClauses[n.Length], emojiClauses[n.Emoji], flirtClauses[n.Flirt]
}
