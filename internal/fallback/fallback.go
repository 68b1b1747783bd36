// Package fallback provides canned replies for turns where no model
// completion could be obtained. Replies are keyed by response style and
// conversation mode so a degraded turn still reads in the user's chosen
// voice, and selection rotates deterministically on message count so
// repeated failures do not repeat the same line.
package fallback

import (
	"fmt"
	"strings"

	"github.com/wingmanlabs/wingman/internal/flow"
	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/tone"
)

// table holds the canned lines for one response style. The greeting and
// followup entries carry %s verbs for the name greeting and vibe answer.
type table struct {
	greeting   []string
	followup   []string
	transition []string
	help       []string
}

var tables = map[tone.Style]table{
	tone.StyleNormal: {
		greeting: []string{
			"hey %[1]s%[2]s - i like that. so who are you usually texting... crush? someone from an app? ex?",
			"%[1]soh %[2]s vibes? i can work with that. so what kind of situations do you usually need help with?",
		},
		followup: []string{
			"oh okay that makes sense. and when you text are you more short and sweet or do you go in with longer messages?",
			"got it got it. so what's usually your struggle - starting convos, keeping them going, knowing what to say?",
		},
		transition: []string{
			"perfect i think i got a feel for you. send me a screenshot or tell me what's happening and i'll help. btw fill out settings with examples of how you text and my responses will sound even more like you",
		},
		help: []string{
			"okay so what do you want to say back?",
			"got it. want me to give you some options?",
			"so what's the goal here - just respond well or you trying to make something happen?",
		},
	},
	tone.StyleBold: {
		greeting: []string{
			"%[1]s%[2]s - respect. who's usually on the other end of these texts?",
			"hey %[1]s%[2]s? okay i see you. so what kind of help you usually need?",
		},
		followup: []string{
			"oh okay. you more of a short texter or you write paragraphs?",
			"got it. what's your weak spot - starting convos? flirting? what?",
		},
		transition: []string{
			"bet. send me a screenshot or tell me what's up. settings = better responses btw",
		},
		help: []string{
			"what do you want to say",
			"want me to give you options?",
			"what's the play",
		},
	},
	tone.StyleSuperBold: {
		greeting: []string{
			"%[1]s%[2]s - let's go. who are we texting?",
			"hey %[1]s%[2]s. what kind of situations you need help with?",
		},
		followup: []string{
			"okay. short texter or paragraphs?",
			"got it. what do you struggle with most?",
		},
		transition: []string{
			"say less. send me the screenshot or tell me what's happening. fill out settings for better responses",
		},
		help: []string{
			"what do you need",
			"want options?",
			"what's the move",
		},
	},
	tone.StyleSpicy: {
		greeting: []string{
			"hey %[1]s%[2]s... i like it \U0001F60F so who's the lucky person you're usually texting?",
			"%[1]soh %[2]s? this is gonna be fun \U0001F336️ what kind of help you usually need?",
		},
		followup: []string{
			"okay okay \U0001F440 and when you text are you playing it cool or going for it?",
			"got it \U0001F60F what's your weak spot - being too nice? not flirty enough?",
		},
		transition: []string{
			"perfect. send me what you got and let's make something happen. fill out settings for even spicier responses \U0001F336️",
		},
		help: []string{
			"so what do you want to say \U0001F440",
			"want me to give you some options? \U0001F60F",
			"what's the goal here \U0001F336️",
		},
	},
}

// Reply returns a canned chat reply for the profile's style and the turn's
// mode. It never returns an empty string.
func Reply(p profile.Profile, mode flow.Mode) string {
	tab, ok := tables[p.ResponseStyle]
	if !ok {
		tab = tables[tone.StyleNormal]
	}

	nameGreet := ""
	if p.Name != "" {
		nameGreet = strings.ToLower(p.Name) + ", "
	}
	vibe := p.Vibe()
	if len(vibe) > 25 {
		vibe = vibe[:25]
	}

	n := p.MessageCount
	if n < 0 {
		n = 0
	}

	switch mode {
	case flow.ModeGreeting:
		return fmt.Sprintf(tab.greeting[n%len(tab.greeting)], nameGreet, vibe)
	case flow.ModeFirstFollowup:
		return fmt.Sprintf(tab.followup[n%len(tab.followup)], nameGreet, vibe)
	case flow.ModeTransition:
		return tab.transition[0]
	default:
		return tab.help[n%len(tab.help)]
	}
}

// Suggestions returns canned keyboard suggestions bucketed by who the user
// is texting. Always exactly three entries.
func Suggestions(who string) []string {
	switch {
	case strings.Contains(who, "crush") || strings.Contains(who, "dating"):
		return []string{"that's actually really cool", "wait tell me more about that", "lol you're interesting"}
	case strings.Contains(who, "ex"):
		return []string{"lol yeah", "that's cool", "nice"}
	default:
		return []string{"lol wait really?", "that's actually pretty cool", "tell me more"}
	}
}
