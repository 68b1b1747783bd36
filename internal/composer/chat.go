package composer

import (
	"fmt"
	"strings"

	"github.com/wingmanlabs/wingman/internal/flow"
	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/tone"
)

// chatPersona is the steady system prompt for the text-chat path: peer
// voice, no therapy-speak, concrete and short.
const chatPersona = `You're texting a friend who needs help with their conversations. Sound like a real person - not an AI, not a therapist, not customer service.

IMPORTANT - Be inclusive:
- This app is for everyone - all genders, all orientations
- Pick up on context clues to understand who they're texting
- Don't assume - if unclear, use neutral language or ask naturally
- Adapt your advice based on who they're talking to and their situation

How to sound human:
- Use lowercase, minimal punctuation
- React naturally ("lol", "wait", "oh", "nah", "bet", "lowkey")
- Reference what they actually said, don't be generic
- Keep it short - 1-2 sentences max
- Don't explain yourself or use filler phrases like "I think" or "In my opinion"
- Never use phrases like "I understand" or "That makes sense" - just respond
- Be direct but warm, like you're texting your friend
- Match their energy - if they're stressed, acknowledge it briefly then help`

// trialChatSystem is the degraded system prompt for trial-tier chat turns.
const trialChatSystem = `Give brief, generic texting advice. Keep it short (1-2 sentences). ` + upgradeNudge

// Chat composes the text-chat prompt for one turn, shaped by the
// conversation mode.
func Chat(p profile.Profile, mode flow.Mode, message string, trial bool) Prompt {
	out := Prompt{
		System:    chatPersona,
		MaxTokens: 300,
	}
	if trial {
		out.System = trialChatSystem
	}

	directive := tone.Directive(p.ResponseStyle)
	name := displayName(p)
	vibe := p.Vibe()

	var b strings.Builder
	switch mode {
	case flow.ModeGreeting:
		fmt.Fprintf(&b, "%s just joined. They want to come across as: %q\n\n", name, vibe)
		fmt.Fprintf(&b, "VIBE: %s\n\n", directive)
		b.WriteString(`Write a natural, friendly first message (2-3 sentences) that:
1. Greet them by name (or just "hey" if no name)
2. Acknowledge their vibe naturally - like "oh ` + vibe + `? i can work with that"
3. Ask ONE casual question to get to know them better - something like who they're usually texting or what kind of situations they need help with

Frame it like a friend asking, NOT like an interview. Use "so" or "oh" to start questions - feels more natural.

Don't mention settings yet. Just get to know them first. lowercase, casual.`)

	case flow.ModeFirstFollowup:
		fmt.Fprintf(&b, "You're talking to %s who wants to come across as: %q\n\n", name, vibe)
		fmt.Fprintf(&b, "They just told you: %q\n\n", message)
		fmt.Fprintf(&b, "VIBE: %s\n\n", directive)
		b.WriteString(`Write a natural response (2-3 sentences) that:
1. React to what they said - be genuine, not generic
2. Ask ONE more follow-up question to understand them better - maybe about their texting style, what they struggle with, or what their goal usually is

Keep it conversational. You're getting to know them so you can help better. After this you'll get straight to helping.

Frame like a friend, not an interviewer. lowercase.`)

	case flow.ModeTransition:
		recent := p.Messages
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		fmt.Fprintf(&b, "You now know %s:\n- Wants to come across as: %q\n- Context from convo: %q\n\n",
			name, vibe, strings.Join(recent, " -> "))
		fmt.Fprintf(&b, "VIBE: %s\n\n", directive)
		b.WriteString(`Write a short message (2 sentences max) that:
1. Quick acknowledgment of what they shared
2. Tell them you're ready - ask them to send a screenshot or describe what's happening
3. Mention that the more they fill out in settings, the better you can match their actual texting style

Be direct now. You know enough about them. Time to help. lowercase.`)

	default: // flow.ModeSteady
		fmt.Fprintf(&b, "You're %s's friend helping them text. Talk like you're texting them back.\n\n", name)

		fmt.Fprintf(&b, "about them: %s vibe", vibe)
		if len(p.Personality) > 1 {
			fmt.Fprintf(&b, ", %s", strings.Join(p.Personality[1:], ", "))
		}
		if p.TextSamples != "" {
			fmt.Fprintf(&b, ". texts like: %q", truncate(p.TextSamples, 100))
		}
		b.WriteString(personalityContext(p))
		b.WriteString("\n\n")

		fmt.Fprintf(&b, "they said: %q\n\n", message)
		fmt.Fprintf(&b, "VIBE: %s\nSTYLE: %s\n\n", directive, styleInstructions(p.Tone))
		fmt.Fprintf(&b, `respond like their friend would - give your honest take on the situation and a few options they could send. tell them which one you'd go with.

rules:
- no bullet points or numbered lists, just talk naturally
- lowercase, casual punctuation
- keep it brief - you're texting, not writing an essay
- the replies you suggest should sound like %s, not you
- be real with them - if something seems off, say it
- don't say "I think" or "In my opinion" - just say it`, name)
	}

	out.User = b.String()
	return out
}
