package composer

import (
	"fmt"
	"strings"

	"github.com/wingmanlabs/wingman/internal/profile"
)

// ImageContext is the {who, help} pair collected before a screenshot is
// analyzed. Both fields come from a small fixed option set or are empty;
// it exists only for the duration of one request.
type ImageContext struct {
	Who  string `json:"who"`
	Help string `json:"help"`
}

// trialImageSystem is the intentionally degraded analysis for trial users.
// This is a product-tier branch, not a quality fallback.
const trialImageSystem = `read the screenshot and give quick advice.
- one sentence about what's happening
- one basic reply suggestion
` + upgradeNudge

// Image composes the screenshot-analysis prompt. The keyboard variant asks
// for machine-extractable output; the main-app variant asks for friend
// commentary plus options.
func Image(p profile.Profile, ic ImageContext, trial, fromKeyboard bool) Prompt {
	if trial {
		return Prompt{
			System:    trialImageSystem,
			User:      imageUserPrompt(ic),
			MaxTokens: 300,
		}
	}
	if fromKeyboard {
		return keyboardImagePrompt(p, ic)
	}
	return appImagePrompt(p, ic)
}

// appImagePrompt is the full-commentary variant shown in the main app chat.
func appImagePrompt(p profile.Profile, ic ImageContext) Prompt {
	name := displayName(p)

	var b strings.Builder
	fmt.Fprintf(&b, "You're %s's friend helping them figure out what to text back. Read the screenshot first.\n\n", name)
	b.WriteString(`HOW TO HELP:
1. Look at what the other person said (their last message in the screenshot)
2. Give a quick read on the vibe - is it going well or nah?
3. Give 2-3 reply options that actually respond to what they said

YOUR REPLY OPTIONS SHOULD:
- Actually respond to their message, not be generic
- Sound like real texts (lowercase, casual, no periods at the end)
- Give variety: one chill, one more confident, one playful
`)
	fmt.Fprintf(&b, "- Match how %s texts if you know their style\n\n", name)
	fmt.Fprintf(&b, "HOW TO TALK TO %s:\n", strings.ToUpper(name))
	b.WriteString(`- Sound like their friend, not an AI or therapist
- Be direct - "ok so they said..." then get into it
- Use casual language (lol, nah, lowkey, bet, etc)
- Keep your commentary brief, focus on the options
- If the convo looks rough, be honest but helpful
`)
	if vibe := relationshipVibe(ic.Who); vibe != "" {
		b.WriteString("\n" + vibe + "\n")
	}
	b.WriteString("\n" + imageStyleGuide(p))
	if p.TextSamples != "" {
		fmt.Fprintf(&b, "\n\nHOW %s ACTUALLY TEXTS (copy this style):\n%q", strings.ToUpper(name), truncate(p.TextSamples, textSampleLimit))
	}
	if len(p.Personality) > 0 {
		fmt.Fprintf(&b, "\n\nTHEIR VIBE: %s", strings.Join(p.Personality, ", "))
	}

	return Prompt{
		System:    b.String(),
		User:      imageUserPrompt(ic),
		MaxTokens: 600,
	}
}

// keyboardImagePrompt is the structured variant for the keyboard and share
// extensions, which surface bare suggestion chips and need extractable
// output.
func keyboardImagePrompt(p profile.Profile, ic ImageContext) Prompt {
	var b strings.Builder
	b.WriteString(`You analyze text message screenshots and generate replies.

IMPORTANT: You must READ the actual text in the image before responding.

Your response format MUST be:

THEIR MESSAGE: "[copy the exact text of their last message from the screenshot]"

REPLIES:
{"suggestions": ["reply 1", "reply 2", "reply 3"]}

Rules for replies:
- Each reply MUST respond to what they said in "THEIR MESSAGE"
- Be specific - reference their actual words/topic
- Sound human: lowercase, casual, 1-2 sentences
- 3 different vibes: chill, interested, playful
- NO generic responses like just "hey" or "that's cool"
`)
	if vibe := relationshipVibe(ic.Who); vibe != "" {
		b.WriteString("\n" + vibe + "\n")
	}
	b.WriteString("\n" + imageStyleGuide(p))
	if p.TextSamples != "" {
		fmt.Fprintf(&b, "\n\nMATCH THIS TEXTING STYLE:\n%q", truncate(p.TextSamples, 150))
	}

	var u strings.Builder
	u.WriteString(requestTag())
	u.WriteString("Read this text conversation screenshot.\n\n")
	if ic.Who != "" {
		fmt.Fprintf(&u, "This is a %s. ", ic.Who)
	}
	if ic.Help != "" {
		fmt.Fprintf(&u, "They want to %s.", ic.Help)
	}
	u.WriteString(`

First, tell me: what is the other person's last message? (Read the actual text bubbles in the image - look for their most recent message)

Then give me 3 reply options in JSON format.

Format your response exactly like this:
THEIR MESSAGE: "[the exact text you read from their last message]"

{"suggestions": ["reply 1", "reply 2", "reply 3"]}`)

	return Prompt{
		System:    b.String(),
		User:      u.String(),
		MaxTokens: 350,
	}
}

// imageUserPrompt builds the user half shared by the non-keyboard image
// variants.
func imageUserPrompt(ic ImageContext) string {
	var b strings.Builder
	b.WriteString(requestTag())
	switch {
	case ic.Who != "" && ic.Help != "":
		fmt.Fprintf(&b, "ok so this is %s and they need help with %s. ", ic.Who, ic.Help)
	case ic.Who != "":
		fmt.Fprintf(&b, "this is %s. ", ic.Who)
	}
	b.WriteString(`

Read this screenshot carefully. I need help replying.

Tell me:
1. What did they say? (quote their last message from the image)
2. Is this going good or should I be worried?
3. Give me 2-3 replies that respond to what THEY said

Make sure your suggestions actually relate to their message, not just generic stuff.`)
	return b.String()
}

// imageStyleGuide renders the slider preferences in the loose phrasing the
// image prompts use.
func imageStyleGuide(p profile.Profile) string {
	s := p.Tone.Normalize()
	var b strings.Builder

	switch s.Flirt {
	case 3:
		b.WriteString("be flirty and playful. ")
	case 2:
		b.WriteString("subtle flirting is ok. ")
	default:
		b.WriteString("keep it friendly, not too flirty. ")
	}

	switch s.Emoji {
	case 3:
		b.WriteString("emojis are cool. ")
	case 1:
		b.WriteString("no emojis. ")
	}

	switch s.Length {
	case 1:
		b.WriteString("keep responses short - 1 line max.")
	case 3:
		b.WriteString("can be a bit longer if needed.")
	default:
		b.WriteString("1-2 sentences is perfect.")
	}

	return b.String()
}
