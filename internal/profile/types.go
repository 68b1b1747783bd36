package profile

import (
	"time"

	"github.com/wingmanlabs/wingman/internal/tone"
)

// Profile is the persisted per-user record every pipeline component reads.
type Profile struct {
	UserID string `json:"id"`

	Name        string   `json:"name,omitempty"`
	Personality []string `json:"personality"`
	Struggles   []string `json:"struggles"`
	About       string   `json:"about,omitempty"`

	Tone          tone.Sliders `json:"tone"`
	ResponseStyle tone.Style   `json:"responseStyle"`

	// TextSamples are examples of the user's real writing, used for
	// style-matching in prompts. May be empty.
	TextSamples string `json:"textSamples,omitempty"`

	// DeepAnswers maps fixed question keys (e.g. "whatKillsConvos") to the
	// option the user picked.
	DeepAnswers map[string]string `json:"deepAnswers,omitempty"`

	// Messages are the user's own sent texts, most-recent-last. Only a
	// recent window is loaded; MessageCount is the lifetime total.
	Messages     []string `json:"messages"`
	MessageCount int      `json:"messageCount"`

	// ConversationStep advances 0→1→2→3 and then stays at 3.
	ConversationStep int `json:"conversationStep"`

	ChatHistory []ChatEntry `json:"chatHistory"`

	IsPremium      bool      `json:"isPremium"`
	TrialStartedAt time.Time `json:"trialStartedAt,omitempty"`

	Onboarded bool      `json:"hasCompletedOnboarding"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatEntry is one message in the rolling chat transcript.
type ChatEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	CreatedAt time.Time `json:"timestamp"`
}

// DeepAnswerKeys are the fixed question keys accepted in deep-personality
// patches; anything else is rejected at the boundary.
var DeepAnswerKeys = []string{
	"noReplyThought",
	"whenYouLikeSomeone",
	"whatKillsConvos",
	"quietConvoResponse",
	"biggestFear",
	"howThingsEnd",
	"confidenceLevel",
	"whatYouWant",
}

// trialDays is the length of the free trial.
const trialDays = 3

// TrialDaysLeft returns how many whole days of trial remain at now.
// Premium users and users with no trial start both report zero.
func (p Profile) TrialDaysLeft(now time.Time) int {
	if p.IsPremium || p.TrialStartedAt.IsZero() {
		return 0
	}
	left := trialDays - int(now.Sub(p.TrialStartedAt).Hours()/24)
	if left < 0 {
		return 0
	}
	return left
}

// TrialExpired reports whether a non-premium user's trial window has
// elapsed at now.
func (p Profile) TrialExpired(now time.Time) bool {
	if p.IsPremium || p.TrialStartedAt.IsZero() {
		return false
	}
	return now.Sub(p.TrialStartedAt) >= trialDays*24*time.Hour
}

// Vibe returns the user's lead personality tag, defaulting to "confident"
// the way the prompts expect when nothing was selected.
func (p Profile) Vibe() string {
	if len(p.Personality) > 0 {
		return p.Personality[0]
	}
	return "confident"
}

// Patch is a typed partial update. Nil fields are left untouched; the
// boundary validates values before the patch reaches storage.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	About       *string   `json:"about,omitempty"`
	TextSamples *string   `json:"textSamples,omitempty"`
	Personality *[]string `json:"personality,omitempty"`
	Struggles   *[]string `json:"struggles,omitempty"`

	ResponseStyle *string `json:"responseStyle,omitempty"`
	MessageLength *int    `json:"messageLength,omitempty"`
	EmojiUsage    *int    `json:"emojiUsage,omitempty"`
	Flirtiness    *int    `json:"flirtiness,omitempty"`

	DeepAnswers map[string]string `json:"deepAnswers,omitempty"`

	IsPremium      *bool      `json:"isPremium,omitempty"`
	TrialStartedAt *time.Time `json:"trialStartedAt,omitempty"`
}

// apply folds a patch into a profile. Slider and style values are
// normalized rather than rejected, matching how client input is treated
// everywhere else in the pipeline.
func (p *Profile) apply(patch Patch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.About != nil {
		p.About = *patch.About
	}
	if patch.TextSamples != nil {
		p.TextSamples = *patch.TextSamples
	}
	if patch.Personality != nil {
		p.Personality = append([]string(nil), (*patch.Personality)...)
	}
	if patch.Struggles != nil {
		p.Struggles = append([]string(nil), (*patch.Struggles)...)
	}
	if patch.ResponseStyle != nil {
		p.ResponseStyle = tone.ParseStyle(*patch.ResponseStyle)
	}
	if patch.MessageLength != nil {
		p.Tone.Length = *patch.MessageLength
	}
	if patch.EmojiUsage != nil {
		p.Tone.Emoji = *patch.EmojiUsage
	}
	if patch.Flirtiness != nil {
		p.Tone.Flirt = *patch.Flirtiness
	}
	if len(patch.DeepAnswers) > 0 {
		if p.DeepAnswers == nil {
			p.DeepAnswers = make(map[string]string, len(patch.DeepAnswers))
		}
		for k, v := range patch.DeepAnswers {
			p.DeepAnswers[k] = v
		}
	}
	if patch.IsPremium != nil {
		p.IsPremium = *patch.IsPremium
	}
	if patch.TrialStartedAt != nil {
		p.TrialStartedAt = *patch.TrialStartedAt
	}
	p.Tone = p.Tone.Normalize()
}
