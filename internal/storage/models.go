package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ProfileRecord is the flat row shape for the profiles table. Slice and map
// fields are stored as JSON text; the profile package owns the typed view.
type ProfileRecord struct {
	UserID          string
	Name            string
	PersonalityJSON string // JSON array stored as text
	StrugglesJSON   string // JSON array stored as text
	About           string
	ToneLength      int
	ToneEmoji       int
	ToneFlirt       int
	ResponseStyle   string
	TextSamples     string
	DeepAnswersJSON string // JSON object stored as text
	ConversationStep int
	IsPremium       bool
	TrialStartedAt  time.Time // zero when no trial has started
	Onboarded       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChatRecord is one row of the rolling per-user chat transcript.
type ChatRecord struct {
	ID        string
	UserID    string
	Seq       int64
	Text      string
	IsUser    bool
	CreatedAt time.Time
}

// Interaction is the per-turn audit record: which mode handled the turn,
// what was sent, and whether the fallback engaged.
type Interaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Kind         string    `json:"kind"` // "message", "image", "keyboard_image", "keyboard_suggest"
	Mode         string    `json:"mode,omitempty"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	FallbackUsed bool      `json:"fallbackUsed"`
	DurationMs   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}
