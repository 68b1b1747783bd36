// Package profile holds the per-user record the suggestion pipeline reads
// and mutates, and the Manager that mediates all access to it.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wingmanlabs/wingman/internal/storage"
	"github.com/wingmanlabs/wingman/internal/tone"
)

// recentMessageWindow is how many of the user's own texts are loaded onto
// the in-memory profile; prompt builders slice further from there.
const recentMessageWindow = 8

// Store is the slice of storage.Store the Manager depends on.
type Store interface {
	GetProfile(userID string) (storage.ProfileRecord, error)
	UpsertProfile(rec storage.ProfileRecord) error
	SetConversationStep(userID string, step int) error
	DeleteProfile(userID string) error
	AppendMessage(id, userID, text string, createdAt time.Time) error
	RecentMessages(userID string, limit int) ([]string, error)
	CountMessages(userID string) (int, error)
	AppendChatEntry(rec storage.ChatRecord) error
	ChatHistory(userID string) ([]storage.ChatRecord, error)
	ClearChatHistory(userID string) error
}

// Clock lets tests pin the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides typed access to user profiles stored in SQLite.
type Manager struct {
	store Store
	clock Clock
}

// NewManager creates a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, clock: realClock{}}
}

// NewManagerWithClock is NewManager with an injected clock, used by tests
// that assert trial arithmetic.
func NewManagerWithClock(store Store, clock Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// Get assembles the full profile for userID. Unknown users get a default
// empty profile rather than an error, matching the product behavior of
// treating every id as a (possibly brand-new) user.
func (m *Manager) Get(userID string) (Profile, error) {
	rec, err := m.store.GetProfile(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return defaultProfile(userID), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile %s: %w", userID, err)
	}

	p := fromRecord(rec)

	if p.Messages, err = m.store.RecentMessages(userID, recentMessageWindow); err != nil {
		return Profile{}, fmt.Errorf("loading recent messages for %s: %w", userID, err)
	}
	if p.MessageCount, err = m.store.CountMessages(userID); err != nil {
		return Profile{}, fmt.Errorf("counting messages for %s: %w", userID, err)
	}

	history, err := m.store.ChatHistory(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading chat history for %s: %w", userID, err)
	}
	for _, h := range history {
		p.ChatHistory = append(p.ChatHistory, ChatEntry{
			ID:        h.ID,
			Text:      h.Text,
			IsUser:    h.IsUser,
			CreatedAt: h.CreatedAt,
		})
	}

	return p, nil
}

// Onboard creates a fresh profile from the onboarding payload and returns
// its generated id.
func (m *Manager) Onboard(patch Patch) (string, error) {
	userID := uuid.New().String()
	if err := m.Apply(userID, patch); err != nil {
		return "", err
	}
	return userID, nil
}

// Apply folds a patch into the stored profile, creating it when missing.
func (m *Manager) Apply(userID string, patch Patch) error {
	now := m.clock.Now()

	rec, err := m.store.GetProfile(userID)
	var p Profile
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p = defaultProfile(userID)
		p.CreatedAt = now
	case err != nil:
		return fmt.Errorf("loading profile %s: %w", userID, err)
	default:
		p = fromRecord(rec)
	}

	p.apply(patch)
	p.Onboarded = true
	p.UpdatedAt = now

	if err := m.store.UpsertProfile(toRecord(p)); err != nil {
		return fmt.Errorf("saving profile %s: %w", userID, err)
	}
	return nil
}

// AppendMessage records one of the user's own sent texts.
func (m *Manager) AppendMessage(userID, text string) error {
	if err := m.ensureExists(userID); err != nil {
		return err
	}
	if err := m.store.AppendMessage(uuid.New().String(), userID, text, m.clock.Now()); err != nil {
		return fmt.Errorf("appending message for %s: %w", userID, err)
	}
	return nil
}

// AppendChatEntry appends a transcript entry; the store evicts beyond the
// FIFO cap.
func (m *Manager) AppendChatEntry(userID, text string, isUser bool) error {
	if err := m.ensureExists(userID); err != nil {
		return err
	}
	rec := storage.ChatRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      text,
		IsUser:    isUser,
		CreatedAt: m.clock.Now(),
	}
	if err := m.store.AppendChatEntry(rec); err != nil {
		return fmt.Errorf("appending chat entry for %s: %w", userID, err)
	}
	return nil
}

// SetStep persists the conversation step counter.
func (m *Manager) SetStep(userID string, step int) error {
	if err := m.ensureExists(userID); err != nil {
		return err
	}
	if err := m.store.SetConversationStep(userID, step); err != nil {
		return fmt.Errorf("setting step for %s: %w", userID, err)
	}
	return nil
}

// ClearChat drops the whole transcript.
func (m *Manager) ClearChat(userID string) error {
	if err := m.store.ClearChatHistory(userID); err != nil {
		return fmt.Errorf("clearing chat for %s: %w", userID, err)
	}
	return nil
}

// Reset removes the profile and everything hanging off it.
func (m *Manager) Reset(userID string) error {
	if err := m.store.DeleteProfile(userID); err != nil {
		return fmt.Errorf("resetting profile %s: %w", userID, err)
	}
	return nil
}

// ensureExists creates a default row for userID if none is stored yet, so
// message/step writes for brand-new users don't fail on foreign rows.
func (m *Manager) ensureExists(userID string) error {
	_, err := m.store.GetProfile(userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("loading profile %s: %w", userID, err)
	}

	now := m.clock.Now()
	p := defaultProfile(userID)
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := m.store.UpsertProfile(toRecord(p)); err != nil {
		return fmt.Errorf("creating profile %s: %w", userID, err)
	}
	return nil
}

func defaultProfile(userID string) Profile {
	return Profile{
		UserID:        userID,
		Tone:          tone.DefaultSliders,
		ResponseStyle: tone.StyleNormal,
	}
}

func fromRecord(rec storage.ProfileRecord) Profile {
	p := Profile{
		UserID:           rec.UserID,
		Name:             rec.Name,
		Personality:      storage.UnmarshalStrings(rec.PersonalityJSON),
		Struggles:        storage.UnmarshalStrings(rec.StrugglesJSON),
		About:            rec.About,
		Tone:             tone.Sliders{Length: rec.ToneLength, Emoji: rec.ToneEmoji, Flirt: rec.ToneFlirt}.Normalize(),
		ResponseStyle:    tone.ParseStyle(rec.ResponseStyle),
		TextSamples:      rec.TextSamples,
		ConversationStep: rec.ConversationStep,
		IsPremium:        rec.IsPremium,
		TrialStartedAt:   rec.TrialStartedAt,
		Onboarded:        rec.Onboarded,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	if rec.DeepAnswersJSON != "" {
		if err := json.Unmarshal([]byte(rec.DeepAnswersJSON), &p.DeepAnswers); err != nil {
			slog.Warn("malformed deep answers, skipping", "user", rec.UserID, "error", err)
		}
	}
	return p
}

func toRecord(p Profile) storage.ProfileRecord {
	deep := "{}"
	if len(p.DeepAnswers) > 0 {
		if b, err := json.Marshal(p.DeepAnswers); err == nil {
			deep = string(b)
		}
	}
	return storage.ProfileRecord{
		UserID:           p.UserID,
		Name:             p.Name,
		PersonalityJSON:  storage.MarshalStrings(p.Personality),
		StrugglesJSON:    storage.MarshalStrings(p.Struggles),
		About:            p.About,
		ToneLength:       p.Tone.Length,
		ToneEmoji:        p.Tone.Emoji,
		ToneFlirt:        p.Tone.Flirt,
		ResponseStyle:    string(p.ResponseStyle),
		TextSamples:      p.TextSamples,
		DeepAnswersJSON:  deep,
		ConversationStep: p.ConversationStep,
		IsPremium:        p.IsPremium,
		TrialStartedAt:   p.TrialStartedAt,
		Onboarded:        p.Onboarded,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
