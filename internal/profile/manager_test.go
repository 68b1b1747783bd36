package profile

import (
	"testing"
	"time"

	"github.com/wingmanlabs/wingman/internal/storage"
	"github.com/wingmanlabs/wingman/internal/tone"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testManager(t *testing.T) (*Manager, fixedClock) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	clock := fixedClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewManagerWithClock(store, clock), clock
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestGetUnknownUserReturnsDefault(t *testing.T) {
	m, _ := testManager(t)

	p, err := m.Get("stranger")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.UserID != "stranger" {
		t.Errorf("userID = %q", p.UserID)
	}
	if p.ResponseStyle != tone.StyleNormal {
		t.Errorf("responseStyle = %q, want normal", p.ResponseStyle)
	}
	if p.Tone != tone.DefaultSliders {
		t.Errorf("tone = %+v, want defaults", p.Tone)
	}
	if p.Onboarded {
		t.Error("onboarded = true for unknown user")
	}
}

func TestApplyCreatesAndPatches(t *testing.T) {
	m, clock := testManager(t)

	err := m.Apply("u1", Patch{
		Name:          strPtr("Jordan"),
		ResponseStyle: strPtr("spicy"),
		Flirtiness:    intPtr(3),
		Personality:   &[]string{"funny", "dry"},
		DeepAnswers:   map[string]string{"biggestFear": "being boring"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	p, err := m.Get("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "Jordan" {
		t.Errorf("name = %q", p.Name)
	}
	if p.ResponseStyle != tone.StyleSpicy {
		t.Errorf("responseStyle = %q", p.ResponseStyle)
	}
	if p.Tone.Flirt != 3 {
		t.Errorf("flirt = %d, want 3", p.Tone.Flirt)
	}
	if p.Vibe() != "funny" {
		t.Errorf("vibe = %q, want funny", p.Vibe())
	}
	if p.DeepAnswers["biggestFear"] != "being boring" {
		t.Errorf("deepAnswers = %v", p.DeepAnswers)
	}
	if !p.Onboarded {
		t.Error("onboarded = false after apply")
	}
	if !p.CreatedAt.Equal(clock.now) {
		t.Errorf("createdAt = %v, want %v", p.CreatedAt, clock.now)
	}

	// A second patch keeps untouched fields.
	if err := m.Apply("u1", Patch{EmojiUsage: intPtr(1)}); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	p, _ = m.Get("u1")
	if p.Name != "Jordan" || p.Tone.Flirt != 3 {
		t.Errorf("patch clobbered fields: name=%q flirt=%d", p.Name, p.Tone.Flirt)
	}
	if p.Tone.Emoji != 1 {
		t.Errorf("emoji = %d, want 1", p.Tone.Emoji)
	}
}

func TestApplyNormalizesOutOfRangeSliders(t *testing.T) {
	m, _ := testManager(t)

	if err := m.Apply("u1", Patch{MessageLength: intPtr(99), EmojiUsage: intPtr(-4)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, _ := m.Get("u1")
	if p.Tone.Length < 1 || p.Tone.Length > 3 {
		t.Errorf("length = %d, want clamped to 1..3", p.Tone.Length)
	}
	if p.Tone.Emoji < 1 || p.Tone.Emoji > 3 {
		t.Errorf("emoji = %d, want clamped to 1..3", p.Tone.Emoji)
	}
}

func TestOnboardGeneratesID(t *testing.T) {
	m, _ := testManager(t)

	id, err := m.Onboard(Patch{Name: strPtr("sam")})
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	p, err := m.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "sam" {
		t.Errorf("name = %q", p.Name)
	}

	id2, _ := m.Onboard(Patch{})
	if id2 == id {
		t.Error("onboard returned duplicate id")
	}
}

func TestAppendMessageCreatesMissingProfile(t *testing.T) {
	m, _ := testManager(t)

	if err := m.AppendMessage("fresh", "first text"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.AppendMessage("fresh", "second text"); err != nil {
		t.Fatalf("append: %v", err)
	}

	p, err := m.Get("fresh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.MessageCount != 2 {
		t.Errorf("messageCount = %d, want 2", p.MessageCount)
	}
	if len(p.Messages) != 2 || p.Messages[1] != "second text" {
		t.Errorf("messages = %v", p.Messages)
	}
}

func TestRecentMessageWindow(t *testing.T) {
	m, _ := testManager(t)

	for i := 0; i < recentMessageWindow+4; i++ {
		if err := m.AppendMessage("u1", "text"); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	p, err := m.Get("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.Messages) != recentMessageWindow {
		t.Errorf("window = %d messages, want %d", len(p.Messages), recentMessageWindow)
	}
	if p.MessageCount != recentMessageWindow+4 {
		t.Errorf("messageCount = %d, want %d", p.MessageCount, recentMessageWindow+4)
	}
}

func TestStepAndChatFlow(t *testing.T) {
	m, _ := testManager(t)

	if err := m.SetStep("u1", 2); err != nil {
		t.Fatalf("set step: %v", err)
	}
	if err := m.AppendChatEntry("u1", "hey", true); err != nil {
		t.Fatalf("append chat: %v", err)
	}
	if err := m.AppendChatEntry("u1", "hey yourself", false); err != nil {
		t.Fatalf("append chat: %v", err)
	}

	p, err := m.Get("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ConversationStep != 2 {
		t.Errorf("step = %d, want 2", p.ConversationStep)
	}
	if len(p.ChatHistory) != 2 {
		t.Fatalf("chatHistory = %d entries, want 2", len(p.ChatHistory))
	}
	if !p.ChatHistory[0].IsUser || p.ChatHistory[1].IsUser {
		t.Errorf("isUser flags = %v, %v", p.ChatHistory[0].IsUser, p.ChatHistory[1].IsUser)
	}

	if err := m.ClearChat("u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	p, _ = m.Get("u1")
	if len(p.ChatHistory) != 0 {
		t.Errorf("chatHistory after clear = %d", len(p.ChatHistory))
	}
}

func TestResetRemovesEverything(t *testing.T) {
	m, _ := testManager(t)

	if err := m.Apply("u1", Patch{Name: strPtr("Jordan")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := m.AppendMessage("u1", "hey"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := m.Reset("u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	p, err := m.Get("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Onboarded || p.Name != "" || p.MessageCount != 0 {
		t.Errorf("reset left data behind: %+v", p)
	}
}

func TestTrialDerivation(t *testing.T) {
	now := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		p        Profile
		daysLeft int
		expired  bool
	}{
		{"no trial started", Profile{}, 0, false},
		{"fresh trial", Profile{TrialStartedAt: now.Add(-2 * time.Hour)}, 3, false},
		{"one day in", Profile{TrialStartedAt: now.Add(-30 * time.Hour)}, 2, false},
		{"expired", Profile{TrialStartedAt: now.Add(-4 * 24 * time.Hour)}, 0, true},
		{"premium never expires", Profile{IsPremium: true, TrialStartedAt: now.Add(-30 * 24 * time.Hour)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.TrialDaysLeft(now); got != tt.daysLeft {
				t.Errorf("TrialDaysLeft = %d, want %d", got, tt.daysLeft)
			}
			if got := tt.p.TrialExpired(now); got != tt.expired {
				t.Errorf("TrialExpired = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestVibeDefault(t *testing.T) {
	var p Profile
	if got := p.Vibe(); got != "confident" {
		t.Errorf("vibe = %q, want confident", got)
	}
}

func TestPremiumPatchRoundTrip(t *testing.T) {
	m, clock := testManager(t)

	start := clock.now.Add(-24 * time.Hour)
	err := m.Apply("u1", Patch{IsPremium: boolPtr(false), TrialStartedAt: &start})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	p, _ := m.Get("u1")
	if p.TrialDaysLeft(clock.now) != 2 {
		t.Errorf("trialDaysLeft = %d, want 2", p.TrialDaysLeft(clock.now))
	}

	if err := m.Apply("u1", Patch{IsPremium: boolPtr(true)}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	p, _ = m.Get("u1")
	if !p.IsPremium {
		t.Error("isPremium = false after upgrade")
	}
	if p.TrialExpired(clock.now.Add(30 * 24 * time.Hour)) {
		t.Error("premium trial reported expired")
	}
}
