package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProfileUpsertAndGet(t *testing.T) {
	s := testStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := ProfileRecord{
		UserID:          "u1",
		Name:            "jordan",
		PersonalityJSON: MarshalStrings([]string{"funny", "dry"}),
		About:           "trying to text less like a lawyer",
		ToneLength:      2,
		ToneEmoji:       1,
		ToneFlirt:       3,
		ResponseStyle:   "spicy",
		TextSamples:     "lol ok\nbet",
		ConversationStep: 2,
		TrialStartedAt:  now,
		Onboarded:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.UpsertProfile(rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetProfile("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "jordan" {
		t.Errorf("name = %q", got.Name)
	}
	if got.ResponseStyle != "spicy" {
		t.Errorf("responseStyle = %q", got.ResponseStyle)
	}
	if got.ConversationStep != 2 {
		t.Errorf("step = %d", got.ConversationStep)
	}
	if !got.TrialStartedAt.Equal(now) {
		t.Errorf("trialStartedAt = %v, want %v", got.TrialStartedAt, now)
	}
	if p := UnmarshalStrings(got.PersonalityJSON); len(p) != 2 || p[0] != "funny" {
		t.Errorf("personality = %v", p)
	}

	// Upsert again with changed fields replaces the row.
	rec.Name = "jo"
	rec.ToneFlirt = 1
	if err := s.UpsertProfile(rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = s.GetProfile("u1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Name != "jo" || got.ToneFlirt != 1 {
		t.Errorf("after update: name=%q flirt=%d", got.Name, got.ToneFlirt)
	}
}

func TestProfileEmptyJSONColumnsGetDefaults(t *testing.T) {
	s := testStore(t)

	now := time.Now().UTC()
	if err := s.UpsertProfile(ProfileRecord{UserID: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetProfile("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PersonalityJSON != "[]" {
		t.Errorf("personality_json = %q, want []", got.PersonalityJSON)
	}
	if got.DeepAnswersJSON != "{}" {
		t.Errorf("deep_answers_json = %q, want {}", got.DeepAnswersJSON)
	}
	if !got.TrialStartedAt.IsZero() {
		t.Errorf("trialStartedAt = %v, want zero", got.TrialStartedAt)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetProfile("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetConversationStep(t *testing.T) {
	s := testStore(t)

	now := time.Now().UTC()
	if err := s.UpsertProfile(ProfileRecord{UserID: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.SetConversationStep("u1", 3); err != nil {
		t.Fatalf("set step: %v", err)
	}
	got, err := s.GetProfile("u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ConversationStep != 3 {
		t.Errorf("step = %d, want 3", got.ConversationStep)
	}

	if err := s.SetConversationStep("nobody", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteProfileRemovesDependents(t *testing.T) {
	s := testStore(t)

	now := time.Now().UTC()
	if err := s.UpsertProfile(ProfileRecord{UserID: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.AppendMessage("m1", "u1", "hey", now); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := s.AppendChatEntry(ChatRecord{ID: "c1", UserID: "u1", Text: "hi", IsUser: true, CreatedAt: now}); err != nil {
		t.Fatalf("append chat: %v", err)
	}

	if err := s.DeleteProfile("u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetProfile("u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("profile err = %v, want ErrNotFound", err)
	}
	if n, _ := s.CountMessages("u1"); n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
	history, err := s.ChatHistory("u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %d entries, want 0", len(history))
	}
}

func TestRecentMessagesOrderAndLimit(t *testing.T) {
	s := testStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("m%d", i)
		text := fmt.Sprintf("msg %d", i)
		if err := s.AppendMessage(id, "u1", text, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.RecentMessages("u1", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []string{"msg 2", "msg 3", "msg 4"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	n, err := s.CountMessages("u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}

func TestChatHistoryEvictsBeyondCap(t *testing.T) {
	s := testStore(t)

	now := time.Now().UTC()
	total := maxChatHistory + 5
	for i := 0; i < total; i++ {
		rec := ChatRecord{
			ID:        fmt.Sprintf("c%d", i),
			UserID:    "u1",
			Text:      fmt.Sprintf("entry %d", i),
			IsUser:    i%2 == 0,
			CreatedAt: now,
		}
		if err := s.AppendChatEntry(rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	history, err := s.ChatHistory("u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != maxChatHistory {
		t.Fatalf("history = %d entries, want %d", len(history), maxChatHistory)
	}
	// Oldest surviving entry is the first one past the evicted window.
	if history[0].Text != fmt.Sprintf("entry %d", total-maxChatHistory) {
		t.Errorf("oldest = %q", history[0].Text)
	}
	if history[len(history)-1].Text != fmt.Sprintf("entry %d", total-1) {
		t.Errorf("newest = %q", history[len(history)-1].Text)
	}
}

func TestChatHistoryPerUserIsolation(t *testing.T) {
	s := testStore(t)

	now := time.Now().UTC()
	s.AppendChatEntry(ChatRecord{ID: "a1", UserID: "u1", Text: "mine", IsUser: true, CreatedAt: now})
	s.AppendChatEntry(ChatRecord{ID: "b1", UserID: "u2", Text: "theirs", IsUser: true, CreatedAt: now})

	if err := s.ClearChatHistory("u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	h1, _ := s.ChatHistory("u1")
	h2, _ := s.ChatHistory("u2")
	if len(h1) != 0 {
		t.Errorf("u1 history = %d, want 0", len(h1))
	}
	if len(h2) != 1 {
		t.Errorf("u2 history = %d, want 1", len(h2))
	}
}

func TestInteractionsRoundTrip(t *testing.T) {
	s := testStore(t)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		ix := Interaction{
			ID:           fmt.Sprintf("ix%d", i),
			UserID:       "u1",
			Kind:         "message",
			Mode:         "greeting",
			Prompt:       "p",
			Response:     "r",
			FallbackUsed: i == 2,
			DurationMs:   int64(100 * i),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveInteraction(ix); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	list, err := s.ListInteractions(2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d, want 2", len(list))
	}
	if list[0].ID != "ix2" {
		t.Errorf("newest first: got %q, want ix2", list[0].ID)
	}

	page, err := s.ListInteractions(2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(page) != 1 || page[0].ID != "ix0" {
		t.Errorf("offset page = %+v", page)
	}

	got, err := s.GetInteraction("ix2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.FallbackUsed {
		t.Error("fallbackUsed = false, want true")
	}
	if got.DurationMs != 200 {
		t.Errorf("durationMs = %d, want 200", got.DurationMs)
	}

	if _, err := s.GetInteraction("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMarshalUnmarshalStrings(t *testing.T) {
	if got := MarshalStrings(nil); got != "[]" {
		t.Errorf("MarshalStrings(nil) = %q", got)
	}
	if got := UnmarshalStrings("not json"); got != nil {
		t.Errorf("UnmarshalStrings garbage = %v, want nil", got)
	}
	round := UnmarshalStrings(MarshalStrings([]string{"a", "b"}))
	if len(round) != 2 || round[1] != "b" {
		t.Errorf("round trip = %v", round)
	}
}

func TestOpenOnDiskCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	now := time.Now().UTC()
	if err := s.UpsertProfile(ProfileRecord{UserID: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Migrations are idempotent across reopen.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetProfile("u1"); err != nil {
		t.Errorf("get after reopen: %v", err)
	}
}
