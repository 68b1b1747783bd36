// Package turn orchestrates one assist turn end to end: load profile,
// classify the conversation mode, persist bookkeeping, compose the prompt,
// call the model, and substitute canned fallbacks when the model is
// unavailable. Boundary layers (HTTP, MCP) call only this package.
package turn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/wingmanlabs/wingman/internal/anthropic"
	"github.com/wingmanlabs/wingman/internal/composer"
	"github.com/wingmanlabs/wingman/internal/extractor"
	"github.com/wingmanlabs/wingman/internal/fallback"
	"github.com/wingmanlabs/wingman/internal/flow"
	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/storage"
	"github.com/wingmanlabs/wingman/internal/uploads"
)

// ErrInvalidInput marks caller mistakes that map to HTTP 400.
var ErrInvalidInput = errors.New("invalid input")

// Gateway is the model client surface the pipeline needs.
type Gateway interface {
	Complete(ctx context.Context, req anthropic.Request) (string, error)
}

// Auditor records one completed turn for operational inspection.
type Auditor interface {
	Record(userID, kind, mode, prompt, response string, fallbackUsed bool, duration time.Duration)
}

// Handler runs assist turns. Turns for the same user are serialized so step
// advancement and message appends never interleave.
type Handler struct {
	profiles *profile.Manager
	gateway  Gateway
	store    *uploads.Store
	audit    Auditor
	clock    profile.Clock
	logger   *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewHandler creates a Handler. audit may be nil.
func NewHandler(profiles *profile.Manager, gateway Gateway, store *uploads.Store, audit Auditor) *Handler {
	return &Handler{
		profiles: profiles,
		gateway:  gateway,
		store:    store,
		audit:    audit,
		clock:    realClock{},
		logger:   slog.Default(),
		users:    make(map[string]*sync.Mutex),
	}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// userLock returns the per-user mutex, creating it on first use.
func (h *Handler) userLock(userID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.users[userID]
	if !ok {
		l = &sync.Mutex{}
		h.users[userID] = l
	}
	return l
}

// MessageResult is the outcome of one chat turn.
type MessageResult struct {
	Reply        string `json:"reply"`
	Mode         string `json:"mode"`
	Step         int    `json:"step"`
	FallbackUsed bool   `json:"fallbackUsed"`
}

// HandleMessage runs one main-app chat turn. An empty message is the
// greeting turn and is the only turn that does not advance the step.
func (h *Handler) HandleMessage(ctx context.Context, userID, message string) (MessageResult, error) {
	if userID == "" {
		return MessageResult{}, fmt.Errorf("userId is required: %w", ErrInvalidInput)
	}

	lock := h.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	p, err := h.profiles.Get(userID)
	if err != nil {
		return MessageResult{}, err
	}

	hasMessage := strings.TrimSpace(message) != ""
	mode := flow.Classify(p.ConversationStep, hasMessage)
	next := flow.Advance(p.ConversationStep, hasMessage)

	// Bookkeeping lands before the model is consulted so a gateway
	// failure can never stall the conversation flow.
	if next != p.ConversationStep {
		if err := h.profiles.SetStep(userID, next); err != nil {
			return MessageResult{}, err
		}
	}
	if hasMessage {
		if err := h.profiles.AppendMessage(userID, message); err != nil {
			return MessageResult{}, err
		}
		p.Messages = append(p.Messages, message)
		p.MessageCount++
	}

	trial := h.trialTier(p)
	prompt := composer.Chat(p, mode, message, trial)

	start := h.clock.Now()
	reply, gerr := h.gateway.Complete(ctx, anthropic.Request{
		System:    prompt.System,
		User:      prompt.User,
		MaxTokens: prompt.MaxTokens,
	})
	fallbackUsed := false
	if gerr != nil {
		h.logger.Warn("chat completion failed, serving fallback", "user_id", userID, "error", gerr)
		reply = fallback.Reply(p, mode)
		fallbackUsed = true
	}

	if hasMessage {
		if err := h.profiles.AppendChatEntry(userID, message, true); err != nil {
			h.logger.Error("recording user chat entry", "user_id", userID, "error", err)
		}
	}
	if err := h.profiles.AppendChatEntry(userID, reply, false); err != nil {
		h.logger.Error("recording assistant chat entry", "user_id", userID, "error", err)
	}

	h.record(userID, "message", mode.String(), prompt.User, reply, fallbackUsed, start)

	return MessageResult{
		Reply:        reply,
		Mode:         mode.String(),
		Step:         next,
		FallbackUsed: fallbackUsed,
	}, nil
}

// ImageResult is the outcome of one screenshot-analysis turn.
type ImageResult struct {
	Reply        string   `json:"reply,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	FallbackUsed bool     `json:"fallbackUsed"`
}

// HandleImage analyzes a stored screenshot. For keyboard turns the raw
// completion is reduced to suggestion chips; main-app turns get the
// commentary verbatim. Identical concurrent uploads from one user share a
// single model call.
func (h *Handler) HandleImage(ctx context.Context, userID, path string, ic composer.ImageContext, fromKeyboard bool) (ImageResult, error) {
	if userID == "" {
		return ImageResult{}, fmt.Errorf("userId is required: %w", ErrInvalidInput)
	}
	if path == "" {
		return ImageResult{}, fmt.Errorf("image is required: %w", ErrInvalidInput)
	}

	p, err := h.profiles.Get(userID)
	if err != nil {
		return ImageResult{}, err
	}

	// A typed message riding along with the screenshot still counts toward
	// the profile transcript; only the step machine is bypassed for images.
	if !fromKeyboard && strings.TrimSpace(ic.Help) != "" {
		lock := h.userLock(userID)
		lock.Lock()
		err = h.profiles.AppendMessage(userID, ic.Help)
		lock.Unlock()
		if err != nil {
			return ImageResult{}, err
		}
		p.Messages = append(p.Messages, ic.Help)
		p.MessageCount++
	}

	// Reading fresh each time is deliberate: a cached buffer once served a
	// previous user's screenshot analysis.
	data, err := h.store.Read(path)
	if err != nil {
		return ImageResult{}, err
	}
	if len(data) == 0 {
		return ImageResult{}, fmt.Errorf("image is empty: %w", ErrInvalidInput)
	}

	trial := h.trialTier(p)
	prompt := composer.Image(p, ic, trial, fromKeyboard)

	sum := sha256.Sum256(data)
	key := userID + ":" + hex.EncodeToString(sum[:])

	start := h.clock.Now()
	raw, gerr, _ := h.group.Do(key, func() (any, error) {
		return h.gateway.Complete(ctx, anthropic.Request{
			System:    prompt.System,
			User:      prompt.User,
			MaxTokens: prompt.MaxTokens,
			Image: &anthropic.Image{
				Data:      data,
				MediaType: anthropic.MIMEFromPath(path),
			},
		})
	})

	kind := "image"
	if fromKeyboard {
		kind = "keyboard_image"
	}

	if gerr != nil {
		h.logger.Warn("image analysis failed, serving fallback", "user_id", userID, "error", gerr)
		res := ImageResult{Suggestions: fallback.Suggestions(ic.Who), FallbackUsed: true}
		if !fromKeyboard {
			res.Reply = "couldn't read that one, try sending it again. meanwhile you could go with one of these:\n" + strings.Join(res.Suggestions, "\n")
		}
		h.record(userID, kind, "", prompt.User, res.Reply, true, start)
		return res, nil
	}

	text := raw.(string)
	if fromKeyboard {
		suggestions := extractor.Suggestions(text)
		fallbackUsed := false
		if len(suggestions) == 0 {
			suggestions = fallback.Suggestions(ic.Who)
			fallbackUsed = true
		}
		h.record(userID, kind, "", prompt.User, text, fallbackUsed, start)
		return ImageResult{Suggestions: suggestions, FallbackUsed: fallbackUsed}, nil
	}

	h.record(userID, kind, "", prompt.User, text, false, start)
	return ImageResult{Reply: text}, nil
}

// HandleSuggest runs one keyboard quick-suggest turn over pasted text.
func (h *Handler) HandleSuggest(ctx context.Context, userID, theirMessage, who string) (ImageResult, error) {
	if strings.TrimSpace(theirMessage) == "" {
		return ImageResult{}, fmt.Errorf("context is required: %w", ErrInvalidInput)
	}

	p, err := h.profiles.Get(userID)
	if err != nil {
		return ImageResult{}, err
	}

	prompt := composer.Suggest(p, theirMessage)

	start := h.clock.Now()
	raw, gerr := h.gateway.Complete(ctx, anthropic.Request{
		System:    prompt.System,
		User:      prompt.User,
		MaxTokens: prompt.MaxTokens,
	})
	if gerr != nil {
		h.logger.Warn("suggest completion failed, serving fallback", "user_id", userID, "error", gerr)
		res := ImageResult{Suggestions: fallback.Suggestions(who), FallbackUsed: true}
		h.record(userID, "keyboard_suggest", "", prompt.User, "", true, start)
		return res, nil
	}

	suggestions := extractor.Suggestions(raw)
	fallbackUsed := false
	if len(suggestions) == 0 {
		suggestions = fallback.Suggestions(who)
		fallbackUsed = true
	}
	h.record(userID, "keyboard_suggest", "", prompt.User, raw, fallbackUsed, start)
	return ImageResult{Suggestions: suggestions, FallbackUsed: fallbackUsed}, nil
}

// trialTier reports whether the user gets the degraded prompt tier.
func (h *Handler) trialTier(p profile.Profile) bool {
	return !p.IsPremium && p.TrialExpired(h.clock.Now())
}

func (h *Handler) record(userID, kind, mode, prompt, response string, fallbackUsed bool, start time.Time) {
	if h.audit == nil {
		return
	}
	h.audit.Record(userID, kind, mode, prompt, response, fallbackUsed, h.clock.Now().Sub(start))
}

// InteractionSaver is the storage surface StoreAuditor needs.
type InteractionSaver interface {
	SaveInteraction(i storage.Interaction) error
}

// StoreAuditor persists turns as interaction rows. Failures are logged,
// never surfaced; the audit trail must not break a turn.
type StoreAuditor struct {
	saver  InteractionSaver
	logger *slog.Logger
}

// NewStoreAuditor creates an auditor over saver.
func NewStoreAuditor(saver InteractionSaver) *StoreAuditor {
	return &StoreAuditor{saver: saver, logger: slog.Default()}
}

// Record implements Auditor.
func (a *StoreAuditor) Record(userID, kind, mode, prompt, response string, fallbackUsed bool, duration time.Duration) {
	i := storage.Interaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		Kind:         kind,
		Mode:         mode,
		Prompt:       prompt,
		Response:     response,
		FallbackUsed: fallbackUsed,
		DurationMs:   duration.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if err := a.saver.SaveInteraction(i); err != nil {
		a.logger.Error("saving interaction", "user_id", userID, "kind", kind, "error", err)
	}
}
