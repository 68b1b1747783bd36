// Package storage persists user profiles, chat transcripts, and per-turn
// interaction logs in SQLite.
package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxChatHistory caps the rolling chat transcript per user; the oldest
// entries are evicted first.
const maxChatHistory = 100

// Store wraps a SQLite database with methods for profiles, messages, chat
// history, and interaction logs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "wingman.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// modernc sqlite serializes writers; a single connection sidesteps
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// --- Profiles ---

// UpsertProfile inserts or replaces a profile row.
func (s *Store) UpsertProfile(rec ProfileRecord) error {
	trial := ""
	if !rec.TrialStartedAt.IsZero() {
		trial = rec.TrialStartedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO profiles (user_id, name, personality_json, struggles_json, about,
			tone_length, tone_emoji, tone_flirt, response_style, text_samples,
			deep_answers_json, conversation_step, is_premium, trial_started_at,
			onboarded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			personality_json = excluded.personality_json,
			struggles_json = excluded.struggles_json,
			about = excluded.about,
			tone_length = excluded.tone_length,
			tone_emoji = excluded.tone_emoji,
			tone_flirt = excluded.tone_flirt,
			response_style = excluded.response_style,
			text_samples = excluded.text_samples,
			deep_answers_json = excluded.deep_answers_json,
			conversation_step = excluded.conversation_step,
			is_premium = excluded.is_premium,
			trial_started_at = excluded.trial_started_at,
			onboarded = excluded.onboarded,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.Name, orJSON(rec.PersonalityJSON, "[]"), orJSON(rec.StrugglesJSON, "[]"), rec.About,
		rec.ToneLength, rec.ToneEmoji, rec.ToneFlirt, rec.ResponseStyle, rec.TextSamples,
		orJSON(rec.DeepAnswersJSON, "{}"), rec.ConversationStep, rec.IsPremium, trial,
		rec.Onboarded, rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func orJSON(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// GetProfile returns the profile row for userID, or ErrNotFound.
func (s *Store) GetProfile(userID string) (ProfileRecord, error) {
	var rec ProfileRecord
	var trial, createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, name, personality_json, struggles_json, about,
			tone_length, tone_emoji, tone_flirt, response_style, text_samples,
			deep_answers_json, conversation_step, is_premium, trial_started_at,
			onboarded, created_at, updated_at
		FROM profiles WHERE user_id = ?`, userID,
	).Scan(&rec.UserID, &rec.Name, &rec.PersonalityJSON, &rec.StrugglesJSON, &rec.About,
		&rec.ToneLength, &rec.ToneEmoji, &rec.ToneFlirt, &rec.ResponseStyle, &rec.TextSamples,
		&rec.DeepAnswersJSON, &rec.ConversationStep, &rec.IsPremium, &trial,
		&rec.Onboarded, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return ProfileRecord{}, ErrNotFound
	}
	if err != nil {
		return ProfileRecord{}, err
	}

	if trial != "" {
		if rec.TrialStartedAt, err = time.Parse(time.RFC3339, trial); err != nil {
			return ProfileRecord{}, fmt.Errorf("parsing trial_started_at: %w", err)
		}
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return ProfileRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return ProfileRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return rec, nil
}

// SetConversationStep updates just the step counter.
func (s *Store) SetConversationStep(userID string, step int) error {
	res, err := s.db.Exec(`UPDATE profiles SET conversation_step = ?, updated_at = ? WHERE user_id = ?`,
		step, time.Now().UTC().Format(time.RFC3339), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes a profile row and its dependent rows.
func (s *Store) DeleteProfile(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM messages WHERE user_id = ?`,
		`DELETE FROM chat_history WHERE user_id = ?`,
		`DELETE FROM profiles WHERE user_id = ?`,
	} {
		if _, err := tx.Exec(q, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Messages ---

// AppendMessage records one of the user's own sent texts.
func (s *Store) AppendMessage(id, userID, text string, createdAt time.Time) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, user_id, text, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, text, createdAt.UTC().Format(time.RFC3339))
	return err
}

// RecentMessages returns up to limit of the user's own texts,
// most-recent-last.
func (s *Store) RecentMessages(userID string, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT text FROM (
			SELECT text, created_at, rowid FROM messages
			WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at ASC, rowid ASC`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountMessages returns how many of their own texts the user has sent.
func (s *Store) CountMessages(userID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// --- Chat history ---

// AppendChatEntry appends one transcript entry, evicting the oldest rows
// beyond the per-user cap.
func (s *Store) AppendChatEntry(rec ChatRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning chat append transaction: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(seq) FROM chat_history WHERE user_id = ?`, rec.UserID).Scan(&maxSeq); err != nil {
		return err
	}
	seq := maxSeq.Int64 + 1

	if _, err := tx.Exec(`INSERT INTO chat_history (id, user_id, seq, text, is_user, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, seq, rec.Text, rec.IsUser, rec.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM chat_history WHERE user_id = ? AND seq <= ?`,
		rec.UserID, seq-maxChatHistory); err != nil {
		return err
	}

	return tx.Commit()
}

// ChatHistory returns the full transcript for userID, oldest first.
func (s *Store) ChatHistory(userID string) ([]ChatRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, seq, text, is_user, created_at
		FROM chat_history WHERE user_id = ? ORDER BY seq ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatRecord
	for rows.Next() {
		var rec ChatRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Seq, &rec.Text, &rec.IsUser, &createdAt); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClearChatHistory removes the whole transcript for userID.
func (s *Store) ClearChatHistory(userID string) error {
	_, err := s.db.Exec(`DELETE FROM chat_history WHERE user_id = ?`, userID)
	return err
}

// --- Interactions ---

// SaveInteraction records one handled turn.
func (s *Store) SaveInteraction(i Interaction) error {
	_, err := s.db.Exec(`
		INSERT INTO interactions (id, user_id, kind, mode, prompt, response, fallback_used, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.Kind, i.Mode, i.Prompt, i.Response, i.FallbackUsed, i.DurationMs,
		i.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetInteraction returns one interaction by id, or ErrNotFound.
func (s *Store) GetInteraction(id string) (Interaction, error) {
	var i Interaction
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, kind, mode, prompt, response, fallback_used, duration_ms, created_at
		FROM interactions WHERE id = ?`, id,
	).Scan(&i.ID, &i.UserID, &i.Kind, &i.Mode, &i.Prompt, &i.Response, &i.FallbackUsed, &i.DurationMs, &createdAt)
	if err == sql.ErrNoRows {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	if i.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Interaction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return i, nil
}

// ListInteractions returns interactions newest-first with pagination.
func (s *Store) ListInteractions(limit, offset int) ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, kind, mode, prompt, response, fallback_used, duration_ms, created_at
		FROM interactions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &i.UserID, &i.Kind, &i.Mode, &i.Prompt, &i.Response, &i.FallbackUsed, &i.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		if i.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// MarshalStrings is a small helper for the JSON-array columns.
func MarshalStrings(ss []string) string {
	if ss == nil {
		return "[]"
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// UnmarshalStrings decodes a JSON-array column, tolerating malformed text.
func UnmarshalStrings(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
