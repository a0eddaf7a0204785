// Package session persists conversation transcripts and the character
// documents each conversation was created with. Storage is a single
// SQLite database; the schema is migrated on open.
//
// Only real conversation turns are persisted. Injected annotation
// turns are recomputed by the assembly engine on every call and are
// rejected here, which is what keeps repeated assembly over a stored
// transcript idempotent. Callers own atomicity between read-assemble-
// write cycles; the store itself only guarantees per-statement
// consistency.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/assembly"
)

// Document kinds stored per conversation.
const (
	DocCard   = "card"
	DocPreset = "preset"
	DocBook   = "book"
	DocNote   = "note"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversations in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path and runs
// migrations. Use ":memory:" for an ephemeral store in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT NOT NULL PRIMARY KEY,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS documents (
			conversation_id TEXT NOT NULL,
			kind            TEXT NOT NULL,
			body            TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			PRIMARY KEY (conversation_id, kind)
		);
		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT NOT NULL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			greeting        INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages (conversation_id, created_at);
	`)
	return err
}

// Create registers a new conversation. An existing conversation with
// the same id is left untouched and reported via the bool return.
func (s *Store) Create(id string) (created bool, err error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO conversations (id, created_at) VALUES (?, ?)
	`, id, now())
	if err != nil {
		return false, fmt.Errorf("create conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create conversation: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether the conversation is known.
func (s *Store) Exists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return true, nil
}

// Reset deletes the conversation's transcript but keeps the
// conversation and its documents. Used when a persona update restarts
// the chat.
func (s *Store) Reset(id string) error {
	if err := s.requireConversation(id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}

// Delete removes the conversation, its transcript, and its documents.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM messages WHERE conversation_id = ?`,
		`DELETE FROM documents WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
	}
	return tx.Commit()
}

// SaveDocument stores or replaces one character document for the
// conversation. kind is one of the Doc constants.
func (s *Store) SaveDocument(id, kind string, body []byte) error {
	if err := s.requireConversation(id); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (conversation_id, kind, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, kind) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, id, kind, string(body), now())
	if err != nil {
		return fmt.Errorf("save %s document: %w", kind, err)
	}
	return nil
}

// Document returns one stored document body, or nil when the kind was
// never saved for this conversation.
func (s *Store) Document(id, kind string) ([]byte, error) {
	var body string
	err := s.db.QueryRow(`
		SELECT body FROM documents WHERE conversation_id = ? AND kind = ?
	`, id, kind).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s document: %w", kind, err)
	}
	return []byte(body), nil
}

// Append adds one turn to the conversation transcript. Injected turns
// are refused: they belong to the assembly output, never to storage.
func (s *Store) Append(id string, turn assembly.Turn) error {
	if turn.Injected {
		return fmt.Errorf("append to %s: injected turns are not persisted", id)
	}
	if err := s.requireConversation(id); err != nil {
		return err
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, greeting, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), id, string(turn.Role), turn.Text(), boolInt(turn.Greeting),
		ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// History returns the conversation's turns in chronological order.
// A missing conversation yields ErrNotFound; an empty transcript is a
// valid empty slice.
func (s *Store) History(id string) ([]assembly.Turn, error) {
	if err := s.requireConversation(id); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT role, content, greeting, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []assembly.Turn
	for rows.Next() {
		var role, content, createdAt string
		var greeting int
		if err := rows.Scan(&role, &content, &greeting, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, assembly.Turn{
			Role:      assembly.Role(role),
			Parts:     []string{content},
			Timestamp: ts,
			Greeting:  greeting != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return turns, nil
}

func (s *Store) requireConversation(id string) error {
	ok, err := s.Exists(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
