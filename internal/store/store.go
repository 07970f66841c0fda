// Package store persists persona integration sets, refreshed OAuth token
// pairs, the action audit log, and the actor directory in sqlite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

// Schema is applied on open. Migrations are additive and best-effort.
const Schema = `
CREATE TABLE IF NOT EXISTS personas (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	config TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tokens (
	persona_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (persona_id, provider)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	action_type TEXT NOT NULL,
	success INTEGER NOT NULL,
	error_text TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_audit_persona ON audit_log(persona_id);

CREATE TABLE IF NOT EXISTS actors (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Persona integration sets
// ---------------------------------------------------------------------------

// SavePersona upserts a persona's integration set as a JSON blob.
func (s *Store) SavePersona(ctx context.Context, set *config.PersonaIntegrationSet) error {
	blob, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode persona config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personas (id, name, config, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, config = excluded.config, updated_at = CURRENT_TIMESTAMP`,
		set.Persona.ID, set.Persona.Name, string(blob))
	return err
}

// LoadPersona loads a persona's integration set. Persisted token pairs
// override the snapshot in the config blob: the last refreshed pair is the
// usable one.
func (s *Store) LoadPersona(ctx context.Context, personaID string) (*config.PersonaIntegrationSet, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM personas WHERE id = ?`, personaID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var set config.PersonaIntegrationSet
	if err := json.Unmarshal([]byte(blob), &set); err != nil {
		return nil, fmt.Errorf("decode persona config: %w", err)
	}

	var access, refresh string
	err = s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token FROM tokens WHERE persona_id = ? AND provider = ?`,
		personaID, string(set.Integrations.Calendar.Provider)).Scan(&access, &refresh)
	if err == nil {
		set.Integrations.Calendar.AccessToken = access
		set.Integrations.Calendar.RefreshToken = refresh
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return &set, nil
}

// ---------------------------------------------------------------------------
// Token persistence (calendar.TokenStore)
// ---------------------------------------------------------------------------

// SaveTokens upserts a refreshed token pair for a persona/provider account.
func (s *Store) SaveTokens(ctx context.Context, personaID, provider, accessToken, refreshToken string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (persona_id, provider, access_token, refresh_token, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(persona_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = CURRENT_TIMESTAMP`,
		personaID, provider, accessToken, refreshToken)
	return err
}

// ---------------------------------------------------------------------------
// Audit log (integration.AuditLogger)
// ---------------------------------------------------------------------------

// Record appends one audit entry. Audit writes never fail the action; the
// caller ignores errors by contract, so Record swallows them.
func (s *Store) Record(ctx context.Context, entry integration.AuditEntry) {
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, persona_id, provider, action_type, success, error_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), entry.PersonaID, entry.Provider, entry.ActionType,
		boolToInt(entry.Success), entry.Error, entry.Timestamp.Format(time.RFC3339))
}

// RecentAudit returns the most recent audit entries for a persona.
func (s *Store) RecentAudit(ctx context.Context, personaID string, limit int) ([]integration.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT persona_id, provider, action_type, success, error_text, created_at
		FROM audit_log WHERE persona_id = ? ORDER BY created_at DESC LIMIT ?`,
		personaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []integration.AuditEntry
	for rows.Next() {
		var e integration.AuditEntry
		var success int
		var ts string
		if err := rows.Scan(&e.PersonaID, &e.Provider, &e.ActionType, &success, &e.Error, &ts); err != nil {
			return nil, err
		}
		e.Success = success != 0
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Actor directory (identity.Resolver, minus the live session)
// ---------------------------------------------------------------------------

// CurrentActor always returns nil: the store has no notion of a live
// session. Compose with a session-aware resolver via identity.Chain.
func (s *Store) CurrentActor(ctx context.Context) (*identity.Actor, error) {
	return nil, nil
}

// LookupByID returns the actor with the given id, or nil if unknown.
func (s *Store) LookupByID(ctx context.Context, id string) (*identity.Actor, error) {
	var actor identity.Actor
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM actors WHERE id = ?`, id).
		Scan(&actor.ID, &actor.Name, &actor.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// ActorForConversation returns the authenticated actor id bound to a
// conversation, or "" if none.
func (s *Store) ActorForConversation(ctx context.Context, conversationID string) (string, error) {
	var actorID string
	err := s.db.QueryRowContext(ctx, `SELECT actor_id FROM conversations WHERE id = ?`, conversationID).
		Scan(&actorID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return actorID, nil
}

// SaveActor upserts an actor directory entry.
func (s *Store) SaveActor(ctx context.Context, actor identity.Actor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (id, name, email) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		actor.ID, actor.Name, actor.Email)
	return err
}

// BindConversation records which actor is authenticated on a conversation.
func (s *Store) BindConversation(ctx context.Context, conversationID, actorID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, actor_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET actor_id = excluded.actor_id`,
		conversationID, actorID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
