package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ─── TYPES ───────────────────────────────────────────────────────────────────

// Contact is one stored voice submission. The upsert flow keeps at most one
// live row per email, so Email acts as the natural key while ID stays the
// handle for verification reads and deletion.
type Contact struct {
	ID                 uuid.UUID
	Email              string
	VoiceInput         string
	EnglishTranslation sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InsertContactParams are the caller-supplied fields for a new row. ID and
// both timestamps are assigned by the store.
type InsertContactParams struct {
	Email              string
	VoiceInput         string
	EnglishTranslation sql.NullString
}

// UpdateContactParams overwrites the mutable fields of an existing row.
// created_at is never touched on update — updated_at records the overwrite.
type UpdateContactParams struct {
	ID                 uuid.UUID
	VoiceInput         string
	EnglishTranslation sql.NullString
}

const contactColumns = `id, email, voice_input, english_translation, created_at, updated_at`

func scanContact(row *sql.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.Email, &c.VoiceInput, &c.EnglishTranslation, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ─── POINT LOOKUPS ───────────────────────────────────────────────────────────

// FindByEmail returns the live row for an email, or ErrNotFound.
// Ordering by created_at desc is defensive: if historical duplicates exist
// (rows written before the upsert flow), the newest one wins.
func (s *Store) FindByEmail(ctx context.Context, email string) (Contact, error) {
	row := s.pool.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1`, email)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("store: find by email: %w", err)
	}
	return c, nil
}

// FindByID returns the row with the given id, or ErrNotFound. Used as the
// post-write verification read.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (Contact, error) {
	row := s.pool.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1`, id)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("store: find by id: %w", err)
	}
	return c, nil
}

// ─── WRITES ──────────────────────────────────────────────────────────────────

// Insert creates a new contact row and returns it as stored.
func (s *Store) Insert(ctx context.Context, p InsertContactParams) (Contact, error) {
	row := s.pool.QueryRowContext(ctx, `
		INSERT INTO contacts (id, email, voice_input, english_translation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING `+contactColumns,
		uuid.New(), p.Email, p.VoiceInput, p.EnglishTranslation)

	c, err := scanContact(row)
	if err != nil {
		return Contact{}, fmt.Errorf("store: insert contact: %w", err)
	}
	return c, nil
}

// Update overwrites voice_input and english_translation on an existing row.
// Returns ErrNotFound when the id does not exist.
func (s *Store) Update(ctx context.Context, p UpdateContactParams) (Contact, error) {
	row := s.pool.QueryRowContext(ctx, `
		UPDATE contacts
		SET voice_input = $2, english_translation = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns,
		p.ID, p.VoiceInput, p.EnglishTranslation)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("store: update contact: %w", err)
	}
	return c, nil
}

// DeleteByIDs removes every row whose id is in ids and reports how many rows
// went away. An empty id set is a no-op.
func (s *Store) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := s.pool.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("store: delete contacts: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: delete contacts rows affected: %w", err)
	}
	return deleted, nil
}

// ─── LISTINGS ────────────────────────────────────────────────────────────────

// ListAll returns every contact, newest first. Used by the admin view and by
// an unscoped bulk dispatch.
func (s *Store) ListAll(ctx context.Context) ([]Contact, error) {
	return s.list(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		ORDER BY created_at DESC`)
}

// ListByEmail returns every contact matching an email, newest first.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]Contact, error) {
	return s.list(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE email = $1
		ORDER BY created_at DESC`, email)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Contact, error) {
	rows, err := s.pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.VoiceInput, &c.EnglishTranslation, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate contacts: %w", err)
	}
	return contacts, nil
}
