// Package archive guarda no Postgres as mensagens de contato já entregues.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"contact-gateway/contact"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS contact_submissions (
	id          UUID PRIMARY KEY,
	client_key  TEXT NOT NULL,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL,
	message_id  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS contact_submissions_created_at_idx ON contact_submissions (created_at DESC)
`

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("archive pool init failed: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			pool.Close()
			return nil, fmt.Errorf("archive ping failed after retries: %w", err)
		}
		time.Sleep(1500 * time.Millisecond)
	}
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("archive schema statement failed: %w", err)
		}
	}
	return nil
}

func schemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if q := strings.TrimSpace(stmt); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// Store implementa contact.Archiver.
type Store struct {
	pool *pgxpool.Pool
}

var _ contact.Archiver = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Save(ctx context.Context, sub contact.Submission) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO contact_submissions(id, client_key, name, email, subject, message, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, sub.ID, sub.ClientKey, sub.Name, sub.Email, sub.Subject, sub.Message, sub.MessageID, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contact submission %s: %w", sub.ID, err)
	}
	return nil
}
