package users

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Postgres is a Directory backed by the bot_users table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection. The schema comes from migrations.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

const upsertUser = `
INSERT INTO bot_users (id, username, first_name, first_seen, last_seen)
VALUES (:id, :username, :first_name, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
	username   = COALESCE(NULLIF(EXCLUDED.username, ''), bot_users.username),
	first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), bot_users.first_name),
	last_seen  = NOW()`

func (p *Postgres) Touch(ctx context.Context, u User) error {
	if u.ID == 0 {
		return nil
	}
	if _, err := p.db.NamedExecContext(ctx, upsertUser, u); err != nil {
		return fmt.Errorf("users: touch %d: %w", u.ID, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]User, error) {
	var out []User
	err := p.db.SelectContext(ctx, &out,
		`SELECT id, username, first_name, first_seen, last_seen FROM bot_users ORDER BY first_seen, id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bot_users`); err != nil {
		return 0, fmt.Errorf("users: count: %w", err)
	}
	return n, nil
}

var _ Directory = (*Postgres)(nil)
