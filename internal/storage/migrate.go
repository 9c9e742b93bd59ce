package storage

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	email         VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	name          VARCHAR(255) NOT NULL,
	role          VARCHAR(20)  NOT NULL CHECK (role IN ('student', 'graduate', 'teacher', 'company', 'admin')),
	phone         VARCHAR(50),
	school_name   VARCHAR(255),
	profile_image TEXT,
	is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
	last_login    TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email));
CREATE INDEX IF NOT EXISTS users_role_idx ON users (role);
`

func (p *PostgresStorage) Migrate(ctx context.Context) error {
	const op = "storage.Migrate"

	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
