package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id SERIAL PRIMARY KEY,
            email TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS profiles (
            id INT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
            display_name TEXT NOT NULL DEFAULT '',
            username TEXT UNIQUE NOT NULL,
            bio TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            online BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS requests (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL REFERENCES accounts(id),
            receiver_id INT NOT NULL REFERENCES accounts(id),
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending', 'accepted', 'rejected')),
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		// One live request per unordered pair. Rejected requests stay around
		// without blocking a later attempt.
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_live_request
            ON requests (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id))
            WHERE status <> 'rejected';`,
		`CREATE TABLE IF NOT EXISTS friends (
            id SERIAL PRIMARY KEY,
            user1_id INT NOT NULL REFERENCES accounts(id),
            user2_id INT NOT NULL REFERENCES accounts(id),
            created_at TIMESTAMPTZ DEFAULT NOW(),
            UNIQUE (user1_id, user2_id),
            CHECK (user1_id < user2_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL REFERENCES accounts(id),
            receiver_id INT NOT NULL REFERENCES accounts(id),
            content TEXT NOT NULL,
            seen BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair
            ON messages (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Info().Msg("database migrations applied")
	return nil
}
