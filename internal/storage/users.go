package storage

import (
	"context"
	"fmt"
)

// EnsureUser records a login the first time it is seen and refreshes its
// display name and last_seen on later calls.
func (db *DB) EnsureUser(ctx context.Context, login, displayName string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
	`, login, displayName)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}
