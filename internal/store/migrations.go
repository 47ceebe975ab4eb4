package store

import "context"

// runMigrations executes all database migrations.
func (s *Store) runMigrations(ctx context.Context) error {
	migrations := []string{
		// Settings table - key-value pairs, including the encoded vocabulary
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}
