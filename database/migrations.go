// agora/database/migrations.go
package database

// migration represents a single database schema migration.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
-- Admin audit rows are only accepted from admin accounts
CREATE TRIGGER IF NOT EXISTS audit_admin_guard
BEFORE INSERT ON audit_log
WHEN NEW.kind = 'admin'
	AND NOT EXISTS (SELECT 1 FROM users WHERE id = NEW.user_id AND is_admin = 1)
BEGIN
	SELECT RAISE(ABORT, 'admin privileges required');
END;
		`,
	},
	{
		Version: 2,
		Query: `
CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expiry);
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
		`,
	},
}
