// agora/database/database_test.go
package database

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"agora/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a new file-backed SQLite database for testing. A file rather than
// :memory: lets concurrent connections share one database.
func setupTestDB(t *testing.T) *DatabaseService {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db") + "?_journal_mode=WAL"

	ds, err := InitDB(dbPath, logger)
	require.NoError(t, err, "Failed to initialize test database")

	t.Cleanup(func() { ds.Close() })
	return ds
}

type fixture struct {
	ds      *DatabaseService
	adminID int64
	userID  int64
	otherID int64
	catID   int64
	forumID int64
	topicID int64
}

// seed creates an admin, two plain users and one category > forum > topic chain.
func seed(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ds := setupTestDB(t)
	f := &fixture{ds: ds}

	var err error
	f.adminID = mustUser(t, ds, "admin")
	require.NoError(t, ds.SetAdmin(ctx, f.adminID, true))
	f.userID = mustUser(t, ds, "alice")
	f.otherID = mustUser(t, ds, "bob")

	f.catID, err = ds.CreateContainer(ctx, KindCategory, 0, f.adminID, models.BasicContainer{Name: "General", Description: "all things"})
	require.NoError(t, err)
	f.forumID, err = ds.CreateContainer(ctx, KindForum, f.catID, f.adminID, models.BasicContainer{Name: "Chat"})
	require.NoError(t, err)
	f.topicID, err = ds.CreateContainer(ctx, KindTopic, f.forumID, f.adminID, models.BasicContainer{Name: "Introductions"})
	require.NoError(t, err)
	return f
}

func mustUser(t *testing.T, ds *DatabaseService, name string) int64 {
	t.Helper()
	id, err := ds.CreateUser(context.Background(), name, []byte("hash-"+name), []byte("salt-"+name))
	require.NoError(t, err)
	return id
}

func TestInitDB(t *testing.T) {
	ds := setupTestDB(t)

	var version int
	err := ds.DB.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(allMigrations), version)

	var trigger string
	err = ds.DB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'trigger' AND name = 'audit_admin_guard'").Scan(&trigger)
	require.NoError(t, err, "audit guard trigger should be installed")

	var fk int
	require.NoError(t, ds.DB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestInitDBIsRerunnable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "again.db")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ds, err := InitDB(path, logger)
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ds, err = InitDB(path, logger)
	require.NoError(t, err)
	defer ds.Close()

	var count int
	require.NoError(t, ds.DB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(allMigrations), count)
}

func TestWithRequiredParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare path", "x.db", "x.db?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"},
		{"existing query", "x.db?_journal_mode=WAL", "x.db?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"},
		{"keeps explicit values", "x.db?_busy_timeout=100&_txlock=immediate", "x.db?_busy_timeout=100&_txlock=immediate&_foreign_keys=on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withRequiredParams(tt.in))
		})
	}
}

func TestOffsetFor(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		pageSize int
		want     int
	}{
		{"first page", 1, 10, 0},
		{"third page", 3, 25, 50},
		{"largest exact offset", math.MaxInt/10 + 1, 10, math.MaxInt / 10 * 10},
		{"saturates", math.MaxInt/10 + 2, 10, math.MaxInt},
		{"saturates at max page", math.MaxInt, 25, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, offsetFor(tt.page, tt.pageSize))
		})
	}

	t.Run("Far page is empty", func(t *testing.T) {
		f := seed(t)
		ctx := context.Background()
		threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Far", "P1")
		require.NoError(t, err)

		rows, err := f.ds.GetThreadPostRows(ctx, threadID, math.MaxInt, f.userID)
		require.NoError(t, err)
		assert.Empty(t, rows, "no page wraps around to the first one")
	})
}

func TestBackupDatabase(t *testing.T) {
	f := seed(t)
	dir := filepath.Join(t.TempDir(), "backups")

	path, err := f.ds.BackupDatabase(context.Background(), dir)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, err = f.ds.BackupDatabase(context.Background(), "")
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	_, err := f.ds.CreateUser(ctx, "alice", []byte("h"), []byte("s"))
	assert.ErrorIs(t, err, models.ErrConflict)

	creds, err := f.ds.GetCredentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.userID, creds.UserID)
	assert.Equal(t, []byte("hash-alice"), creds.Hash)

	_, err = f.ds.GetCredentials(ctx, "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)

	u, err := f.ds.GetUser(ctx, f.adminID)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.True(t, u.IsAdmin)

	_, err = f.ds.GetUser(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	ok, err := f.ds.UsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.ds.UsernameAvailable(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	isAdmin, err := f.ds.IsAdmin(ctx, f.userID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	assert.ErrorIs(t, f.ds.SetAdmin(ctx, 999, true), models.ErrNotFound)
}
