package database

import (
	"context"
	"database/sql"
	"fmt"

	"agora/models"
	"agora/utils"
)

// CreateUser inserts an account. A taken username yields models.ErrConflict.
func (ds *DatabaseService) CreateUser(ctx context.Context, username string, hash, salt []byte) (int64, error) {
	res, err := ds.DB.ExecContext(ctx,
		"INSERT INTO users (username, credentials, salt, created_at) VALUES (?, ?, ?, ?)",
		username, hash, salt, utils.GetSQLTime())
	if err != nil {
		return 0, classify(fmt.Errorf("insert user: %w", err))
	}
	return res.LastInsertId()
}

// GetCredentials returns the stored password material for username.
func (ds *DatabaseService) GetCredentials(ctx context.Context, username string) (*models.Credentials, error) {
	return getOne(ctx, ds.DB, func(r *sql.Row) (*models.Credentials, error) {
		c := &models.Credentials{}
		return c, r.Scan(&c.UserID, &c.Hash, &c.Salt)
	}, "SELECT id, credentials, salt FROM users WHERE username = ?", username)
}

func (ds *DatabaseService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return getOne(ctx, ds.DB, scanUser,
		"SELECT id, username, description, profile_tag, is_admin, created_at FROM users WHERE id = ?", userID)
}

func scanUser(r *sql.Row) (*models.User, error) {
	u := &models.User{}
	return u, r.Scan(&u.ID, &u.Username, &u.Description, &u.ProfileTag, &u.IsAdmin, &u.CreatedAt)
}

// IsAdmin reports whether the account holds admin privileges. Unknown ids are not admins.
func (ds *DatabaseService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return exists(ctx, ds.DB, "SELECT 1 FROM users WHERE id = ? AND is_admin = 1", userID)
}

// SetAdmin grants or revokes admin privileges.
func (ds *DatabaseService) SetAdmin(ctx context.Context, userID int64, admin bool) error {
	res, err := ds.DB.ExecContext(ctx, "UPDATE users SET is_admin = ? WHERE id = ?", admin, userID)
	if err != nil {
		return fmt.Errorf("set admin for user %d: %w", userID, err)
	}
	return requireAffected(res, "user", userID)
}

func (ds *DatabaseService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := exists(ctx, ds.DB, "SELECT 1 FROM users WHERE username = ?", username)
	return !taken, err
}
