package database

import (
	"context"
	"database/sql"
	"fmt"

	"agora/models"
	"agora/utils"
)

// LogAction records an audited action inside the caller's transaction.
// Rows of kind models.AuditAdmin from non-admin users are rejected by the audit_admin_guard trigger.
func LogAction(ctx context.Context, tx *sql.Tx, userID int64, kind, action string, targetID int64, details string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO audit_log (user_id, kind, action, target_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		userID, kind, action, targetID, details, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("failed to write audit entry %q: %w", action, err)
	}
	return nil
}

// GetUserLogs returns the audit entries written by one user, newest first.
func (ds *DatabaseService) GetUserLogs(ctx context.Context, userID int64, page, pageSize int) ([]models.AuditEntry, error) {
	rows, err := ds.DB.QueryContext(ctx, `
		SELECT id, user_id, kind, action, target_id, details, created_at
		FROM audit_log WHERE user_id = ?
		ORDER BY id DESC LIMIT ? OFFSET ?`, userID, pageSize, offsetFor(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("query audit log for user %d: %w", userID, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetUserLogs", "error", err)
		}
	}()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Action, &e.TargetID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LogAdminAction records an admin action that has no other storage side effect, such as a
// backup or a banner change. Non-admin actors get models.ErrGuarded.
func (ds *DatabaseService) LogAdminAction(ctx context.Context, actorID int64, action, details string) error {
	return ds.withTx(ctx, "LogAdminAction", func(tx *sql.Tx) error {
		return LogAction(ctx, tx, actorID, models.AuditAdmin, action, 0, details)
	})
}
