package database

import (
	"context"
	"fmt"

	"agora/models"
)

// AddReaction records symbol on a post for reactor. Repeating it is a no-op.
func (ds *DatabaseService) AddReaction(ctx context.Context, postID, reactorID int64, symbol string) error {
	res, err := ds.DB.ExecContext(ctx, `
		INSERT OR IGNORE INTO reactions (post_id, reactor_id, symbol)
		SELECT id, ?, ? FROM posts WHERE id = ?`, reactorID, symbol, postID)
	if err != nil {
		return classify(fmt.Errorf("add reaction: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ds.requirePost(ctx, postID)
	}
	return nil
}

// RemoveReaction withdraws symbol from a post for reactor. Removing an absent reaction is a no-op.
func (ds *DatabaseService) RemoveReaction(ctx context.Context, postID, reactorID int64, symbol string) error {
	res, err := ds.DB.ExecContext(ctx,
		"DELETE FROM reactions WHERE post_id = ? AND reactor_id = ? AND symbol = ?",
		postID, reactorID, symbol)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ds.requirePost(ctx, postID)
	}
	return nil
}

func (ds *DatabaseService) requirePost(ctx context.Context, postID int64) error {
	ok, err := ds.PostExists(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("post %d: %w", postID, models.ErrNotFound)
	}
	return nil
}
