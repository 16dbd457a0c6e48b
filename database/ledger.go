package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agora/config"
	"agora/models"
	"agora/utils"
)

// PageFor returns the 1-based page holding position pos.
func PageFor(pos int) int {
	if pos < 1 {
		return 1
	}
	return (pos + config.PageSize - 1) / config.PageSize
}

// CreateThread inserts a thread together with its opening post at position 1.
func (ds *DatabaseService) CreateThread(ctx context.Context, topicID, authorID int64, title, content string) (threadID, postID int64, err error) {
	err = ds.withTx(ctx, "CreateThread", func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "SELECT 1 FROM topics WHERE id = ?", topicID)
		if err != nil {
			return fmt.Errorf("check topic %d: %w", topicID, err)
		}
		if !ok {
			return fmt.Errorf("topic %d: %w", topicID, models.ErrNotFound)
		}

		now := utils.GetSQLTime()
		res, err := tx.ExecContext(ctx,
			"INSERT INTO threads (topic_id, name, last_pos, created_at) VALUES (?, ?, 1, ?)",
			topicID, title, now)
		if err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}
		if threadID, err = res.LastInsertId(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			"INSERT INTO posts (thread_id, author_id, content, post_pos, created_at) VALUES (?, ?, ?, 1, ?)",
			threadID, authorID, content, now)
		if err != nil {
			return fmt.Errorf("insert opening post: %w", err)
		}
		postID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	ds.logger.Info("Thread created", "thread_id", threadID, "topic_id", topicID, "post_id", postID)
	return threadID, postID, nil
}

// AppendPost adds a post at last_pos+1. The increment is the first statement of an immediate
// transaction, so concurrent appends to one thread queue on the write lock and never share a position.
func (ds *DatabaseService) AppendPost(ctx context.Context, threadID, authorID int64, content string) (models.AppendResult, error) {
	var result models.AppendResult
	err := ds.withTx(ctx, "AppendPost", func(tx *sql.Tx) error {
		var pos int
		err := tx.QueryRowContext(ctx,
			"UPDATE threads SET last_pos = last_pos + 1 WHERE id = ? RETURNING last_pos",
			threadID).Scan(&pos)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("thread %d: %w", threadID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("advance last_pos: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO posts (thread_id, author_id, content, post_pos, created_at) VALUES (?, ?, ?, ?, ?)",
			threadID, authorID, content, pos, utils.GetSQLTime())
		if err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		postID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		result = models.AppendResult{PostID: postID, Pos: pos, PageNumber: PageFor(pos)}
		return nil
	})
	if err != nil {
		return models.AppendResult{}, err
	}
	return result, nil
}

// DeletePost removes a post the actor authored, or any post when privileged.
// Removing position 1 removes the whole thread. Otherwise later posts shift down by one.
func (ds *DatabaseService) DeletePost(ctx context.Context, postID, actorID int64, privileged bool) (models.DeleteResult, error) {
	var result models.DeleteResult
	err := ds.withTx(ctx, "DeletePost", func(tx *sql.Tx) error {
		var authorID int64
		var lastPos int
		err := tx.QueryRowContext(ctx, `
			SELECT p.thread_id, p.author_id, p.post_pos, t.last_pos
			FROM posts p JOIN threads t ON t.id = p.thread_id
			WHERE p.id = ?`, postID).Scan(&result.ThreadID, &authorID, &result.Pos, &lastPos)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("post %d: %w", postID, models.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("resolve post %d: %w", postID, err)
		}
		if authorID != actorID && !privileged {
			return fmt.Errorf("delete post %d by user %d: %w", postID, actorID, models.ErrForbidden)
		}

		if result.Pos == 1 {
			result.ThreadDeleted = true
			return ds.deleteThreadTx(ctx, tx, result.ThreadID, actorID)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM reactions WHERE post_id = ?", postID); err != nil {
			return fmt.Errorf("delete reactions of post %d: %w", postID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", postID); err != nil {
			return fmt.Errorf("delete post %d: %w", postID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE posts SET post_pos = post_pos - 1 WHERE thread_id = ? AND post_pos > ?",
			result.ThreadID, result.Pos); err != nil {
			return fmt.Errorf("shift positions after %d: %w", result.Pos, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE threads SET last_pos = ? WHERE id = ?", lastPos-1, result.ThreadID); err != nil {
			return fmt.Errorf("update last_pos: %w", err)
		}

		if actorID != authorID {
			details := fmt.Sprintf("Deleted post (Post ID: %d, Thread ID: %d)", postID, result.ThreadID)
			if err := LogAction(ctx, tx, actorID, models.AuditModeration, "post deleted", postID, details); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.DeleteResult{}, err
	}
	ds.logger.Info("Post deleted", "post_id", postID, "thread_id", result.ThreadID, "pos", result.Pos, "thread_deleted", result.ThreadDeleted)
	return result, nil
}

// deleteThreadTx cascades explicitly: reactions, then posts, then the thread row.
func (ds *DatabaseService) deleteThreadTx(ctx context.Context, tx *sql.Tx, threadID, actorID int64) error {
	steps := []struct {
		what  string
		query string
	}{
		{"reactions", "DELETE FROM reactions WHERE post_id IN (SELECT id FROM posts WHERE thread_id = ?)"},
		{"posts", "DELETE FROM posts WHERE thread_id = ?"},
		{"thread", "DELETE FROM threads WHERE id = ?"},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, threadID); err != nil {
			return fmt.Errorf("delete %s of thread %d: %w", s.what, threadID, err)
		}
	}
	details := fmt.Sprintf("Deleted thread (ID: %d)", threadID)
	return LogAction(ctx, tx, actorID, models.AuditModeration, "thread deleted", threadID, details)
}

// ThreadPositions lists post positions of a thread in order, with the stored last_pos.
func (ds *DatabaseService) ThreadPositions(ctx context.Context, threadID int64) (positions []int, lastPos int, err error) {
	lastPos, err = getOne(ctx, ds.DB, func(r *sql.Row) (int, error) {
		var n int
		return n, r.Scan(&n)
	}, "SELECT last_pos FROM threads WHERE id = ?", threadID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := ds.DB.QueryContext(ctx, "SELECT post_pos FROM posts WHERE thread_id = ? ORDER BY post_pos", threadID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, 0, err
		}
		positions = append(positions, p)
	}
	return positions, lastPos, rows.Err()
}
