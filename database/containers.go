package database

import (
	"context"
	"database/sql"
	"fmt"

	"agora/config"
	"agora/models"
)

// GetHomeRows lists every category LEFT JOIN its forums, contiguous by category.
func (ds *DatabaseService) GetHomeRows(ctx context.Context) ([]models.HomeRow, error) {
	rows, err := ds.DB.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, f.id, f.name, f.description
		FROM categories c
		LEFT JOIN forums f ON f.category_id = c.id
		ORDER BY c.id, f.id`)
	if err != nil {
		return nil, fmt.Errorf("query home: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetHomeRows", "error", err)
		}
	}()

	var out []models.HomeRow
	for rows.Next() {
		var r models.HomeRow
		if err := rows.Scan(&r.CategoryID, &r.CategoryName, &r.CategoryDescr, &r.ForumID, &r.ForumName, &r.ForumDescr); err != nil {
			return nil, fmt.Errorf("scan home row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLatestRows returns the most recently active threads, grouped by topic. Topics with the
// freshest thread come first, then threads by recency within a topic.
func (ds *DatabaseService) GetLatestRows(ctx context.Context, limit int) ([]models.ThreadRow, error) {
	return ds.threadRows(ctx, "GetLatestRows", `
		WITH recent AS (
			SELECT th.id AS thread_id, th.topic_id, lp.id AS post_id, lp.created_at AS last_at
			FROM threads th
			JOIN posts lp ON lp.thread_id = th.id AND lp.post_pos = th.last_pos
			ORDER BY lp.created_at DESC, th.id DESC
			LIMIT ?
		), ranked AS (
			SELECT recent.*, MAX(last_at) OVER (PARTITION BY topic_id) AS topic_last FROM recent
		)
		SELECT tp.id, tp.name, th.id, th.name, th.last_pos, lp.author_id, lp.created_at,
		       u.username, u.profile_tag, u.is_admin
		FROM ranked r
		JOIN topics tp ON tp.id = r.topic_id
		JOIN threads th ON th.id = r.thread_id
		JOIN posts lp ON lp.id = r.post_id
		JOIN users u ON u.id = lp.author_id
		ORDER BY r.topic_last DESC, tp.id, r.last_at DESC, th.id DESC`, limit)
}

// GetTopicThreads returns one page of a topic's threads with their opening-post authors.
func (ds *DatabaseService) GetTopicThreads(ctx context.Context, topicID int64, page int) ([]models.ThreadRow, error) {
	return ds.threadRows(ctx, "GetTopicThreads", `
		SELECT tp.id, tp.name, th.id, th.name, th.last_pos, op.author_id, op.created_at,
		       u.username, u.profile_tag, u.is_admin
		FROM threads th
		JOIN topics tp ON tp.id = th.topic_id
		JOIN posts op ON op.thread_id = th.id AND op.post_pos = 1
		JOIN users u ON u.id = op.author_id
		WHERE th.topic_id = ?
		ORDER BY th.id
		LIMIT ? OFFSET ?`, topicID, config.PageSize, offsetFor(page, config.PageSize))
}

func (ds *DatabaseService) threadRows(ctx context.Context, name, query string, args ...any) ([]models.ThreadRow, error) {
	rows, err := ds.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows", "query", name, "error", err)
		}
	}()

	var out []models.ThreadRow
	for rows.Next() {
		var r models.ThreadRow
		if err := rows.Scan(&r.TopicID, &r.TopicName, &r.Thread.ID, &r.Thread.Name, &r.Thread.LastPos,
			&r.Thread.AuthorID, &r.Thread.UpdatedAt, &r.Username, &r.ProfileTag, &r.IsAdmin); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetThreadPostRows returns one page of posts LEFT JOIN their per-symbol tallies.
// viewerID should be models.AnonymousViewer when nobody is logged in.
func (ds *DatabaseService) GetThreadPostRows(ctx context.Context, threadID int64, page int, viewerID int64) ([]models.PostReactionRow, error) {
	rows, err := ds.DB.QueryContext(ctx, `
		WITH page AS (
			SELECT id FROM posts WHERE thread_id = ? ORDER BY post_pos LIMIT ? OFFSET ?
		), tally AS (
			SELECT post_id, symbol, COUNT(*) AS cnt, MAX(reactor_id = ?) AS reacted
			FROM reactions WHERE post_id IN (SELECT id FROM page)
			GROUP BY post_id, symbol
		)
		SELECT p.id, p.author_id, p.post_pos, p.content, p.created_at,
		       u.username, u.profile_tag, u.is_admin,
		       t.symbol, t.cnt, t.reacted
		FROM posts p
		JOIN users u ON u.id = p.author_id
		LEFT JOIN tally t ON t.post_id = p.id
		WHERE p.id IN (SELECT id FROM page)
		ORDER BY p.post_pos, t.symbol`,
		threadID, config.PageSize, offsetFor(page, config.PageSize), viewerID)
	if err != nil {
		return nil, fmt.Errorf("query thread %d posts: %w", threadID, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetThreadPostRows", "error", err)
		}
	}()

	var out []models.PostReactionRow
	for rows.Next() {
		var r models.PostReactionRow
		if err := rows.Scan(&r.PostID, &r.AuthorID, &r.Pos, &r.Content, &r.CreatedAt,
			&r.Username, &r.ProfileTag, &r.IsAdmin, &r.Symbol, &r.Count, &r.Reacted); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Existence and info lookups ---

func (ds *DatabaseService) TopicExists(ctx context.Context, topicID int64) (bool, error) {
	return exists(ctx, ds.DB, "SELECT 1 FROM topics WHERE id = ?", topicID)
}

func (ds *DatabaseService) ThreadExists(ctx context.Context, threadID int64) (bool, error) {
	return exists(ctx, ds.DB, "SELECT 1 FROM threads WHERE id = ?", threadID)
}

func (ds *DatabaseService) PostExists(ctx context.Context, postID int64) (bool, error) {
	return exists(ctx, ds.DB, "SELECT 1 FROM posts WHERE id = ?", postID)
}

// GetForumData returns a forum with its category and its topics.
func (ds *DatabaseService) GetForumData(ctx context.Context, forumID int64) (*models.ForumData, error) {
	data, err := getOne(ctx, ds.DB, func(r *sql.Row) (*models.ForumData, error) {
		var cat models.IDContainer
		d := &models.ForumData{}
		err := r.Scan(&cat.ID, &cat.Name, &d.Container.Name, &d.Container.Description)
		d.Parents = []models.IDContainer{cat}
		return d, err
	}, `
		SELECT c.id, c.name, f.name, f.description
		FROM forums f JOIN categories c ON c.id = f.category_id
		WHERE f.id = ?`, forumID)
	if err != nil {
		return nil, err
	}

	rows, err := ds.DB.QueryContext(ctx, "SELECT id, name, description FROM topics WHERE forum_id = ? ORDER BY id", forumID)
	if err != nil {
		return nil, fmt.Errorf("query topics of forum %d: %w", forumID, err)
	}
	defer rows.Close()
	data.Children = make([]models.Container, 0)
	for rows.Next() {
		var c models.Container
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		data.Children = append(data.Children, c)
	}
	return data, rows.Err()
}

// GetTopicInfo returns a topic with its category and forum.
func (ds *DatabaseService) GetTopicInfo(ctx context.Context, topicID int64) (*models.ContainerParents, error) {
	return getOne(ctx, ds.DB, func(r *sql.Row) (*models.ContainerParents, error) {
		var cat, forum models.IDContainer
		info := &models.ContainerParents{}
		err := r.Scan(&cat.ID, &cat.Name, &forum.ID, &forum.Name, &info.Container.Name, &info.Container.Description)
		info.Parents = []models.IDContainer{cat, forum}
		return info, err
	}, `
		SELECT c.id, c.name, f.id, f.name, t.name, t.description
		FROM topics t
		JOIN forums f ON f.id = t.forum_id
		JOIN categories c ON c.id = f.category_id
		WHERE t.id = ?`, topicID)
}

// GetThreadInfo returns a thread with its category, forum and topic.
func (ds *DatabaseService) GetThreadInfo(ctx context.Context, threadID int64) (*models.ThreadInfo, error) {
	return getOne(ctx, ds.DB, func(r *sql.Row) (*models.ThreadInfo, error) {
		var cat, forum, topic models.IDContainer
		info := &models.ThreadInfo{}
		err := r.Scan(&cat.ID, &cat.Name, &forum.ID, &forum.Name, &topic.ID, &topic.Name,
			&info.Container.Name, &info.Container.LastPos)
		info.Parents = []models.IDContainer{cat, forum, topic}
		return info, err
	}, `
		SELECT c.id, c.name, f.id, f.name, t.id, t.name, th.name, th.last_pos
		FROM threads th
		JOIN topics t ON t.id = th.topic_id
		JOIN forums f ON f.id = t.forum_id
		JOIN categories c ON c.id = f.category_id
		WHERE th.id = ?`, threadID)
}
