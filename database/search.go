package database

import (
	"context"
	"fmt"
	"strings"

	"agora/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// SearchContainers filters one container table by name. An empty query lists everything.
func (ds *DatabaseService) SearchContainers(ctx context.Context, kind ContainerKind, q string, limit int) ([]models.Container, error) {
	rows, err := ds.DB.QueryContext(ctx,
		"SELECT id, name, description FROM "+kind.Table+` WHERE name LIKE ? ESCAPE '\' ORDER BY id LIMIT ?`,
		likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind.Table, err)
	}
	defer rows.Close()

	out := make([]models.Container, 0)
	for rows.Next() {
		var c models.Container
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchUsers filters accounts by username.
func (ds *DatabaseService) SearchUsers(ctx context.Context, q string, limit int) ([]models.User, error) {
	rows, err := ds.DB.QueryContext(ctx, `
		SELECT id, username, description, profile_tag, is_admin, created_at
		FROM users WHERE username LIKE ? ESCAPE '\' ORDER BY id LIMIT ?`, likePattern(q), limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Description, &u.ProfileTag, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
