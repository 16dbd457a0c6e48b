package aggregate

import (
	"fmt"

	"agora/models"
)

// FoldReactions turns post-by-tally rows into ordered posts carrying their reaction maps,
// plus the authors of those posts resolved once each.
func FoldReactions(rows []models.PostReactionRow) ([]*models.PostView, *Ordered[int64, models.UserSummary], error) {
	posts := make([]*models.PostView, 0)
	authors := NewOrdered[int64, models.UserSummary]()

	var current *models.PostView
	for i, row := range rows {
		first := current == nil || current.ID != row.PostID
		if first {
			current = &models.PostView{
				ID:        row.PostID,
				AuthorID:  row.AuthorID,
				Pos:       row.Pos,
				Content:   row.Content,
				CreatedAt: row.CreatedAt,
				Reactions: make(map[string]models.ReactionTally),
			}
			posts = append(posts, current)
			authors.PutIfAbsent(row.AuthorID, models.UserSummary{
				Username:   row.Username,
				ProfileTag: row.ProfileTag,
				IsAdmin:    row.IsAdmin,
			})
		}

		if !row.Symbol.Valid {
			if first {
				continue
			}
			return nil, nil, fmt.Errorf("row %d (post %d): %w: symbol after first row", i, row.PostID, models.ErrDecode)
		}
		if !row.Count.Valid || !row.Reacted.Valid {
			return nil, nil, fmt.Errorf("row %d (post %d): %w: tally for %q", i, row.PostID, models.ErrDecode, row.Symbol.String)
		}
		current.Reactions[row.Symbol.String] = models.ReactionTally{
			Count:         int(row.Count.Int64),
			ViewerReacted: row.Reacted.Bool,
		}
	}
	return posts, authors, nil
}
