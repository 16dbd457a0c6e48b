// agora/models/models.go
package models

import (
	"database/sql"
	"time"
)

// AnonymousViewer is the viewer id used for reaction tallies when nobody is logged in.
// Account ids start at 1, so it never matches a reactor.
const AnonymousViewer int64 = -1

// --- Core Data Models ---

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	ProfileTag  string    `json:"profileTag"`
	IsAdmin     bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Credentials is the stored password material for one account.
type Credentials struct {
	UserID int64
	Hash   []byte
	Salt   []byte
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	TargetID  *int64    `json:"targetId,omitempty"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// Audit kinds. Rows of kind AuditAdmin are rejected by storage unless the actor is an admin.
const (
	AuditModeration = "moderation"
	AuditAdmin      = "admin"
)

// --- Response Shapes ---

// IDContainer names one ancestor in a parent chain.
type IDContainer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BasicContainer is the payload of a container without its id.
type BasicContainer struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Container is a child entry in a listing.
type Container struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ContainerParents is a container with its ancestor chain, outermost first.
type ContainerParents struct {
	Parents   []IDContainer  `json:"parents"`
	Container BasicContainer `json:"container"`
}

// ForumData is a forum with its parents and its topics.
type ForumData struct {
	Parents   []IDContainer  `json:"parents"`
	Container BasicContainer `json:"container"`
	Children  []Container    `json:"children"`
}

type ThreadSummary struct {
	Name    string `json:"name"`
	LastPos int    `json:"lastPos"`
}

type ThreadInfo struct {
	Parents   []IDContainer `json:"parents"`
	Container ThreadSummary `json:"container"`
}

// UserSummary is the participant payload resolved once per listing.
type UserSummary struct {
	Username   string `json:"username"`
	ProfileTag string `json:"profileTag"`
	IsAdmin    bool   `json:"isAdmin"`
}

// ThreadEntry is one thread in a topic page or in the latest listing.
type ThreadEntry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	LastPos   int       `json:"lastPos"`
	AuthorID  int64     `json:"authorId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReactionTally is the per-symbol count on one post, personalized to the viewer.
type ReactionTally struct {
	Count         int  `json:"count"`
	ViewerReacted bool `json:"viewerReacted"`
}

// PostView is a post as shown on a thread page.
type PostView struct {
	ID        int64                    `json:"id"`
	AuthorID  int64                    `json:"authorId"`
	Pos       int                      `json:"pos"`
	Content   string                   `json:"content"`
	CreatedAt time.Time                `json:"createdAt"`
	Reactions map[string]ReactionTally `json:"reactions"`
}

// --- Row Projections ---

// HomeRow is one row of the category LEFT JOIN forum listing.
type HomeRow struct {
	CategoryID    int64
	CategoryName  string
	CategoryDescr string
	ForumID       sql.NullInt64
	ForumName     sql.NullString
	ForumDescr    sql.NullString
}

// ThreadRow is one thread joined to the author of a chosen post.
type ThreadRow struct {
	TopicID    int64
	TopicName  string
	Thread     ThreadEntry
	Username   string
	ProfileTag string
	IsAdmin    bool
}

// PostReactionRow is one row of the posts LEFT JOIN reaction tally query.
type PostReactionRow struct {
	PostID     int64
	AuthorID   int64
	Pos        int
	Content    string
	CreatedAt  time.Time
	Username   string
	ProfileTag string
	IsAdmin    bool
	Symbol     sql.NullString
	Count      sql.NullInt64
	Reacted    sql.NullBool
}

// AppendResult reports where a new post landed.
type AppendResult struct {
	PostID     int64 `json:"postId"`
	Pos        int   `json:"pos"`
	PageNumber int   `json:"pageNumber"`
}

// DeleteResult reports what a post deletion removed.
type DeleteResult struct {
	ThreadID      int64
	Pos           int
	ThreadDeleted bool
}
