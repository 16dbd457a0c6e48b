package database

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"agora/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPageFor(t *testing.T) {
	tests := []struct {
		pos  int
		want int
	}{
		{0, 1}, {1, 1}, {9, 1}, {10, 1}, {11, 2}, {20, 2}, {21, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("pos %d", tt.pos), func(t *testing.T) {
			assert.Equal(t, tt.want, PageFor(tt.pos))
		})
	}
}

func TestCreateThread(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, postID, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Hello", "first!")
	require.NoError(t, err)
	assert.NotZero(t, postID)

	positions, last, err := f.ds.ThreadPositions(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, positions)
	assert.Equal(t, 1, last)

	t.Run("Missing topic writes nothing", func(t *testing.T) {
		_, _, err := f.ds.CreateThread(ctx, 999, f.userID, "Nope", "nothing")
		require.ErrorIs(t, err, models.ErrNotFound)

		var count int
		require.NoError(t, f.ds.DB.QueryRow("SELECT COUNT(*) FROM threads").Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestAppendPost(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Counting", "1")
	require.NoError(t, err)

	for want := 2; want <= 11; want++ {
		res, err := f.ds.AppendPost(ctx, threadID, f.otherID, fmt.Sprint(want))
		require.NoError(t, err)
		assert.Equal(t, want, res.Pos)
		assert.Equal(t, PageFor(want), res.PageNumber)
	}

	_, last, err := f.ds.ThreadPositions(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 11, last)

	_, err = f.ds.AppendPost(ctx, 999, f.userID, "orphan")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteMiddlePostShiftsPositions(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Shift", "P1")
	require.NoError(t, err)
	p2, err := f.ds.AppendPost(ctx, threadID, f.userID, "P2")
	require.NoError(t, err)
	p3, err := f.ds.AppendPost(ctx, threadID, f.userID, "P3")
	require.NoError(t, err)
	require.NoError(t, f.ds.AddReaction(ctx, p2.PostID, f.otherID, "+1"))

	res, err := f.ds.DeletePost(ctx, p2.PostID, f.userID, false)
	require.NoError(t, err)
	assert.False(t, res.ThreadDeleted)
	assert.Equal(t, 2, res.Pos)

	positions, last, err := f.ds.ThreadPositions(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)
	assert.Equal(t, 2, last)

	var pos int
	require.NoError(t, f.ds.DB.QueryRow("SELECT post_pos FROM posts WHERE id = ?", p3.PostID).Scan(&pos))
	assert.Equal(t, 2, pos, "P3 should have moved into the freed slot")

	var reactions int
	require.NoError(t, f.ds.DB.QueryRow("SELECT COUNT(*) FROM reactions WHERE post_id = ?", p2.PostID).Scan(&reactions))
	assert.Zero(t, reactions)

	next, err := f.ds.AppendPost(ctx, threadID, f.userID, "P4")
	require.NoError(t, err)
	assert.Equal(t, 3, next.Pos)
}

func TestDeleteFirstPostRemovesThread(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, opID, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Doomed", "P1")
	require.NoError(t, err)
	reply, err := f.ds.AppendPost(ctx, threadID, f.otherID, "P2")
	require.NoError(t, err)
	require.NoError(t, f.ds.AddReaction(ctx, reply.PostID, f.userID, "+1"))

	res, err := f.ds.DeletePost(ctx, opID, f.userID, false)
	require.NoError(t, err)
	assert.True(t, res.ThreadDeleted)

	_, _, err = f.ds.ThreadPositions(ctx, threadID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.ds.AppendPost(ctx, threadID, f.userID, "too late")
	assert.ErrorIs(t, err, models.ErrNotFound)

	var posts, reactions int
	require.NoError(t, f.ds.DB.QueryRow("SELECT COUNT(*) FROM posts WHERE thread_id = ?", threadID).Scan(&posts))
	require.NoError(t, f.ds.DB.QueryRow("SELECT COUNT(*) FROM reactions").Scan(&reactions))
	assert.Zero(t, posts)
	assert.Zero(t, reactions)

	logs, err := f.ds.GetUserLogs(ctx, f.userID, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "thread deleted", logs[0].Action)
	require.NotNil(t, logs[0].TargetID)
	assert.Equal(t, threadID, *logs[0].TargetID)
}

func TestDeletePostAuthorization(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Mine", "P1")
	require.NoError(t, err)
	p2, err := f.ds.AppendPost(ctx, threadID, f.userID, "P2")
	require.NoError(t, err)

	t.Run("Stranger is forbidden and nothing changes", func(t *testing.T) {
		_, err := f.ds.DeletePost(ctx, p2.PostID, f.otherID, false)
		require.ErrorIs(t, err, models.ErrForbidden)

		positions, last, err := f.ds.ThreadPositions(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, positions)
		assert.Equal(t, 2, last)
	})

	t.Run("Unknown post", func(t *testing.T) {
		_, err := f.ds.DeletePost(ctx, 999, f.userID, true)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Author deletes without an audit entry", func(t *testing.T) {
		p3, err := f.ds.AppendPost(ctx, threadID, f.userID, "P3")
		require.NoError(t, err)
		_, err = f.ds.DeletePost(ctx, p3.PostID, f.userID, false)
		require.NoError(t, err)

		logs, err := f.ds.GetUserLogs(ctx, f.userID, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("Privileged actor deletes with an audit entry", func(t *testing.T) {
		_, err := f.ds.DeletePost(ctx, p2.PostID, f.adminID, true)
		require.NoError(t, err)

		logs, err := f.ds.GetUserLogs(ctx, f.adminID, 1, 10)
		require.NoError(t, err)
		require.NotEmpty(t, logs)
		assert.Equal(t, "post deleted", logs[0].Action)
		assert.Equal(t, models.AuditModeration, logs[0].Kind)
	})
}

func TestConcurrentAppendsGetDistinctPositions(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Race", "P1")
	require.NoError(t, err)

	const writers = 16
	got := make([]int, writers)
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			res, err := f.ds.AppendPost(ctx, threadID, f.otherID, fmt.Sprintf("reply %d", i))
			if err != nil {
				return err
			}
			got[i] = res.Pos
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Ints(got)
	want := make([]int, writers)
	for i := range want {
		want[i] = i + 2
	}
	assert.Equal(t, want, got)

	positions, last, err := f.ds.ThreadPositions(ctx, threadID)
	require.NoError(t, err)
	assert.Len(t, positions, writers+1)
	assert.Equal(t, writers+1, last)
}

func TestConcurrentDeletesKeepPositionsDense(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Shrink", "P1")
	require.NoError(t, err)
	var ids []int64
	for i := 0; i < 8; i++ {
		res, err := f.ds.AppendPost(ctx, threadID, f.userID, "reply")
		require.NoError(t, err)
		ids = append(ids, res.PostID)
	}

	var g errgroup.Group
	for _, id := range ids[:5] {
		g.Go(func() error {
			_, err := f.ds.DeletePost(ctx, id, f.userID, false)
			return err
		})
	}
	require.NoError(t, g.Wait())

	positions, last, err := f.ds.ThreadPositions(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, positions)
	assert.Equal(t, 4, last)
}

func TestConcurrentAppendsAndDeletesKeepPositionsDense(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	threadID, _, err := f.ds.CreateThread(ctx, f.topicID, f.userID, "Churn", "P1")
	require.NoError(t, err)
	var ids []int64
	for i := 0; i < 10; i++ {
		res, err := f.ds.AppendPost(ctx, threadID, f.userID, "reply")
		require.NoError(t, err)
		ids = append(ids, res.PostID)
	}

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			_, err := f.ds.DeletePost(ctx, id, f.userID, false)
			return err
		})
		g.Go(func() error {
			_, err := f.ds.AppendPost(ctx, threadID, f.otherID, fmt.Sprintf("late %d", i))
			return err
		})
	}
	require.NoError(t, g.Wait())

	positions, last, err := f.ds.ThreadPositions(ctx, threadID)
	require.NoError(t, err)
	want := make([]int, 11)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, positions)
	assert.Equal(t, 11, last)
}
