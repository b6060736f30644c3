package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"relay-chat/internal/domain"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagesConcatenateToHistory(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	h.connect(t, "alice")
	h.connect(t, "bob")

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c, _, err := h.conversations.FindOrCreatePrivate(ctx, "alice", "bob", start)
	require.NoError(t, err)

	var want []uuid.UUID
	for i := 0; i < 7; i++ {
		m, err := h.messages.Append(ctx, AppendInput{
			ConversationID: c.ID,
			SenderID:       "alice",
			Content:        fmt.Sprintf("m%d", i),
			At:             start.Add(time.Duration(i+1) * time.Second),
		})
		require.NoError(t, err)
		want = append(want, m.ID)
	}

	for _, size := range []int{1, 2, 3, 7, 10} {
		var pages [][]uuid.UUID
		page, err := h.messages.Page(ctx, c.ID, 1, size)
		require.NoError(t, err)
		assert.Equal(t, int64(7), page.TotalCount)
		for p := 1; p <= page.PageCount; p++ {
			got, err := h.messages.Page(ctx, c.ID, p, size)
			require.NoError(t, err)
			var ids []uuid.UUID
			for _, m := range got.Messages {
				ids = append(ids, m.ID)
			}
			pages = append(pages, ids)
		}
		var all []uuid.UUID
		for i := len(pages) - 1; i >= 0; i-- {
			all = append(all, pages[i]...)
		}
		assert.Equal(t, want, all, "page size %d", size)
	}

	clamped, err := h.messages.Page(ctx, c.ID, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, MaxPageSize, clamped.PageSize)
}

func TestUnreadAccounting(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	h.connect(t, "alice")
	h.connect(t, "bob")

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c, _, err := h.conversations.FindOrCreatePrivate(ctx, "alice", "bob", start)
	require.NoError(t, err)

	send := func(sender string, n int) uuid.UUID {
		m, err := h.messages.Append(ctx, AppendInput{
			ConversationID: c.ID,
			SenderID:       sender,
			Content:        "x",
			At:             start.Add(time.Duration(n) * time.Minute),
		})
		require.NoError(t, err)
		return m.ID
	}

	first := send("alice", 1)
	send("bob", 2)
	send("alice", 3)

	unread, err := h.conversations.UnreadCount(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, h.conversations.SetReadCursor(ctx, "bob", c.ID, first))
	unread, err = h.conversations.UnreadCount(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	send("alice", 4)
	unread, err = h.conversations.UnreadCount(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	err = h.conversations.SetReadCursor(ctx, "carol", c.ID, first)
	assert.ErrorIs(t, err, relay_errors.ErrNotAParticipant)
}

func TestAppendReplyMustExistInConversation(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	h.connect(t, "alice")
	h.connect(t, "bob")
	h.connect(t, "carol")
	now := time.Now().UTC()

	ab, _, err := h.conversations.FindOrCreatePrivate(ctx, "alice", "bob", now)
	require.NoError(t, err)
	ac, _, err := h.conversations.FindOrCreatePrivate(ctx, "alice", "carol", now)
	require.NoError(t, err)

	target, err := h.messages.Append(ctx, AppendInput{ConversationID: ab.ID, SenderID: "alice", Content: "original"})
	require.NoError(t, err)

	reply, err := h.messages.Append(ctx, AppendInput{ConversationID: ab.ID, SenderID: "bob", Content: "answer", ReplyToID: &target.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, "original", reply.ReplyTo.Content)

	_, err = h.messages.Append(ctx, AppendInput{ConversationID: ac.ID, SenderID: "carol", Content: "sneaky", ReplyToID: &target.ID})
	assert.ErrorIs(t, err, relay_errors.ErrReplyTargetNotFound)

	missing := uuid.New()
	_, err = h.messages.Append(ctx, AppendInput{ConversationID: ab.ID, SenderID: "bob", Content: "lost", ReplyToID: &missing})
	assert.ErrorIs(t, err, relay_errors.ErrReplyTargetNotFound)

	_, _, err = h.messages.React(ctx, "bob", target.ID, domain.ReactionType("MEH"))
	assert.ErrorIs(t, err, relay_errors.ErrValidation)
}

func TestListForUserOrdersByRecency(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	h.connect(t, "alice")
	h.connect(t, "bob")
	h.connect(t, "carol")
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ab, _, err := h.conversations.FindOrCreatePrivate(ctx, "alice", "bob", start)
	require.NoError(t, err)
	ac, _, err := h.conversations.FindOrCreatePrivate(ctx, "alice", "carol", start.Add(time.Minute))
	require.NoError(t, err)

	at := start.Add(time.Hour)
	_, err = h.messages.Append(ctx, AppendInput{ConversationID: ab.ID, SenderID: "bob", Content: "latest", At: at})
	require.NoError(t, err)
	require.NoError(t, h.conversations.Touch(ctx, ab.ID, at))

	list, err := h.conversations.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ab.ID, list[0].ID)
	assert.Equal(t, ac.ID, list[1].ID)
	require.NotNil(t, list[0].OtherUser)
	assert.Equal(t, "bob", list[0].OtherUser.UserID)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "latest", list[0].LastMessage.Content)
	assert.Equal(t, int64(1), list[0].UnreadCount)
	assert.Nil(t, list[1].LastMessage)

	header, err := h.conversations.Header(ctx, "alice", ab.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", header.Name)

	_, err = h.conversations.Header(ctx, "carol", ab.ID)
	assert.ErrorIs(t, err, relay_errors.ErrNotAParticipant)
}
