package services

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"relay-chat/internal/domain"
	"relay-chat/internal/events"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateChatUnreadThenJoin(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")

	chatID := h.createPrivate(t, alice, "bob")
	require.Len(t, h.gateway.events(events.EventAddConversation), 1)
	assert.Equal(t, events.TargetAll, h.gateway.events(events.EventAddConversation)[0].Target.Kind)

	require.NoError(t, h.engine.SendMessage(ctx, alice, &events.SendMessageRequest{ChatID: chatID, Content: "hi"}))
	assert.Empty(t, h.gateway.events(events.EventMarkAsRead))

	unread, err := h.conversations.UnreadCount(ctx, "bob", chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	refresh := h.gateway.events(events.EventRefreshConversation)
	require.Len(t, refresh, 1)
	assert.Equal(t, events.TargetAll, refresh[0].Target.Kind)
	assert.False(t, refresh[0].Data.(events.ConversationRefresh).IsOtherInRoom)

	h.gateway.reset()
	require.NoError(t, h.engine.JoinRoom(ctx, bob, &events.ChatRequest{ChatID: chatID}))

	history := h.gateway.events(events.EventHistoryMessages)
	require.Len(t, history, 1)
	assert.Equal(t, events.Connection(bob.ConnID), history[0].Target)
	msgs := history[0].Data.(events.HistoryMessages).Messages
	require.NotEmpty(t, msgs)
	assert.Equal(t, "hi", msgs[len(msgs)-1].Content)
	assert.Equal(t, domain.MessageTypeSystem, msgs[0].Type)

	require.Len(t, h.gateway.events(events.EventActivityUser), 1)

	reads := h.gateway.events(events.EventMarkAsRead)
	require.Len(t, reads, 1)
	assert.Equal(t, events.Room(chatID), reads[0].Target)
	assert.Equal(t, msgs[len(msgs)-1].ID, reads[0].Data.(events.MarkAsRead).MessageID)
	assert.Equal(t, "bob", reads[0].Data.(events.MarkAsRead).UserID)

	unread, err = h.conversations.UnreadCount(ctx, "bob", chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestCreateChatIsIdempotent(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")

	first := h.createPrivate(t, alice, "bob")
	second := h.createPrivate(t, alice, "bob")
	assert.Equal(t, first, second)
	assert.Len(t, h.gateway.events(events.EventAddConversation), 1)

	ids, err := h.conversations.ParticipantIDs(ctx, first)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	page, err := h.messages.Page(ctx, first, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "alice created the chat", page.Messages[0].Content)
}

func TestCreateChatRejections(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	h.connect(t, "carol")

	err := h.engine.CreateChat(ctx, alice, &events.CreateChatRequest{ParticipantIDs: []string{"alice"}})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidParticipantCount)

	err = h.engine.CreateChat(ctx, alice, &events.CreateChatRequest{ParticipantIDs: []string{"bob", "carol"}, Name: "trio"})
	assert.ErrorIs(t, err, relay_errors.ErrGroupChatsDisabled)

	err = h.engine.CreateChat(ctx, alice, &events.CreateChatRequest{ParticipantIDs: []string{"nobody"}})
	assert.ErrorIs(t, err, relay_errors.ErrUserNotFound)

	errs := h.gateway.events(events.EventError)
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, events.Connection(alice.ConnID), e.Target)
		assert.Equal(t, "Failed to create chat", e.Data.(events.ErrorPayload).Message)
	}
}

func TestSendMessageWithOtherInRoomMarksRead(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	chatID := h.createPrivate(t, alice, "bob")

	require.NoError(t, h.engine.JoinRoom(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	require.NoError(t, h.engine.JoinRoom(ctx, bob, &events.ChatRequest{ChatID: chatID}))
	h.gateway.reset()

	require.NoError(t, h.engine.SendMessage(ctx, alice, &events.SendMessageRequest{ChatID: chatID, Content: "hello"}))

	received := h.gateway.events(events.EventReceiveMessage)
	require.Len(t, received, 1)
	assert.Equal(t, events.Room(chatID), received[0].Target)
	view := received[0].Data.(events.MessageView)
	assert.Equal(t, "hello", view.Content)
	require.NotNil(t, view.Sender)
	assert.Equal(t, "alice", view.Sender.UserID)

	reads := h.gateway.events(events.EventMarkAsRead)
	require.Len(t, reads, 1)
	assert.Equal(t, "bob", reads[0].Data.(events.MarkAsRead).UserID)
	assert.True(t, h.gateway.events(events.EventRefreshConversation)[0].Data.(events.ConversationRefresh).IsOtherInRoom)

	unread, err := h.conversations.UnreadCount(ctx, "bob", chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestSendMessageFailures(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	mallory := h.connect(t, "mallory")
	chatID := h.createPrivate(t, alice, "bob")
	h.gateway.reset()

	err := h.engine.SendMessage(ctx, mallory, &events.SendMessageRequest{ChatID: chatID, Content: "let me in"})
	assert.ErrorIs(t, err, relay_errors.ErrNotAParticipant)
	errs := h.gateway.events(events.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, events.Connection(mallory.ConnID), errs[0].Target)
	assert.Equal(t, "Failed to send message", errs[0].Data.(events.ErrorPayload).Message)

	require.NoError(t, h.engine.JoinRoom(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	h.gateway.reset()
	missing := uuid.New()
	err = h.engine.SendMessage(ctx, alice, &events.SendMessageRequest{ChatID: chatID, Content: "re", ReplyToID: &missing})
	assert.ErrorIs(t, err, relay_errors.ErrReplyTargetNotFound)
	errs = h.gateway.events(events.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, events.Room(chatID), errs[0].Target)
	assert.Empty(t, h.gateway.events(events.EventRefreshConversation))
}

func TestSendMessageRateLimited(t *testing.T) {
	h := newHarness(t, false, fixedLimiter{allowed: false})
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	chatID := h.createPrivate(t, alice, "bob")

	err := h.engine.SendMessage(ctx, alice, &events.SendMessageRequest{ChatID: chatID, Content: "spam"})
	assert.ErrorIs(t, err, relay_errors.ErrRateLimited)
	errs := h.gateway.events(events.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Too many messages", errs[0].Data.(events.ErrorPayload).Message)
}

func TestUploadImageSkipsSenderEcho(t *testing.T) {
	h := newHarness(t, false, fixedLimiter{allowed: true})
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	chatID := h.createPrivate(t, alice, "bob")
	require.NoError(t, h.engine.JoinRoom(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	h.gateway.reset()

	file := base64.StdEncoding.EncodeToString(pngBytes)
	require.NoError(t, h.engine.UploadImage(ctx, alice, &events.UploadImageRequest{ChatID: chatID, File: file}))

	received := h.gateway.events(events.EventReceiveMessage)
	require.Len(t, received, 1)
	assert.Equal(t, events.RoomExcept(chatID, alice.ConnID), received[0].Target)
	view := received[0].Data.(events.MessageView)
	assert.Equal(t, domain.MessageTypeImage, view.Type)
	assert.True(t, strings.HasPrefix(view.Content, "https://cdn.test/uploads/"))
	assert.True(t, strings.HasSuffix(view.Content, ".png"))
	require.Len(t, h.blobs.keys, 1)

	refresh := h.gateway.events(events.EventRefreshConversation)
	require.Len(t, refresh, 1)
	assert.Equal(t, view.Content, refresh[0].Data.(events.ConversationRefresh).Content)

	err := h.engine.UploadImage(ctx, alice, &events.UploadImageRequest{ChatID: chatID, File: base64.StdEncoding.EncodeToString([]byte("plain text"))})
	assert.ErrorIs(t, err, relay_errors.ErrValidation)
	assert.Equal(t, "Failed to upload image", h.gateway.events(events.EventError)[0].Data.(events.ErrorPayload).Message)
}

func TestReactReplacesPreviousReaction(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	chatID := h.createPrivate(t, alice, "bob")
	require.NoError(t, h.engine.SendMessage(ctx, alice, &events.SendMessageRequest{ChatID: chatID, Content: "react to me"}))
	msgID := h.gateway.events(events.EventReceiveMessage)[0].Data.(events.MessageView).ID

	require.NoError(t, h.engine.React(ctx, alice, &events.ReactRequest{MessageID: msgID, Type: "LIKE"}))
	require.NoError(t, h.engine.React(ctx, alice, &events.ReactRequest{MessageID: msgID, Type: "LOVE"}))

	fired := h.gateway.events(events.EventReceiveReaction)
	require.Len(t, fired, 2)
	last := fired[1].Data.(events.ReactionChanged)
	assert.Equal(t, events.TargetAll, fired[1].Target.Kind)
	require.NotNil(t, last.Type)
	assert.Equal(t, domain.ReactionLove, *last.Type)
	assert.Equal(t, chatID, last.ChatID)

	m, err := h.messages.GetByID(ctx, msgID)
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, domain.ReactionLove, m.Reactions[0].Type)

	require.NoError(t, h.engine.Unreact(ctx, alice, &events.RemoveReactionRequest{MessageID: msgID}))
	deleted := h.gateway.events(events.EventDeleteReaction)
	require.Len(t, deleted, 1)
	assert.Nil(t, deleted[0].Data.(events.ReactionChanged).Type)

	err = h.engine.Unreact(ctx, alice, &events.RemoveReactionRequest{MessageID: msgID})
	assert.ErrorIs(t, err, relay_errors.ErrReactionNotFound)
	assert.Equal(t, "Failed to remove reaction", h.gateway.events(events.EventError)[0].Data.(events.ErrorPayload).Message)
}

func TestTypingRequiresCurrentRoom(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	chatID := h.createPrivate(t, alice, "bob")
	h.gateway.reset()

	h.engine.Typing(ctx, alice, &events.ChatRequest{ChatID: chatID}, true)
	assert.Empty(t, h.gateway.sent)

	require.NoError(t, h.engine.JoinRoom(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	h.gateway.reset()

	h.engine.Typing(ctx, alice, &events.ChatRequest{ChatID: chatID}, true)
	typing := h.gateway.events(events.EventUserTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, events.RoomExcept(chatID, alice.ConnID), typing[0].Target)
	assert.Equal(t, "alice", typing[0].Data.(events.Typing).Username)
	require.Len(t, h.gateway.events(events.EventUserTypingConv), 1)

	h.engine.Typing(ctx, alice, &events.ChatRequest{ChatID: chatID}, false)
	stop := h.gateway.events(events.EventUserStopTyping)
	require.Len(t, stop, 1)
	assert.Equal(t, events.Room(chatID), stop[0].Target)
	require.Len(t, h.gateway.events(events.EventUserStopTypingConv), 1)

	h.engine.LeaveRoom(ctx, alice)
	_, ok := h.gateway.CurrentRoom(alice.ConnID)
	assert.False(t, ok)
}

type stubTyping struct {
	typers map[string][]string
}

func (s *stubTyping) TrackTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	if isTyping {
		s.typers[conversationID] = append(s.typers[conversationID], userID)
	}
	return nil
}

func (s *stubTyping) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	return s.typers[conversationID], nil
}

func TestJoinRoomReplaysCurrentTypers(t *testing.T) {
	h := newHarness(t, false, nil)
	tracker := &stubTyping{typers: map[string][]string{}}
	h.engine.typing = tracker
	ctx := context.Background()
	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	chatID := h.createPrivate(t, alice, "bob")

	require.NoError(t, h.engine.JoinRoom(ctx, bob, &events.ChatRequest{ChatID: chatID}))
	h.engine.Typing(ctx, bob, &events.ChatRequest{ChatID: chatID}, true)
	assert.Equal(t, []string{"bob"}, tracker.typers[chatID.String()])
	h.gateway.reset()

	require.NoError(t, h.engine.JoinRoom(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	typing := h.gateway.events(events.EventUserTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, events.Connection(alice.ConnID), typing[0].Target)
	assert.Equal(t, "bob", typing[0].Data.(events.Typing).UserID)

	// a user never sees their own typing replayed
	h.gateway.reset()
	require.NoError(t, h.engine.JoinRoom(ctx, bob, &events.ChatRequest{ChatID: chatID}))
	assert.Empty(t, h.gateway.events(events.EventUserTyping))
}

func TestJoinRoomRequiresParticipant(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	mallory := h.connect(t, "mallory")
	chatID := h.createPrivate(t, alice, "bob")

	err := h.engine.JoinRoom(ctx, mallory, &events.ChatRequest{ChatID: chatID})
	assert.ErrorIs(t, err, relay_errors.ErrNotAParticipant)
	_, ok := h.gateway.CurrentRoom(mallory.ConnID)
	assert.False(t, ok)
	assert.Equal(t, "Failed to join room", h.gateway.events(events.EventError)[0].Data.(events.ErrorPayload).Message)

	err = h.engine.Refresh(ctx, mallory, &events.ChatRequest{ChatID: chatID})
	assert.ErrorIs(t, err, relay_errors.ErrNotAParticipant)

	h.gateway.reset()
	require.NoError(t, h.engine.Refresh(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	require.Len(t, h.gateway.events(events.EventHistoryMessages), 1)
	assert.Empty(t, h.gateway.events(events.EventMarkAsRead))
}

func TestGroupAdministration(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()
	alice := h.connect(t, "alice")
	h.connect(t, "bob")
	h.connect(t, "carol")
	h.connect(t, "dave")

	require.NoError(t, h.engine.CreateChat(ctx, alice, &events.CreateChatRequest{ParticipantIDs: []string{"bob", "carol"}, Name: "trio"}))
	created := h.gateway.events(events.EventChatCreated)[0].Data.(events.ChatCreated)
	assert.Equal(t, domain.ConversationTypeGroup, created.Type)
	require.NotNil(t, created.Name)
	assert.Equal(t, "trio", *created.Name)
	chatID := created.ChatID

	require.NoError(t, h.engine.JoinRoom(ctx, alice, &events.ChatRequest{ChatID: chatID}))
	assert.Empty(t, h.gateway.events(events.EventActivityUser))
	h.gateway.reset()

	require.NoError(t, h.engine.ChangeGroupName(ctx, alice, &events.ChangeGroupNameRequest{ChatID: chatID, Name: "quartet"}))
	received := h.gateway.events(events.EventReceiveMessage)
	require.Len(t, received, 1)
	assert.Equal(t, domain.MessageTypeSystem, received[0].Data.(events.MessageView).Type)
	assert.Equal(t, "alice renamed the group to quartet", received[0].Data.(events.MessageView).Content)
	header := h.gateway.events(events.EventRefreshHeader)
	require.Len(t, header, 1)
	assert.Equal(t, events.Connection(alice.ConnID), header[0].Target)
	assert.Equal(t, "quartet", *header[0].Data.(events.RefreshHeader).Name)

	require.NoError(t, h.engine.AddMember(ctx, alice, &events.AddMemberRequest{ChatID: chatID, UserID: "dave"}))
	ids, err := h.conversations.ParticipantIDs(ctx, chatID)
	require.NoError(t, err)
	assert.Contains(t, ids, "dave")

	h.gateway.reset()
	err = h.engine.AddMember(ctx, alice, &events.AddMemberRequest{ChatID: chatID, UserID: "dave"})
	assert.ErrorIs(t, err, relay_errors.ErrAlreadyParticipant)
	assert.Empty(t, h.gateway.events(events.EventReceiveMessage))
	require.Len(t, h.gateway.events(events.EventError), 1)

	file := base64.StdEncoding.EncodeToString(pngBytes)
	require.NoError(t, h.engine.ChangeGroupImage(ctx, alice, &events.ChangeGroupImageRequest{ChatID: chatID, File: file}))
	require.Len(t, h.blobs.keys, 1)
	assert.True(t, strings.HasPrefix(h.blobs.keys[0], "group-cover/"))

	c, err := h.conversations.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, "quartet", *c.Name)
	require.NotNil(t, c.Image)

	private := h.createPrivate(t, alice, "bob")
	err = h.engine.ChangeGroupName(ctx, alice, &events.ChangeGroupNameRequest{ChatID: private, Name: "nope"})
	assert.ErrorIs(t, err, relay_errors.ErrNotAGroup)
}

func TestDisconnectMarksOfflineAfterLastConnection(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()
	first := h.connect(t, "alice")
	second := h.connect(t, "alice")

	u, err := h.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	h.engine.Disconnect(ctx, first)
	u, err = h.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	h.engine.Disconnect(ctx, second)
	u, err = h.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, u.IsOnline)
	assert.NotNil(t, u.LastPing)
}
