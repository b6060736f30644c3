package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relay-chat/internal/domain"
	"relay-chat/internal/domain/message"
	"relay-chat/internal/events"
	"relay-chat/internal/observability"
	"relay-chat/internal/redis"
	"relay-chat/internal/storage"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	errMsgJoin        = "Failed to join room"
	errMsgRefresh     = "Failed to refresh messages"
	errMsgSend        = "Failed to send message"
	errMsgUpload      = "Failed to upload image"
	errMsgCreate      = "Failed to create chat"
	errMsgReact       = "Failed to react to message"
	errMsgUnreact     = "Failed to remove reaction"
	errMsgGroup       = "Failed to update group"
	errMsgRateLimited = "Too many messages"
)

var errTooManyMessages = relay_errors.New(relay_errors.ErrRateLimited, "too many messages")

// Session is the identity a connection was authenticated as.
type Session struct {
	ConnID   string
	UserID   string
	Username string
}

// Gateway is the connection registry the engine fans events out through.
type Gateway interface {
	Publish(target events.Target, event string, data interface{})
	// RoomUsers returns the distinct users with at least one connection in room.
	RoomUsers(room uuid.UUID) []string
	// Join moves connID into room, leaving its previous room first.
	Join(connID string, room uuid.UUID)
	Leave(connID string)
	CurrentRoom(connID string) (uuid.UUID, bool)
}

type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// TypingTracker keeps short-lived typing sets so a user joining a room sees who is
// already typing.
type TypingTracker interface {
	TrackTyping(ctx context.Context, conversationID, userID string, isTyping bool) error
	GetTypingUsers(ctx context.Context, conversationID string) ([]string, error)
}

type AuditSink interface {
	Publish(ctx context.Context, envelope events.AuditEnvelope) error
}

type DeliveryDeps struct {
	Conversations *ConversationService
	Messages      *MessageService
	Users         *UserService
	Presence      *PresenceService
	Uploads       *UploadService
	Gateway       Gateway
	Limiter       MessageLimiter
	Typing        TypingTracker
	Audit         AuditSink
	Log           *zap.Logger
	GroupChats    bool
}

// DeliveryEngine executes inbound intents. Every intent reports its own failure as an
// error event and returns the error for logging; none of them closes the connection.
type DeliveryEngine struct {
	conversations *ConversationService
	messages      *MessageService
	users         *UserService
	presence      *PresenceService
	uploads       *UploadService
	gateway       Gateway
	limiter       MessageLimiter
	typing        TypingTracker
	audit         AuditSink
	log           *zap.Logger
	tracer        trace.Tracer
	groupChats    bool
	now           func() time.Time
}

func NewDeliveryEngine(deps DeliveryDeps) *DeliveryEngine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryEngine{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		users:         deps.Users,
		presence:      deps.Presence,
		uploads:       deps.Uploads,
		gateway:       deps.Gateway,
		limiter:       deps.Limiter,
		typing:        deps.Typing,
		audit:         deps.Audit,
		log:           log,
		tracer:        otel.Tracer("relay-chat/delivery"),
		groupChats:    deps.GroupChats,
		now:           func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Connect upserts the user behind a freshly authenticated connection and marks it online.
func (e *DeliveryEngine) Connect(ctx context.Context, userID, connID string) (Session, error) {
	u, err := e.users.EnsureUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	e.presence.Connect(ctx, userID, connID)
	e.record(ctx, events.EventTypePresenceOnline, events.AggregateTypePresence, userID, userID, nil)
	return Session{ConnID: connID, UserID: userID, Username: u.DisplayName()}, nil
}

func (e *DeliveryEngine) Disconnect(ctx context.Context, s Session) {
	e.gateway.Leave(s.ConnID)
	if e.presence.Disconnect(ctx, s.UserID, s.ConnID) {
		e.record(ctx, events.EventTypePresenceOffline, events.AggregateTypePresence, s.UserID, s.UserID, nil)
	}
}

func (e *DeliveryEngine) Ping(ctx context.Context, s Session) {
	e.presence.Heartbeat(ctx, s.UserID)
	e.gateway.Publish(events.Connection(s.ConnID), events.EventPong, struct{}{})
}

// Reject answers a frame whose payload failed validation.
func (e *DeliveryEngine) Reject(ctx context.Context, s Session, event string, err error) {
	e.fail(ctx, s, event, events.Connection(s.ConnID), "Invalid payload for "+event, err)
}

func (e *DeliveryEngine) CreateChat(ctx context.Context, s Session, req *events.CreateChatRequest) error {
	ctx, span := e.start(ctx, events.EventCreateChat, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	ids := uniqueIDs(append([]string{s.UserID}, req.ParticipantIDs...))
	if len(ids) < 2 {
		return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, relay_errors.ErrInvalidParticipantCount)
	}
	group := len(ids) > 2
	if group && !e.groupChats {
		return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, relay_errors.ErrGroupChatsDisabled)
	}
	if group && req.Name == "" {
		return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, relay_errors.Validation("group name is required"))
	}

	users, err := e.users.RequireAll(ctx, ids)
	if err != nil {
		return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, err)
	}
	creator := users[0]

	now := e.now()
	var (
		chatID  uuid.UUID
		chatTyp = domain.ConversationTypePrivate
		name    *string
		created = true
	)
	if group {
		c, err := e.conversations.CreateGroup(ctx, req.Name, ids, now)
		if err != nil {
			return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, err)
		}
		chatID, chatTyp, name = c.ID, c.Type, c.Name
	} else {
		c, isNew, err := e.conversations.FindOrCreatePrivate(ctx, ids[0], ids[1], now)
		if err != nil {
			return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, err)
		}
		chatID, created = c.ID, isNew
	}

	e.gateway.Publish(target, events.EventChatCreated, events.ChatCreated{
		ChatID:         chatID,
		Type:           chatTyp,
		Name:           name,
		ParticipantIDs: ids,
	})
	if !created {
		return nil
	}

	what := "chat"
	if group {
		what = "group"
	}
	// stamped with the creation time so it never counts as unread
	notice, err := e.messages.Append(ctx, AppendInput{
		ConversationID: chatID,
		SenderID:       s.UserID,
		Content:        fmt.Sprintf("%s created the %s", creator.DisplayName(), what),
		Type:           domain.MessageTypeSystem,
		At:             now,
	})
	if err != nil {
		return e.fail(ctx, s, events.EventCreateChat, target, errMsgCreate, err)
	}

	refresh := e.refreshPayload(notice, false)
	refresh.Name = name
	e.gateway.Publish(events.All(), events.EventAddConversation, events.AddConversation{
		ConversationRefresh: refresh,
		ParticipantIDs:      ids,
	})
	e.record(ctx, events.EventTypeConversationCreated, events.AggregateTypeConversation, chatID.String(), s.UserID, events.ChatCreated{
		ChatID:         chatID,
		Type:           chatTyp,
		Name:           name,
		ParticipantIDs: ids,
	})
	return nil
}

func (e *DeliveryEngine) JoinRoom(ctx context.Context, s Session, req *events.ChatRequest) error {
	ctx, span := e.start(ctx, events.EventJoinRoom, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	if err := e.conversations.RequireParticipant(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventJoinRoom, target, errMsgJoin, err)
	}
	e.gateway.Join(s.ConnID, req.ChatID)

	if err := e.emitHistory(ctx, s, req.ChatID); err != nil {
		return e.fail(ctx, s, events.EventJoinRoom, target, errMsgJoin, err)
	}

	activity, ok, err := e.presence.GetActivity(ctx, req.ChatID, s.UserID)
	if err != nil {
		e.log.Warn("activity lookup failed", zap.String("chat_id", req.ChatID.String()), zap.Error(err))
	} else if ok {
		e.gateway.Publish(target, events.EventActivityUser, events.ActivityUser{
			ChatID:   req.ChatID,
			IsOnline: activity.IsOnline,
			LastPing: activity.LastPing,
		})
	}

	e.emitTypers(ctx, s, req.ChatID)

	unread, err := e.conversations.UnreadCount(ctx, s.UserID, req.ChatID)
	if err != nil {
		return e.fail(ctx, s, events.EventJoinRoom, target, errMsgJoin, err)
	}
	if unread == 0 {
		return nil
	}
	latest, ok, err := e.messages.LatestFromOthers(ctx, req.ChatID, s.UserID)
	if err != nil {
		return e.fail(ctx, s, events.EventJoinRoom, target, errMsgJoin, err)
	}
	if !ok {
		return nil
	}
	if err := e.conversations.SetReadCursor(ctx, s.UserID, req.ChatID, latest.ID); err != nil {
		return e.fail(ctx, s, events.EventJoinRoom, target, errMsgJoin, err)
	}
	e.gateway.Publish(events.Room(req.ChatID), events.EventMarkAsRead, events.MarkAsRead{
		ChatID:    req.ChatID,
		MessageID: latest.ID,
		UserID:    s.UserID,
	})
	return nil
}

// Refresh re-sends the first history page without touching any state.
func (e *DeliveryEngine) Refresh(ctx context.Context, s Session, req *events.ChatRequest) error {
	ctx, span := e.start(ctx, events.EventRefresh, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	if err := e.conversations.RequireParticipant(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventRefresh, target, errMsgRefresh, err)
	}
	if err := e.emitHistory(ctx, s, req.ChatID); err != nil {
		return e.fail(ctx, s, events.EventRefresh, target, errMsgRefresh, err)
	}
	return nil
}

func (e *DeliveryEngine) LeaveRoom(ctx context.Context, s Session) {
	e.gateway.Leave(s.ConnID)
}

func (e *DeliveryEngine) SendMessage(ctx context.Context, s Session, req *events.SendMessageRequest) error {
	ctx, span := e.start(ctx, events.EventSendMessage, s)
	defer span.End()
	target := e.roomOrConnection(s, req.ChatID)

	if err := e.allowMessage(ctx, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventSendMessage, target, errMsgSend, err)
	}
	if err := e.conversations.RequireParticipant(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventSendMessage, target, errMsgSend, err)
	}

	present := e.othersInRoom(req.ChatID, s.UserID)
	m, err := e.messages.Append(ctx, AppendInput{
		ConversationID: req.ChatID,
		SenderID:       s.UserID,
		Content:        req.Content,
		Type:           domain.MessageTypeText,
		ReplyToID:      req.ReplyToID,
		At:             e.now(),
	})
	if err != nil {
		return e.fail(ctx, s, events.EventSendMessage, target, errMsgSend, err)
	}

	e.gateway.Publish(events.Room(req.ChatID), events.EventReceiveMessage, events.NewMessageView(m))
	e.afterAppend(ctx, s, m, present)
	return nil
}

// UploadImage stores the image and appends it as an IMAGE message whose content is the
// URL. The sender's own connection gets no receive_message echo.
func (e *DeliveryEngine) UploadImage(ctx context.Context, s Session, req *events.UploadImageRequest) error {
	ctx, span := e.start(ctx, events.EventUploadImage, s)
	defer span.End()
	target := e.roomOrConnection(s, req.ChatID)

	if err := e.allowMessage(ctx, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventUploadImage, target, errMsgUpload, err)
	}
	if err := e.conversations.RequireParticipant(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventUploadImage, target, errMsgUpload, err)
	}

	data, err := DecodeFile(req.File)
	if err != nil {
		return e.fail(ctx, s, events.EventUploadImage, target, errMsgUpload, err)
	}
	url, err := e.uploads.StoreImage(ctx, storage.UploadsPrefix, data)
	if err != nil {
		return e.fail(ctx, s, events.EventUploadImage, target, errMsgUpload, err)
	}

	present := e.othersInRoom(req.ChatID, s.UserID)
	m, err := e.messages.Append(ctx, AppendInput{
		ConversationID: req.ChatID,
		SenderID:       s.UserID,
		Content:        url,
		Type:           domain.MessageTypeImage,
		ReplyToID:      req.ReplyToID,
		At:             e.now(),
	})
	if err != nil {
		return e.fail(ctx, s, events.EventUploadImage, target, errMsgUpload, err)
	}

	e.gateway.Publish(events.RoomExcept(req.ChatID, s.ConnID), events.EventReceiveMessage, events.NewMessageView(m))
	e.afterAppend(ctx, s, m, present)
	return nil
}

func (e *DeliveryEngine) React(ctx context.Context, s Session, req *events.ReactRequest) error {
	ctx, span := e.start(ctx, events.EventReactMessage, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	m, err := e.messages.GetByID(ctx, req.MessageID)
	if err != nil {
		return e.fail(ctx, s, events.EventReactMessage, target, errMsgReact, err)
	}
	if err := e.conversations.RequireParticipant(ctx, m.ConversationID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventReactMessage, target, errMsgReact, err)
	}
	r, _, err := e.messages.React(ctx, s.UserID, req.MessageID, domain.ReactionType(req.Type))
	if err != nil {
		return e.fail(ctx, s, events.EventReactMessage, target, errMsgReact, err)
	}

	payload := events.ReactionChanged{
		MessageID: r.MessageID,
		ChatID:    m.ConversationID,
		UserID:    s.UserID,
		Type:      &r.Type,
	}
	e.gateway.Publish(events.All(), events.EventReceiveReaction, payload)
	e.record(ctx, events.EventTypeReactionAdded, events.AggregateTypeReaction, r.MessageID.String(), s.UserID, payload)
	return nil
}

func (e *DeliveryEngine) Unreact(ctx context.Context, s Session, req *events.RemoveReactionRequest) error {
	ctx, span := e.start(ctx, events.EventRemoveReaction, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	m, err := e.messages.GetByID(ctx, req.MessageID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrMessageNotFound) {
			err = relay_errors.ErrReactionNotFound
		}
		return e.fail(ctx, s, events.EventRemoveReaction, target, errMsgUnreact, err)
	}
	if err := e.conversations.RequireParticipant(ctx, m.ConversationID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventRemoveReaction, target, errMsgUnreact, err)
	}
	if _, err := e.messages.Unreact(ctx, s.UserID, req.MessageID); err != nil {
		return e.fail(ctx, s, events.EventRemoveReaction, target, errMsgUnreact, err)
	}

	payload := events.ReactionChanged{
		MessageID: req.MessageID,
		ChatID:    m.ConversationID,
		UserID:    s.UserID,
	}
	e.gateway.Publish(events.All(), events.EventDeleteReaction, payload)
	e.record(ctx, events.EventTypeReactionRemoved, events.AggregateTypeReaction, req.MessageID.String(), s.UserID, payload)
	return nil
}

// Typing fans out a typing signal. Signals for a room the connection is not in are dropped.
func (e *DeliveryEngine) Typing(ctx context.Context, s Session, req *events.ChatRequest, typing bool) {
	room, ok := e.gateway.CurrentRoom(s.ConnID)
	if !ok || room != req.ChatID {
		return
	}

	payload := events.Typing{ChatID: req.ChatID, UserID: s.UserID, Username: s.Username}
	if typing {
		e.gateway.Publish(events.RoomExcept(req.ChatID, s.ConnID), events.EventUserTyping, payload)
		e.gateway.Publish(events.All(), events.EventUserTypingConv, payload)
	} else {
		e.gateway.Publish(events.Room(req.ChatID), events.EventUserStopTyping, payload)
		e.gateway.Publish(events.All(), events.EventUserStopTypingConv, payload)
	}

	if e.typing != nil {
		if err := e.typing.TrackTyping(ctx, req.ChatID.String(), s.UserID, typing); err != nil {
			e.log.Debug("typing tracking failed", zap.String("user_id", s.UserID), zap.Error(err))
		}
	}
}

func (e *DeliveryEngine) ChangeGroupName(ctx context.Context, s Session, req *events.ChangeGroupNameRequest) error {
	ctx, span := e.start(ctx, events.EventChangeGroupName, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	if err := e.requireGroup(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventChangeGroupName, target, errMsgGroup, err)
	}
	if err := e.conversations.Rename(ctx, req.ChatID, req.Name); err != nil {
		return e.fail(ctx, s, events.EventChangeGroupName, target, errMsgGroup, err)
	}

	name := req.Name
	text := fmt.Sprintf("%s renamed the group to %s", s.Username, name)
	if err := e.groupNotice(ctx, s, req.ChatID, text, &name, nil); err != nil {
		return e.fail(ctx, s, events.EventChangeGroupName, target, errMsgGroup, err)
	}
	return nil
}

func (e *DeliveryEngine) ChangeGroupImage(ctx context.Context, s Session, req *events.ChangeGroupImageRequest) error {
	ctx, span := e.start(ctx, events.EventChangeGroupImage, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	if err := e.requireGroup(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventChangeGroupImage, target, errMsgGroup, err)
	}
	data, err := DecodeFile(req.File)
	if err != nil {
		return e.fail(ctx, s, events.EventChangeGroupImage, target, errMsgGroup, err)
	}
	url, err := e.uploads.StoreImage(ctx, storage.GroupCoverPrefix, data)
	if err != nil {
		return e.fail(ctx, s, events.EventChangeGroupImage, target, errMsgGroup, err)
	}
	if err := e.conversations.SetImage(ctx, req.ChatID, url); err != nil {
		return e.fail(ctx, s, events.EventChangeGroupImage, target, errMsgGroup, err)
	}

	text := fmt.Sprintf("%s changed the group image", s.Username)
	if err := e.groupNotice(ctx, s, req.ChatID, text, nil, &url); err != nil {
		return e.fail(ctx, s, events.EventChangeGroupImage, target, errMsgGroup, err)
	}
	return nil
}

func (e *DeliveryEngine) AddMember(ctx context.Context, s Session, req *events.AddMemberRequest) error {
	ctx, span := e.start(ctx, events.EventAddMember, s)
	defer span.End()
	target := events.Connection(s.ConnID)

	if err := e.requireGroup(ctx, req.ChatID, s.UserID); err != nil {
		return e.fail(ctx, s, events.EventAddMember, target, errMsgGroup, err)
	}
	member, err := e.users.Get(ctx, req.UserID)
	if err != nil {
		return e.fail(ctx, s, events.EventAddMember, target, errMsgGroup, err)
	}
	if err := e.conversations.AddMember(ctx, req.ChatID, member.ID, e.now()); err != nil {
		return e.fail(ctx, s, events.EventAddMember, target, errMsgGroup, err)
	}

	text := fmt.Sprintf("%s added %s to the group", s.Username, member.DisplayName())
	if err := e.groupNotice(ctx, s, req.ChatID, text, nil, nil); err != nil {
		return e.fail(ctx, s, events.EventAddMember, target, errMsgGroup, err)
	}
	e.record(ctx, events.EventTypeParticipantAdded, events.AggregateTypeParticipant, req.ChatID.String(), s.UserID, map[string]string{
		"chatId": req.ChatID.String(),
		"userId": member.ID,
	})
	return nil
}

func (e *DeliveryEngine) requireGroup(ctx context.Context, chatID uuid.UUID, userID string) error {
	if !e.groupChats {
		return relay_errors.ErrGroupChatsDisabled
	}
	_, err := e.conversations.RequireGroup(ctx, chatID, userID)
	return err
}

// groupNotice records a group administration action as a SYSTEM message and tells
// everyone about it.
func (e *DeliveryEngine) groupNotice(ctx context.Context, s Session, chatID uuid.UUID, text string, name, image *string) error {
	m, err := e.messages.Append(ctx, AppendInput{
		ConversationID: chatID,
		SenderID:       s.UserID,
		Content:        text,
		Type:           domain.MessageTypeSystem,
		At:             e.now(),
	})
	if err != nil {
		return err
	}
	e.gateway.Publish(events.Room(chatID), events.EventReceiveMessage, events.NewMessageView(m))

	if err := e.conversations.Touch(ctx, chatID, m.CreatedAt); err != nil {
		e.log.Warn("touch failed", zap.String("chat_id", chatID.String()), zap.Error(err))
	}
	refresh := e.refreshPayload(m, len(e.othersInRoom(chatID, s.UserID)) > 0)
	refresh.Name, refresh.Image = name, image
	e.gateway.Publish(events.All(), events.EventRefreshConversation, refresh)
	e.gateway.Publish(events.Connection(s.ConnID), events.EventRefreshHeader, events.RefreshHeader{
		ChatID: chatID,
		Name:   name,
		Image:  image,
	})
	e.record(ctx, events.EventTypeConversationUpdated, events.AggregateTypeConversation, chatID.String(), s.UserID, refresh)
	return nil
}

// afterAppend runs the shared tail of send and upload: read receipts for users already in
// the room, the recency bump and the global list refresh.
func (e *DeliveryEngine) afterAppend(ctx context.Context, s Session, m message.Message, present []string) {
	for _, userID := range present {
		if err := e.conversations.SetReadCursor(ctx, userID, m.ConversationID, m.ID); err != nil {
			e.log.Warn("read cursor update failed", zap.String("user_id", userID), zap.String("message_id", m.ID.String()), zap.Error(err))
			continue
		}
		e.gateway.Publish(events.Room(m.ConversationID), events.EventMarkAsRead, events.MarkAsRead{
			ChatID:    m.ConversationID,
			MessageID: m.ID,
			UserID:    userID,
		})
	}

	if err := e.conversations.Touch(ctx, m.ConversationID, m.CreatedAt); err != nil {
		e.log.Warn("touch failed", zap.String("chat_id", m.ConversationID.String()), zap.Error(err))
	}
	e.gateway.Publish(events.All(), events.EventRefreshConversation, e.refreshPayload(m, len(present) > 0))
	e.record(ctx, events.EventTypeMessageCreated, events.AggregateTypeMessage, m.ID.String(), s.UserID, events.NewMessageView(m))
}

// emitTypers replays the room's current typers to a connection that just joined.
func (e *DeliveryEngine) emitTypers(ctx context.Context, s Session, chatID uuid.UUID) {
	if e.typing == nil {
		return
	}
	typers, err := e.typing.GetTypingUsers(ctx, chatID.String())
	if err != nil {
		e.log.Debug("typing lookup failed", zap.String("chat_id", chatID.String()), zap.Error(err))
		return
	}
	for _, id := range typers {
		if id == s.UserID {
			continue
		}
		u, err := e.users.Get(ctx, id)
		if err != nil {
			continue
		}
		e.gateway.Publish(events.Connection(s.ConnID), events.EventUserTyping, events.Typing{
			ChatID:   chatID,
			UserID:   id,
			Username: u.DisplayName(),
		})
	}
}

func (e *DeliveryEngine) emitHistory(ctx context.Context, s Session, chatID uuid.UUID) error {
	page, err := e.messages.Page(ctx, chatID, 1, DefaultPageSize)
	if err != nil {
		return err
	}
	e.gateway.Publish(events.Connection(s.ConnID), events.EventHistoryMessages, events.HistoryMessages{
		ChatID:     chatID,
		Messages:   events.NewMessageViews(page.Messages),
		TotalCount: page.TotalCount,
		PageCount:  page.PageCount,
		Page:       page.Page,
	})
	return nil
}

func (e *DeliveryEngine) refreshPayload(m message.Message, otherInRoom bool) events.ConversationRefresh {
	return events.ConversationRefresh{
		ChatID:        m.ConversationID,
		Content:       m.Content,
		Type:          m.Type,
		SenderID:      m.SenderID,
		Sender:        events.NewSenderView(m.Sender),
		Date:          m.CreatedAt,
		IsOtherInRoom: otherInRoom,
	}
}

// othersInRoom is a snapshot; a user leaving right after it simply misses the receipt.
func (e *DeliveryEngine) othersInRoom(chatID uuid.UUID, userID string) []string {
	var others []string
	for _, id := range e.gateway.RoomUsers(chatID) {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}

func (e *DeliveryEngine) allowMessage(ctx context.Context, userID string) error {
	if e.limiter == nil {
		return nil
	}
	res, err := e.limiter.AllowMessage(ctx, userID)
	if err != nil {
		e.log.Warn("rate limit check failed, allowing", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return errTooManyMessages
	}
	return nil
}

// roomOrConnection scopes send failures to the room when the sender is in it.
func (e *DeliveryEngine) roomOrConnection(s Session, chatID uuid.UUID) events.Target {
	if room, ok := e.gateway.CurrentRoom(s.ConnID); ok && room == chatID {
		return events.Room(chatID)
	}
	return events.Connection(s.ConnID)
}

func (e *DeliveryEngine) fail(ctx context.Context, s Session, event string, target events.Target, msg string, err error) error {
	if errors.Is(err, relay_errors.ErrRateLimited) {
		msg = errMsgRateLimited
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	observability.IncDeliveryFailure(event)

	fields := []zap.Field{
		zap.String("event", event),
		zap.String("user_id", s.UserID),
		zap.String("conn_id", s.ConnID),
		zap.Error(err),
	}
	if relay_errors.Kind(err) == relay_errors.ErrDependency || relay_errors.Kind(err) == nil {
		e.log.Error("intent failed", fields...)
	} else {
		e.log.Info("intent rejected", fields...)
	}

	e.gateway.Publish(target, events.EventError, events.ErrorPayload{Message: msg})
	return err
}

func (e *DeliveryEngine) start(ctx context.Context, event string, s Session) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "delivery."+event, trace.WithAttributes(
		attribute.String("ws.event", event),
		attribute.String("user.id", s.UserID),
	))
}

func (e *DeliveryEngine) record(ctx context.Context, eventType, aggregateType, aggregateID, actorID string, payload interface{}) {
	if e.audit == nil {
		return
	}
	env, err := events.NewAuditEnvelope(eventType, aggregateType, aggregateID, actorID, payload)
	if err != nil {
		e.log.Warn("audit envelope failed", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := e.audit.Publish(ctx, env); err != nil {
		e.log.Warn("audit publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
