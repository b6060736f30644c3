package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"relay-chat/internal/events"
	"relay-chat/internal/redis"
	"relay-chat/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, repository.InitSchema(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type published struct {
	Target events.Target
	Event  string
	Data   interface{}
}

// fakeGateway records everything the engine publishes and keeps a minimal room registry.
type fakeGateway struct {
	mu    sync.Mutex
	users map[string]string
	rooms map[string]uuid.UUID
	sent  []published
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{users: map[string]string{}, rooms: map[string]uuid.UUID{}}
}

func (g *fakeGateway) Publish(target events.Target, event string, data interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, published{Target: target, Event: event, Data: data})
}

func (g *fakeGateway) RoomUsers(room uuid.UUID) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for connID, r := range g.rooms {
		if r == room && !seen[g.users[connID]] {
			seen[g.users[connID]] = true
			out = append(out, g.users[connID])
		}
	}
	return out
}

func (g *fakeGateway) Join(connID string, room uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[connID] = room
}

func (g *fakeGateway) Leave(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, connID)
}

func (g *fakeGateway) CurrentRoom(connID string) (uuid.UUID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[connID]
	return r, ok
}

func (g *fakeGateway) events(name string) []published {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []published
	for _, p := range g.sent {
		if p.Event == name {
			out = append(out, p)
		}
	}
	return out
}

func (g *fakeGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = nil
}

type fakeBlobs struct {
	mu   sync.Mutex
	keys []string
}

func (b *fakeBlobs) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "https://cdn.test/" + key, nil
}

func (b *fakeBlobs) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://cdn.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type fixedLimiter struct {
	allowed bool
}

func (l fixedLimiter) AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error) {
	return &redis.RateLimitResult{Allowed: l.allowed, Limit: 60}, nil
}

type harness struct {
	db            *gorm.DB
	gateway       *fakeGateway
	blobs         *fakeBlobs
	engine        *DeliveryEngine
	conversations *ConversationService
	messages      *MessageService
	users         *UserService
	friends       *FriendService
}

func newHarness(t *testing.T, groupChats bool, limiter MessageLimiter) *harness {
	t.Helper()
	db := newTestDB(t)
	userRepo := repository.NewUserRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	h := &harness{
		db:            db,
		gateway:       newFakeGateway(),
		blobs:         &fakeBlobs{},
		conversations: NewConversationService(convRepo, msgRepo, nil, nil),
		messages:      NewMessageService(msgRepo),
		users:         NewUserService(userRepo, friendRepo),
		friends:       NewFriendService(userRepo, friendRepo),
	}
	h.engine = NewDeliveryEngine(DeliveryDeps{
		Conversations: h.conversations,
		Messages:      h.messages,
		Users:         h.users,
		Presence:      NewPresenceService(userRepo, convRepo, nil, nil),
		Uploads:       NewUploadService(h.blobs, time.Hour),
		Gateway:       h.gateway,
		Limiter:       limiter,
		GroupChats:    groupChats,
	})
	return h
}

// connect authenticates userID on a new connection.
func (h *harness) connect(t *testing.T, userID string) Session {
	t.Helper()
	connID := "conn-" + userID + "-" + uuid.NewString()[:8]
	s, err := h.engine.Connect(context.Background(), userID, connID)
	require.NoError(t, err)
	h.gateway.mu.Lock()
	h.gateway.users[connID] = userID
	h.gateway.mu.Unlock()
	return s
}

func (h *harness) createPrivate(t *testing.T, a Session, b string) uuid.UUID {
	t.Helper()
	require.NoError(t, h.engine.CreateChat(context.Background(), a, &events.CreateChatRequest{ParticipantIDs: []string{b}}))
	created := h.gateway.events(events.EventChatCreated)
	require.NotEmpty(t, created)
	return created[len(created)-1].Data.(events.ChatCreated).ChatID
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
