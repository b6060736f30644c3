package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relay-chat/config"
	"relay-chat/internal/domain"
	"relay-chat/internal/middleware"
	"relay-chat/internal/repository"
	"relay-chat/internal/services"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubBlobs struct{}

func (stubBlobs) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (stubBlobs) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://cdn.test/" + key + "?signed=1", nil
}

type testAPI struct {
	router        *gin.Engine
	auth          *services.AuthService
	users         *services.UserService
	conversations *services.ConversationService
	messages      *services.MessageService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent), TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, repository.InitSchema(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	userRepo := repository.NewUserRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)

	auth, err := services.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	require.NoError(t, err)

	api := &testAPI{
		auth:          auth,
		users:         services.NewUserService(userRepo, friendRepo),
		conversations: services.NewConversationService(convRepo, messageRepo, nil, nil),
		messages:      services.NewMessageService(messageRepo),
	}
	friends := services.NewFriendService(userRepo, friendRepo)
	uploads := services.NewUploadService(stubBlobs{}, time.Hour)

	userH := NewUserHandler(api.users)
	friendH := NewFriendHandler(friends)
	convH := NewConversationHandler(api.conversations)
	msgH := NewMessageHandler(api.conversations, api.messages)
	uploadH := NewUploadHandler(uploads)

	r := gin.New()
	r.Use(middleware.ErrorHandler(logger.NewNop()))
	v1 := r.Group("/v1", middleware.AuthMiddleware(auth))
	v1.POST("/users", userH.Create)
	v1.POST("/users/onboard", userH.Onboard)
	v1.GET("/users/me", userH.Me)
	v1.PATCH("/users/me", userH.UpdateMe)
	v1.GET("/users/:userId/info", userH.Info)
	v1.POST("/friends/requests", friendH.SendRequest)
	v1.POST("/friends/requests/accept", friendH.Accept)
	v1.POST("/friends/requests/refuse", friendH.Refuse)
	v1.GET("/friends/requests", friendH.ListRequests)
	v1.GET("/friends/requests/count", friendH.CountRequests)
	v1.GET("/friends", friendH.ListFriends)
	v1.GET("/conversations", convH.List)
	v1.GET("/conversations/:id", convH.Header)
	v1.GET("/conversations/:id/messages", msgH.Page)
	v1.PATCH("/conversations/:id/settings", convH.UpdateSettings)
	v1.GET("/conversations/:id/media", convH.Media)
	v1.POST("/uploads/download", uploadH.Download)
	api.router = r
	return api
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := a.auth.SignAccessToken(userID, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (a *testAPI) createUser(t *testing.T, id, username string) {
	t.Helper()
	_, err := a.users.Create(context.Background(), id, username)
	require.NoError(t, err)
}

func TestRequiresAuthentication(t *testing.T) {
	api := newTestAPI(t)
	w, _ := api.do(t, http.MethodGet, "/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserOnboarding(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodPost, "/v1/users", "alice1", map[string]string{"id": "bobby2", "username": "bob"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(t, http.MethodPost, "/v1/users", "alice1", map[string]string{"id": "alice1", "username": "al"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodPost, "/v1/users", "alice1", map[string]string{"id": "alice1"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "username is required")

	w, body := api.do(t, http.MethodPost, "/v1/users", "alice1", map[string]string{"id": "alice1", "username": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])

	w, body = api.do(t, http.MethodPost, "/v1/users/onboard", "alice1", map[string]interface{}{"username": "alice", "avatar": 3})
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["isOnBoarded"])
	assert.Equal(t, float64(3), data["avatar"])

	w, body = api.do(t, http.MethodPost, "/v1/users/onboard", "alice1", map[string]interface{}{"username": "alice", "avatar": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", body["code"])

	w, _ = api.do(t, http.MethodPatch, "/v1/users/me", "alice1", map[string]interface{}{"avatar": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = api.do(t, http.MethodPatch, "/v1/users/me", "alice1", map[string]interface{}{"avatar": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["data"].(map[string]interface{})["avatar"])

	w, body = api.do(t, http.MethodGet, "/v1/users/me", "alice1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["data"].(map[string]interface{})["username"])
}

func TestFriendFlow(t *testing.T) {
	api := newTestAPI(t)
	api.createUser(t, "alice1", "alice")
	api.createUser(t, "bobby2", "bob")

	w, _ := api.do(t, http.MethodPost, "/v1/friends/requests", "alice1", map[string]string{"friendUsername": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = api.do(t, http.MethodPost, "/v1/friends/requests", "alice1", map[string]string{"friendUsername": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/v1/friends/requests", "alice1", map[string]string{"friendUsername": "bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = api.do(t, http.MethodPost, "/v1/friends/requests", "bobby2", map[string]string{"friendUsername": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code, "pending in the other direction")

	w, body := api.do(t, http.MethodGet, "/v1/friends/requests/count", "bobby2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["count"])

	w, body = api.do(t, http.MethodGet, "/v1/friends/requests", "bobby2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	requests := body["data"].([]interface{})
	require.Len(t, requests, 1)
	assert.Equal(t, "alice", requests[0].(map[string]interface{})["username"])

	w, _ = api.do(t, http.MethodPost, "/v1/friends/requests/accept", "bobby2", map[string]string{"senderId": "alice1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodPost, "/v1/friends/requests/refuse", "bobby2", map[string]string{"senderId": "alice1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = api.do(t, http.MethodGet, "/v1/friends", "alice1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	friends := body["data"].([]interface{})
	require.Len(t, friends, 1)
	assert.Equal(t, "bobby2", friends[0].(map[string]interface{})["userId"])

	w, body = api.do(t, http.MethodGet, "/v1/users/bobby2/info", "alice1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["friendsNumber"])
}

func TestConversationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	api.createUser(t, "alice1", "alice")
	api.createUser(t, "bobby2", "bob")
	api.createUser(t, "carol3", "carol")

	start := time.Now().UTC().Add(-time.Hour)
	conv, _, err := api.conversations.FindOrCreatePrivate(ctx, "alice1", "bobby2", start)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := api.messages.Append(ctx, services.AppendInput{
			ConversationID: conv.ID,
			SenderID:       "bobby2",
			Content:        fmt.Sprintf("m%d", i),
			At:             start.Add(time.Duration(i+1) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err = api.messages.Append(ctx, services.AppendInput{
		ConversationID: conv.ID,
		SenderID:       "alice1",
		Content:        "https://cdn.test/uploads/x.png",
		Type:           domain.MessageTypeImage,
		At:             start.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	w, body := api.do(t, http.MethodGet, "/v1/conversations", "bobby2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := body["data"].([]interface{})
	require.Len(t, list, 1)
	item := list[0].(map[string]interface{})
	assert.Equal(t, float64(1), item["unreadCount"])
	assert.Equal(t, "alice", item["otherUser"].(map[string]interface{})["username"])

	base := "/v1/conversations/" + conv.ID.String()
	w, body = api.do(t, http.MethodGet, base, "alice1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", body["data"].(map[string]interface{})["name"])

	w, _ = api.do(t, http.MethodGet, base, "carol3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodGet, "/v1/conversations/not-a-uuid", "alice1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = api.do(t, http.MethodGet, base+"/messages?page=1&pageSize=2", "alice1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := body["data"].(map[string]interface{})
	assert.Equal(t, float64(4), page["totalCount"])
	assert.Equal(t, float64(2), page["pageCount"])
	msgs := page["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].(map[string]interface{})["content"])

	w, _ = api.do(t, http.MethodGet, base+"/messages", "carol3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = api.do(t, http.MethodGet, base+"/media", "bobby2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].([]interface{}), 1)

	w, _ = api.do(t, http.MethodPatch, base+"/settings", "alice1", map[string]string{"backgroundImage": "bg-2"})
	require.Equal(t, http.StatusOK, w.Code)
	w, body = api.do(t, http.MethodGet, base, "alice1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bg-2", body["data"].(map[string]interface{})["backgroundImage"])
}

func TestDownloadURL(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodPost, "/v1/uploads/download", "alice1", map[string]string{"filename": "photo.png"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.test/uploads/photo.png?signed=1", body["data"].(map[string]interface{})["url"])

	w, _ = api.do(t, http.MethodPost, "/v1/uploads/download", "alice1", map[string]string{"filename": "../secrets"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
