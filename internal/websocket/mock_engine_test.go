package websocket

import (
	"context"

	"relay-chat/internal/events"
	"relay-chat/internal/services"

	"github.com/stretchr/testify/mock"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Connect(ctx context.Context, userID, connID string) (services.Session, error) {
	args := m.Called(ctx, userID, connID)
	if err := args.Error(0); err != nil {
		return services.Session{}, err
	}
	return services.Session{ConnID: connID, UserID: userID}, nil
}

func (m *mockEngine) Disconnect(ctx context.Context, s services.Session) {
	m.Called(ctx, s)
}

func (m *mockEngine) Ping(ctx context.Context, s services.Session) {
	m.Called(ctx, s)
}

func (m *mockEngine) Reject(ctx context.Context, s services.Session, event string, err error) {
	m.Called(ctx, s, event, err)
}

func (m *mockEngine) CreateChat(ctx context.Context, s services.Session, req *events.CreateChatRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) JoinRoom(ctx context.Context, s services.Session, req *events.ChatRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) Refresh(ctx context.Context, s services.Session, req *events.ChatRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) LeaveRoom(ctx context.Context, s services.Session) {
	m.Called(ctx, s)
}

func (m *mockEngine) SendMessage(ctx context.Context, s services.Session, req *events.SendMessageRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) UploadImage(ctx context.Context, s services.Session, req *events.UploadImageRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) React(ctx context.Context, s services.Session, req *events.ReactRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) Unreact(ctx context.Context, s services.Session, req *events.RemoveReactionRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) Typing(ctx context.Context, s services.Session, req *events.ChatRequest, typing bool) {
	m.Called(ctx, s, req, typing)
}

func (m *mockEngine) ChangeGroupName(ctx context.Context, s services.Session, req *events.ChangeGroupNameRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) ChangeGroupImage(ctx context.Context, s services.Session, req *events.ChangeGroupImageRequest) error {
	return m.Called(ctx, s, req).Error(0)
}

func (m *mockEngine) AddMember(ctx context.Context, s services.Session, req *events.AddMemberRequest) error {
	return m.Called(ctx, s, req).Error(0)
}
