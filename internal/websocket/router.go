package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"relay-chat/internal/events"
	"relay-chat/internal/observability"
	"relay-chat/internal/services"

	"go.uber.org/zap"
)

var errUnknownEvent = errors.New("unknown event")

// Engine is the delivery engine as seen by the gateway.
type Engine interface {
	Connect(ctx context.Context, userID, connID string) (services.Session, error)
	Disconnect(ctx context.Context, s services.Session)
	Ping(ctx context.Context, s services.Session)
	Reject(ctx context.Context, s services.Session, event string, err error)

	CreateChat(ctx context.Context, s services.Session, req *events.CreateChatRequest) error
	JoinRoom(ctx context.Context, s services.Session, req *events.ChatRequest) error
	Refresh(ctx context.Context, s services.Session, req *events.ChatRequest) error
	LeaveRoom(ctx context.Context, s services.Session)
	SendMessage(ctx context.Context, s services.Session, req *events.SendMessageRequest) error
	UploadImage(ctx context.Context, s services.Session, req *events.UploadImageRequest) error
	React(ctx context.Context, s services.Session, req *events.ReactRequest) error
	Unreact(ctx context.Context, s services.Session, req *events.RemoveReactionRequest) error
	Typing(ctx context.Context, s services.Session, req *events.ChatRequest, typing bool)
	ChangeGroupName(ctx context.Context, s services.Session, req *events.ChangeGroupNameRequest) error
	ChangeGroupImage(ctx context.Context, s services.Session, req *events.ChangeGroupImageRequest) error
	AddMember(ctx context.Context, s services.Session, req *events.AddMemberRequest) error
}

type intentFunc func(ctx context.Context, s services.Session, data json.RawMessage) error

// Router maps inbound event names to engine operations.
type Router struct {
	engine Engine
	routes map[string]intentFunc
	logger *WebSocketLogger
}

func NewRouter(engine Engine, logger *WebSocketLogger) *Router {
	if logger == nil {
		logger = NewWebSocketLogger(nil)
	}
	r := &Router{engine: engine, logger: logger}
	r.routes = map[string]intentFunc{
		events.EventCreateChat:       route(engine, events.EventCreateChat, engine.CreateChat),
		events.EventJoinRoom:         route(engine, events.EventJoinRoom, engine.JoinRoom),
		events.EventRefresh:          route(engine, events.EventRefresh, engine.Refresh),
		events.EventSendMessage:      route(engine, events.EventSendMessage, engine.SendMessage),
		events.EventUploadImage:      route(engine, events.EventUploadImage, engine.UploadImage),
		events.EventReactMessage:     route(engine, events.EventReactMessage, engine.React),
		events.EventRemoveReaction:   route(engine, events.EventRemoveReaction, engine.Unreact),
		events.EventChangeGroupName:  route(engine, events.EventChangeGroupName, engine.ChangeGroupName),
		events.EventChangeGroupImage: route(engine, events.EventChangeGroupImage, engine.ChangeGroupImage),
		events.EventAddMember:        route(engine, events.EventAddMember, engine.AddMember),
		events.EventTyping:           typing(engine, events.EventTyping, true),
		events.EventStopTyping:       typing(engine, events.EventStopTyping, false),
		events.EventLeaveRoom: func(ctx context.Context, s services.Session, _ json.RawMessage) error {
			engine.LeaveRoom(ctx, s)
			return nil
		},
		events.EventPing: func(ctx context.Context, s services.Session, _ json.RawMessage) error {
			engine.Ping(ctx, s)
			return nil
		},
	}
	return r
}

// route decodes the frame data into T. Undecodable data is reported to the sender as an
// invalid payload for event.
func route[T any](engine Engine, event string, fn func(context.Context, services.Session, *T) error) intentFunc {
	return func(ctx context.Context, s services.Session, data json.RawMessage) error {
		req, err := events.Decode[T](data)
		if err != nil {
			engine.Reject(ctx, s, event, err)
			return err
		}
		return fn(ctx, s, req)
	}
}

func typing(engine Engine, event string, on bool) intentFunc {
	return route(engine, event, func(ctx context.Context, s services.Session, req *events.ChatRequest) error {
		engine.Typing(ctx, s, req, on)
		return nil
	})
}

// Dispatch runs the operation registered for env.Event.
func (r *Router) Dispatch(ctx context.Context, s services.Session, env events.Envelope) error {
	fn, ok := r.routes[env.Event]
	if !ok {
		r.logger.Warn("unknown message type", s.UserID, s.ConnID, zap.String("msg_type", env.Event))
		return errUnknownEvent
	}
	observability.IncWSInbound(env.Event)
	return fn(ctx, s, env.Data)
}

func (r *Router) Reject(ctx context.Context, s services.Session, event string, err error) {
	r.engine.Reject(ctx, s, event, err)
}
