package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"relay-chat/internal/observability"
	"relay-chat/internal/redis"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("relay-chat/websocket")

type TokenParser interface {
	ParseAccessToken(token string) (services.AccessClaims, error)
}

type ConnectionLimiter interface {
	AllowConnection(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

type Handler struct {
	auth     TokenParser
	engine   Engine
	hub      *Hub
	router   *Router
	limiter  ConnectionLimiter
	logger   *WebSocketLogger
	upgrader websocket.Upgrader
}

// NewHandler wires the upgrade endpoint. limiter may be nil.
func NewHandler(auth TokenParser, engine Engine, hub *Hub, limiter ConnectionLimiter, logger *WebSocketLogger) *Handler {
	if logger == nil {
		logger = NewWebSocketLogger(nil)
	}
	return &Handler{
		auth:    auth,
		engine:  engine,
		hub:     hub,
		router:  NewRouter(engine, logger),
		limiter: limiter,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect authenticates the handshake, registers the user and then serves the connection
// until it closes.
func (h *Handler) Connect(c *gin.Context) {
	_, span := tracer.Start(c.Request.Context(), "ws.handshake")

	claims, err := h.auth.ParseAccessToken(extractToken(c))
	if err != nil {
		span.SetStatus(codes.Error, "unauthorized")
		span.End()
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID := claims.UserID()
	span.SetAttributes(attribute.String("user.id", userID))

	// the connection outlives the request context
	ctx := services.WithUserContext(context.Background(), userID)

	if h.limiter != nil {
		res, err := h.limiter.AllowConnection(ctx, userID)
		if err != nil {
			h.logger.Warn("connection rate limit check failed", userID, "", zap.Error(err))
		} else if !res.Allowed {
			span.SetStatus(codes.Error, "rate limited")
			span.End()
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("too many connections", "RATE_LIMITED"))
			return
		}
	}

	connID := uuid.NewString()
	session, err := h.engine.Connect(ctx, userID, connID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		h.logger.Error("connect failed", userID, connID, err)
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), services.ErrorCode(err)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		h.logger.Error("upgrade failed", userID, connID, err)
		h.engine.Disconnect(ctx, session)
		return
	}
	span.End()

	client := NewClient(h.hub, conn, session, h.router, h.logger)
	h.hub.Register(client)
	observability.IncWSActive()
	h.logger.Info("client connected", userID, connID)

	go client.writePump()
	client.readPump(ctx)

	h.engine.Disconnect(ctx, session)
	h.hub.Unregister(client)
	observability.DecWSActive()
	h.logger.Info("client disconnected", userID, connID, zap.Duration("duration", time.Since(client.connectedAt)))
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
