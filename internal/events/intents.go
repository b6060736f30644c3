package events

import (
	"encoding/json"
	"strings"

	relay_errors "relay-chat/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode unmarshals and validates the data of an inbound frame. Both failures are
// reported as validation errors.
func Decode[T any](data json.RawMessage) (*T, error) {
	var req T
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, relay_errors.Validation("malformed payload: %v", err)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, relay_errors.Validation("%s", describe(err))
	}
	return &req, nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

type CreateChatRequest struct {
	ParticipantIDs []string `json:"participantIds" validate:"dive,required,max=128"`
	Name           string   `json:"name" validate:"omitempty,max=100"`
}

type ChatRequest struct {
	ChatID uuid.UUID `json:"chatId" validate:"required"`
}

type SendMessageRequest struct {
	ChatID    uuid.UUID  `json:"chatId" validate:"required"`
	Content   string     `json:"content" validate:"required,max=4000"`
	ReplyToID *uuid.UUID `json:"replyToId"`
}

type UploadImageRequest struct {
	ChatID    uuid.UUID  `json:"chatId" validate:"required"`
	File      string     `json:"file" validate:"required"`
	ReplyToID *uuid.UUID `json:"replyToId"`
}

type ReactRequest struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
	Type      string    `json:"type" validate:"required,oneof=LIKE LOVE LAUGH WOW SAD ANGRY"`
}

type RemoveReactionRequest struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
}

type ChangeGroupNameRequest struct {
	ChatID uuid.UUID `json:"chatId" validate:"required"`
	Name   string    `json:"name" validate:"required,max=100"`
}

type ChangeGroupImageRequest struct {
	ChatID uuid.UUID `json:"chatId" validate:"required"`
	File   string    `json:"file" validate:"required"`
}

type AddMemberRequest struct {
	ChatID uuid.UUID `json:"chatId" validate:"required"`
	UserID string    `json:"userId" validate:"required,max=128"`
}
