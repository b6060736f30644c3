package httpdto

import (
	"relay-chat/internal/events"
	"relay-chat/internal/services"
)

type MessagePageResponse struct {
	Messages   []events.MessageView `json:"messages"`
	TotalCount int64                `json:"totalCount"`
	PageCount  int                  `json:"pageCount"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
}

func FromMessagePage(p services.MessagePage) MessagePageResponse {
	return MessagePageResponse{
		Messages:   events.NewMessageViews(p.Messages),
		TotalCount: p.TotalCount,
		PageCount:  p.PageCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
}
