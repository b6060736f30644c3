package httpdto

type UpdateConversationSettingsRequest struct {
	BackgroundImage string `json:"backgroundImage" binding:"required"`
}
