package events

// Inbound websocket intents
const (
	EventCreateChat       = "create_chat"
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventRefresh          = "refresh"
	EventSendMessage      = "send_message"
	EventUploadImage      = "upload_image"
	EventReactMessage     = "react_message"
	EventRemoveReaction   = "remove_reaction"
	EventTyping           = "typing"
	EventStopTyping       = "stop_typing"
	EventChangeGroupName  = "change_group_name"
	EventChangeGroupImage = "change_group_image"
	EventAddMember        = "add_member"
	EventPing             = "ping"
)

// Outbound websocket events
const (
	EventHistoryMessages     = "history_messages"
	EventActivityUser        = "activity_user"
	EventReceiveMessage      = "receive_message"
	EventMarkAsRead          = "mark_as_read"
	EventRefreshConversation = "refresh_conversation"
	EventChatCreated         = "chat_created"
	EventAddConversation     = "add_conversation"
	EventReceiveReaction     = "receive_reaction"
	EventDeleteReaction      = "delete_reaction"
	EventUserTyping          = "user_typing"
	EventUserStopTyping      = "user_stop_typing"
	EventUserTypingConv      = "user_typing_conv"
	EventUserStopTypingConv  = "user_stop_typing_conv"
	EventRefreshHeader       = "refresh_header"
	EventPong                = "pong"
	EventError               = "error"
)

// Audit event types, published as domain.action
const (
	EventTypeMessageCreated      = "message.created"
	EventTypeReactionAdded       = "reaction.added"
	EventTypeReactionRemoved     = "reaction.removed"
	EventTypeConversationCreated = "conversation.created"
	EventTypeConversationUpdated = "conversation.updated"
	EventTypeParticipantAdded    = "participant.added"
	EventTypePresenceOnline      = "presence.online"
	EventTypePresenceOffline     = "presence.offline"
)

const (
	AggregateTypeMessage      = "message"
	AggregateTypeReaction     = "reaction"
	AggregateTypeConversation = "conversation"
	AggregateTypeParticipant  = "participant"
	AggregateTypePresence     = "presence"
)
