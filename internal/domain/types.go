package domain

type ConversationType string

const (
	ConversationTypePrivate ConversationType = "PRIVATE"
	ConversationTypeGroup   ConversationType = "GROUP"
)

type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeSystem MessageType = "SYSTEM"
)

type ReactionType string

const (
	ReactionLike  ReactionType = "LIKE"
	ReactionLove  ReactionType = "LOVE"
	ReactionLaugh ReactionType = "LAUGH"
	ReactionWow   ReactionType = "WOW"
	ReactionSad   ReactionType = "SAD"
	ReactionAngry ReactionType = "ANGRY"
)

// ReactionTypes lists every accepted reaction kind, in display order.
var ReactionTypes = []ReactionType{
	ReactionLike,
	ReactionLove,
	ReactionLaugh,
	ReactionWow,
	ReactionSad,
	ReactionAngry,
}

func (r ReactionType) Valid() bool {
	for _, t := range ReactionTypes {
		if t == r {
			return true
		}
	}
	return false
}

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "PENDING"
	FriendRequestAccepted FriendRequestStatus = "ACCEPTED"
	FriendRequestRejected FriendRequestStatus = "REJECTED"
)
