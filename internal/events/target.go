package events

import "github.com/google/uuid"

type TargetKind int

const (
	// TargetRoom reaches every connection whose current room is the conversation.
	TargetRoom TargetKind = iota
	// TargetRoomExcept is TargetRoom minus one connection, usually the sender.
	TargetRoomExcept
	// TargetAll reaches every connected client.
	TargetAll
	// TargetConnection reaches a single connection.
	TargetConnection
)

// Target selects the connections an outbound event is pushed to.
type Target struct {
	Kind   TargetKind
	Room   uuid.UUID
	ConnID string
}

func Room(conversationID uuid.UUID) Target {
	return Target{Kind: TargetRoom, Room: conversationID}
}

func RoomExcept(conversationID uuid.UUID, connID string) Target {
	return Target{Kind: TargetRoomExcept, Room: conversationID, ConnID: connID}
}

func All() Target {
	return Target{Kind: TargetAll}
}

func Connection(connID string) Target {
	return Target{Kind: TargetConnection, ConnID: connID}
}

func (k TargetKind) String() string {
	switch k {
	case TargetRoom:
		return "room"
	case TargetRoomExcept:
		return "room_except"
	case TargetAll:
		return "all"
	case TargetConnection:
		return "connection"
	default:
		return "unknown"
	}
}
