package models

import "fmt"

// Change kinds carried by MessageEvent.
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
)

// MessageEvent is a row-change notification for the messages table,
// broadcast through the event broker after every store write.
type MessageEvent struct {
	Change  string  `json:"change"`
	Message Message `json:"message"`
}

// TypingEvent is an ephemeral keystroke broadcast. It is never persisted.
type TypingEvent struct {
	UserID int `json:"user_id"`
}

// PresenceEvent reports a change of a user's online flag.
type PresenceEvent struct {
	UserID int  `json:"user_id"`
	Online bool `json:"online"`
}

// Notification kinds.
const (
	NotifyMessage       = "message"
	NotifyFriendRequest = "friend_request"
)

// Notification is delivered to a user's feed in place of an OS notification.
type Notification struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
}

// PairKey builds the channel key for a user pair. Both participants sort the
// ids the same way, so they always land on the same topic.
func PairKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
