package models

import "time"

// Friend request lifecycle states. Requests are never deleted; rejected ones
// stay around so a repeat send can be answered with a specific message.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// FriendRequest links a sender to a receiver until the receiver resolves it.
type FriendRequest struct {
	ID         int       `db:"id" json:"id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	ReceiverID int       `db:"receiver_id" json:"receiver_id"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Friendship is an unordered user pair, stored with user1_id < user2_id.
// There is no deletion path.
type Friendship struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FriendOf returns the other participant of the friendship.
func (f Friendship) FriendOf(userID int) int {
	if f.User1ID == userID {
		return f.User2ID
	}
	return f.User1ID
}

// FriendEntry is the API view of one row in the friend list: the friend's
// profile plus the last visible message and the caller's unseen count.
type FriendEntry struct {
	Friend      Profile  `json:"friend"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnseenCount int      `json:"unseen_count"`
}
