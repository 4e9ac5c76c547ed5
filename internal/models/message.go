package models

import "time"

// Message is a one-to-one chat message. DeletedAt is a soft-delete marker:
// once set the row is excluded from every read, it is never removed.
type Message struct {
	ID         int        `db:"id" json:"id"`
	SenderID   int        `db:"sender_id" json:"sender_id"`
	ReceiverID int        `db:"receiver_id" json:"receiver_id"`
	Content    string     `db:"content" json:"content"`
	Seen       bool       `db:"seen" json:"seen"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Deleted reports whether the soft-delete marker is set.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Involves reports whether a and b are exactly the participants.
func (m Message) Involves(a, b int) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// OtherParty returns the participant that is not userID.
func (m Message) OtherParty(userID int) int {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
