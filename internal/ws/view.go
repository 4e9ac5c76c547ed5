package ws

import (
	"messenger-service/internal/models"
	"messenger-service/internal/session"
)

// Feed envelope operations.
const (
	OpHistory       = "history"
	OpUpsertMessage = "upsert_message"
	OpRemoveMessage = "remove_message"
	OpDelivered     = "delivered"
	OpPresence      = "presence"
	OpTyping        = "typing"
	OpUnseen        = "unseen"
	OpPromoteFriend = "promote_friend"
	OpRefresh       = "refresh_friends"
	OpError         = "error"
	OpNotification  = "notification"
)

// Envelope is one feed frame sent to the client.
type Envelope struct {
	Op           string               `json:"op"`
	FriendID     int                  `json:"friend_id,omitempty"`
	MessageID    int                  `json:"message_id,omitempty"`
	Count        int                  `json:"count,omitempty"`
	Online       *bool                `json:"online,omitempty"`
	Name         string               `json:"name,omitempty"`
	Action       string               `json:"action,omitempty"`
	Error        string               `json:"error,omitempty"`
	Message      *models.Message      `json:"message,omitempty"`
	Messages     []models.Message     `json:"messages,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// feedView implements session.View by forwarding every rendering operation
// to the user's connections as JSON envelopes.
type feedView struct {
	hub    *Hub
	userID int
}

var _ session.View = (*feedView)(nil)

func (v *feedView) RenderHistory(friendID int, msgs []models.Message) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpHistory, FriendID: friendID, Messages: msgs})
}

func (v *feedView) UpsertMessage(msg models.Message) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpUpsertMessage, Message: &msg})
}

func (v *feedView) RemoveMessage(messageID int) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpRemoveMessage, MessageID: messageID})
}

func (v *feedView) MarkDelivered(messageID int) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpDelivered, MessageID: messageID})
}

func (v *feedView) SetPresence(friendID int, online bool) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpPresence, FriendID: friendID, Online: &online})
}

func (v *feedView) SetTyping(friendID int, name string) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpTyping, FriendID: friendID, Name: name})
}

func (v *feedView) SetUnseen(friendID, count int) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpUnseen, FriendID: friendID, Count: count})
}

func (v *feedView) PromoteFriend(friendID int, preview models.Message) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpPromoteFriend, FriendID: friendID, Message: &preview})
}

func (v *feedView) RefreshFriendList() {
	v.hub.SendToUser(v.userID, Envelope{Op: OpRefresh})
}

func (v *feedView) ShowError(action string, message string) {
	v.hub.SendToUser(v.userID, Envelope{Op: OpError, Action: action, Error: message})
}
