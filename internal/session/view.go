package session

import "messenger-service/internal/models"

// View is the rendering sink a session drives. The websocket layer
// implements it by forwarding each operation to the connected client as a
// JSON envelope; tests implement it in memory. View methods must not block.
type View interface {
	// RenderHistory replaces the visible conversation.
	RenderHistory(friendID int, msgs []models.Message)
	// UpsertMessage inserts or replaces one message in the open conversation.
	UpsertMessage(msg models.Message)
	// RemoveMessage drops a soft-deleted message from the open conversation.
	RemoveMessage(messageID int)
	// MarkDelivered updates the seen glyph of a message the user sent.
	MarkDelivered(messageID int)
	// SetPresence updates the friend's online/offline label.
	SetPresence(friendID int, online bool)
	// SetTyping shows the "<name> is typing" label for the friend.
	SetTyping(friendID int, name string)
	// SetUnseen updates the unread badge for a friend.
	SetUnseen(friendID, count int)
	// PromoteFriend moves a friend's row to the top of the list with a new
	// preview message.
	PromoteFriend(friendID int, preview models.Message)
	// RefreshFriendList tells the client to re-fetch the friend list.
	RefreshFriendList()
	// ShowError surfaces a failed action without changing any state.
	ShowError(action string, message string)
}
