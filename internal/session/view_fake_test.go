package session

import (
	"context"
	"sync"

	"messenger-service/internal/models"
)

// fakeView records every rendering operation so tests can assert on the
// sequence a session produced.
type fakeView struct {
	mu        sync.Mutex
	histories map[int][]models.Message
	upserts   []models.Message
	removed   []int
	delivered []int
	presence  map[int]bool
	typing    map[int]string
	unseen    map[int]int
	promoted  []int
	refreshes int
	errors    []string
}

func newFakeView() *fakeView {
	return &fakeView{
		histories: make(map[int][]models.Message),
		presence:  make(map[int]bool),
		typing:    make(map[int]string),
		unseen:    make(map[int]int),
	}
}

func (v *fakeView) RenderHistory(friendID int, msgs []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.histories[friendID] = append([]models.Message(nil), msgs...)
}

func (v *fakeView) UpsertMessage(msg models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upserts = append(v.upserts, msg)
}

func (v *fakeView) RemoveMessage(messageID int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removed = append(v.removed, messageID)
}

func (v *fakeView) MarkDelivered(messageID int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delivered = append(v.delivered, messageID)
}

func (v *fakeView) SetPresence(friendID int, online bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.presence[friendID] = online
}

func (v *fakeView) SetTyping(friendID int, name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typing[friendID] = name
}

func (v *fakeView) SetUnseen(friendID, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unseen[friendID] = count
}

func (v *fakeView) PromoteFriend(friendID int, _ models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.promoted = append(v.promoted, friendID)
}

func (v *fakeView) RefreshFriendList() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refreshes++
}

func (v *fakeView) ShowError(action string, _ string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, action)
}

func (v *fakeView) upsertCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.upserts)
}

func (v *fakeView) removedIDs() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.removed...)
}

func (v *fakeView) unseenFor(friendID int) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unseen[friendID]
}

func (v *fakeView) typingFor(friendID int) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.typing[friendID]
}

func (v *fakeView) presenceFor(friendID int) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	online, ok := v.presence[friendID]
	return online, ok
}

func (v *fakeView) errorActions() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.errors...)
}

func (v *fakeView) refreshCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refreshes
}

// fakeNotifier records raised notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []models.Notification
	users []int
}

func (n *fakeNotifier) Notify(_ context.Context, userID int, notification models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	n.sent = append(n.sent, notification)
}

func (n *fakeNotifier) notifications() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.sent...)
}
