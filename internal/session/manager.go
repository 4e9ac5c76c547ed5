package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/events"
	"messenger-service/internal/models"
)

// Notifier raises notifications for a user; suppression by permission is the
// notifier's business.
type Notifier interface {
	Notify(ctx context.Context, userID int, n models.Notification)
}

// Manager owns the chat lifecycle of one connected user: at most one open
// Session plus the page-wide subscriptions that update unread badges and
// raise notifications while no specific chat is open. An event belonging to
// the open conversation is routed to the session only, never handled twice.
type Manager struct {
	userID   int
	cfg      Config
	deps     Deps
	view     View
	notifier Notifier

	mu               sync.Mutex
	open             *Session
	unseen           map[int]int
	requestsNotified map[int]bool
	shut             bool

	msgSub *events.Subscription
	reqSub *events.Subscription
	done   chan struct{}
}

// NewManager wires the global subscriptions and starts the routing loop.
func NewManager(userID int, cfg Config, deps Deps, view View, notifier Notifier) *Manager {
	m := &Manager{
		userID:           userID,
		cfg:              cfg,
		deps:             deps,
		view:             view,
		notifier:         notifier,
		unseen:           make(map[int]int),
		requestsNotified: make(map[int]bool),
		msgSub:           deps.Broker.Subscribe(events.TopicMessages),
		reqSub:           deps.Broker.Subscribe(events.TopicRequests(userID)),
		done:             make(chan struct{}),
	}
	go m.loop()
	return m
}

// OpenChat transitions to the given conversation, closing any currently
// open one first.
func (m *Manager) OpenChat(ctx context.Context, friendID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shut {
		return fmt.Errorf("session manager is shut down")
	}
	if m.open != nil {
		if m.open.FriendID() == friendID {
			return nil
		}
		m.open.close(ctx)
		m.open = nil
	}

	sess := newSession(m.userID, friendID, m.cfg, m.deps, m.view)
	if err := sess.open(ctx); err != nil {
		sess.close(ctx)
		return err
	}
	m.open = sess
	m.unseen[friendID] = 0
	return nil
}

// CloseChat runs the closing transition of the open conversation, if any.
func (m *Manager) CloseChat(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open == nil {
		return
	}
	m.open.close(ctx)
	m.open = nil
}

// Open returns the current session, or nil.
func (m *Manager) Open() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// UnseenCount reports the tracked badge count for a friend.
func (m *Manager) UnseenCount(friendID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unseen[friendID]
}

// Shutdown closes the open session and the global subscriptions. Called on
// websocket disconnect.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.shut {
		m.mu.Unlock()
		return
	}
	m.shut = true
	if m.open != nil {
		m.open.close(ctx)
		m.open = nil
	}
	m.mu.Unlock()

	m.msgSub.Cancel()
	m.reqSub.Cancel()
	<-m.done
}

func (m *Manager) loop() {
	defer close(m.done)
	for m.msgSub.C != nil || m.reqSub.C != nil {
		select {
		case ev, ok := <-m.msgSub.C:
			if !ok {
				m.msgSub.C = nil
				continue
			}
			if me, isMsg := ev.(models.MessageEvent); isMsg {
				m.handleMessageEvent(me)
			}
		case ev, ok := <-m.reqSub.C:
			if !ok {
				m.reqSub.C = nil
				continue
			}
			if req, isReq := ev.(models.FriendRequest); isReq {
				m.handleRequest(req)
			}
		}
	}
}

// handleMessageEvent is the global leg of the change feed: only events NOT
// belonging to the open conversation are handled here.
func (m *Manager) handleMessageEvent(ev models.MessageEvent) {
	msg := ev.Message
	if msg.SenderID != m.userID && msg.ReceiverID != m.userID {
		return
	}

	m.mu.Lock()
	if m.shut {
		m.mu.Unlock()
		return
	}
	if m.open != nil && msg.Involves(m.userID, m.open.FriendID()) {
		// The session's own subscription handles this one.
		m.mu.Unlock()
		return
	}

	switch ev.Change {
	case models.ChangeInsert:
		if msg.ReceiverID != m.userID || msg.Deleted() {
			m.mu.Unlock()
			return
		}
		m.unseen[msg.SenderID]++
		count := m.unseen[msg.SenderID]
		m.mu.Unlock()

		m.view.SetUnseen(msg.SenderID, count)
		m.view.PromoteFriend(msg.SenderID, msg)
		m.notifyMessage(msg)

	case models.ChangeUpdate:
		if !msg.Deleted() {
			m.mu.Unlock()
			return
		}
		sender := msg.OtherParty(m.userID)
		m.mu.Unlock()

		// A message vanished from a closed conversation: re-count the badge
		// from the store and refresh the preview.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		count, err := m.deps.Messages.UnseenCount(ctx, m.userID, sender)
		if err != nil {
			log.Warn().Err(err).Int("sender_id", sender).Msg("unseen recount failed")
		} else {
			m.setUnseen(sender, count)
			m.view.SetUnseen(sender, count)
		}
		m.view.RefreshFriendList()

	default:
		m.mu.Unlock()
	}
}

func (m *Manager) notifyMessage(msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	title := "New message"
	icon := ""
	if sender, err := m.deps.Profiles.GetProfile(ctx, msg.SenderID); err == nil {
		name := sender.DisplayName
		if name == "" {
			name = sender.Username
		}
		title = name
		icon = sender.AvatarURL
	}

	m.notifier.Notify(ctx, m.userID, models.Notification{
		Kind:  models.NotifyMessage,
		Title: title,
		Body:  msg.Content,
		Icon:  icon,
	})
}

// handleRequest raises a notification for an incoming friend request, once
// per request per connection lifetime.
func (m *Manager) handleRequest(req models.FriendRequest) {
	if req.ReceiverID != m.userID || req.Status != models.RequestPending {
		return
	}

	m.mu.Lock()
	if m.shut || m.requestsNotified[req.ID] {
		m.mu.Unlock()
		return
	}
	m.requestsNotified[req.ID] = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body := "You have a new friend request"
	icon := ""
	if sender, err := m.deps.Profiles.GetProfile(ctx, req.SenderID); err == nil {
		name := sender.DisplayName
		if name == "" {
			name = sender.Username
		}
		body = name + " sent you a friend request"
		icon = sender.AvatarURL
	}

	m.notifier.Notify(ctx, m.userID, models.Notification{
		Kind:  models.NotifyFriendRequest,
		Title: "Friend request",
		Body:  body,
		Icon:  icon,
	})
	m.view.RefreshFriendList()
}

func (m *Manager) setUnseen(friendID, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unseen[friendID] = count
}
