package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/events"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// Config tunes the controller timers. The zero value is unusable; use
// DefaultConfig or derive one from the service configuration.
type Config struct {
	// SeenRetention is how long a seen message survives before it is
	// soft-deleted.
	SeenRetention time.Duration
	// TypingDecay is how long the typing label stays up after the last
	// keystroke broadcast.
	TypingDecay time.Duration
	// DedupeWindow bounds how long a message id stays in the in-flight set.
	// The same logical event can be delivered through more than one active
	// subscription; a second delivery inside the window is dropped.
	DedupeWindow time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		SeenRetention: 30 * time.Second,
		TypingDecay:   1500 * time.Millisecond,
		DedupeWindow:  time.Second,
	}
}

// Deps are the collaborators a session talks to.
type Deps struct {
	Messages repositories.MessageRepository
	Profiles repositories.ProfileRepository
	Broker   *events.Broker
}

// Session is the controller for one open conversation. At most one exists
// per connected user; opening another conversation closes this one first.
//
// Event handlers run on goroutines, so the shared state is mutex-guarded.
// Handlers also re-check the closed flag after every store round-trip:
// the session can be torn down while a handler is waiting on the database.
type Session struct {
	userID     int
	friendID   int
	friendName string
	cfg        Config
	deps       Deps
	view       View

	mu         sync.Mutex
	closed     bool
	messages   []models.Message
	timers     map[int]*time.Timer
	processing map[int]time.Time
	typing     *time.Timer

	msgSub      *events.Subscription
	typingSub   *events.Subscription
	presenceSub *events.Subscription
	loopDone    chan struct{}
}

func newSession(userID, friendID int, cfg Config, deps Deps, view View) *Session {
	return &Session{
		userID:     userID,
		friendID:   friendID,
		cfg:        cfg,
		deps:       deps,
		view:       view,
		timers:     make(map[int]*time.Timer),
		processing: make(map[int]time.Time),
		loopDone:   make(chan struct{}),
	}
}

// FriendID returns the conversation partner.
func (s *Session) FriendID() int {
	return s.friendID
}

// open loads history, wires the three subscriptions, and marks the backlog
// seen. Called with the manager lock held, before any event can arrive.
func (s *Session) open(ctx context.Context) error {
	friend, err := s.deps.Profiles.GetProfile(ctx, s.friendID)
	if err != nil {
		return fmt.Errorf("load friend profile: %w", err)
	}
	s.friendName = friend.DisplayName
	if s.friendName == "" {
		s.friendName = friend.Username
	}

	history, err := s.deps.Messages.HistoryBetween(ctx, s.userID, s.friendID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	s.messages = history
	s.mu.Unlock()
	s.view.RenderHistory(s.friendID, history)
	s.view.SetPresence(s.friendID, friend.Online)

	pair := models.PairKey(s.userID, s.friendID)
	s.msgSub = s.deps.Broker.Subscribe(events.TopicMessages)
	s.typingSub = s.deps.Broker.Subscribe(events.TopicTyping(pair))
	s.presenceSub = s.deps.Broker.Subscribe(events.TopicPresence(s.friendID))
	go s.loop()

	// The backlog from this friend is seen the moment the chat opens. Each
	// marked message gets a retention timer and its seen flip is pushed so
	// the sender's glyphs update.
	marked, err := s.deps.Messages.MarkSeenFrom(ctx, s.userID, s.friendID)
	if err != nil {
		return fmt.Errorf("mark backlog seen: %w", err)
	}
	s.mu.Lock()
	for _, msg := range marked {
		s.mergeLocked(msg)
		s.armRetentionLocked(msg.ID)
	}
	s.mu.Unlock()
	for _, msg := range marked {
		s.deps.Broker.Publish(events.TopicMessages, models.MessageEvent{Change: models.ChangeUpdate, Message: msg})
	}
	s.view.SetUnseen(s.friendID, 0)
	return nil
}

// loop drains the three subscriptions until all are cancelled.
func (s *Session) loop() {
	defer close(s.loopDone)
	for s.msgSub.C != nil || s.typingSub.C != nil || s.presenceSub.C != nil {
		select {
		case ev, ok := <-s.msgSub.C:
			if !ok {
				s.msgSub.C = nil
				continue
			}
			if me, isMsg := ev.(models.MessageEvent); isMsg {
				s.handleMessageEvent(me)
			}
		case ev, ok := <-s.typingSub.C:
			if !ok {
				s.typingSub.C = nil
				continue
			}
			if te, isTyping := ev.(models.TypingEvent); isTyping {
				s.handleTyping(te)
			}
		case ev, ok := <-s.presenceSub.C:
			if !ok {
				s.presenceSub.C = nil
				continue
			}
			if pe, isPresence := ev.(models.PresenceEvent); isPresence {
				s.handlePresence(pe)
			}
		}
	}
}

// handleMessageEvent routes a row-change event for the messages table.
func (s *Session) handleMessageEvent(ev models.MessageEvent) {
	if !ev.Message.Involves(s.userID, s.friendID) {
		return
	}
	switch ev.Change {
	case models.ChangeInsert:
		s.handleInsert(ev.Message)
	case models.ChangeUpdate:
		s.handleUpdate(ev.Message)
	}
}

// handleInsert reconciles a new message into the in-memory list.
func (s *Session) handleInsert(msg models.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.admitLocked(msg.ID) {
		s.mu.Unlock()
		return
	}
	if msg.Deleted() {
		// A soft-delete update can outrun its own insert. Never render it.
		s.mu.Unlock()
		return
	}
	s.mergeLocked(msg)
	s.mu.Unlock()

	s.view.UpsertMessage(msg)
	s.view.PromoteFriend(s.friendID, msg)

	if msg.ReceiverID != s.userID {
		return
	}
	// The conversation is open, so the message is seen immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	seen, err := s.deps.Messages.MarkSeen(ctx, msg.ID)
	if err != nil {
		log.Error().Err(err).Int("message_id", msg.ID).Msg("mark seen failed")
		s.view.ShowError("mark seen", "could not mark message as seen")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mergeLocked(seen)
	s.armRetentionLocked(seen.ID)
	s.mu.Unlock()

	s.deps.Broker.Publish(events.TopicMessages, models.MessageEvent{Change: models.ChangeUpdate, Message: seen})
}

// handleUpdate reconciles a changed row. A set soft-delete marker wins over
// every other field.
func (s *Session) handleUpdate(msg models.Message) {
	if msg.Deleted() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.cancelRetentionLocked(msg.ID)
		s.removeLocked(msg.ID)
		s.mu.Unlock()

		s.view.RemoveMessage(msg.ID)
		s.view.RefreshFriendList()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mergeLocked(msg)
	s.mu.Unlock()

	if msg.Seen {
		if msg.SenderID == s.userID {
			s.view.MarkDelivered(msg.ID)
		} else if msg.ReceiverID == s.userID {
			s.view.SetUnseen(msg.SenderID, 0)
		}
	}
}

func (s *Session) handleTyping(ev models.TypingEvent) {
	if ev.UserID != s.friendID {
		return
	}

	s.view.SetTyping(s.friendID, s.friendName)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.typing != nil {
		s.typing.Stop()
	}
	s.typing = time.AfterFunc(s.cfg.TypingDecay, s.revertTypingLabel)
	s.mu.Unlock()
}

// revertTypingLabel re-queries the friend's presence once the typing label
// expires; the flag may have changed while the label was up.
func (s *Session) revertTypingLabel() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	friend, err := s.deps.Profiles.GetProfile(ctx, s.friendID)
	if err != nil {
		log.Warn().Err(err).Int("friend_id", s.friendID).Msg("presence re-query failed")
		return
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.view.SetPresence(s.friendID, friend.Online)
}

func (s *Session) handlePresence(ev models.PresenceEvent) {
	if ev.UserID != s.friendID {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.view.SetPresence(s.friendID, ev.Online)
}

// Send stores and broadcasts a message. On failure nothing is mutated, so
// the caller keeps its draft and may retry.
func (s *Session) Send(ctx context.Context, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, errors.New("empty message")
	}

	msg, err := s.deps.Messages.Create(ctx, s.userID, s.friendID, content)
	if err != nil {
		s.view.ShowError("send message", "could not send message")
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	observability.IncMessageSent()

	// Render locally right away; the broker echo of this publish lands in
	// the dedupe window and is dropped.
	s.handleInsert(msg)
	s.deps.Broker.Publish(events.TopicMessages, models.MessageEvent{Change: models.ChangeInsert, Message: msg})
	return msg, nil
}

// SendTyping broadcasts an ephemeral keystroke event to the pair channel.
func (s *Session) SendTyping() {
	pair := models.PairKey(s.userID, s.friendID)
	s.deps.Broker.Publish(events.TopicTyping(pair), models.TypingEvent{UserID: s.userID})
}

// close tears the session down: cancel every retention timer, soft-delete
// the conversation's seen messages, drop all three subscriptions. Safe to
// call once; callers hold the manager lock.
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	// Timers first: a timer firing mid-teardown must not double-apply the
	// deletion the batch below performs.
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
		observability.DecRetentionTimers()
	}
	if s.typing != nil {
		s.typing.Stop()
		s.typing = nil
	}
	s.mu.Unlock()

	deleted, err := s.deps.Messages.SoftDeleteSeenBetween(ctx, s.userID, s.friendID)
	if err != nil {
		log.Error().Err(err).Int("friend_id", s.friendID).Msg("teardown soft delete failed")
		s.view.ShowError("close chat", "could not clean up conversation")
	}
	for _, msg := range deleted {
		s.deps.Broker.Publish(events.TopicMessages, models.MessageEvent{Change: models.ChangeUpdate, Message: msg})
	}

	// A failed open tears down before the subscriptions exist. All three are
	// created together, so one check covers the loop as well.
	if s.msgSub != nil {
		s.msgSub.Cancel()
		s.typingSub.Cancel()
		s.presenceSub.Cancel()
		<-s.loopDone
	}

	s.view.RefreshFriendList()
}

// admitLocked implements the in-flight dedupe set: a message id seen within
// the window is dropped. Stale entries are pruned on the way.
func (s *Session) admitLocked(messageID int) bool {
	now := time.Now()
	for id, at := range s.processing {
		if now.Sub(at) > s.cfg.DedupeWindow {
			delete(s.processing, id)
		}
	}
	if at, ok := s.processing[messageID]; ok && now.Sub(at) <= s.cfg.DedupeWindow {
		return false
	}
	s.processing[messageID] = now
	return true
}

// mergeLocked upserts by id, keeping creation order. Replaying the same
// message never duplicates it.
func (s *Session) mergeLocked(msg models.Message) {
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			s.messages[i] = msg
			return
		}
	}
	s.messages = append(s.messages, msg)
}

func (s *Session) removeLocked(messageID int) {
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// armRetentionLocked schedules the soft delete of a seen message. Re-arming
// replaces the previous timer, it never stacks a second one.
func (s *Session) armRetentionLocked(messageID int) {
	if timer, ok := s.timers[messageID]; ok {
		timer.Stop()
		observability.DecRetentionTimers()
	}
	s.timers[messageID] = time.AfterFunc(s.cfg.SeenRetention, func() {
		s.expireMessage(messageID)
	})
	observability.IncRetentionTimers()
}

func (s *Session) cancelRetentionLocked(messageID int) {
	if timer, ok := s.timers[messageID]; ok {
		timer.Stop()
		delete(s.timers, messageID)
		observability.DecRetentionTimers()
	}
}

// expireMessage fires when a retention timer elapses.
func (s *Session) expireMessage(messageID int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.timers[messageID]; !ok {
		// Cancelled between firing and locking.
		s.mu.Unlock()
		return
	}
	delete(s.timers, messageID)
	observability.DecRetentionTimers()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := s.deps.Messages.SoftDelete(ctx, messageID)
	if err != nil {
		if !errors.Is(err, repositories.ErrMessageNotFound) {
			log.Error().Err(err).Int("message_id", messageID).Msg("retention delete failed")
		}
		return
	}
	s.deps.Broker.Publish(events.TopicMessages, models.MessageEvent{Change: models.ChangeUpdate, Message: msg})
}

// Messages returns a copy of the in-memory conversation, oldest first.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// PendingTimers reports the ids with an armed retention timer.
func (s *Session) PendingTimers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}
