package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/events"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
)

type managerFixture struct {
	manager  *Manager
	view     *fakeView
	notifier *fakeNotifier
	messages *mocks.MessageRepositoryMock
	profiles *mocks.ProfileRepositoryMock
	broker   *events.Broker
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	view := newFakeView()
	notifier := &fakeNotifier{}
	messages := new(mocks.MessageRepositoryMock)
	profiles := new(mocks.ProfileRepositoryMock)
	broker := events.NewBroker()

	m := NewManager(1, testConfig(), Deps{Messages: messages, Profiles: profiles, Broker: broker}, view, notifier)
	t.Cleanup(func() {
		messages.On("SoftDeleteSeenBetween", mock.Anything, mock.Anything, mock.Anything).
			Return(([]models.Message)(nil), nil).Maybe()
		m.Shutdown(context.Background())
	})

	return &managerFixture{manager: m, view: view, notifier: notifier, messages: messages, profiles: profiles, broker: broker}
}

// expectOpen arms the mocks the opening transition needs for a friend.
func (f *managerFixture) expectOpen(friendID int, name string) {
	f.profiles.On("GetProfile", mock.Anything, friendID).
		Return(models.Profile{ID: friendID, DisplayName: name, Online: true}, nil)
	f.messages.On("HistoryBetween", mock.Anything, 1, friendID).Return(([]models.Message)(nil), nil).Once()
	f.messages.On("MarkSeenFrom", mock.Anything, 1, friendID).Return(([]models.Message)(nil), nil).Once()
}

func TestClosedChatMessageBumpsBadgeAndNotifies(t *testing.T) {
	f := newManagerFixture(t)
	f.profiles.On("GetProfile", mock.Anything, 2).
		Return(models.Profile{ID: 2, DisplayName: "Bob", AvatarURL: "/storage/avatars/2.png"}, nil)

	f.broker.Publish(events.TopicMessages, models.MessageEvent{
		Change:  models.ChangeInsert,
		Message: message(10, 2, 1, "first"),
	})
	f.broker.Publish(events.TopicMessages, models.MessageEvent{
		Change:  models.ChangeInsert,
		Message: message(11, 2, 1, "second"),
	})

	assert.Eventually(t, func() bool {
		return f.manager.UnseenCount(2) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.view.unseenFor(2))

	notifications := f.notifier.notifications()
	require.Len(t, notifications, 2)
	assert.Equal(t, models.NotifyMessage, notifications[0].Kind)
	assert.Equal(t, "Bob", notifications[0].Title)
	assert.Equal(t, "first", notifications[0].Body)
}

func TestOpeningChatZeroesBadge(t *testing.T) {
	f := newManagerFixture(t)
	f.profiles.On("GetProfile", mock.Anything, 2).
		Return(models.Profile{ID: 2, DisplayName: "Bob"}, nil)

	f.broker.Publish(events.TopicMessages, models.MessageEvent{
		Change:  models.ChangeInsert,
		Message: message(10, 2, 1, "hi"),
	})
	require.Eventually(t, func() bool {
		return f.manager.UnseenCount(2) == 1
	}, time.Second, 5*time.Millisecond)

	f.messages.On("HistoryBetween", mock.Anything, 1, 2).Return(([]models.Message)(nil), nil).Once()
	f.messages.On("MarkSeenFrom", mock.Anything, 1, 2).Return(([]models.Message)(nil), nil).Once()
	require.NoError(t, f.manager.OpenChat(context.Background(), 2))

	assert.Equal(t, 0, f.manager.UnseenCount(2))
	assert.Equal(t, 0, f.view.unseenFor(2))
}

func TestOpenPairEventsSkipGlobalHandling(t *testing.T) {
	f := newManagerFixture(t)
	f.expectOpen(2, "Bob")
	require.NoError(t, f.manager.OpenChat(context.Background(), 2))

	f.messages.On("MarkSeen", mock.Anything, 20).Return(seenMessage(20, 2, 1, "direct"), nil).Once()
	f.broker.Publish(events.TopicMessages, models.MessageEvent{
		Change:  models.ChangeInsert,
		Message: message(20, 2, 1, "direct"),
	})

	// The open session renders it; the badge never moves and no
	// notification is raised.
	assert.Eventually(t, func() bool {
		return f.view.upsertCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.manager.UnseenCount(2))
	assert.Empty(t, f.notifier.notifications())
}

func TestSwitchingChatsTearsDownPrevious(t *testing.T) {
	f := newManagerFixture(t)
	f.expectOpen(2, "Bob")
	require.NoError(t, f.manager.OpenChat(context.Background(), 2))
	require.Equal(t, 1, f.broker.SubscriberCount(events.TopicTyping(models.PairKey(1, 2))))

	f.messages.On("SoftDeleteSeenBetween", mock.Anything, 1, 2).Return(([]models.Message)(nil), nil).Once()
	f.expectOpen(3, "Carol")
	require.NoError(t, f.manager.OpenChat(context.Background(), 3))

	assert.Equal(t, 0, f.broker.SubscriberCount(events.TopicTyping(models.PairKey(1, 2))))
	assert.Equal(t, 1, f.broker.SubscriberCount(events.TopicTyping(models.PairKey(1, 3))))
	assert.Equal(t, 3, f.manager.Open().FriendID())
	f.messages.AssertExpectations(t)
}

func TestReopeningSameChatIsNoop(t *testing.T) {
	f := newManagerFixture(t)
	f.expectOpen(2, "Bob")
	require.NoError(t, f.manager.OpenChat(context.Background(), 2))

	sess := f.manager.Open()
	require.NoError(t, f.manager.OpenChat(context.Background(), 2))
	assert.Same(t, sess, f.manager.Open())
}

func TestOpenChatUnknownFriendFailsCleanly(t *testing.T) {
	f := newManagerFixture(t)
	f.profiles.On("GetProfile", mock.Anything, 99).
		Return(models.Profile{}, assert.AnError).Once()
	f.messages.On("SoftDeleteSeenBetween", mock.Anything, 1, 99).
		Return(([]models.Message)(nil), nil).Once()

	require.Error(t, f.manager.OpenChat(context.Background(), 99))
	assert.Nil(t, f.manager.Open())
	assert.Equal(t, 0, f.broker.SubscriberCount(events.TopicTyping(models.PairKey(1, 99))))

	// The manager stays usable after the failed transition.
	f.expectOpen(2, "Bob")
	require.NoError(t, f.manager.OpenChat(context.Background(), 2))
	assert.Equal(t, 2, f.manager.Open().FriendID())
}

func TestOpenChatHistoryFailureFailsCleanly(t *testing.T) {
	f := newManagerFixture(t)
	f.profiles.On("GetProfile", mock.Anything, 3).
		Return(models.Profile{ID: 3, DisplayName: "Carol"}, nil)
	f.messages.On("HistoryBetween", mock.Anything, 1, 3).
		Return(([]models.Message)(nil), assert.AnError).Once()
	f.messages.On("SoftDeleteSeenBetween", mock.Anything, 1, 3).
		Return(([]models.Message)(nil), nil).Once()

	require.Error(t, f.manager.OpenChat(context.Background(), 3))
	assert.Nil(t, f.manager.Open())

	// A retry after the transient failure opens normally.
	f.messages.On("HistoryBetween", mock.Anything, 1, 3).Return(([]models.Message)(nil), nil).Once()
	f.messages.On("MarkSeenFrom", mock.Anything, 1, 3).Return(([]models.Message)(nil), nil).Once()
	require.NoError(t, f.manager.OpenChat(context.Background(), 3))
	assert.Equal(t, 3, f.manager.Open().FriendID())
}

func TestDeletionInClosedChatRecountsBadge(t *testing.T) {
	f := newManagerFixture(t)
	f.profiles.On("GetProfile", mock.Anything, 2).
		Return(models.Profile{ID: 2, DisplayName: "Bob"}, nil)

	f.broker.Publish(events.TopicMessages, models.MessageEvent{
		Change:  models.ChangeInsert,
		Message: message(30, 2, 1, "soon gone"),
	})
	require.Eventually(t, func() bool {
		return f.manager.UnseenCount(2) == 1
	}, time.Second, 5*time.Millisecond)

	f.messages.On("UnseenCount", mock.Anything, 1, 2).Return(0, nil).Once()
	f.broker.Publish(events.TopicMessages, models.MessageEvent{
		Change:  models.ChangeUpdate,
		Message: deletedMessage(30, 2, 1),
	})

	assert.Eventually(t, func() bool {
		return f.manager.UnseenCount(2) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.view.refreshCount() == 1
	}, time.Second, 5*time.Millisecond)
	f.messages.AssertExpectations(t)
}

func TestFriendRequestNotifiedOncePerLifetime(t *testing.T) {
	f := newManagerFixture(t)
	f.profiles.On("GetProfile", mock.Anything, 2).
		Return(models.Profile{ID: 2, DisplayName: "Bob"}, nil)

	req := models.FriendRequest{ID: 5, SenderID: 2, ReceiverID: 1, Status: models.RequestPending}
	f.broker.Publish(events.TopicRequests(1), req)
	f.broker.Publish(events.TopicRequests(1), req)

	assert.Eventually(t, func() bool {
		return len(f.notifier.notifications()) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	notifications := f.notifier.notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotifyFriendRequest, notifications[0].Kind)
	assert.Equal(t, "Bob sent you a friend request", notifications[0].Body)
}

func TestShutdownDropsSubscriptionsAndSession(t *testing.T) {
	view := newFakeView()
	notifier := &fakeNotifier{}
	messages := new(mocks.MessageRepositoryMock)
	profiles := new(mocks.ProfileRepositoryMock)
	broker := events.NewBroker()

	m := NewManager(1, testConfig(), Deps{Messages: messages, Profiles: profiles, Broker: broker}, view, notifier)

	profiles.On("GetProfile", mock.Anything, 2).Return(models.Profile{ID: 2, DisplayName: "Bob"}, nil)
	messages.On("HistoryBetween", mock.Anything, 1, 2).Return(([]models.Message)(nil), nil).Once()
	messages.On("MarkSeenFrom", mock.Anything, 1, 2).Return(([]models.Message)(nil), nil).Once()
	require.NoError(t, m.OpenChat(context.Background(), 2))

	messages.On("SoftDeleteSeenBetween", mock.Anything, 1, 2).Return(([]models.Message)(nil), nil).Once()
	m.Shutdown(context.Background())

	assert.Nil(t, m.Open())
	assert.Equal(t, 0, broker.SubscriberCount(events.TopicMessages))
	assert.Equal(t, 0, broker.SubscriberCount(events.TopicRequests(1)))
	assert.Error(t, m.OpenChat(context.Background(), 2))

	// A second shutdown is a no-op.
	m.Shutdown(context.Background())
	messages.AssertExpectations(t)
}
