package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/events"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
)

func setupMessageRouter() (*gin.Engine, *mocks.MessageRepositoryMock, *mocks.FriendRepositoryMock, *events.Broker) {
	gin.SetMode(gin.TestMode)
	messages := new(mocks.MessageRepositoryMock)
	friends := new(mocks.FriendRepositoryMock)
	broker := events.NewBroker()
	handler := NewMessageHandler(messages, friends, broker)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/messages/:friend_id", handler.History)
	r.POST("/messages/:friend_id", handler.Send)
	return r, messages, friends, broker
}

func TestHistoryReturnsMessages(t *testing.T) {
	router, messages, friends, _ := setupMessageRouter()

	friends.On("AreFriends", mock.Anything, 1, 2).Return(true, nil).Once()
	messages.On("HistoryBetween", mock.Anything, 1, 2).
		Return([]models.Message{{ID: 1, SenderID: 2, ReceiverID: 1, Content: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hi", resp.Messages[0].Content)
}

func TestHistoryForbiddenForNonFriends(t *testing.T) {
	router, messages, friends, _ := setupMessageRouter()

	friends.On("AreFriends", mock.Anything, 1, 2).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "HistoryBetween")
}

func TestSendStoresAndPublishesInsert(t *testing.T) {
	router, messages, friends, broker := setupMessageRouter()

	sub := broker.Subscribe(events.TopicMessages)
	defer sub.Cancel()

	friends.On("AreFriends", mock.Anything, 1, 2).Return(true, nil).Once()
	stored := models.Message{ID: 5, SenderID: 1, ReceiverID: 2, Content: "hello"}
	messages.On("Create", mock.Anything, 1, 2, "hello").Return(stored, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	select {
	case ev := <-sub.C:
		me, ok := ev.(models.MessageEvent)
		require.True(t, ok)
		assert.Equal(t, models.ChangeInsert, me.Change)
		assert.Equal(t, 5, me.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("no insert event published")
	}
	messages.AssertExpectations(t)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	router, messages, _, _ := setupMessageRouter()

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messages.AssertNotCalled(t, "Create")
}

func TestSendInvalidFriendID(t *testing.T) {
	router, _, _, _ := setupMessageRouter()

	body := bytes.NewBufferString(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/abc", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
