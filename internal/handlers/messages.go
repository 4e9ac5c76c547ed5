package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/events"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// MessageHandler serves conversation history and the REST send path. Open
// sessions receive the resulting events through the broker like any other
// subscriber.
type MessageHandler struct {
	messages repositories.MessageRepository
	friends  repositories.FriendRepository
	broker   *events.Broker
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, friends repositories.FriendRepository, broker *events.Broker) *MessageHandler {
	return &MessageHandler{messages: messages, friends: friends, broker: broker}
}

// History returns the visible conversation with a friend, oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	friendID, err := strconv.Atoi(c.Param("friend_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}
	userID := c.GetInt("userID")

	friends, err := h.friends.AreFriends(c.Request.Context(), userID, friendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify friendship"})
		return
	}
	if !friends {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are not friends"})
		return
	}

	msgs, err := h.messages.HistoryBetween(c.Request.Context(), userID, friendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send stores a message and broadcasts the insert event.
func (h *MessageHandler) Send(c *gin.Context) {
	friendID, err := strconv.Atoi(c.Param("friend_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	friends, err := h.friends.AreFriends(c.Request.Context(), userID, friendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify friendship"})
		return
	}
	if !friends {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are not friends"})
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), userID, friendID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageSent()
	h.broker.Publish(events.TopicMessages, models.MessageEvent{Change: models.ChangeInsert, Message: msg})
	c.JSON(http.StatusCreated, msg)
}
