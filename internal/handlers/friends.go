package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/events"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// User-facing texts for a send that hits an existing relationship. Clients
// show these verbatim.
const (
	msgAlreadySent     = "You have already sent a request."
	msgIncomingPending = "This user has already sent you a request."
	msgAlreadyFriends  = "You are already friends."
	msgRejected        = "Your request was previously rejected."
)

// FriendHandler serves the friend directory: the list itself, pending
// requests, and the accept/reject/send actions.
type FriendHandler struct {
	friends  repositories.FriendRepository
	requests repositories.RequestRepository
	profiles repositories.ProfileRepository
	messages repositories.MessageRepository
	broker   *events.Broker
	audit    *telemetry.AuditEmitter
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(
	friends repositories.FriendRepository,
	requests repositories.RequestRepository,
	profiles repositories.ProfileRepository,
	messages repositories.MessageRepository,
	broker *events.Broker,
	audit *telemetry.AuditEmitter,
) *FriendHandler {
	return &FriendHandler{
		friends:  friends,
		requests: requests,
		profiles: profiles,
		messages: messages,
		broker:   broker,
		audit:    audit,
	}
}

// List returns one entry per friend in storage order, each with the last
// visible message and the caller's unseen count.
func (h *FriendHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")
	ctx := c.Request.Context()

	friendships, err := h.friends.ListForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}

	friendIDs := make([]int, 0, len(friendships))
	for _, f := range friendships {
		friendIDs = append(friendIDs, f.FriendOf(userID))
	}
	profiles, err := h.profiles.BulkProfiles(ctx, friendIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friend profiles"})
		return
	}
	profileByID := make(map[int]models.Profile, len(profiles))
	for _, p := range profiles {
		profileByID[p.ID] = p
	}

	entries := make([]models.FriendEntry, 0, len(friendships))
	for _, f := range friendships {
		friendID := f.FriendOf(userID)
		profile, ok := profileByID[friendID]
		if !ok {
			continue
		}

		last, err := h.messages.LastBetween(ctx, userID, friendID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load previews"})
			return
		}
		unseen, err := h.messages.UnseenCount(ctx, userID, friendID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unseen"})
			return
		}
		entries = append(entries, models.FriendEntry{Friend: profile, LastMessage: last, UnseenCount: unseen})
	}

	c.JSON(http.StatusOK, gin.H{"friends": entries})
}

// ListRequests returns pending incoming requests with sender profiles.
func (h *FriendHandler) ListRequests(c *gin.Context) {
	userID := c.GetInt("userID")
	ctx := c.Request.Context()

	pending, err := h.requests.PendingForReceiver(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}

	senderIDs := make([]int, 0, len(pending))
	for _, req := range pending {
		senderIDs = append(senderIDs, req.SenderID)
	}
	profiles, err := h.profiles.BulkProfiles(ctx, senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	profileByID := make(map[int]models.Profile, len(profiles))
	for _, p := range profiles {
		profileByID[p.ID] = p
	}

	type requestResponse struct {
		models.FriendRequest
		Sender models.Profile `json:"sender"`
	}
	resp := make([]requestResponse, 0, len(pending))
	for _, req := range pending {
		resp = append(resp, requestResponse{FriendRequest: req, Sender: profileByID[req.SenderID]})
	}
	c.JSON(http.StatusOK, gin.H{"requests": resp})
}

// Send resolves a username and creates a pending request, unless an
// existing relationship maps to a specific refusal message.
func (h *FriendHandler) Send(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	ctx := c.Request.Context()

	receiver, err := h.profiles.GetProfileByUsername(ctx, req.Username)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "user not found"})
		return
	}
	if receiver.ID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot send a request to yourself"})
		return
	}

	friends, err := h.friends.AreFriends(ctx, userID, receiver.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check friendship"})
		return
	}
	if friends {
		c.JSON(http.StatusConflict, gin.H{"error": msgAlreadyFriends})
		return
	}

	existing, err := h.requests.FindBetween(ctx, userID, receiver.ID)
	if err != nil && !errors.Is(err, repositories.ErrRequestNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check requests"})
		return
	}
	if err == nil {
		switch existing.Status {
		case models.RequestPending:
			if existing.SenderID == userID {
				c.JSON(http.StatusConflict, gin.H{"error": msgAlreadySent})
			} else {
				c.JSON(http.StatusConflict, gin.H{"error": msgIncomingPending})
			}
			return
		case models.RequestAccepted:
			c.JSON(http.StatusConflict, gin.H{"error": msgAlreadyFriends})
			return
		case models.RequestRejected:
			c.JSON(http.StatusConflict, gin.H{"error": msgRejected})
			return
		}
	}

	created, err := h.requests.Create(ctx, userID, receiver.ID)
	if err != nil {
		// The store-level uniqueness index closes the race between the
		// existence check above and this insert.
		if errors.Is(err, repositories.ErrDuplicateRequest) {
			c.JSON(http.StatusConflict, gin.H{"error": msgAlreadySent})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send request"})
		return
	}

	h.broker.Publish(events.TopicRequests(receiver.ID), created)
	h.audit.Emit(ctx, "INFO", "friend request sent", requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusCreated, created)
}

// Accept resolves a pending request and creates the friendship. The
// response carries the friend id so the client can open the chat right away.
func (h *FriendHandler) Accept(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	userID := c.GetInt("userID")
	ctx := c.Request.Context()

	req, err := h.requests.Get(ctx, requestID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRequestNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "request not found"})
		return
	}
	if req.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your request"})
		return
	}
	if req.Status != models.RequestPending {
		c.JSON(http.StatusConflict, gin.H{"error": "request already resolved"})
		return
	}

	if err := h.requests.SetStatus(ctx, requestID, models.RequestAccepted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not accept request"})
		return
	}
	if _, err := h.friends.Create(ctx, userID, req.SenderID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create friendship"})
		return
	}

	h.audit.Emit(ctx, "INFO", "friend request accepted", requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"friend_id": req.SenderID, "chat": req.SenderID})
}

// Reject marks a pending request rejected.
func (h *FriendHandler) Reject(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	userID := c.GetInt("userID")
	ctx := c.Request.Context()

	req, err := h.requests.Get(ctx, requestID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRequestNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "request not found"})
		return
	}
	if req.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your request"})
		return
	}

	if err := h.requests.SetStatus(ctx, requestID, models.RequestRejected); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reject request"})
		return
	}
	c.Status(http.StatusNoContent)
}
