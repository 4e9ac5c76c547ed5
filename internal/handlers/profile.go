package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
)

const avatarBucket = "avatars"

// ProfileHandler serves profile viewing and editing.
type ProfileHandler struct {
	profiles repositories.ProfileRepository
	store    storage.ObjectStore
}

// NewProfileHandler builds a ProfileHandler.
func NewProfileHandler(profiles repositories.ProfileRepository, store storage.ObjectStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, store: store}
}

// Setup creates the profile row after sign-up.
func (h *ProfileHandler) Setup(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
		Username    string `json:"username" binding:"required,alphanum,min=3"`
		Bio         string `json:"bio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	profile, err := h.profiles.CreateProfile(c.Request.Context(), userID, req.DisplayName, req.Username, req.Bio)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username is taken"})
		return
	}
	c.JSON(http.StatusCreated, profile)
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := c.GetInt("userID")
	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Update edits display name and bio.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
		Bio         string `json:"bio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	profile, err := h.profiles.UpdateProfile(c.Request.Context(), userID, req.DisplayName, req.Bio, "")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UploadAvatar stores the uploaded image and persists its public URL.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID := c.GetInt("userID")

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing avatar file"})
		return
	}
	defer file.Close()

	name := fmt.Sprintf("%d%s", userID, filepath.Ext(header.Filename))
	url, err := h.store.Upload(c.Request.Context(), avatarBucket, name, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store avatar"})
		return
	}

	current, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}
	profile, err := h.profiles.UpdateProfile(c.Request.Context(), userID, current.DisplayName, current.Bio, url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save avatar"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
