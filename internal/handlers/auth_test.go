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

	"golang.org/x/crypto/bcrypt"

	"messenger-service/internal/auth"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func setupAuthRouter(profiles *mocks.ProfileRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := auth.NewService(profiles, "test-secret", time.Hour)
	handler := NewAuthHandler(svc, profiles, nil)

	r := gin.New()
	r.POST("/auth/signup", handler.SignUp)
	r.POST("/auth/login", handler.Login)
	r.GET("/auth/session", func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	}, handler.Session)
	return r
}

func TestSignUpCreatesAccount(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupAuthRouter(profiles)

	profiles.On("CreateAccount", mock.Anything, "bob@example.com", mock.AnythingOfType("string")).
		Return(models.Account{ID: 1, Email: "bob@example.com"}, nil).Once()

	body := bytes.NewBufferString(`{"email":"bob@example.com","password":"hunter22x"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	profiles.AssertExpectations(t)
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupAuthRouter(profiles)

	body := bytes.NewBufferString(`{"email":"bob@example.com","password":"short"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	profiles.AssertNotCalled(t, "CreateAccount")
}

func TestLoginReturnsToken(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupAuthRouter(profiles)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22x"), bcrypt.MinCost)
	require.NoError(t, err)
	profiles.On("GetAccountByEmail", mock.Anything, "bob@example.com").
		Return(models.Account{ID: 1, Email: "bob@example.com", PasswordHash: string(hash)}, nil).Once()

	body := bytes.NewBufferString(`{"email":"bob@example.com","password":"hunter22x"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["token"])
}

func TestLoginBadCredentials(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupAuthRouter(profiles)

	profiles.On("GetAccountByEmail", mock.Anything, "bob@example.com").
		Return(models.Account{}, repositories.ErrAccountNotFound).Once()

	body := bytes.NewBufferString(`{"email":"bob@example.com","password":"whatever"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRoutesToProfileSetupWithoutProfile(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupAuthRouter(profiles)

	profiles.On("GetProfile", mock.Anything, 1).
		Return(models.Profile{}, repositories.ErrProfileNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "profile-setup", resp["route"])
	assert.Nil(t, resp["profile"])
}

func TestSessionRoutesToDashboardWithProfile(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupAuthRouter(profiles)

	profiles.On("GetProfile", mock.Anything, 1).
		Return(models.Profile{ID: 1, Username: "bob"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "dashboard", resp["route"])
}
