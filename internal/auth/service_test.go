package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func TestLoginIssuesValidToken(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	svc := NewService(profiles, "test-secret", time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	profiles.On("GetAccountByEmail", mock.Anything, "bob@example.com").
		Return(models.Account{ID: 7, Email: "bob@example.com", PasswordHash: string(hash)}, nil).Once()

	token, acc, err := svc.Login(context.Background(), "bob@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, 7, acc.ID)

	userID, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 7, userID)
	profiles.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	svc := NewService(profiles, "test-secret", time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)
	profiles.On("GetAccountByEmail", mock.Anything, "bob@example.com").
		Return(models.Account{ID: 7, PasswordHash: string(hash)}, nil).Once()

	_, _, err = svc.Login(context.Background(), "bob@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownAccount(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	svc := NewService(profiles, "test-secret", time.Hour)

	profiles.On("GetAccountByEmail", mock.Anything, "nobody@example.com").
		Return(models.Account{}, repositories.ErrAccountNotFound).Once()

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	issuer := NewService(profiles, "secret-a", time.Hour)
	verifier := NewService(profiles, "secret-b", time.Hour)

	token, err := issuer.issueToken(7)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	svc := NewService(profiles, "test-secret", -time.Minute)

	token, err := svc.issueToken(7)
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterHashesPassword(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	svc := NewService(profiles, "test-secret", time.Hour)

	profiles.On("CreateAccount", mock.Anything, "bob@example.com", mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")) == nil
	})).Return(models.Account{ID: 1, Email: "bob@example.com"}, nil).Once()

	acc, err := svc.Register(context.Background(), "bob@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, 1, acc.ID)
	profiles.AssertExpectations(t)
}
