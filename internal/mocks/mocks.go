package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) CreateAccount(ctx context.Context, email, passwordHash string) (models.Account, error) {
	args := m.Called(ctx, email, passwordHash)
	var acc models.Account
	if val := args.Get(0); val != nil {
		acc = val.(models.Account)
	}
	return acc, args.Error(1)
}

func (m *ProfileRepositoryMock) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	args := m.Called(ctx, email)
	var acc models.Account
	if val := args.Get(0); val != nil {
		acc = val.(models.Account)
	}
	return acc, args.Error(1)
}

func (m *ProfileRepositoryMock) CreateProfile(ctx context.Context, id int, displayName, username, bio string) (models.Profile, error) {
	args := m.Called(ctx, id, displayName, username, bio)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

func (m *ProfileRepositoryMock) GetProfile(ctx context.Context, id int) (models.Profile, error) {
	args := m.Called(ctx, id)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

func (m *ProfileRepositoryMock) GetProfileByUsername(ctx context.Context, username string) (models.Profile, error) {
	args := m.Called(ctx, username)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

func (m *ProfileRepositoryMock) BulkProfiles(ctx context.Context, ids []int) ([]models.Profile, error) {
	args := m.Called(ctx, ids)
	var list []models.Profile
	if val := args.Get(0); val != nil {
		list = val.([]models.Profile)
	}
	return list, args.Error(1)
}

func (m *ProfileRepositoryMock) UpdateProfile(ctx context.Context, id int, displayName, bio, avatarURL string) (models.Profile, error) {
	args := m.Called(ctx, id, displayName, bio, avatarURL)
	var p models.Profile
	if val := args.Get(0); val != nil {
		p = val.(models.Profile)
	}
	return p, args.Error(1)
}

func (m *ProfileRepositoryMock) SetOnline(ctx context.Context, id int, online bool) error {
	args := m.Called(ctx, id, online)
	return args.Error(0)
}

type RequestRepositoryMock struct {
	mock.Mock
}

func (m *RequestRepositoryMock) Create(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *RequestRepositoryMock) PendingForReceiver(ctx context.Context, receiverID int) ([]models.FriendRequest, error) {
	args := m.Called(ctx, receiverID)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

func (m *RequestRepositoryMock) FindBetween(ctx context.Context, a, b int) (models.FriendRequest, error) {
	args := m.Called(ctx, a, b)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *RequestRepositoryMock) SetStatus(ctx context.Context, requestID int, status string) error {
	args := m.Called(ctx, requestID, status)
	return args.Error(0)
}

func (m *RequestRepositoryMock) Get(ctx context.Context, requestID int) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

type FriendRepositoryMock struct {
	mock.Mock
}

func (m *FriendRepositoryMock) Create(ctx context.Context, userID, friendID int) (models.Friendship, error) {
	args := m.Called(ctx, userID, friendID)
	var f models.Friendship
	if val := args.Get(0); val != nil {
		f = val.(models.Friendship)
	}
	return f, args.Error(1)
}

func (m *FriendRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Friendship, error) {
	args := m.Called(ctx, userID)
	var list []models.Friendship
	if val := args.Get(0); val != nil {
		list = val.([]models.Friendship)
	}
	return list, args.Error(1)
}

func (m *FriendRepositoryMock) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	args := m.Called(ctx, userID, friendID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, senderID, receiverID int, content string) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) HistoryBetween(ctx context.Context, a, b int) ([]models.Message, error) {
	args := m.Called(ctx, a, b)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) LastBetween(ctx context.Context, a, b int) (*models.Message, error) {
	args := m.Called(ctx, a, b)
	var msg *models.Message
	if val := args.Get(0); val != nil {
		msg = val.(*models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UnseenCount(ctx context.Context, receiverID, senderID int) (int, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeenFrom(ctx context.Context, receiverID, senderID int) ([]models.Message, error) {
	args := m.Called(ctx, receiverID, senderID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteSeenBetween(ctx context.Context, a, b int) ([]models.Message, error) {
	args := m.Called(ctx, a, b)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}
