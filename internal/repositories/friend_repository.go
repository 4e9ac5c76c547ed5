package repositories

import (
	"context"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// FriendRepository abstracts friendship persistence.
type FriendRepository interface {
	Create(ctx context.Context, userID, friendID int) (models.Friendship, error)
	ListForUser(ctx context.Context, userID int) ([]models.Friendship, error)
	AreFriends(ctx context.Context, userID, friendID int) (bool, error)
}

// FriendRepo is a sqlx implementation of FriendRepository.
type FriendRepo struct {
	db *sqlx.DB
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(db *sqlx.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

// Create inserts a friendship with the pair stored in sorted order.
func (r *FriendRepo) Create(ctx context.Context, userID, friendID int) (models.Friendship, error) {
	if userID == friendID {
		return models.Friendship{}, errors.New("cannot befriend self")
	}
	pair := []int{userID, friendID}
	sort.Ints(pair)

	var f models.Friendship
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO friends (user1_id, user2_id) VALUES ($1, $2)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING id, user1_id, user2_id, created_at`,
		pair[0], pair[1]).StructScan(&f)
	return f, err
}

// ListForUser returns friendships in storage order; callers do not re-sort.
func (r *FriendRepo) ListForUser(ctx context.Context, userID int) ([]models.Friendship, error) {
	var friends []models.Friendship
	err := r.db.SelectContext(ctx, &friends,
		`SELECT id, user1_id, user2_id, created_at
         FROM friends WHERE user1_id=$1 OR user2_id=$1
         ORDER BY created_at DESC`, userID)
	return friends, err
}

// AreFriends checks for an existing friendship between two users.
func (r *FriendRepo) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	pair := []int{userID, friendID}
	sort.Ints(pair)
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM friends WHERE user1_id=$1 AND user2_id=$2)`,
		pair[0], pair[1])
	return exists, err
}
