package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrRequestNotFound = errors.New("friend request not found")
	// ErrDuplicateRequest is surfaced when the store-level uniqueness index
	// rejects a second live request for the same pair.
	ErrDuplicateRequest = errors.New("live request already exists for pair")
)

// RequestRepository abstracts friend-request persistence.
type RequestRepository interface {
	Create(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error)
	PendingForReceiver(ctx context.Context, receiverID int) ([]models.FriendRequest, error)
	FindBetween(ctx context.Context, a, b int) (models.FriendRequest, error)
	SetStatus(ctx context.Context, requestID int, status string) error
	Get(ctx context.Context, requestID int) (models.FriendRequest, error)
}

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// Create inserts a pending request. The partial unique index on live
// requests turns a race between two concurrent sends into ErrDuplicateRequest.
func (r *RequestRepo) Create(ctx context.Context, senderID, receiverID int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO requests (sender_id, receiver_id) VALUES ($1, $2)
         RETURNING id, sender_id, receiver_id, status, created_at`,
		senderID, receiverID).StructScan(&req)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.FriendRequest{}, ErrDuplicateRequest
	}
	return req, err
}

// PendingForReceiver lists incoming requests awaiting a decision.
func (r *RequestRepo) PendingForReceiver(ctx context.Context, receiverID int) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.SelectContext(ctx, &reqs,
		`SELECT id, sender_id, receiver_id, status, created_at
         FROM requests WHERE receiver_id=$1 AND status='pending'
         ORDER BY created_at DESC`, receiverID)
	return reqs, err
}

// FindBetween returns the most relevant request between two users in either
// direction, preferring a live one over a rejected one.
func (r *RequestRepo) FindBetween(ctx context.Context, a, b int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT id, sender_id, receiver_id, status, created_at
         FROM requests
         WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
         ORDER BY (status='rejected') ASC, created_at DESC
         LIMIT 1`, a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	return req, err
}

// SetStatus resolves a request.
func (r *RequestRepo) SetStatus(ctx context.Context, requestID int, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE requests SET status=$2 WHERE id=$1`, requestID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// Get fetches a single request.
func (r *RequestRepo) Get(ctx context.Context, requestID int) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT id, sender_id, receiver_id, status, created_at FROM requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	return req, err
}
