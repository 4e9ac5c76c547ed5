package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, sender_id, receiver_id, content, seen, deleted_at, created_at`

// MessageRepository defines interactions for chat messages. Every read
// excludes soft-deleted rows.
type MessageRepository interface {
	Create(ctx context.Context, senderID, receiverID int, content string) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	HistoryBetween(ctx context.Context, a, b int) ([]models.Message, error)
	LastBetween(ctx context.Context, a, b int) (*models.Message, error)
	UnseenCount(ctx context.Context, receiverID, senderID int) (int, error)
	MarkSeen(ctx context.Context, messageID int) (models.Message, error)
	MarkSeenFrom(ctx context.Context, receiverID, senderID int) ([]models.Message, error)
	SoftDelete(ctx context.Context, messageID int) (models.Message, error)
	SoftDeleteSeenBetween(ctx context.Context, a, b int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a new message.
func (r *MessageRepo) Create(ctx context.Context, senderID, receiverID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content) VALUES ($1, $2, $3)
         RETURNING `+messageColumns,
		senderID, receiverID, content).StructScan(&msg)
	return msg, err
}

// Get retrieves a single message, deleted or not.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// HistoryBetween returns the visible conversation ordered oldest first.
func (r *MessageRepo) HistoryBetween(ctx context.Context, a, b int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
         AND deleted_at IS NULL
         ORDER BY created_at ASC`, a, b)
	return msgs, err
}

// LastBetween returns the newest visible message of the pair, or nil.
func (r *MessageRepo) LastBetween(ctx context.Context, a, b int) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages
         WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
         AND deleted_at IS NULL
         ORDER BY created_at DESC LIMIT 1`, a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnseenCount counts visible unseen messages from one sender to a receiver.
func (r *MessageRepo) UnseenCount(ctx context.Context, receiverID, senderID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages
         WHERE receiver_id=$1 AND sender_id=$2 AND seen=FALSE AND deleted_at IS NULL`,
		receiverID, senderID)
	return count, err
}

// MarkSeen flips the seen flag of a single message.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET seen=TRUE WHERE id=$1 RETURNING `+messageColumns,
		messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkSeenFrom batch-marks every visible unseen message from a sender and
// returns the affected rows so callers can arm retention timers.
func (r *MessageRepo) MarkSeenFrom(ctx context.Context, receiverID, senderID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`UPDATE messages SET seen=TRUE
         WHERE receiver_id=$1 AND sender_id=$2 AND seen=FALSE AND deleted_at IS NULL
         RETURNING `+messageColumns, receiverID, senderID)
	return msgs, err
}

// SoftDelete sets the deletion marker on one message.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL
         RETURNING `+messageColumns, messageID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteSeenBetween batch-deletes every seen message of the pair and
// returns the affected rows.
func (r *MessageRepo) SoftDeleteSeenBetween(ctx context.Context, a, b int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`UPDATE messages SET deleted_at=NOW()
         WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
         AND seen=TRUE AND deleted_at IS NULL
         RETURNING `+messageColumns, a, b)
	return msgs, err
}
