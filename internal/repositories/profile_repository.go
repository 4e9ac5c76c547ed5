package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository abstracts account and profile persistence.
type ProfileRepository interface {
	CreateAccount(ctx context.Context, email, passwordHash string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	CreateProfile(ctx context.Context, id int, displayName, username, bio string) (models.Profile, error)
	GetProfile(ctx context.Context, id int) (models.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (models.Profile, error)
	BulkProfiles(ctx context.Context, ids []int) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, id int, displayName, bio, avatarURL string) (models.Profile, error)
	SetOnline(ctx context.Context, id int, online bool) error
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// CreateAccount inserts a sign-up identity.
func (r *ProfileRepo) CreateAccount(ctx context.Context, email, passwordHash string) (models.Account, error) {
	var acc models.Account
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO accounts (email, password_hash) VALUES ($1, $2)
         RETURNING id, email, password_hash, created_at`,
		email, passwordHash).StructScan(&acc)
	return acc, err
}

// GetAccountByEmail looks up an account for login.
func (r *ProfileRepo) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	var acc models.Account
	err := r.db.GetContext(ctx, &acc,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	return acc, err
}

// CreateProfile completes profile setup for an account.
func (r *ProfileRepo) CreateProfile(ctx context.Context, id int, displayName, username, bio string) (models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO profiles (id, display_name, username, bio) VALUES ($1, $2, $3, $4)
         RETURNING id, display_name, username, bio, avatar_url, online, created_at, updated_at`,
		id, displayName, username, bio).StructScan(&p)
	return p, err
}

// GetProfile fetches a profile by account id.
func (r *ProfileRepo) GetProfile(ctx context.Context, id int) (models.Profile, error) {
	var p models.Profile
	err := r.db.GetContext(ctx, &p,
		`SELECT id, display_name, username, bio, avatar_url, online, created_at, updated_at
         FROM profiles WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

// GetProfileByUsername resolves a username to a profile.
func (r *ProfileRepo) GetProfileByUsername(ctx context.Context, username string) (models.Profile, error) {
	var p models.Profile
	err := r.db.GetContext(ctx, &p,
		`SELECT id, display_name, username, bio, avatar_url, online, created_at, updated_at
         FROM profiles WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

// BulkProfiles fetches multiple profiles in one query.
func (r *ProfileRepo) BulkProfiles(ctx context.Context, ids []int) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, display_name, username, bio, avatar_url, online, created_at, updated_at
         FROM profiles WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var profiles []models.Profile
	err = r.db.SelectContext(ctx, &profiles, r.db.Rebind(query), args...)
	return profiles, err
}

// UpdateProfile edits the mutable profile fields. An empty avatarURL keeps
// the stored one.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, id int, displayName, bio, avatarURL string) (models.Profile, error) {
	var p models.Profile
	err := r.db.QueryRowxContext(ctx,
		`UPDATE profiles
         SET display_name=$2, bio=$3,
             avatar_url=CASE WHEN $4='' THEN avatar_url ELSE $4 END,
             updated_at=NOW()
         WHERE id=$1
         RETURNING id, display_name, username, bio, avatar_url, online, created_at, updated_at`,
		id, displayName, bio, avatarURL).StructScan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

// SetOnline toggles the presence flag.
func (r *ProfileRepo) SetOnline(ctx context.Context, id int, online bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET online=$2, updated_at=NOW() WHERE id=$1`, id, online)
	return err
}
