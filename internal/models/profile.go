package models

import "time"

// Account is a sign-up identity. A profile row appears later, once the user
// completes profile setup, so an account may exist without one.
type Account struct {
	ID           int       `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Profile is a user's public identity, keyed by account id. The online flag
// is kept fresh by the presence tracker and pushed to subscribers as a
// PresenceEvent.
type Profile struct {
	ID          int       `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Username    string    `db:"username" json:"username"`
	Bio         string    `db:"bio" json:"bio"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url"`
	Online      bool      `db:"online" json:"online"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
