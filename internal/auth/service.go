package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims carried by access tokens.
type Claims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

// Service issues and validates access tokens against local accounts.
type Service struct {
	profiles repositories.ProfileRepository
	secret   []byte
	tokenTTL time.Duration
}

// NewService constructs the auth service.
func NewService(profiles repositories.ProfileRepository, secret string, tokenTTL time.Duration) *Service {
	return &Service{profiles: profiles, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}
	return s.profiles.CreateAccount(ctx, email, string(hash))
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, models.Account, error) {
	acc, err := s.profiles.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return "", models.Account{}, ErrInvalidCredentials
		}
		return "", models.Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", models.Account{}, ErrInvalidCredentials
	}

	token, err := s.issueToken(acc.ID)
	if err != nil {
		return "", models.Account{}, err
	}
	return token, acc, nil
}

func (s *Service) issueToken(userID int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "messenger-service",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	return token.SignedString(s.secret)
}

// ValidateToken verifies the JWT and returns the authenticated user id.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (int, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidCredentials
	}
	return claims.UserID, nil
}
