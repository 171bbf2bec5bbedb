// Package auth is a thin authentication guard: bcrypt credentials plus JWT
// access tokens carrying the tenant id.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
)

// User is an account in a tenant database.
type User struct {
	ID           id.ID     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Roles        []string  `db:"roles"`
	CreatedAt    time.Time `db:"created_at"`
}

// Repository is the user store contract.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Claims is the JWT payload.
type Claims struct {
	UserID   string   `json:"uid"`
	TenantID string   `json:"tid"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens and manages credentials.
type Service struct {
	repo     Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(repo Repository, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &Service{repo: repo, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string, roles []string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.NewValidation("valid email is required")
	}
	if len(password) < 8 {
		return nil, apperror.NewValidation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	u := &User{
		ID:           id.New(),
		Email:        email,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return "", apperror.NewUnauthorized("invalid credentials")
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", apperror.NewUnauthorized("invalid credentials")
	}
	return s.issue(u, tenantID)
}

func (s *Service) issue(u *User, tenantID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   u.ID.String(),
		TenantID: tenantID,
		Email:    u.Email,
		Roles:    u.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Subject:   u.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	return signed, nil
}

// Validate parses and verifies a token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperror.NewUnauthorized("malformed token claims")
	}
	return claims, nil
}
