package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bursary-management-api/models"
	"bursary-management-api/repository"
	"bursary-management-api/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// AdminClaims is the JWT payload issued to administrators.
type AdminClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      models.AdminUser `json:"user"`
}

// AuthService verifies admin credentials and issues and checks tokens.
type AuthService struct {
	store  repository.Store
	secret []byte
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

func NewAuthService(store repository.Store, secret string, ttl time.Duration, logger *logrus.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{store: store, secret: []byte(secret), ttl: ttl, logger: logger, now: time.Now}
}

var errInvalidCredentials = newError(KindUnauthorized, "Invalid username or password")

// Login checks username and password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("JWT secret not configured")
	}
	username = utils.SanitizeInput(username)

	user, err := s.store.FindAdminByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if !user.IsActive || !utils.CheckPassword(user.PasswordHash, password) {
		s.logger.WithField("username", username).Warn("failed admin login")
		return nil, errInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := AdminClaims{
		AdminID:  user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	user.LastLoginAt = &now
	if err := s.store.SaveAdmin(ctx, user); err != nil {
		s.logger.WithError(err).WithField("username", username).Warn("record last login")
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: *user}, nil
}

// ParseToken validates a bearer token and checks that the admin still exists
// and is active.
func (s *AuthService) ParseToken(ctx context.Context, tokenString string) (*AdminClaims, error) {
	if len(s.secret) == 0 {
		return nil, newError(KindUnauthorized, "Admin authentication is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, newError(KindUnauthorized, "Invalid or expired token")
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok {
		return nil, newError(KindUnauthorized, "Invalid token claims")
	}

	user, err := s.store.FindAdminByUsername(ctx, claims.Username)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && (!user.IsActive || user.ID != claims.AdminID)) {
		return nil, newError(KindUnauthorized, "Admin account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return claims, nil
}

// CreateAdmin stores a new admin, or resets the password of an existing one.
func (s *AuthService) CreateAdmin(ctx context.Context, username, email, password string) (*models.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, newError(KindValidation, "username is required")
	}
	if ok, msg := utils.ValidatePassword(password); !ok {
		return nil, newError(KindValidation, "%s", msg)
	}
	if email != "" && !utils.ValidateEmail(email) {
		return nil, newError(KindValidation, "invalid email %q", email)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindAdminByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user = &models.AdminUser{Username: username, IsActive: true}
	case err != nil:
		return nil, fmt.Errorf("load admin: %w", err)
	}
	user.Email = email
	user.PasswordHash = hash
	user.IsActive = true
	if err := s.store.SaveAdmin(ctx, user); err != nil {
		return nil, fmt.Errorf("save admin: %w", err)
	}
	return user, nil
}
