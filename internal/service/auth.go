package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/snsy/gas-station-monitor/internal/config"
	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/repository"
)

type AuthService struct {
	users *repository.UserRepo
	log   zerolog.Logger
}

// Login verifies the credential pair and returns a signed bearer token. A
// bad pair is ErrUnauthorized, a disabled account ErrForbidden; both are
// distinct from storage failures.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, fmt.Errorf("username and password are required: %w", domain.ErrValidation)
	}
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, fmt.Errorf("bad credentials: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, fmt.Errorf("bad credentials: %w", domain.ErrUnauthorized)
	}
	if u.Status != 1 {
		return "", nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}

	ttl := time.Duration(config.JWTTTLHours()) * time.Hour
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(u.ID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret()))
	if err != nil {
		return "", nil, err
	}
	s.log.Info().Str("username", username).Msg("login")
	return token, u, nil
}

// ParseToken validates a bearer token and returns the user id it carries.
func (s *AuthService) ParseToken(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(config.JWTSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", domain.ErrUnauthorized)
	}
	return id, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

type UserInput struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
	Status   *int16          `json:"status"`
}

func (s *AuthService) CreateUser(ctx context.Context, in UserInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("username and password are required: %w", domain.ErrValidation)
	}
	if in.Role == "" {
		in.Role = domain.UserRoleUser
	}
	if in.Role != domain.UserRoleAdmin && in.Role != domain.UserRoleUser {
		return nil, fmt.Errorf("role must be admin or user: %w", domain.ErrValidation)
	}
	exists, err := s.users.UsernameExists(ctx, in.Username, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("username %s already exists: %w", in.Username, domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Username: in.Username, PasswordHash: string(hash), Role: in.Role, Status: 1}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, id int64, in UserInput) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Username != "" && in.Username != u.Username {
		exists, err := s.users.UsernameExists(ctx, in.Username, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("username %s already exists: %w", in.Username, domain.ErrConflict)
		}
		u.Username = in.Username
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if in.Role != "" {
		if in.Role != domain.UserRoleAdmin && in.Role != domain.UserRoleUser {
			return nil, fmt.Errorf("role must be admin or user: %w", domain.ErrValidation)
		}
		u.Role = in.Role
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes a user; admins cannot delete their own account.
func (s *AuthService) DeleteUser(ctx context.Context, id, callerID int64) error {
	if id == callerID {
		return fmt.Errorf("cannot delete own account: %w", domain.ErrValidation)
	}
	return s.users.Delete(ctx, id)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// EnsureDefaultAdmin seeds the configured admin account on first startup.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context) error {
	username := config.AdminUsername()
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(config.AdminPassword()), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := &domain.User{Username: username, PasswordHash: string(hash), Role: domain.UserRoleAdmin, Status: 1}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.log.Info().Str("username", username).Msg("default admin created")
	return nil
}
