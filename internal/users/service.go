package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/aquatrack/aquatrack/internal/shared"
)

const tokenKeyPrefix = "auth:token:"

// TokenStore persists bearer tokens with a bounded lifetime.
type TokenStore interface {
	Save(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Resolve(ctx context.Context, token string) (int64, error)
	Revoke(ctx context.Context, token string) error
}

// RedisTokenStore is the Redis-backed TokenStore.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore constructs a RedisTokenStore.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.client.Set(ctx, tokenKeyPrefix+token, userID, ttl).Err()
}

func (s *RedisTokenStore) Resolve(ctx context.Context, token string) (int64, error) {
	id, err := s.client.Get(ctx, tokenKeyPrefix+token).Int64()
	if err == redis.Nil {
		return 0, shared.ErrInvalidCredentials
	}
	return id, err
}

func (s *RedisTokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKeyPrefix+token).Err()
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages staff accounts and bearer-token authentication.
type Service struct {
	repo     RepositoryPort
	tokens   TokenStore
	tokenTTL time.Duration
	audit    AuditPort
}

// NewService constructs a Service. The audit port may be nil.
func NewService(repo RepositoryPort, tokens TokenStore, tokenTTL time.Duration, audit AuditPort) *Service {
	return &Service{repo: repo, tokens: tokens, tokenTTL: tokenTTL, audit: audit}
}

// CreateInput is the payload for registering a user.
type CreateInput struct {
	Username string
	FullName string
	Email    string
	Role     string
	Password string
}

// Create registers a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return User{}, fmt.Errorf("users: username is required: %w", shared.ErrValidation)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrValidation)
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = "staff"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{
		Username:     username,
		FullName:     strings.TrimSpace(input.FullName),
		Email:        strings.TrimSpace(input.Email),
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return User{}, err
	}
	s.record(ctx, "users:create", user.ID, map[string]any{"username": user.Username, "role": user.Role})
	return user, nil
}

func (s *Service) record(ctx context.Context, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID := userID
	if actor := shared.ActorFromContext(ctx); actor != nil {
		actorID = actor.ID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
}

// Authenticate validates username/password credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, string, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return User{}, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, "", shared.ErrInvalidCredentials
	}
	token := uuid.NewString()
	if err := s.tokens.Save(ctx, token, user.ID, s.tokenTTL); err != nil {
		return User{}, "", err
	}
	s.record(ctx, "users:login", user.ID, nil)
	return user, token, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a bearer token to the acting user.
func (s *Service) Resolve(ctx context.Context, token string) (*shared.Actor, error) {
	userID, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return &shared.Actor{ID: user.ID, Name: user.FullName, Role: user.Role}, nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// DisplayName resolves a user's printable name, preferring the full name.
func (s *Service) DisplayName(ctx context.Context, id int64) (string, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if user.FullName != "" {
		return user.FullName, nil
	}
	return user.Username, nil
}

// List lists all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	action := "users:deactivate"
	if active {
		action = "users:activate"
	}
	s.record(ctx, action, id, nil)
	return nil
}

// ChangePassword replaces a user's password.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, "users:change_password", id, nil)
	return nil
}
