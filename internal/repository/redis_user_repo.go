package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"session-auth/internal/domain"
)

// RedisUserRepository guarda cada usuario en un hash y reserva el email con SETNX,
// de modo que la unicidad la garantiza Redis y no un check-then-insert.
type RedisUserRepository struct {
	client redis.Cmdable
	prefix string
}

func NewRedisUserRepository(client redis.Cmdable) *RedisUserRepository {
	return &RedisUserRepository{
		client: client,
		prefix: "auth:user:",
	}
}

func (r *RedisUserRepository) userKey(id string) string {
	return r.prefix + "id:" + id
}

func (r *RedisUserRepository) emailKey(email string) string {
	return r.prefix + "email:" + email
}

func (r *RedisUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	user.ID = uuid.NewString()
	emailKey := r.emailKey(user.Email)

	reserved, err := r.client.SetNX(ctx, emailKey, user.ID, 0).Result()
	if err != nil {
		return domain.User{}, err
	}
	if !reserved {
		return domain.User{}, ErrDuplicateEmail
	}

	fields := map[string]any{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"created_at":    user.CreationDate.UTC().Format(time.RFC3339Nano),
		"last_access":   "",
	}
	if err := r.client.HSet(ctx, r.userKey(user.ID), fields).Err(); err != nil {
		// libera la reserva para no dejar el email bloqueado sin usuario
		_ = r.client.Del(ctx, emailKey).Err()
		return domain.User{}, err
	}
	return user, nil
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	values, err := r.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return domain.User{}, err
	}
	if len(values) == 0 {
		return domain.User{}, ErrNotFound
	}
	return decodeRedisUser(values)
}

func (r *RedisUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	id, err := r.client.Get(ctx, r.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *RedisUserRepository) TouchLastAccess(ctx context.Context, id string, at time.Time) error {
	key := r.userKey(id)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.client.HSet(ctx, key, "last_access", at.UTC().Format(time.RFC3339Nano)).Err()
}

func (r *RedisUserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeRedisUser(values map[string]string) (domain.User, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, values["created_at"])
	if err != nil {
		return domain.User{}, fmt.Errorf("decode created_at: %w", err)
	}
	user := domain.User{
		ID:           values["id"],
		Name:         values["name"],
		Email:        values["email"],
		PasswordHash: values["password_hash"],
		CreationDate: createdAt,
	}
	if raw := values["last_access"]; raw != "" {
		lastAccess, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.User{}, fmt.Errorf("decode last_access: %w", err)
		}
		user.LastAccess = &lastAccess
	}
	return user, nil
}
