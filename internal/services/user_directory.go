package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatapp/internal/repository"
	"chatapp/pkg/logger"
)

//go:generate go run go.uber.org/mock/mockgen -source=user_directory.go -destination=../mocks/mock_user_directory.go -package=mocks

// UserDirectory resolves a user's display name. It returns ErrNotFound for
// unknown users.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// NameCache stores resolved display names.
type NameCache interface {
	GetDisplayName(ctx context.Context, userID uuid.UUID) (string, bool, error)
	SetDisplayName(ctx context.Context, userID uuid.UUID, name string, ttl time.Duration) error
}

// CachedDirectory reads through a NameCache in front of the user repository.
// Cache failures only cost a lookup.
type CachedDirectory struct {
	users repository.UserRepository
	cache NameCache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedDirectory(users repository.UserRepository, cache NameCache, ttl time.Duration, log *logger.Logger) *CachedDirectory {
	return &CachedDirectory{users: users, cache: cache, ttl: ttl, log: log}
}

func (d *CachedDirectory) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	if d.cache != nil {
		name, ok, err := d.cache.GetDisplayName(ctx, userID)
		if err != nil {
			d.log.WithContext(ctx).Warn("name cache read failed", zap.String("target_user_id", userID.String()), zap.Error(err))
		} else if ok {
			return name, nil
		}
	}

	name, err := d.users.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}

	if d.cache != nil {
		if err := d.cache.SetDisplayName(ctx, userID, name, d.ttl); err != nil {
			d.log.WithContext(ctx).Warn("name cache write failed", zap.String("target_user_id", userID.String()), zap.Error(err))
		}
	}
	return name, nil
}
