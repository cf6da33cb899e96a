package auth

import (
	"context"
	"strings"
	"time"

	"github.com/tacticalpanel/panel/internal/cache"
)

const revokedTokenKeyPrefix = "auth:revoked:"

// RevocationList records revoked token ids until the token would have expired anyway.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewStoreRevocationList keeps the deny-list in a shared cache store (Redis or the database fallback).
func NewStoreRevocationList(store cache.Store) RevocationList {
	if store == nil {
		return nil
	}
	return &storeRevocationList{store: store}
}

type storeRevocationList struct {
	store cache.Store
}

func (l *storeRevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	key := revokedKey(tokenID)
	if key == "" || ttl <= 0 {
		return nil
	}
	return l.store.Set(ctx, key, []byte("1"), ttl)
}

func (l *storeRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := revokedKey(tokenID)
	if key == "" {
		return false, nil
	}
	_, found, err := l.store.Get(ctx, key)
	return found, err
}

func revokedKey(tokenID string) string {
	id := strings.TrimSpace(tokenID)
	if id == "" {
		return ""
	}
	return revokedTokenKeyPrefix + id
}
