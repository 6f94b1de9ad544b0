package waysave

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

const kvCachePrefix = "kv:"

// GetValue returns the blob stored under key. found is false when the key is absent.
func (s *Storage) GetValue(ctx context.Context, key string) (value []byte, found bool, err error) {
	if cached, ok := s.cache.Get(kvCachePrefix + key); ok {
		return clone(cached.([]byte)), true, nil
	}

	err = s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error reading key %s: %w", key, err)
	}

	s.cache.Set(kvCachePrefix+key, clone(value), cache.DefaultExpiration)
	return value, true, nil
}

// PutValue creates or replaces the blob stored under key.
func (s *Storage) PutValue(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		s.cache.Delete(kvCachePrefix + key)
		return fmt.Errorf("error writing key %s: %w", key, err)
	}

	s.cache.Set(kvCachePrefix+key, clone(value), cache.DefaultExpiration)
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (s *Storage) DeleteValue(ctx context.Context, key string) error {
	s.cache.Delete(kvCachePrefix + key)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
