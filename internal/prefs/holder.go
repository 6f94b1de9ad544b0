package prefs

import (
	"context"
	"fmt"
	"log/slog"
)

// Store persists opaque values by key.
type Store interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	PutValue(ctx context.Context, key string, value []byte) error
}

// Holder owns the current preferences of one user or device. Apply is the only way
// to change them and it persists every change.
type Holder struct {
	store Store
	key   string
	log   *slog.Logger
	cur   Preferences
}

// Load reads the preferences stored under key. Missing or corrupt data falls back to
// the defaults; only storage failures are returned.
func Load(ctx context.Context, store Store, key string, logger *slog.Logger) (*Holder, error) {
	h := &Holder{store: store, key: key, log: logger, cur: Defaults()}

	raw, found, err := store.GetValue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error loading preferences: %w", err)
	}
	if !found {
		return h, nil
	}

	p, err := Decode(raw)
	if err != nil {
		logger.Warn("Stored preferences are corrupt, using defaults", "key", key, "error", err)
	}
	h.cur = p
	return h, nil
}

// Switch loads the preferences stored under key and makes key the target of later
// Apply calls. On error the holder is unchanged.
func (h *Holder) Switch(ctx context.Context, key string) error {
	if key == h.key {
		return nil
	}
	next, err := Load(ctx, h.store, key, h.log)
	if err != nil {
		return err
	}
	h.key, h.cur = next.key, next.cur
	h.log.Debug("Preferences switched", "key", key)
	return nil
}

// Key returns the storage key of the current preferences.
func (h *Holder) Key() string { return h.key }

// Current returns a copy of the current preferences.
func (h *Holder) Current() Preferences {
	return h.cur.Normalize()
}

// Apply replaces the current preferences and persists them.
func (h *Holder) Apply(ctx context.Context, p Preferences) error {
	p = p.Normalize()
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("error encoding preferences: %w", err)
	}
	if err := h.store.PutValue(ctx, h.key, data); err != nil {
		return fmt.Errorf("error saving preferences: %w", err)
	}
	h.cur = p
	h.log.Debug("Preferences saved", "key", h.key, "tab", p.ActiveTab, "mode", p.Mode)
	return nil
}
