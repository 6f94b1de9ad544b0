package waysave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-sqlite3"
	"github.com/waysave/waysave/internal/auth"
)

const userColumns = "id, email, full_name, password_hash, created_at"

// CreateUser inserts u and sets its ID and creation time.
func (s *Storage) CreateUser(ctx context.Context, u *auth.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, full_name, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.Email, u.FullName, u.PasswordHash, u.CreatedAt.Format(timestampLayout))
	if err != nil {
		if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
			return auth.ErrEmailInUse
		}
		return fmt.Errorf("error inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading user id: %w", err)
	}
	u.ID = id
	return nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *Storage) scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	var created string
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("error querying user: %w", err)
	}

	t, err := time.Parse(timestampLayout, created)
	if err != nil {
		return nil, fmt.Errorf("error parsing created_at %q: %w", created, err)
	}
	u.CreatedAt = t
	return &u, nil
}
