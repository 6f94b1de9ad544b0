package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/waysave/waysave/internal/auth"
)

// TokenKey is where the device keeps its session token.
const TokenKey = "waysave_session_v1"

// TokenStore persists the device token.
type TokenStore interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	PutValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
}

// Local is a Provider backed by the local account database.
type Local struct {
	accounts *auth.Service
	store    TokenStore
	broker   *Broker
	log      *slog.Logger
}

func NewLocal(accounts *auth.Service, store TokenStore, logger *slog.Logger) *Local {
	return &Local{accounts: accounts, store: store, broker: NewBroker(), log: logger}
}

// CurrentSession returns the stored session, or nil when signed out. Invalid or expired
// tokens are discarded.
func (l *Local) CurrentSession(ctx context.Context) (*Session, error) {
	raw, found, err := l.store.GetValue(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("error reading session token: %w", err)
	}
	if !found || len(raw) == 0 {
		return nil, nil
	}

	user, claims, err := l.accounts.Verify(ctx, string(raw))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			l.log.Info("Discarding invalid session token", "error", err)
			if err := l.store.DeleteValue(ctx, TokenKey); err != nil {
				return nil, fmt.Errorf("error deleting session token: %w", err)
			}
			return nil, nil
		}
		return nil, err
	}

	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     string(raw),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	token, expires, user, err := l.accounts.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := l.store.PutValue(ctx, TokenKey, []byte(token)); err != nil {
		return nil, fmt.Errorf("error saving session token: %w", err)
	}

	s := &Session{UserID: user.ID, Email: user.Email, Token: token, ExpiresAt: expires}
	l.broker.Publish(EventSignedIn, s)
	return s, nil
}

// SignUp registers the account and signs it in. Local accounts need no email
// confirmation.
func (l *Local) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	if _, err := l.accounts.Signup(ctx, email, password, fullName); err != nil {
		return SignUpResult{}, err
	}
	s, err := l.SignIn(ctx, email, password)
	if err != nil {
		return SignUpResult{}, err
	}
	return SignUpResult{Session: s}, nil
}

func (l *Local) SignOut(ctx context.Context) error {
	if err := l.store.DeleteValue(ctx, TokenKey); err != nil {
		return fmt.Errorf("error deleting session token: %w", err)
	}
	l.broker.Publish(EventSignedOut, nil)
	return nil
}

func (l *Local) Subscribe() (<-chan Change, func()) {
	return l.broker.Subscribe()
}
