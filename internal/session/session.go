// Package session is the client side of authentication: the current session, sign in
// and out, change notifications and the bounded restore performed at startup.
package session

import (
	"context"
	"sync"
	"time"
)

// Session is an authenticated user's token.
type Session struct {
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Event string

const (
	EventSignedIn  Event = "SIGNED_IN"
	EventSignedOut Event = "SIGNED_OUT"
)

// Change is an auth state notification. Seq grows with every notification of a
// provider; a higher Seq supersedes a lower one.
type Change struct {
	Seq     uint64
	Event   Event
	Session *Session
}

// SignUpResult tells whether the new account can be used right away.
type SignUpResult struct {
	Session                *Session
	NeedsEmailConfirmation bool
}

// Provider is the session service.
type Provider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error)
	SignOut(ctx context.Context) error
	Subscribe() (<-chan Change, func())
}

// Broker fans auth changes out to subscribers and numbers them.
type Broker struct {
	mu   sync.Mutex
	seq  uint64
	subs map[chan Change]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[chan Change]struct{}{}}
}

// Subscribe returns a channel of changes and a function that cancels the subscription.
func (b *Broker) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish numbers and delivers a change. A subscriber that is not keeping up loses its
// oldest pending change rather than the newest one.
func (b *Broker) Publish(event Event, s *Session) Change {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	c := Change{Seq: b.seq, Event: event, Session: s}
	for ch := range b.subs {
		select {
		case ch <- c:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
	return c
}
