// Package chat contains the views' data fetching: the user directory, a
// conversation with one peer, and the admin user table.
//
// Every fetch remembers the session generation it started with. If the
// session changed (logout, new login) before the response arrived, or the
// caller lost interest, the result is dropped with ErrStale.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/pkg/chatapi"
)

var (
	ErrStale            = errors.New("session changed before the request completed")
	ErrNotAuthenticated = errors.New("not logged in")
	ErrForbidden        = errors.New("admin privileges required")
	ErrRemoveSelf       = errors.New("cannot remove your own account")
	ErrEmptyMessage     = errors.New("message is empty")
)

// Session is the part of the session manager the consumers read.
type Session interface {
	Snapshot() session.State
	Generation() uint64
}

// API is the part of the chat backend the consumers call.
type API interface {
	ListUsers(ctx context.Context, token string) ([]chatapi.User, error)
	RemoveUser(ctx context.Context, token string, id int64) error
	ListMessages(ctx context.Context, token string, peerID int64) ([]chatapi.Message, error)
	SendMessage(ctx context.Context, token string, peerID int64, content string) error
}

// ticket captures the session a request was started for.
type ticket struct {
	sess       Session
	state      session.State
	generation uint64
}

func begin(sess Session) (ticket, error) {
	state := sess.Snapshot()
	if state.User == nil || state.Token == "" {
		return ticket{}, ErrNotAuthenticated
	}
	return ticket{sess: sess, state: state, generation: state.Generation}, nil
}

// done reports whether the result of the request may still be used.
func (t ticket) done(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStale, err)
	}
	if current := t.sess.Generation(); current != t.generation {
		return ErrStale
	}
	return nil
}

func (t ticket) me() *chatapi.User {
	return t.state.User
}
