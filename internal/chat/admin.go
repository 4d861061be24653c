package chat

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/samber/lo"
)

// Admin backs the user administration table.
type Admin struct {
	api  API
	sess Session

	mu    sync.Mutex
	users []chatapi.User
}

func NewAdmin(api API, sess Session) *Admin {
	return &Admin{api: api, sess: sess}
}

func beginAdmin(sess Session) (ticket, error) {
	t, err := begin(sess)
	if err != nil {
		return ticket{}, err
	}
	if !t.me().IsAdmin {
		return ticket{}, ErrForbidden
	}
	return t, nil
}

// Users loads every account except the administrator's own.
func (a *Admin) Users(ctx context.Context) ([]chatapi.User, error) {
	t, err := beginAdmin(a.sess)
	if err != nil {
		return nil, err
	}

	users, err := a.api.ListUsers(ctx, t.state.Token)
	if err != nil {
		log.Error("failed to list users", "error", err)
		return nil, err
	}
	if err := t.done(ctx); err != nil {
		return nil, err
	}

	users = excludeUser(users, t.me().ID)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = users
	return append([]chatapi.User(nil), users...), nil
}

// Remove deletes an account and drops it from the loaded table.
func (a *Admin) Remove(ctx context.Context, id int64) error {
	t, err := beginAdmin(a.sess)
	if err != nil {
		return err
	}
	if id == t.me().ID {
		return ErrRemoveSelf
	}

	if err := a.api.RemoveUser(ctx, t.state.Token, id); err != nil {
		log.Error("failed to remove user", "id", id, "error", err)
		return err
	}
	log.Info("removed user", "id", id)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = lo.Reject(a.users, func(u chatapi.User, _ int) bool { return u.ID == id })
	return nil
}

// Loaded returns the table as of the last load or removal.
func (a *Admin) Loaded() []chatapi.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]chatapi.User(nil), a.users...)
}
