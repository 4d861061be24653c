package chat

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/samber/lo"
)

// Directory lists the users one can talk to.
type Directory struct {
	api  API
	sess Session
}

func NewDirectory(api API, sess Session) *Directory {
	return &Directory{api: api, sess: sess}
}

// Peers returns every user except the current one.
func (d *Directory) Peers(ctx context.Context) ([]chatapi.User, error) {
	t, err := begin(d.sess)
	if err != nil {
		return nil, err
	}

	users, err := d.api.ListUsers(ctx, t.state.Token)
	if err != nil {
		log.Error("failed to list users", "error", err)
		return nil, err
	}
	if err := t.done(ctx); err != nil {
		return nil, err
	}

	return excludeUser(users, t.me().ID), nil
}

// Find returns the peer with the given id.
func (d *Directory) Find(ctx context.Context, id int64) (chatapi.User, bool, error) {
	peers, err := d.Peers(ctx)
	if err != nil {
		return chatapi.User{}, false, err
	}
	peer, ok := lo.Find(peers, func(u chatapi.User) bool { return u.ID == id })
	return peer, ok, nil
}

func excludeUser(users []chatapi.User, id int64) []chatapi.User {
	return lo.Filter(users, func(u chatapi.User, _ int) bool { return u.ID != id })
}
