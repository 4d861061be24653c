package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/config"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/internal/tokenstore"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/samber/lo"
)

var (
	errNotLoggedIn = errors.New("not logged in")
	errNotAdmin    = errors.New("admin privileges required")
)

// app is what every command works with: the config, the persisted token
// and a bootstrapped session.
type app struct {
	cfg     *config.Config
	store   tokenstore.Store
	client  *chatapi.Client
	session *session.Manager
}

// openApp loads the config, opens the token store and restores the session.
// Startup failures are fatal.
func openApp(ctx context.Context) *app {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := tokenstore.New(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open token store: %v", err)
	}

	client := chatapi.New(cfg.Backend)
	manager := session.New(client, store, session.WithRemoteLogout(cfg.Backend.RemoteLogout))
	if err := manager.Open(ctx); err != nil {
		log.Fatalf("failed to restore session: %v", err)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		client:  client,
		session: manager,
	}
}

func (a *app) Close() {
	if err := a.session.Close(); err != nil {
		log.Error("failed to close session", "error", err)
	}
	if err := a.store.Close(); err != nil {
		log.Error("failed to close token store", "error", err)
	}
}

// authorize applies the same gate as the browser UI.
func (a *app) authorize(access session.Access) error {
	redirect, ok := a.session.Authorize(access)
	if ok {
		return nil
	}
	if redirect == session.ViewLogin {
		return errNotLoggedIn
	}
	return errNotAdmin
}

// findPeer resolves a peer given by id or username.
func (a *app) findPeer(ctx context.Context, ref string) (chatapi.User, error) {
	dir := chat.NewDirectory(a.client, a.session)

	var (
		peer chatapi.User
		ok   bool
		err  error
	)
	if id, idErr := strconv.ParseInt(ref, 10, 64); idErr == nil {
		peer, ok, err = dir.Find(ctx, id)
	} else {
		var peers []chatapi.User
		peers, err = dir.Peers(ctx)
		peer, ok = lo.Find(peers, func(u chatapi.User) bool { return u.Username == ref })
	}
	if err != nil {
		return chatapi.User{}, fmt.Errorf("failed to list users: %w", err)
	}
	if !ok {
		return chatapi.User{}, fmt.Errorf("unknown user %q", ref)
	}
	return peer, nil
}

func role(u chatapi.User) string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
