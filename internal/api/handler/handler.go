package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/parley/internal/avatar"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/config"
	"github.com/jon4hz/parley/internal/scheduler"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/jon4hz/parley/web/templates/pages"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Session is the session manager as used by the browser UI.
type Session interface {
	chat.Session
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Wait(ctx context.Context) error
	IsAuthenticated() bool
	Navigate(path string) (session.View, bool)
}

// Jobs reports and controls the background jobs.
type Jobs interface {
	GetJobs() []scheduler.JobInfo
	GetJob(id string) (scheduler.JobInfo, bool)
	EnableJob(id string) error
	DisableJob(id string) error
}

type Handler struct {
	session   Session
	api       chat.API
	directory *chat.Directory
	admin     *chat.Admin
	avatars   *config.AvatarConfig
	jobs      Jobs
}

func New(sess Session, api chat.API, avatars *config.AvatarConfig, jobs Jobs) *Handler {
	return &Handler{
		session:   sess,
		api:       api,
		directory: chat.NewDirectory(api, sess),
		admin:     chat.NewAdmin(api, sess),
		avatars:   avatars,
		jobs:      jobs,
	}
}

func (h *Handler) currentUser(c *gin.Context) *chatapi.User {
	user, _ := c.MustGet("user").(*chatapi.User)
	return user
}

func (h *Handler) withAvatar(u chatapi.User) pages.Peer {
	return pages.Peer{User: u, Avatar: avatar.URL(u.Username, h.avatars)}
}

// Home shows the peer list and, with ?peer=<id>, the conversation with that peer.
// Both are fetched concurrently; a failure of one does not hide the other.
func (h *Handler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	data := pages.HomeData{
		Me:      h.currentUser(c),
		Flashes: popFlashes(c),
		CSRF:    csrfToken(c),
	}

	var conv *chat.Conversation
	if p := c.Query("peer"); p != "" {
		peerID, err := parseID(p)
		if err != nil {
			c.Redirect(http.StatusFound, "/")
			return
		}
		conv = chat.NewConversation(h.api, h.session, chatapi.User{ID: peerID})
	}

	var (
		peers    []chatapi.User
		peersErr error
		linesErr error
		g        errgroup.Group
	)
	g.Go(func() error {
		peers, peersErr = h.directory.Peers(ctx)
		return nil
	})
	if conv != nil {
		g.Go(func() error {
			_, linesErr = conv.Refresh(ctx)
			return nil
		})
	}
	_ = g.Wait()

	if peersErr != nil {
		data.PeersError = "Failed to load users"
	}
	data.Peers = lo.Map(peers, func(u chatapi.User, _ int) pages.Peer { return h.withAvatar(u) })

	if conv != nil {
		peer, ok := lo.Find(peers, func(u chatapi.User) bool { return u.ID == conv.Peer().ID })
		if !ok {
			peer = chatapi.User{ID: conv.Peer().ID, Username: fmt.Sprintf("User %d", conv.Peer().ID)}
		}
		conv.UpdatePeer(peer)
		active := h.withAvatar(conv.Peer())
		data.Active = &active
		if linesErr != nil {
			data.LinesError = "Failed to load messages"
		} else {
			data.Lines = conv.Lines()
		}
	}

	c.Header("Content-Type", "text/html")
	if err := pages.Home(data).Render(ctx, c.Writer); err != nil {
		log.Error("Failed to render home page", "error", err)
	}
}

// SendMessage posts the form's message to the peer and goes back to the conversation.
func (h *Handler) SendMessage(c *gin.Context) {
	peerID, err := parseID(c.Param("peer"))
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	conv := chat.NewConversation(h.api, h.session, chatapi.User{ID: peerID})
	err = conv.Send(c.Request.Context(), c.PostForm("content"))
	switch {
	case err == nil, errors.Is(err, chat.ErrEmptyMessage):
	case errors.Is(err, chat.ErrStale):
		log.Debug("session changed while sending message", "peer", peerID)
	default:
		addFlash(c, flashError, "Failed to send message")
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/?peer=%d", peerID))
}

// Healthz reports the session and background job state.
func (h *Handler) Healthz(c *gin.Context) {
	resp := gin.H{
		"status":        "ok",
		"authenticated": h.session.IsAuthenticated(),
		"generation":    h.session.Generation(),
	}
	if h.jobs != nil {
		resp["jobs"] = h.jobs.GetJobs()
	}
	c.JSON(http.StatusOK, resp)
}

// NotFound sends unknown paths to the view the session may see.
func (h *Handler) NotFound(c *gin.Context) {
	if err := h.session.Wait(c.Request.Context()); err != nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	view, _ := h.session.Navigate(c.Request.URL.Path)
	c.Redirect(http.StatusFound, string(view))
}

// parseID parses a positive user id from a path or query parameter.
func parseID(s string) (int64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	id, err := safecast.ToInt64(n)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
