package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/samber/lo"
)

// Line is a message prepared for display.
type Line struct {
	Sender  string
	Mine    bool
	Content string
	At      time.Time
}

// Conversation is the message history with one peer.
// It is only refetched when Refresh is called.
type Conversation struct {
	api    API
	sess   Session
	peerID int64

	mu       sync.Mutex
	peer     chatapi.User
	loaded   bool
	me       int64
	messages []chatapi.Message
}

func NewConversation(api API, sess Session, peer chatapi.User) *Conversation {
	return &Conversation{api: api, sess: sess, peerID: peer.ID, peer: peer}
}

// Peer returns the user on the other side.
func (c *Conversation) Peer() chatapi.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// UpdatePeer replaces the peer's profile, e.g. after the user list was reloaded.
// A profile with a different id is ignored.
func (c *Conversation) UpdatePeer(peer chatapi.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if peer.ID == c.peerID {
		c.peer = peer
	}
}

// Load returns the history, fetching it only if it was never loaded.
func (c *Conversation) Load(ctx context.Context) ([]chatapi.Message, error) {
	c.mu.Lock()
	if c.loaded {
		messages := append([]chatapi.Message(nil), c.messages...)
		c.mu.Unlock()
		return messages, nil
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh invalidates the local history and fetches it again.
func (c *Conversation) Refresh(ctx context.Context) ([]chatapi.Message, error) {
	t, err := begin(c.sess)
	if err != nil {
		return nil, err
	}

	messages, err := c.api.ListMessages(ctx, t.state.Token, c.peerID)
	if err != nil {
		log.Error("failed to list messages", "peer", c.peerID, "error", err)
		return nil, err
	}
	if err := t.done(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.me = t.me().ID
	c.messages = messages
	return append([]chatapi.Message(nil), messages...), nil
}

// Send posts a message to the peer and refreshes the history.
// Blank messages are not sent.
func (c *Conversation) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	t, err := begin(c.sess)
	if err != nil {
		return err
	}

	if err := c.api.SendMessage(ctx, t.state.Token, c.peerID, content); err != nil {
		log.Error("failed to send message", "peer", c.peerID, "error", err)
		return err
	}

	_, err = c.Refresh(ctx)
	return err
}

// Messages returns the history as of the last refresh.
func (c *Conversation) Messages() []chatapi.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chatapi.Message(nil), c.messages...)
}

// Lines returns the history as of the last refresh, labelled for display.
func (c *Conversation) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	return lo.Map(c.messages, func(m chatapi.Message, _ int) Line {
		mine := m.FromID == c.me
		sender := c.peer.Username
		if mine {
			sender = "Me"
		}
		return Line{
			Sender:  sender,
			Mine:    mine,
			Content: m.Content,
			At:      m.Timestamp.Time,
		}
	})
}
