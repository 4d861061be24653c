package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/jon4hz/parley/web/templates/components"
)

// Peer is a user in the sidebar.
type Peer struct {
	chatapi.User
	Avatar string
}

// HomeData is everything the chat page shows.
type HomeData struct {
	Me      *chatapi.User
	CSRF    string
	Flashes []Flash
	Peers   []Peer
	// PeersError is shown instead of the peer list.
	PeersError string
	// Active is the selected peer, nil if none is selected.
	Active *Peer
	Lines  []chat.Line
	// LinesError is shown instead of the conversation.
	LinesError string
}

// Home renders the peer list and the active conversation.
func Home(data HomeData) templ.Component {
	return Layout("Chat", data.Me, data.CSRF, data.Flashes, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="chat"><aside class="card peers"><h3>Users</h3>`)
		switch {
		case data.PeersError != "":
			h.raw(`<p class="flash error">`)
			h.text(data.PeersError)
			h.raw(`</p>`)
		case len(data.Peers) == 0:
			h.raw(`<p>No one else is here yet.</p>`)
		}
		for _, p := range data.Peers {
			class := ""
			if data.Active != nil && data.Active.ID == p.ID {
				class = ` class="active"`
			}
			h.raw(fmt.Sprintf(`<a href="/?peer=%d"%s>`, p.ID, class))
			avatarImg(h, p.Avatar)
			h.text(p.Username)
			h.raw(`</a>`)
		}
		h.raw(`</aside><section class="card">`)

		if data.Active == nil {
			h.raw(`<p>Select a user to start chatting.</p></section></div>`)
			return h.err
		}

		h.raw(`<h3>`)
		avatarImg(h, data.Active.Avatar)
		h.text(data.Active.Username)
		h.raw(`</h3><div class="messages">`)
		switch {
		case data.LinesError != "":
			h.raw(`<p class="flash error">`)
			h.text(data.LinesError)
			h.raw(`</p>`)
		case len(data.Lines) == 0:
			h.raw(`<p>No messages yet.</p>`)
		default:
			h.raw(`<p><small>`, components.FormatCount(len(data.Lines)), ` `, components.Plural(len(data.Lines), "message"), `</small></p>`)
		}
		for _, l := range data.Lines {
			class := "line"
			if l.Mine {
				class += " mine"
			}
			h.raw(`<div class="`, class, `"><strong>`)
			h.text(l.Sender)
			h.raw(`:</strong> `)
			h.text(l.Content)
			if at := components.FormatRelativeTime(l.At); at != "" {
				h.raw(`<small>`)
				h.text(at)
				h.raw(`</small>`)
			}
			h.raw(`</div>`)
		}
		h.raw(fmt.Sprintf(`</div><form method="post" action="/messages/%d">`, data.Active.ID))
		h.csrf(data.CSRF)
		h.raw(`<input name="content" placeholder="Type a message" autocomplete="off" autofocus> `,
			`<button type="submit">Send</button></form></section></div>`)
		return h.err
	}))
}

func avatarImg(h *html, src string) {
	if src == "" {
		return
	}
	h.raw(`<img class="avatar" alt="" src="`)
	h.text(src)
	h.raw(`">`)
}
