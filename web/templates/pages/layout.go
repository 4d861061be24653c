package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/jon4hz/parley/pkg/chatapi"
)

// FlashKind selects the styling of a flash message.
type FlashKind string

const (
	FlashError   FlashKind = "error"
	FlashSuccess FlashKind = "success"
)

// Flash is a one-time message shown at the top of a page.
type Flash struct {
	Kind FlashKind
	Text string
}

// html writes page fragments and keeps the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// csrf writes the hidden form token field.
func (h *html) csrf(token string) {
	h.raw(`<input type="hidden" name="csrf_token" value="`)
	h.text(token)
	h.raw(`">`)
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

const style = `
body{font-family:system-ui,sans-serif;margin:0;background:#f4f4f5;color:#18181b}
header{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1.5rem;background:#18181b;color:#fafafa}
header a,header button{color:#fafafa;background:none;border:0;font:inherit;cursor:pointer;text-decoration:none;margin-left:1rem}
main{max-width:960px;margin:1.5rem auto;padding:0 1rem}
.flash{padding:.5rem 1rem;border-radius:4px;margin-bottom:1rem}
.flash.error{background:#fee2e2;color:#991b1b}
.flash.success{background:#dcfce7;color:#166534}
.card{background:#fff;border-radius:6px;padding:1rem;box-shadow:0 1px 2px rgba(0,0,0,.08)}
.chat{display:grid;grid-template-columns:220px 1fr;gap:1rem}
.peers a{display:flex;align-items:center;gap:.5rem;padding:.4rem;color:inherit;text-decoration:none;border-radius:4px}
.peers a.active{background:#e4e4e7}
.line{margin:.35rem 0}
.line.mine{text-align:right}
.line small{color:#71717a;margin-left:.5rem}
.avatar{width:24px;height:24px;border-radius:50%}
table{width:100%;border-collapse:collapse}
td,th{padding:.4rem;text-align:left;border-bottom:1px solid #e4e4e7}
form.inline{display:inline}
`

// Layout wraps content in the page chrome. The navigation shows the admin
// link only to administrators and the logout button only to logged in users.
// csrf is embedded in every form the layout renders.
func Layout(title string, user *chatapi.User, csrf string, flashes []Flash, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(title)
		h.raw(` · parley</title><style>`, style, `</style></head><body><header><a href="/"><strong>parley</strong></a><nav>`)
		if user != nil {
			h.raw(`<span>`)
			h.text(user.Username)
			h.raw(`</span>`)
			if user.IsAdmin {
				h.raw(`<a href="/admin">Admin</a>`)
			}
			h.raw(`<form class="inline" method="post" action="/logout">`)
			h.csrf(csrf)
			h.raw(`<button type="submit">Logout</button></form>`)
		} else {
			h.raw(`<a href="/login">Login</a><a href="/register">Register</a>`)
		}
		h.raw(`</nav></header><main>`)
		for _, f := range flashes {
			h.raw(`<div class="flash `, string(f.Kind), `">`)
			h.text(f.Text)
			h.raw(`</div>`)
		}
		h.render(ctx, content)
		h.raw(`</main></body></html>`)
		return h.err
	})
}
