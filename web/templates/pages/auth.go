package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Login renders the login form.
func Login(flashes []Flash, csrf string) templ.Component {
	return Layout("Login", nil, csrf, flashes, credentialsForm(csrf, "Login", "/login", "Log in", "/register", "Create an account"))
}

// Register renders the registration form.
func Register(flashes []Flash, csrf string) templ.Component {
	return Layout("Register", nil, csrf, flashes, credentialsForm(csrf, "Register", "/register", "Register", "/login", "Back to login"))
}

func credentialsForm(csrf, heading, action, submit, altHref, altText string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="card"><h2>`)
		h.text(heading)
		h.raw(`</h2><form method="post" action="`, action, `">`)
		h.csrf(csrf)
		h.raw(`<p><label>Username<br><input name="username" autocomplete="username" required></label></p>`,
			`<p><label>Password<br><input name="password" type="password" required></label></p>`,
			`<p><button type="submit">`)
		h.text(submit)
		h.raw(`</button> <a href="`, altHref, `">`)
		h.text(altText)
		h.raw(`</a></p></form></div>`)
		return h.err
	})
}
