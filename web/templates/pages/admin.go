package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/jon4hz/parley/internal/scheduler"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/jon4hz/parley/web/templates/components"
)

// AdminData is everything the user administration page shows.
type AdminData struct {
	Me      *chatapi.User
	CSRF    string
	Flashes []Flash
	Users   []Peer
	Error   string
	// Jobs are the background jobs of the web server, empty if there are none.
	Jobs []scheduler.JobInfo
}

// Admin renders the user table with a remove button per user, followed by
// the background jobs.
func Admin(data AdminData) templ.Component {
	return Layout("Admin", data.Me, data.CSRF, data.Flashes, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		adminUsers(h, data)
		if len(data.Jobs) > 0 {
			adminJobs(h, data)
		}
		return h.err
	}))
}

func adminUsers(h *html, data AdminData) {
	h.raw(`<div class="card"><h2>Users</h2>`)
	if data.Error != "" {
		h.raw(`<p class="flash error">`)
		h.text(data.Error)
		h.raw(`</p></div>`)
		return
	}
	h.raw(`<p>`, components.FormatCount(len(data.Users)), ` `, components.Plural(len(data.Users), "user"), `</p>`,
		`<table><thead><tr><th></th><th>ID</th><th>Username</th><th>Role</th><th></th></tr></thead><tbody>`)
	for _, u := range data.Users {
		h.raw(`<tr><td>`)
		avatarImg(h, u.Avatar)
		h.raw(fmt.Sprintf(`</td><td>%d</td><td>`, u.ID))
		h.text(u.Username)
		h.raw(`</td><td>`)
		if u.IsAdmin {
			h.raw(`admin`)
		} else {
			h.raw(`user`)
		}
		h.raw(fmt.Sprintf(`</td><td><form class="inline" method="post" action="/admin/users/%d/delete" onsubmit="return confirm('Remove this user?')">`, u.ID))
		h.csrf(data.CSRF)
		h.raw(`<button type="submit">Remove</button></form></td></tr>`)
	}
	h.raw(`</tbody></table></div>`)
}

func adminJobs(h *html, data AdminData) {
	h.raw(`<div class="card"><h2>Background jobs</h2>`,
		`<table><thead><tr><th>Job</th><th>Status</th><th>Last run</th><th>Runs</th><th></th></tr></thead><tbody>`)
	for _, j := range data.Jobs {
		h.raw(`<tr><td>`)
		h.text(j.Name)
		h.raw(`</td><td>`)
		if j.Enabled {
			h.text(string(j.Status))
		} else {
			h.raw(`paused`)
		}
		h.raw(`</td><td>`)
		if j.LastRun.IsZero() {
			h.raw(`never`)
		} else {
			h.text(components.FormatRelativeTime(j.LastRun))
		}
		h.raw(`</td><td>`, components.FormatCount(j.RunCount), `</td><td>`)
		h.raw(`<form class="inline" method="post" action="/admin/jobs/`)
		h.text(j.ID)
		h.raw(`/toggle">`)
		h.csrf(data.CSRF)
		if j.Enabled {
			h.raw(`<button type="submit">Pause</button>`)
		} else {
			h.raw(`<button type="submit">Resume</button>`)
		}
		h.raw(`</form></td></tr>`)
	}
	h.raw(`</tbody></table></div>`)
}
