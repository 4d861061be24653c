package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/scheduler"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/jon4hz/parley/web/templates/pages"
	"github.com/samber/lo"
)

// AdminPage shows every other account with a remove button.
func (h *Handler) AdminPage(c *gin.Context) {
	ctx := c.Request.Context()
	data := pages.AdminData{
		Me:      h.currentUser(c),
		Flashes: popFlashes(c),
		CSRF:    csrfToken(c),
	}
	if h.jobs != nil {
		data.Jobs = h.jobs.GetJobs()
		slices.SortFunc(data.Jobs, func(a, b scheduler.JobInfo) int { return strings.Compare(a.ID, b.ID) })
	}

	users, err := h.admin.Users(ctx)
	if err != nil {
		data.Error = "Failed to load users"
	}
	data.Users = lo.Map(users, func(u chatapi.User, _ int) pages.Peer { return h.withAvatar(u) })

	c.Header("Content-Type", "text/html")
	if err := pages.Admin(data).Render(ctx, c.Writer); err != nil {
		log.Error("Failed to render admin page", "error", err)
	}
}

// RemoveUser deletes an account and goes back to the admin view.
func (h *Handler) RemoveUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		addFlash(c, flashError, "Failed to remove user")
		c.Redirect(http.StatusFound, string(session.ViewAdmin))
		return
	}

	switch err := h.admin.Remove(c.Request.Context(), id); {
	case err == nil:
	case errors.Is(err, chat.ErrRemoveSelf):
		addFlash(c, flashError, "You cannot remove yourself")
	default:
		addFlash(c, flashError, "Failed to remove user")
	}
	c.Redirect(http.StatusFound, string(session.ViewAdmin))
}

// ToggleJob pauses a running background job or resumes a paused one.
func (h *Handler) ToggleJob(c *gin.Context) {
	defer c.Redirect(http.StatusFound, string(session.ViewAdmin))

	if h.jobs == nil {
		addFlash(c, flashError, "No background jobs are running")
		return
	}
	job, ok := h.jobs.GetJob(c.Param("id"))
	if !ok {
		addFlash(c, flashError, "Unknown job")
		return
	}

	toggle, verb := h.jobs.DisableJob, "Paused"
	if !job.Enabled {
		toggle, verb = h.jobs.EnableJob, "Resumed"
	}
	if err := toggle(job.ID); err != nil {
		log.Error("Failed to toggle job", "id", job.ID, "error", err)
		addFlash(c, flashError, "Failed to update job")
		return
	}
	addFlash(c, flashSuccess, verb+" "+job.Name)
}
