package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/web/templates/pages"
)

func (h *Handler) LoginPage(c *gin.Context) {
	c.Header("Content-Type", "text/html")
	if err := pages.Login(popFlashes(c), csrfToken(c)).Render(c.Request.Context(), c.Writer); err != nil {
		log.Error("Failed to render login page", "error", err)
	}
}

// Login logs in with the submitted credentials and waits for the profile
// to be loaded before going to the home view.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.PostForm("username")
	password := c.PostForm("password")

	if err := h.session.Login(ctx, username, password); err != nil {
		if errors.Is(err, session.ErrLoginFailed) {
			addFlash(c, flashError, "Invalid username or password")
		} else {
			log.Error("Failed to log in", "error", err)
			addFlash(c, flashError, "Login failed")
		}
		c.Redirect(http.StatusFound, string(session.ViewLogin))
		return
	}

	if err := h.session.Wait(ctx); err != nil {
		log.Debug("Gave up waiting for session validation", "error", err)
	}
	c.Redirect(http.StatusFound, string(session.ViewHome))
}

func (h *Handler) RegisterPage(c *gin.Context) {
	c.Header("Content-Type", "text/html")
	if err := pages.Register(popFlashes(c), csrfToken(c)).Render(c.Request.Context(), c.Writer); err != nil {
		log.Error("Failed to render register page", "error", err)
	}
}

// Register creates an account and sends the user to the login view.
func (h *Handler) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	if err := h.session.Register(c.Request.Context(), username, password); err != nil {
		addFlash(c, flashError, "Registration failed")
		c.Redirect(http.StatusFound, string(session.ViewRegister))
		return
	}

	addFlash(c, flashSuccess, "Registered! You can now log in")
	c.Redirect(http.StatusFound, string(session.ViewLogin))
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.session.Logout(c.Request.Context()); err != nil {
		log.Error("Failed to log out", "error", err)
	}
	c.Redirect(http.StatusFound, string(session.ViewLogin))
}
