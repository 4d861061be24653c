package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/parley/internal/api/handler"
	"github.com/jon4hz/parley/internal/session"
)

// RequireAuth lets the request through only with a validated session.
func RequireAuth(sess handler.Session) gin.HandlerFunc {
	return requireAccess(sess, session.AccessAuthenticated)
}

// RequireAdmin lets the request through only with a validated admin session.
func RequireAdmin(sess handler.Session) gin.HandlerFunc {
	return requireAccess(sess, session.AccessAdmin)
}

// requireAccess waits for an in-flight validation so a page is never
// decided on a half-restored session, then redirects if access is denied.
func requireAccess(sess handler.Session, access session.Access) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sess.Wait(c.Request.Context()); err != nil {
			log.Debug("request cancelled while waiting for session validation", "error", err)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		user := sess.Snapshot().User
		if redirect, ok := session.Decide(user, access); !ok {
			c.Redirect(http.StatusFound, string(redirect))
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// RequireSameSite rejects state changing requests sent by another site or
// without the session's form token.
func RequireSameSite() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if !handler.SameOrigin(c) {
			log.Warn("rejected cross-site request", "method", c.Request.Method, "path", c.Request.URL.Path, "origin", c.GetHeader("Origin"))
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if !handler.ValidCSRF(c) {
			log.Warn("rejected request with invalid csrf token", "method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
