package handler

import (
	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/parley/web/templates/pages"
)

const (
	flashError   = string(pages.FlashError)
	flashSuccess = string(pages.FlashSuccess)
)

// addFlash stores a message to show on the next rendered page.
func addFlash(c *gin.Context, kind, text string) {
	session := sessions.Default(c)
	session.AddFlash(text, kind)
	if err := session.Save(); err != nil {
		log.Error("Failed to save flash message", "error", err)
	}
}

// popFlashes returns and clears the pending flash messages.
func popFlashes(c *gin.Context) []pages.Flash {
	session := sessions.Default(c)

	var flashes []pages.Flash
	for _, kind := range []string{flashError, flashSuccess} {
		for _, v := range session.Flashes(kind) {
			if text, ok := v.(string); ok {
				flashes = append(flashes, pages.Flash{Kind: pages.FlashKind(kind), Text: text})
			}
		}
	}
	if len(flashes) > 0 {
		if err := session.Save(); err != nil {
			log.Error("Failed to clear flash messages", "error", err)
		}
	}
	return flashes
}
