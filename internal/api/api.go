package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jon4hz/parley/internal/api/handler"
	"github.com/jon4hz/parley/internal/avatar"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/config"
	"github.com/jon4hz/parley/internal/session"
)

const cookieName = "parley_session"

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	session   handler.Session
	handler   *handler.Handler
}

// New creates the browser UI around a single session manager.
// jobs may be nil.
func New(cfg *config.Config, sess handler.Session, backend chat.API, jobs handler.Jobs, debug bool) (*Server, error) {
	if cfg == nil || cfg.Web == nil {
		return nil, fmt.Errorf("config is required")
	}
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}
	if err := avatar.Validate(cfg.Avatar); err != nil {
		return nil, err
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		session:   sess,
		handler:   handler.New(sess, backend, cfg.Avatar, jobs),
	}
	s.ginEngine.Use(gin.Recovery())
	if debug {
		s.ginEngine.Use(gin.Logger())
	}
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression))

	s.setupSession()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSession() {
	key := s.cfg.Web.SessionKey
	if key == "" {
		key = uuid.NewString()
		log.Debug("no session key configured, using a random one")
	}
	maxAge := s.cfg.Web.SessionMaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}

	store := cookie.NewStore([]byte(key))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(cookieName, store))
	s.ginEngine.Use(RequireSameSite())
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.ginEngine.GET("/healthz", h.Healthz)

	s.ginEngine.GET(string(session.ViewLogin), h.LoginPage)
	s.ginEngine.POST(string(session.ViewLogin), h.Login)
	s.ginEngine.GET(string(session.ViewRegister), h.RegisterPage)
	s.ginEngine.POST(string(session.ViewRegister), h.Register)
	s.ginEngine.POST("/logout", h.Logout)

	protected := s.ginEngine.Group("/")
	protected.Use(RequireAuth(s.session))
	protected.GET(string(session.ViewHome), h.Home)
	protected.POST("/messages/:peer", h.SendMessage)

	admin := s.ginEngine.Group(string(session.ViewAdmin))
	admin.Use(RequireAdmin(s.session))
	admin.GET("", h.AdminPage)
	admin.POST("/users/:id/delete", h.RemoveUser)
	admin.POST("/jobs/:id/toggle", h.ToggleJob)

	s.ginEngine.NoRoute(h.NotFound)
}

// Handler returns the http.Handler serving the browser UI.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves the browser UI until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Web.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
