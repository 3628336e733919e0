package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"multimodalchat/core"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// FileServer serves the generated images and audio, including the viewer page.
type FileServer struct {
	config ServerConfig
	router *gin.Engine
	server *http.Server
	logger *core.Logger

	listener net.Listener
	done     chan struct{}
}

func NewFileServer(config ServerConfig, logger *core.Logger) *FileServer {
	if logger == nil {
		logger = core.GetLogger()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &FileServer{
		config: config,
		router: gin.New(),
		logger: logger.With(map[string]any{"component": "file_server"}),
		done:   make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *FileServer) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), noStore())
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(allowOrigins(s.config.AllowedOrigins))
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/generated_images/"+s.config.ViewerName)
	})
	s.router.Static("/generated_images", s.config.ImageDir)
	s.router.Static("/generated_audio", s.config.AudioDir)
}

// Handler exposes the router, mainly for tests.
func (s *FileServer) Handler() http.Handler {
	return s.router
}

// Listen creates the asset directories and binds the port without serving,
// so Port is known before the routes that depend on it are added. Start calls
// it when it hasn't run yet.
func (s *FileServer) Listen() error {
	if s.listener != nil {
		return nil
	}
	for _, dir := range []string{s.config.ImageDir, s.config.AudioDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("server: mkdir %q: %w", dir, err)
		}
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Start serves in the background until ctx is cancelled, binding first if
// Listen wasn't called. Bind errors are returned.
func (s *FileServer) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	ln := s.listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("file server stopped", "error", err)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("file server shutdown", "error", err)
		}
	}()

	s.logger.Info(fmt.Sprintf("Server running at http://localhost:%d", s.Port()))
	return nil
}

// Port is the bound port, useful when the config asked for port 0.
func (s *FileServer) Port() int {
	if s.listener == nil {
		return s.config.Port
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Done is closed once the server has stopped serving.
func (s *FileServer) Done() <-chan struct{} {
	return s.done
}

func (s *FileServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// noStore keeps browsers from caching the viewer, which is rewritten in place.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

func allowOrigins(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (s *FileServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
