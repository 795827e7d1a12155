package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fmueller/mocoscribe/internal/gpt"
	"github.com/fmueller/mocoscribe/internal/scribe"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultAddr = "127.0.0.1:7431"

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// App is the state shared by every request. It is built once by the
// caller and handed to the router; handlers never reach for globals.
type App struct {
	Handler    *scribe.Handler
	ChooseFile func(ctx context.Context) (string, error)
	Logger     *zap.Logger
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

func New(addr string, app *App) *Server {
	if addr == "" {
		addr = DefaultAddr
	}

	logger := app.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := NewRouter(app)
	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger: logger,
	}
}

// NewRouter wires the UI boundary: select-file, transcribe and the
// post-processing endpoints.
func NewRouter(app *App) *gin.Engine {
	logger := app.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(accessLog(logger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/select-file", app.selectFile)
	api.POST("/transcribe", app.transcribe)
	api.POST("/refine", app.refine)
	api.GET("/prompt", app.getPrompt)
	api.PUT("/prompt", app.putPrompt)

	return router
}

func (a *App) selectFile(c *gin.Context) {
	if a.ChooseFile == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "file picker not available"})
		return
	}

	path, err := a.ChooseFile(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (a *App) transcribe(c *gin.Context) {
	var req scribe.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, scribe.Outcome{Success: false, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	// A dispatched job runs to completion even if the client goes away.
	outcome := a.Handler.Handle(context.WithoutCancel(c.Request.Context()), req)
	if err := outcome.Err(); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, outcome)
}

func (a *App) refine(c *gin.Context) {
	var req scribe.RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, scribe.RefineOutcome{Success: false, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	outcome := a.Handler.Refine(context.WithoutCancel(c.Request.Context()), req)
	if err := outcome.Err(); err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, outcome)
}

type promptBody struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (a *App) getPrompt(c *gin.Context) {
	prompt, err := gpt.LoadPrompt(a.Handler.PromptPath)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, promptBody{Prompt: prompt})
}

func (a *App) putPrompt(c *gin.Context) {
	var body promptBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if err := gpt.SavePrompt(a.Handler.PromptPath, body.Prompt); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, body)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("serving UI boundary", zap.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
