package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icewatch/ticketwatch/internal/calendar"
	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/watcher"
)

const (
	// WebhookPath is where Telegram pushes updates in webhook mode
	WebhookPath = "/telegram/webhook"

	shutdownTimeout = 5 * time.Second
	calendarName    = "Билеты на хоккей"
)

// StatusSource is the read side of the watcher
type StatusSource interface {
	Status() watcher.Status
	Snapshot() *match.Snapshot
}

// SubscriberCounter reports the number of subscribed chats
type SubscriberCounter interface {
	Count(ctx context.Context) (int, error)
}

// Options configures the HTTP server
type Options struct {
	Addr           string
	Version        string
	Status         StatusSource
	Subscribers    SubscriberCounter // optional
	Webhook        http.Handler      // mounted at WebhookPath when set
	TrustedProxies []string
	// Debug keeps gin in debug mode, which prints route and warning dumps
	Debug bool
}

// Server is the gin-based HTTP surface
type Server struct {
	opts   Options
	engine *gin.Engine
	now    func() time.Time
}

type healthResponse struct {
	Status              string     `json:"status"`
	Version             string     `json:"version"`
	State               string     `json:"state"`
	LastCheck           *time.Time `json:"last_check"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	Matches             int        `json:"matches"`
	Subscribers         *int       `json:"subscribers"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Uptime              string     `json:"uptime"`
}

// New builds the router
func New(opts Options) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("server: status source is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.TrustedProxies == nil {
		opts.TrustedProxies = []string{"127.0.0.1", "::1"}
	}

	if !opts.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{opts: opts, engine: engine, now: time.Now}

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/health", s.health)
	engine.GET("/version", func(c *gin.Context) {
		c.String(http.StatusOK, s.opts.Version)
	})
	engine.GET("/matches", s.matches)
	engine.GET("/calendar.ics", s.calendar)
	if opts.Webhook != nil {
		engine.POST(WebhookPath, gin.WrapH(opts.Webhook))
	}

	return s, nil
}

// Handler returns the router for use in tests or custom servers
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.Fields{"addr": s.opts.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Info("HTTP server stopped", nil)
	return nil
}

func (s *Server) health(c *gin.Context) {
	st := s.opts.Status.Status()
	resp := healthResponse{
		Status:              "ok",
		Version:             s.opts.Version,
		State:               string(st.State),
		LastCheck:           timePtr(st.LastCheck),
		LastSuccess:         timePtr(st.LastSuccess),
		LastError:           st.LastError,
		Matches:             st.Matches,
		ConsecutiveFailures: st.ConsecutiveFailures,
		Uptime:              st.Uptime(s.now()).Round(time.Second).String(),
	}
	if st.Degraded() {
		resp.Status = "degraded"
	}
	if s.opts.Subscribers != nil {
		if n, err := s.opts.Subscribers.Count(c.Request.Context()); err == nil {
			resp.Subscribers = &n
		} else {
			logger.Warn("Failed to count subscribers for health", logger.Fields{"error": err.Error()})
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) matches(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Status.Snapshot())
}

func (s *Server) calendar(c *gin.Context) {
	snap := s.opts.Status.Snapshot()
	ics := calendar.GenerateICS(snap.Matches, calendarName, s.now())
	c.Header("Content-Disposition", `inline; filename="matches.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.RecordTiming("http.request", time.Since(start))
		logger.Debug("HTTP request", logger.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		})
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
