package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FlashScan/pkg/http/middleware"
	applogger "FlashScan/pkg/logger"
)

type ServerOption func(*ServerConfig)

type ServerConfig struct {
	Host            string
	Port            int // 0 picks a free port
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
	MetricsPath     string // empty disables /metrics
	SlowRequest     time.Duration
	BodyLimit       string // echo size notation, e.g. "32M"
	Logger          *applogger.Logger
	Health          func(ctx context.Context) error
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORS:            true,
		MetricsPath:     "/metrics",
		SlowRequest:     5 * time.Second,
		BodyLimit:       "32M",
	}
}

// Server is the echo instance with the standard middleware stack plus /healthz and /metrics.
type Server struct {
	echo *echo.Echo
	cfg  ServerConfig
	ln   net.Listener
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	// Metrics wraps logging so it sees the status written for returned errors; Recover sits
	// inside both so a panic is still counted as a 500.
	e.Use(echomw.RequestID())
	e.Use(middleware.Metrics(cfg.Logger, cfg.SlowRequest, cfg.MetricsPath, "/healthz"))
	e.Use(middleware.RequestLogging(cfg.Logger))
	e.Use(middleware.Recover(cfg.Logger))
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	e.GET("/healthz", healthz(cfg.Health))

	return &Server{echo: e, cfg: cfg}
}

// Start binds the listener and serves in the background. Bind errors are returned here; later
// serve errors are logged.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", addr, err)
	}
	s.ln = ln
	s.echo.Listener = ln

	l := s.cfg.Logger
	l.Info("http server listening", applogger.String("addr", ln.Addr().String()))
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.cfg.Logger.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.echo }

func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		if host != "" {
			c.Host = host
		}
	}
}

func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		if read > 0 {
			c.ReadTimeout = read
		}
		if write > 0 {
			c.WriteTimeout = write
		}
		if shutdown > 0 {
			c.ShutdownTimeout = shutdown
		}
	}
}

func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) { c.CORS = enabled }
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}

func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

// WithBodyLimit caps request bodies; "" removes the cap.
func WithBodyLimit(limit string) ServerOption {
	return func(c *ServerConfig) { c.BodyLimit = limit }
}

// WithHealthCheck sets the check behind /healthz.
func WithHealthCheck(fn func(ctx context.Context) error) ServerOption {
	return func(c *ServerConfig) { c.Health = fn }
}

func healthz(check func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if check == nil {
			return SuccessResponse(c, "ok")
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := check(ctx); err != nil {
			return DataResponse(c, http.StatusServiceUnavailable, err.Error())
		}
		return SuccessResponse(c, "ok")
	}
}
