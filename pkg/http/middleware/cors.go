package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds CORS configuration. An empty AllowOrigins allows any origin.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int // seconds a preflight may be cached
}

// DefaultCORSConfig allows the read-only analysis API and the bar upload from any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:       600,
	}
}

func (cfg CORSConfig) allowed(origin string) bool {
	if len(cfg.AllowOrigins) == 0 {
		return true
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// CORS returns CORS middleware. Requests without an Origin header pass through untouched.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			origin := req.Header.Get(echo.HeaderOrigin)
			h := c.Response().Header()
			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			if origin == "" || !cfg.allowed(origin) {
				return next(c)
			}

			h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			preflight := req.Method == http.MethodOptions && req.Header.Get(echo.HeaderAccessControlRequestMethod) != ""
			if !preflight {
				return next(c)
			}
			if methods != "" {
				h.Set(echo.HeaderAccessControlAllowMethods, methods)
			}
			if headers != "" {
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
			}
			if cfg.MaxAge > 0 {
				h.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(cfg.MaxAge))
			}
			return c.NoContent(http.StatusNoContent)
		}
	}
}
