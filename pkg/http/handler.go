package http

import "github.com/labstack/echo/v4"

// Handler defines HTTP route registration interface.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Handlers registers several handlers on the same server.
type Handlers []Handler

func (hs Handlers) RegisterRoutes(e *echo.Echo) {
	for _, h := range hs {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
