package mcp

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleSSE answers the streaming probe. It writes one comment line and
// closes; no events are streamed.
func handleSSE(c echo.Context) error {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(": SSE endpoint available\n\n")); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
