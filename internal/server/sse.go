package server

import (
	"iter"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edura/edura-core/internal/llm"
	"github.com/edura/edura-core/internal/logger"
)

// writeStream writes every event verbatim and flushes after each one. A
// failed write means the client is gone; returning ends the range, which
// closes the upstream connection.
func writeStream(c echo.Context, events iter.Seq[llm.Event]) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for ev := range events {
		if _, err := res.Write(ev.Data); err != nil {
			logger.L.Debug("client stream closed", logger.Err(err))
			return nil
		}
		res.Flush()
	}
	return nil
}
