package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/inkwell/ai/agents/events"
)

const (
	// HeaderSessionID carries the session of a chat stream.
	HeaderSessionID = "X-Inkwell-Session-Id"
	mimeNDJSON      = "application/x-ndjson"
)

// proposalResultLine leads an accept or reject stream.
type proposalResultLine struct {
	Type   string `json:"type"`
	Result any    `json:"result"`
}

// writeStream writes ch as NDJSON. The channel is drained even after a
// write failure so the producing turn can finish.
func writeStream(c echo.Context, ch <-chan events.Event, lead any) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, mimeNDJSON)
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	enc := events.NewEncoder(res)
	var werr error
	if lead != nil {
		werr = enc.Encode(lead)
	}
	for ev := range ch {
		if werr != nil {
			continue
		}
		if werr = enc.Encode(ev); werr != nil {
			slog.Debug("stream write failed, draining", "error", werr)
		}
	}
	return nil
}
