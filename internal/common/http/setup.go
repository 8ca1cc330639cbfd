package http

import (
	"net/http"

	"github.com/AlibekovAA/devicehub/internal/common/constants"
	"github.com/AlibekovAA/devicehub/internal/common/httpmetrics"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
)

// BuildBaseHandler wraps the REST mux. The websocket route must not go
// through it since the metrics recorder does not implement http.Hijacker.
func BuildBaseHandler(log *logger.Logger, handler http.Handler) http.Handler {
	collector := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize)

	return SecurityHeadersMiddleware(recovery(TraceIDMiddleware(maxRequestSize(collector.Wrap(handler)))))
}
