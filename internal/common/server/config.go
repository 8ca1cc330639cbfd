package server

import (
	"net/http"

	"github.com/AlibekovAA/devicehub/internal/common/config"
)

// NewServer builds the single devicehub listener serving the HTTP API and
// the /ws upgrade on the same port.
func NewServer(port string, cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
