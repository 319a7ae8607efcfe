package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. Write
// timeouts leave room for a full analysis call plus persistence.
func New(addr string, handler http.Handler, analysisTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      analysisTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
