package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
)

// NewServer wraps mux with panic recovery, CORS for the map frontend and
// request logging.
func NewServer(addr string, mux http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           recovery(cors(requestLogger(logger, mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
