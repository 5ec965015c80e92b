package observability

import (
	"github.com/danmuck/objsync/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime logging profile and tags the global
// logger with app and peer.
func InitLogger(app, peer string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Str("peer", peer).Logger()
	log.Logger = logger
	return logger
}
