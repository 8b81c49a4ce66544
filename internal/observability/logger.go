package observability

import (
	"github.com/danmuck/expertmesh/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime log profile and returns a logger tagged with the node id.
func InitLogger(node string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("node", node).Logger()
	log.Logger = logger
	return logger
}
