// Tagsentry - AWS tag compliance engine
// Classify. Evaluate. Notify.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("TAGSENTRY_DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cleanup := initTelemetry(context.Background())
	defer cleanup()

	Execute()
}
