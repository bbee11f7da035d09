package main

import (
	"context"
	"log"
	"os"

	"github.com/platformsec/tagsentry/telemetry"
)

// initTelemetry initializes OTEL for tagsentry.
// Can be disabled with TAGSENTRY_TELEMETRY_DISABLED=true
func initTelemetry(ctx context.Context) func() {
	if os.Getenv("TAGSENTRY_TELEMETRY_DISABLED") == "true" {
		return func() {}
	}

	cfg := telemetry.Config{
		ServiceName:    "tagsentry",
		ServiceVersion: version,
		Environment:    os.Getenv("TAGSENTRY_ENVIRONMENT"),
		OTELEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:       true,
	}

	shutdown, err := telemetry.InitOTEL(ctx, cfg)
	if err != nil {
		// missing collectors must never block compliance checks
		log.Printf("telemetry initialization failed, running without: %v", err)
		return func() {}
	}

	return func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("error shutting down telemetry: %v", err)
		}
	}
}
