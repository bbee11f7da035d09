package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/platformsec/tagsentry/internal/poller"
	"github.com/platformsec/tagsentry/telemetry"
)

var serveMetricsAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously check events from an SQS queue",
	Long: `Run tagsentry as a daemon consuming change events from SQS.

EventBridge routes CloudTrail resource-creation events to the queue;
tagsentry long-polls it, checks each resource, records verdicts and
alerts on violations. Prometheus metrics are exposed on /metrics.

Shuts down gracefully on SIGTERM/SIGINT.`,
	Example: `  tagsentry serve --config tagsentry.yaml
  tagsentry serve --metrics :9191`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics", "", "Metrics server address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.QueueURL == "" {
		return fmt.Errorf("queue_url is required for serve mode")
	}

	metricsAddr := cfg.Telemetry.MetricsAddr
	if serveMetricsAddr != "" {
		metricsAddr = serveMetricsAddr
	}

	p, err := buildPipeline(cmd.Context(), cfg, pipelineOptions{notify: true, persist: true})
	if err != nil {
		return err
	}
	defer p.Close()

	sqsClient, err := buildSQSClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	queuePoller := poller.New(sqsClient, cfg.QueueURL, p.orchestrator)

	logger := telemetry.NewLogger("serve")
	logger.WithContext(cmd.Context()).Info().
		Str("queue_url", cfg.QueueURL).
		Str("metrics_addr", metricsAddr).
		Msg("tagsentry serving")

	var group run.Group

	// Poller actor
	pollCtx, pollCancel := context.WithCancel(cmd.Context())
	group.Add(func() error {
		return queuePoller.Run(pollCtx)
	}, func(error) {
		pollCancel()
	})

	// Metrics server actor
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "processed": %d}`, queuePoller.Processed())
	})
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	group.Add(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	// Signal handler actor
	group.Add(run.SignalHandler(cmd.Context(), syscall.SIGINT, syscall.SIGTERM))

	err = group.Run()
	var signalErr run.SignalError
	if errors.As(err, &signalErr) || errors.Is(err, context.Canceled) {
		logger.WithContext(cmd.Context()).Info().Msg("shutting down")
		return nil
	}
	return err
}

// metricsHandler serves the OTEL prometheus registry when telemetry is up,
// falling back to the default handler otherwise.
func metricsHandler() http.Handler {
	if telemetry.PrometheusRegistry != nil {
		return promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
