package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry carrying a context.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL trace correlation.
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a component logger writing JSON to stdout.
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger bound to ctx for trace propagation.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogVerdict logs the outcome of one compliance check.
func (l *Logger) LogVerdict(ctx context.Context, resourceType string, resourceIDs []string, compliant bool, failed int) {
	l.WithContext(ctx).Info().
		Str("resource_type", resourceType).
		Strs("resource_ids", resourceIDs).
		Bool("compliant", compliant).
		Int("failed_rules", failed).
		Msg("compliance check complete")
}

// LogCollaboratorError logs a failed I/O step (rule fetch, tag fetch,
// notification) that turns the pipeline outcome into "error".
func (l *Logger) LogCollaboratorError(ctx context.Context, step string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("step", step).
		Msg("collaborator call failed")
}
