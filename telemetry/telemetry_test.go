package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)

	// Logging with and without context must not panic
	logger.Info().Msg("plain entry")
	logger.LogVerdict(context.Background(), "ec2:instance", []string{"i-123"}, true, 0)
	logger.LogCollaboratorError(context.Background(), "fetch_rules", errors.New("boom"))
}

func TestWithContext(t *testing.T) {
	logger := NewLogger("test-component")
	ctxLogger := logger.WithContext(context.Background())
	assert.NotNil(t, ctxLogger)
	ctxLogger.Debug().Msg("context entry")
}
