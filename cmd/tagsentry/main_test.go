package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"check", "rules", "serve", "backfill", "verdicts"} {
		assert.True(t, names[want], "command %s should be registered", want)
	}
}

func TestParseEventDocument(t *testing.T) {
	record := `{"eventSource": "ec2.amazonaws.com", "eventName": "RunInstances", "awsRegion": "us-east-1"}`

	event, err := parseEventDocument([]byte(record))
	require.NoError(t, err)
	assert.Equal(t, "RunInstances", event.Action)

	envelope := `{"detail-type": "AWS API Call via CloudTrail", "detail": ` + record + `}`
	event, err = parseEventDocument([]byte(envelope))
	require.NoError(t, err)
	assert.Equal(t, "ec2.amazonaws.com", event.Source)
	assert.Equal(t, "us-east-1", event.Region)

	_, err = parseEventDocument([]byte("not json"))
	assert.Error(t, err)
}
