package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContext_AddsRunID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("info", "json", &buf))

	ctx := WithRunID(context.Background(), "run-42")
	Infof(ctx, "planned %d orders", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run-42", line["run_id"])
	assert.Equal(t, "info", line["severity"])
	assert.Equal(t, "planned 3 orders", line["message"])
}

func TestConfigure_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("warn", "json", &buf))

	assert.Error(t, Configure("loud", "json", &buf))
	assert.Equal(t, "warning", Logger().GetLevel().String())
}
