// Public domain.

package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var b bytes.Buffer
	l, err := New(&b, "warn", false)
	require.NoError(t, err)
	ctx := context.Background()

	l.Info(ctx, "hidden")
	l.Debug(ctx, "hidden")
	l.Warn(ctx, "shown", String("k", "v"))
	l.Error(ctx, "failed", Error(errors.New("boom")))

	out := b.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown k=v")
	assert.Contains(t, out, "error=boom")
}

func TestLoggerNamedJSON(t *testing.T) {
	var b bytes.Buffer
	l, err := New(&b, "debug", true)
	require.NoError(t, err)
	l.Named("gwsky").Debug(context.Background(), "loaded",
		Count("pixels", 1234567), Bytes("size", 2048))
	assert.Contains(t, b.String(), `"component":"gwsky"`)
	assert.Contains(t, b.String(), `"pixels":"1,234,567"`)
	assert.Contains(t, b.String(), `"size":"2.0 kB"`)
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"", "INFO", " debug ", "warning", "error"} {
		_, err := ParseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := New(&bytes.Buffer{}, "loud", false)
	assert.Error(t, err)
}

func TestGlobalDefaultsToNop(t *testing.T) {
	require.NotNil(t, Get())
	Named("x").Info(context.Background(), "discarded")
}
