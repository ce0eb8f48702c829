package lgr

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdobak/go-xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stdxerrors "golang.org/x/xerrors"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestErrorAttrCarriesStack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: replaceAttr}))

	logger.Error("boom", slog.Any("error", xerrors.New("camera read failed")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	group, ok := line["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "camera read failed", group["msg"])
	assert.NotEmpty(t, group["trace"])
}

func TestErrorAttrWithoutStack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: replaceAttr}))

	logger.Warn("decode", slog.Any("error", stdxerrors.New("bad upload")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	group, ok := line["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bad upload", group["msg"])
	assert.NotContains(t, group, "trace")
}

func TestSetupWritesJSONFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	path := filepath.Join(t.TempDir(), "fsd.log")
	closer := Setup(Options{Level: "debug", File: path, MaxSizeMB: 1})

	Logger.Debug("frame processed", slog.Int("frame", 3))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "frame processed", line["msg"])
	assert.Equal(t, float64(3), line["frame"])
}

func TestSetupWithoutFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	closer := Setup(Options{Level: "warn"})
	assert.NoError(t, closer.Close())
	assert.False(t, Logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, Logger.Enabled(context.Background(), slog.LevelError))
}
