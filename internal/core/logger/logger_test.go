package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bufSyncer struct{ bytes.Buffer }

func (b *bufSyncer) Sync() error { return nil }

func TestBuild_JSONLevel(t *testing.T) {
	var buf bufSyncer
	l, cleanup := Build(Options{Level: "warn", JSON: true}, &buf)
	defer cleanup()

	l.Info("hidden")
	l.Warn("shown", zap.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
	assert.Contains(t, out, `"ts":`)
}

func TestBuild_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bufSyncer
	l, cleanup := Build(Options{Level: "loud", JSON: true}, &buf)
	defer cleanup()

	l.Debug("dbg")
	l.Info("inf")
	assert.NotContains(t, buf.String(), "dbg")
	assert.Contains(t, buf.String(), "inf")
}

func TestBuild_RotateFile(t *testing.T) {
	var buf bufSyncer
	file := filepath.Join(t.TempDir(), "app.log")
	l, cleanup := Build(Options{
		Level:  "info",
		JSON:   true,
		Rotate: FileRotate{Enable: true, Filename: file, MaxSizeMB: 1},
	}, &buf)
	l.Info("to-file")
	cleanup()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to-file")
}

func TestRedirectStdLog(t *testing.T) {
	var buf bufSyncer
	l, cleanup := Build(Options{Level: "info", JSON: true}, &buf)
	defer cleanup()

	undo := RedirectStdLog(l, zapcore.InfoLevel)
	log.Print("from std")
	undo()

	assert.Contains(t, buf.String(), "from std")

	std := ToStdLogger(l, zapcore.ErrorLevel)
	std.Print("server error")
	assert.Contains(t, buf.String(), "server error")
}
