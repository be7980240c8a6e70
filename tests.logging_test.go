package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stepClock moves forward by one second on every call.
type stepClock struct {
	now time.Time
}

func (sc *stepClock) Now() time.Time {
	sc.now = sc.now.Add(time.Second)
	return sc.now
}

func TestCreateLogFilePath(t *testing.T) {
	ts := time.Date(2023, 7, 2, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("logs", "20230702.090507.prod.log"), CreateLogFilePath("logs", true, ts))
	assert.Equal(t, filepath.Join("logs", "20230702.090507.dev.log"), CreateLogFilePath("logs", false, ts))
}

func TestRSyncWriteRotation(t *testing.T) {
	folder := t.TempDir()
	clock := &stepClock{now: NewMockClocker().Now()}
	w := NewRSyncWriter(&Config{LogFolder: folder, LogMaxSize: 1, IsProduction: true}, clock)
	defer w.Close()

	chunk := bytes.Repeat([]byte("a"), 600*1024)
	n, err := w.Write(chunk)
	require.NoError(t, err)
	assert.Equal(t, len(chunk), n)
	_, err = w.Write(chunk)
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = w.Write(bytes.Repeat([]byte("a"), 2*megabyte))
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{IsProduction: true, GitCommit: "abc123", LogLevel: zap.InfoLevel}
	logger, flush := SetupLogging(config, zapcore.AddSync(&buf), NewTickClock(NewMockClocker()))
	logger.Debug("hidden")
	logger.Info("visible", zap.String("book.pk", "x"))
	require.NoError(t, flush())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"app.commit":"abc123"`)
	assert.Contains(t, out, `"ts":"2023-07-02T00:00:00.123Z"`)
}

func TestGetLoggerFromContext(t *testing.T) {
	api := newTestAPIHandler()
	assert.Same(t, api.logger, api.GetLoggerFromContext(context.Background()))
	scoped := zap.NewNop().With(zap.String("request.id", "r:1"))
	ctx := context.WithValue(context.Background(), LoggerContextKey, scoped)
	assert.Same(t, scoped, api.GetLoggerFromContext(ctx))
}
