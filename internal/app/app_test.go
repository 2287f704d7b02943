package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobkit/internal/jobs"
	"jobkit/internal/platform/logger"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHeartbeat_LogsWithJobContext(t *testing.T) {
	var out syncBuffer
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(&out, nil), jobs.LogAttrs, nil))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := jobs.NewManager(jobs.WithLogger(quiet), jobs.WithListeners(jobs.NewListeners(quiet)))
	defer m.Shutdown()

	_, err := jobs.RunNow[jobs.Void](context.Background(), m, heartbeat(m, log), heartbeatInput())
	require.NoError(t, err)

	line := out.String()
	assert.Contains(t, line, `"msg":"heartbeat"`)
	assert.Contains(t, line, `"job":"heartbeat"`)
	assert.Contains(t, line, `"subject":"system"`)
	assert.Contains(t, line, `"tracked":1`)
	assert.Contains(t, line, `"worker":"main;job:heartbeat"`)
}
