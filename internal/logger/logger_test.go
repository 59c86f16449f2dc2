package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memorySink struct {
	mu      sync.Mutex
	records []LogRecord
}

func (s *memorySink) Insert(ctx context.Context, record LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) snapshot() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), s.records...)
}

func TestDBCoreTeesEntries(t *testing.T) {
	sink := &memorySink{}
	observed, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(NewDBCore(observed, NewDBLogWriter(sink, "go-kpi")))

	log.With(zap.String("user_id", "u1")).Warn("sync failed", zap.String("path", "/api/integrations"))

	assert.Equal(t, 1, logs.Len())
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	rec := sink.snapshot()[0]
	assert.Equal(t, "sync failed", rec.Message)
	assert.Equal(t, "/api/integrations", rec.Path)
	assert.Equal(t, 30, rec.LogLevelId)
	assert.Equal(t, "go-kpi", rec.AppID)
}

func TestDBCoreSkipsDisabledLevels(t *testing.T) {
	sink := &memorySink{}
	observed, _ := observer.New(zapcore.InfoLevel)
	log := zap.New(NewDBCore(observed, NewDBLogWriter(sink, "go-kpi")))

	log.Debug("noise")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
}
