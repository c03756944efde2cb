package messaging_test

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := messaging.NewZapLogger(zap.New(core))

	logger.Info("subscribed", watermill.LogFields{"topic": "link.clicks.flushed"})
	logger.Error("publish failed", errors.New("boom"), nil)
	logger.With(watermill.LogFields{"consumer_group": "clicks"}).Trace("polling", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "link.clicks.flushed", entries[0].ContextMap()["topic"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])

	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, "clicks", entries[2].ContextMap()["consumer_group"])
}
