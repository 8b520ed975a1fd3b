package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Replace(zap.New(core))

	Component("NDPluginBlur").Info("hello", zap.String(FieldPort, "BLUR1"))
	S().Warnw("sugared", FieldMode, "Gaussian")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "NDPluginBlur", entries[0].ContextMap()[FieldComponent])
		assert.Equal(t, "BLUR1", entries[0].ContextMap()[FieldPort])
		assert.Equal(t, "Gaussian", entries[1].ContextMap()[FieldMode])
	}
	assert.Same(t, Log(), zap.L())
}

func TestInit(t *testing.T) {
	assert.NoError(t, Init(true))
	assert.NoError(t, Init(false))
	Sync()
}
