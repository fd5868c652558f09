package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestInit_TestEnvironmentIsNop(t *testing.T) {
	Init("test")

	assert.NotNil(t, L())
	assert.NotPanics(t, func() {
		Info("hello", zap.String("k", "v"))
		Warn("warn")
		Error("err")
		Debug("debug")
	})
}

func TestInit_Development(t *testing.T) {
	Init("development")
	defer Init("test")

	assert.NotNil(t, L())
	assert.True(t, L().Core().Enabled(zap.DebugLevel))
}

func TestInit_Production(t *testing.T) {
	Init("production")
	defer Init("test")

	assert.False(t, L().Core().Enabled(zap.DebugLevel))
	assert.True(t, L().Core().Enabled(zap.InfoLevel))
}

func TestWith_AddsFields(t *testing.T) {
	Init("test")
	child := With(zap.String("component", "resolver"))
	assert.NotNil(t, child)
}
