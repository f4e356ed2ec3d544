package constants

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopThresholds(t *testing.T) {
	t.Run("warn fires before abort", func(t *testing.T) {
		assert.Less(t, DefaultLoopWarnThreshold, DefaultLoopAbortThreshold)
	})
}

func TestDetectionThresholds(t *testing.T) {
	t.Run("floor is below the high-confidence cut", func(t *testing.T) {
		assert.Less(t, DefaultConfidenceFloor, DefaultHighConfidence)
	})

	t.Run("template bounds are ordered", func(t *testing.T) {
		assert.Less(t, MinTemplateDimension, MaxTemplateDimension)
	})
}

func TestLockSettings(t *testing.T) {
	t.Run("retry interval is short", func(t *testing.T) {
		assert.Less(t, LockRetryInterval, time.Second)
		assert.Greater(t, LockTimeout, LockRetryInterval)
	})
}
