package taskqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigProviderFallsBackToDefault(t *testing.T) {
	p := NewConfigProvider(0)
	assert.Equal(t, DefaultQueueConfig, p.Get("wh1", "tabular_expiration"))
}

func TestConfigProviderSetDefaultReplacesFallback(t *testing.T) {
	p := NewConfigProvider(0)
	deployment := QueueConfig{MaxAttempts: 9, HeartbeatTimeout: 2 * time.Minute, InitialBackoff: time.Second, MaxBackoff: time.Minute, BackoffMultiplier: 2}
	p.SetDefault(deployment)

	assert.Equal(t, deployment, p.Get("wh1", "tabular_expiration"))
}

func TestConfigProviderOverrideWinsOverDefault(t *testing.T) {
	p := NewConfigProvider(0)
	p.SetDefault(QueueConfig{MaxAttempts: 9})
	override := QueueConfig{MaxAttempts: 1}
	p.SetOverride("wh1", "tabular_expiration", override)

	assert.Equal(t, override, p.Get("wh1", "tabular_expiration"))
	assert.Equal(t, 9, p.Get("wh2", "tabular_expiration").MaxAttempts)
}
