package taskqueue

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// QueueConfig is the per-(warehouse, queue) configuration of §4.7: max
// attempts, heartbeat threshold, retry backoff, scheduling policy.
// Configuration is fetched per task and cached briefly (§4.7).
type QueueConfig struct {
	MaxAttempts       int
	HeartbeatTimeout  time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultQueueConfig is used when no per-warehouse override exists.
var DefaultQueueConfig = QueueConfig{
	MaxAttempts:       5,
	HeartbeatTimeout:  30 * time.Second,
	InitialBackoff:    time.Second,
	MaxBackoff:        5 * time.Minute,
	BackoffMultiplier: 2,
}

// NewBackOff returns a fresh backoff.ExponentialBackOff built from this
// config, following cenkalti/backoff/v4's policy (§4.5 expansion: "retry
// backoff policy on task failure").
func (c QueueConfig) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.Multiplier = c.BackoffMultiplier
	b.MaxElapsedTime = 0 // the queue owns the attempt cap, not the backoff generator
	return b
}

// configKey scopes a QueueConfig override to a (warehouse, queue) pair. An
// empty warehouseID means "project-scoped queue" (no warehouse override).
type configKey struct {
	warehouseID string
	queueName   string
}

// ConfigProvider caches per-queue config with a short TTL so a hot pick
// loop does not round-trip to the config store on every task (§4.7).
type ConfigProvider struct {
	mu        sync.Mutex
	fallback  QueueConfig
	overrides map[configKey]QueueConfig
	cache     map[configKey]cachedConfig
	ttl       time.Duration
	now       func() time.Time
}

type cachedConfig struct {
	config   QueueConfig
	cachedAt time.Time
}

// NewConfigProvider builds a provider with the given cache TTL (<=0 means
// "always fresh", useful in tests).
func NewConfigProvider(ttl time.Duration) *ConfigProvider {
	return &ConfigProvider{
		fallback:  DefaultQueueConfig,
		overrides: map[configKey]QueueConfig{},
		cache:     map[configKey]cachedConfig{},
		ttl:       ttl,
		now:       time.Now,
	}
}

// SetOverride installs a per-(warehouse, queue) config, replacing
// DefaultQueueConfig for that scope.
func (p *ConfigProvider) SetOverride(warehouseID, queueName string, cfg QueueConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[configKey{warehouseID, queueName}] = cfg
	delete(p.cache, configKey{warehouseID, queueName})
}

// SetDefault replaces the fallback QueueConfig used whenever no
// per-(warehouse, queue) override is installed, so a deployment's
// queue_defaults block (catalogconfig.QueueDefaults) can override the
// package-level DefaultQueueConfig without mutating shared state.
func (p *ConfigProvider) SetDefault(cfg QueueConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = cfg
	p.cache = map[configKey]cachedConfig{}
}

// Get resolves the config for a (warehouse, queue) pair, serving from the
// short-lived cache when fresh.
func (p *ConfigProvider) Get(warehouseID, queueName string) QueueConfig {
	key := configKey{warehouseID, queueName}
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.cache[key]; ok && p.ttl > 0 && p.now().Sub(entry.cachedAt) < p.ttl {
		return entry.config
	}

	cfg, ok := p.overrides[key]
	if !ok {
		cfg = p.fallback
	}
	p.cache[key] = cachedConfig{config: cfg, cachedAt: p.now()}
	return cfg
}
