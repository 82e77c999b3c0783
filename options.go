package abhiyaan

import (
	"log/slog"
	"time"

	"github.com/abhiyaanhq/abhiyaan/shard"
	"github.com/abhiyaanhq/abhiyaan/stats"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithSource sets the partition source. Required.
func WithSource(s shard.Source) Option { return func(e *Engine) { e.source = s } }

// WithCache sets the read-through cache. Without one, every read is served
// from the stats tier or live aggregation.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithStatsStore sets the materialized stats store. Without one, reads skip
// straight to live aggregation.
func WithStatsStore(s stats.Store) Option { return func(e *Engine) { e.statsStore = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the freshness and caching policy.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock overrides the engine's time source. Test hook.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
