// Package observability holds the tracing and Prometheus instrumentation
// shared by the stores, the engine and the HTTP layer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nerdtalk_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nerdtalk_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// PostsCreated counts inserted posts by kind (top_level or reply).
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nerdtalk_posts_created_total",
		Help: "Total number of posts created",
	}, []string{"kind"})

	// CascadeDeletes counts cascade delete operations by result.
	CascadeDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nerdtalk_cascade_deletes_total",
		Help: "Total number of cascade delete operations",
	}, []string{"result"})

	// CascadeSubtreeSize records how many posts each cascade delete targeted.
	CascadeSubtreeSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nerdtalk_cascade_subtree_size",
		Help:    "Number of posts targeted per cascade delete",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// CorruptTrees counts descendant walks aborted on a structural anomaly.
	CorruptTrees = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nerdtalk_corrupt_trees_total",
		Help: "Total number of corrupt threads detected during traversal",
	})

	// DanglingReferences counts index or child references skipped on read.
	DanglingReferences = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nerdtalk_dangling_references_total",
		Help: "Total number of references that no longer resolve to a post",
	}, []string{"source"})

	// ThreadCacheLookups counts thread cache lookups by result (hit or miss).
	ThreadCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nerdtalk_thread_cache_lookups_total",
		Help: "Thread view cache lookups",
	}, []string{"result"})

	// WebhookEvents counts identity provider events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nerdtalk_webhook_events_total",
		Help: "Identity provider webhook events received",
	}, []string{"type", "outcome"})
)

const queryStartKey = "nerdtalk:query_start"

// RegisterQueryMetrics installs GORM callbacks that feed DatabaseQueryLatency.
func RegisterQueryMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			DatabaseQueryLatency.WithLabelValues(operation, tx.Statement.Table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		op       string
		register func(name string, before, after func(*gorm.DB)) error
	}{
		{"create", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register(n+":before", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register(n+":after", a)
		}},
		{"query", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register(n+":before", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register(n+":after", a)
		}},
		{"update", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register(n+":before", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register(n+":after", a)
		}},
		{"delete", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register(n+":before", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register(n+":after", a)
		}},
		{"raw", func(n string, b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register(n+":before", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register(n+":after", a)
		}},
	}
	for _, s := range steps {
		if err := s.register("nerdtalk:metrics:"+s.op, before, after(s.op)); err != nil {
			return err
		}
	}
	return nil
}
