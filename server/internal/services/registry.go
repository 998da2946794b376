package services

import (
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/metrics"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Registry holds live sessions. Entries expire after the TTL unless touched,
// and an expired or removed session has its runner stopped.
type Registry struct {
	cache   *cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewRegistry(ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	// Purge expired sessions at a tenth of the TTL, but at least once a minute.
	cleanup := ttl / 10
	if cleanup <= 0 || cleanup > time.Minute {
		cleanup = time.Minute
	}

	r := &Registry{
		cache:   cache.New(ttl, cleanup),
		ttl:     ttl,
		metrics: m,
		log:     log,
	}
	r.cache.OnEvicted(r.evicted)
	return r
}

func (r *Registry) evicted(id string, v interface{}) {
	runner, ok := v.(*SessionRunner)
	if !ok {
		return
	}
	runner.Stop()
	if r.metrics != nil {
		r.metrics.ActiveSessions.Dec()
	}
	r.log.Info("Session removed", zap.String("session_id", id))
}

// Add registers a runner under its ID. It fails if the ID is taken.
func (r *Registry) Add(runner *SessionRunner) error {
	if err := r.cache.Add(runner.ID(), runner, cache.DefaultExpiration); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.ActiveSessions.Inc()
	}
	return nil
}

func (r *Registry) Get(id string) (*SessionRunner, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(*SessionRunner), true
	}
	return nil, false
}

// Touch resets the expiry of a live session.
func (r *Registry) Touch(id string) {
	if runner, ok := r.Get(id); ok {
		r.cache.Set(id, runner, cache.DefaultExpiration)
	}
}

// Remove stops and forgets a session.
func (r *Registry) Remove(id string) bool {
	if _, ok := r.Get(id); !ok {
		return false
	}
	r.cache.Delete(id)
	return true
}

func (r *Registry) Len() int { return r.cache.ItemCount() }

// Close stops every live session.
func (r *Registry) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
