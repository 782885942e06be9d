package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/resilience"
	"github.com/sells-group/resolve-cli/internal/score"
)

// ModelSource is the provenance source name stamped on accepted model values.
const ModelSource = "model"

// Config tunes the enrichment orchestrator.
type Config struct {
	// Concurrency is the number of entities enriched in parallel. Default: 4.
	Concurrency int

	// Timeout bounds one model call including retries. Default: 30s.
	Timeout time.Duration

	// AcceptThreshold is the minimum confidence for a model value to become
	// a reconciliation candidate. Default: 0.4.
	AcceptThreshold float64

	// RequestsPerSecond throttles model calls across all workers. Default: 2.
	RequestsPerSecond float64

	// AssessQuality adds one advisory self-assessment call per enriched
	// entity. Off by default.
	AssessQuality bool

	Retry   resilience.RetryConfig
	Breaker resilience.BreakerConfig
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.AcceptThreshold <= 0 {
		c.AcceptThreshold = DefaultAcceptThreshold
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	return c
}

// Stats counts what the orchestrator did during a run.
type Stats struct {
	ModelCalls int64 `json:"model_calls"`
	CacheHits  int64 `json:"cache_hits"`
	Accepted   int64 `json:"accepted"`
	Rejected   int64 `json:"rejected"`
	Fallbacks  int64 `json:"fallbacks"`
	Timeouts   int64 `json:"timeouts"`
}

// Orchestrator fills missing tracked fields on entities. Field-level
// failures are contained: a bad response falls back to the deterministic
// classifier, a timeout leaves the field for a future pass, and a dead model
// boundary degrades the whole run to fallback-only mode.
type Orchestrator struct {
	gen      Generator
	registry *model.Registry
	tasks    map[string]Task
	cache    *ResponseCache
	breaker  *resilience.Breaker
	limiter  *rate.Limiter
	fallback Fallback
	cfg      Config
	now      func() time.Time

	fallbackOnly atomic.Bool

	modelCalls atomic.Int64
	cacheHits  atomic.Int64
	accepted   atomic.Int64
	rejected   atomic.Int64
	fallbacks  atomic.Int64
	timeouts   atomic.Int64
}

// New creates an Orchestrator. A nil cache disables response caching.
func New(gen Generator, registry *model.Registry, cache *ResponseCache, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.ShouldTrip == nil {
		breakerCfg.ShouldTrip = resilience.IsTransient
	}
	return &Orchestrator{
		gen:      gen,
		registry: registry,
		tasks:    DefaultTasks(),
		cache:    cache,
		breaker:  resilience.NewBreaker(breakerCfg),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		cfg:      cfg,
		now:      time.Now,
	}
}

// EnrichAll enriches entities with a bounded worker pool, invoking apply
// with each entity's accepted candidates. Returns only on context
// cancellation; per-entity failures never abort the run.
func (o *Orchestrator) EnrichAll(ctx context.Context, entities []*model.CanonicalEntity, apply func(*model.CanonicalEntity, []model.FieldValue)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for _, entity := range entities {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			candidates := o.EnrichEntity(ctx, entity)
			if len(candidates) > 0 && apply != nil {
				apply(entity, candidates)
			}
			if o.cfg.AssessQuality && len(candidates) > 0 {
				o.assessQuality(ctx, entity)
			}
			return nil
		})
	}
	return g.Wait()
}

// EnrichEntity returns candidate values for the entity's missing tracked
// fields. The entity itself is never mutated here; candidates go through
// the reconciler like any other source.
func (o *Orchestrator) EnrichEntity(ctx context.Context, entity *model.CanonicalEntity) []model.FieldValue {
	c := ContextFor(entity)
	if c.Name == "" {
		return nil
	}

	var out []model.FieldValue
	for _, def := range score.Missing(entity, o.registry) {
		task, ok := o.tasks[def.Key]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if fv, ok := o.enrichField(ctx, entity, c, def, task); ok {
			out = append(out, fv)
		}
	}
	return out
}

// FallbackOnly reports whether the run has degraded to the deterministic
// classifier.
func (o *Orchestrator) FallbackOnly() bool { return o.fallbackOnly.Load() }

// Stats returns a snapshot of the run counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		ModelCalls: o.modelCalls.Load(),
		CacheHits:  o.cacheHits.Load(),
		Accepted:   o.accepted.Load(),
		Rejected:   o.rejected.Load(),
		Fallbacks:  o.fallbacks.Load(),
		Timeouts:   o.timeouts.Load(),
	}
}

// CacheStats returns the response cache counters, or zeroes without a cache.
func (o *Orchestrator) CacheStats() CacheStats {
	if o.cache == nil {
		return CacheStats{}
	}
	return o.cache.Stats()
}

func (o *Orchestrator) enrichField(ctx context.Context, entity *model.CanonicalEntity, c Context, def *model.FieldDef, task Task) (model.FieldValue, bool) {
	key := CacheKey(def.Key, c)
	if o.cache != nil {
		if fv, ok := o.cache.Get(key); ok {
			o.cacheHits.Add(1)
			return fv, true
		}
	}

	if o.fallbackOnly.Load() {
		return o.useFallback(def.Key, c, entity)
	}

	fv, err := o.callModel(ctx, c, def, task)
	switch {
	case err == nil:
		if o.cache != nil {
			o.cache.Put(key, fv)
		}
		o.accepted.Add(1)
		return fv, true

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, model.ErrEnrichmentTimeout):
		// Leave the field for a future pass instead of guessing under
		// pressure.
		o.timeouts.Add(1)
		zap.L().Warn("enrichment timed out",
			zap.String("entity_id", entity.ID),
			zap.String("field", def.Key),
			zap.Error(eris.Wrap(model.ErrEnrichmentTimeout, def.Key)),
		)
		return model.FieldValue{}, false

	case errors.Is(err, model.ErrModelUnavailable):
		o.degrade(err)
		return o.useFallback(def.Key, c, entity)

	default:
		// Validation or confidence rejection.
		o.rejected.Add(1)
		zap.L().Debug("enrichment response rejected",
			zap.String("entity_id", entity.ID),
			zap.String("field", def.Key),
			zap.Error(err),
		)
		fb, ok := o.useFallback(def.Key, c, entity)
		if ok && o.cache != nil {
			// Identical context produces the same rejection; cache the
			// fallback so the model is never asked the same thing twice.
			o.cache.Put(key, fb)
		}
		return fb, ok
	}
}

// callModel performs one guarded model call: rate limit, circuit breaker,
// retry, grammar validation, confidence gate.
func (o *Orchestrator) callModel(ctx context.Context, c Context, def *model.FieldDef, task Task) (model.FieldValue, error) {
	if err := o.breaker.Allow(); err != nil {
		return model.FieldValue{}, eris.Wrap(model.ErrModelUnavailable, "enrich: circuit open")
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	if err := o.limiter.Wait(callCtx); err != nil {
		return model.FieldValue{}, err
	}

	o.modelCalls.Add(1)
	raw, err := resilience.Retry(callCtx, o.cfg.Retry, "enrich:"+def.Key, func(ctx context.Context) (string, error) {
		return o.gen.Generate(ctx, task.Prompt(c, def))
	})
	o.breaker.Record(err)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return model.FieldValue{}, eris.Wrapf(model.ErrEnrichmentTimeout, "enrich: %s", def.Key)
		}
		if resilience.IsTransient(err) {
			return model.FieldValue{}, eris.Wrapf(model.ErrModelUnavailable, "enrich: %s: %v", def.Key, err)
		}
		return model.FieldValue{}, eris.Wrapf(err, "enrich: %s", def.Key)
	}

	value, err := task.Validate(raw, def)
	if err != nil {
		return model.FieldValue{}, err
	}

	categoryMatch := false
	if def.Kind == model.KindCategory {
		if s, ok := value.(string); ok {
			categoryMatch = def.HasCategory(s)
		}
	}
	confidence := Confidence(raw, categoryMatch)
	if confidence < o.cfg.AcceptThreshold {
		return model.FieldValue{}, eris.Wrapf(model.ErrEnrichmentValidation,
			"enrich: %s: confidence %.2f below threshold", def.Key, confidence)
	}

	return model.FieldValue{
		FieldKey:    def.Key,
		Value:       value,
		Source:      ModelSource,
		Tier:        model.TierModel,
		Confidence:  confidence,
		ExtractedAt: o.now(),
	}, nil
}

func (o *Orchestrator) useFallback(fieldKey string, c Context, entity *model.CanonicalEntity) (model.FieldValue, bool) {
	fv, ok := o.fallback.Classify(fieldKey, c, entity, o.now())
	if !ok {
		return model.FieldValue{}, false
	}
	o.fallbacks.Add(1)
	return fv, true
}

func (o *Orchestrator) degrade(cause error) {
	if o.fallbackOnly.CompareAndSwap(false, true) {
		zap.L().Warn("model boundary unavailable, degrading to fallback-only enrichment",
			zap.Error(cause),
		)
	}
}
