// Package engine drives a full resolution run: stream source files,
// normalize rows, resolve them onto canonical entities, reconcile field
// conflicts, enrich what is still missing, score, and persist.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/resolve-cli/internal/ingest"
	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/normalize"
	"github.com/sells-group/resolve-cli/internal/reconcile"
	"github.com/sells-group/resolve-cli/internal/resolve"
	"github.com/sells-group/resolve-cli/internal/score"
	"github.com/sells-group/resolve-cli/internal/store"
)

// Options wires an Engine together.
type Options struct {
	Sources  []ingest.Source
	Registry *model.Registry

	// HighThreshold and ReviewThreshold tune fuzzy matching; <= 0 takes the
	// resolver defaults.
	HighThreshold   float64
	ReviewThreshold float64

	// CombinableTier bounds set-field unions; 0 takes the reconciler default.
	CombinableTier int

	// Enricher is optional; nil skips the enrichment pass entirely.
	Enricher Enricher

	Sink store.Sink

	// Workers bounds concurrent record processing. Default: 4.
	Workers int
}

// Enricher is the slice of the enrichment orchestrator the engine needs.
type Enricher interface {
	EnrichAll(ctx context.Context, entities []*model.CanonicalEntity, apply func(*model.CanonicalEntity, []model.FieldValue)) error
	FallbackOnly() bool
}

// RunStats summarizes one engine run.
type RunStats struct {
	Records       int64         `json:"records"`
	Skipped       int64         `json:"skipped"`
	FieldsDropped int64         `json:"fields_dropped"`
	Entities      int           `json:"entities"`
	Created       int64         `json:"created"`
	Matched       int64         `json:"matched"`
	Reviews       int           `json:"reviews"`
	Provenance    int           `json:"provenance"`
	FallbackOnly  bool          `json:"fallback_only"`
	Duration      time.Duration `json:"duration"`
}

// Engine owns the run-wide state: the resolver's entity index and the
// accumulated provenance and review candidates. All entity mutation goes
// through the resolver's critical section so concurrent matching never
// observes a half-committed entity.
type Engine struct {
	sources    []ingest.Source
	registry   *model.Registry
	resolver   *resolve.Resolver
	reconciler *reconcile.Reconciler
	enricher   Enricher
	sink       store.Sink
	workers    int
	now        func() time.Time

	records       atomic.Int64
	skipped       atomic.Int64
	fieldsDropped atomic.Int64
	created       atomic.Int64
	matched       atomic.Int64

	mu         sync.Mutex
	provenance []model.FieldProvenance
	reviews    []model.ReviewCandidate
}

// New creates an Engine over a fresh in-memory entity index.
func New(opts Options) *Engine {
	if opts.Registry == nil {
		opts.Registry = model.DefaultRegistry()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Engine{
		sources:    opts.Sources,
		registry:   opts.Registry,
		resolver:   resolve.New(resolve.NewMemoryIndex(), opts.HighThreshold, opts.ReviewThreshold),
		reconciler: reconcile.New(opts.Registry, opts.CombinableTier),
		enricher:   opts.Enricher,
		sink:       opts.Sink,
		workers:    opts.Workers,
		now:        time.Now,
	}
}

// Run executes the full pass. Source and sink errors are fatal; per-record
// problems are logged, counted, and skipped.
func (e *Engine) Run(ctx context.Context) (*RunStats, error) {
	start := e.now()
	log := zap.L()
	log.Info("engine: starting run", zap.Int("sources", len(e.sources)))

	if err := e.sink.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "engine: migrate sink")
	}

	for _, src := range e.sources {
		if err := e.ingestSource(ctx, src); err != nil {
			return nil, err
		}
	}

	entities := e.resolver.Index().All()

	if e.enricher != nil {
		if err := e.enricher.EnrichAll(ctx, entities, e.applyEnrichment); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return nil, eris.Wrap(err, "engine: enrichment pass")
			}
			// Cancellation stops new model calls; entities keep whatever was
			// already reconciled and still get scored and persisted.
			log.Warn("engine: enrichment pass cancelled", zap.Error(err))
		}
	}

	for _, entity := range entities {
		entity.QualityScore = score.Completeness(entity, e.registry)
	}

	// Persistence must survive batch cancellation: partial results are the
	// contract, not a rollback.
	if err := e.persist(context.WithoutCancel(ctx), entities); err != nil {
		return nil, err
	}

	stats := &RunStats{
		Records:       e.records.Load(),
		Skipped:       e.skipped.Load(),
		FieldsDropped: e.fieldsDropped.Load(),
		Entities:      len(entities),
		Created:       e.created.Load(),
		Matched:       e.matched.Load(),
		Reviews:       len(e.reviews),
		Provenance:    len(e.provenance),
		Duration:      e.now().Sub(start),
	}
	if e.enricher != nil {
		stats.FallbackOnly = e.enricher.FallbackOnly()
	}

	log.Info("engine: run complete",
		zap.Int64("records", stats.Records),
		zap.Int64("skipped", stats.Skipped),
		zap.Int("entities", stats.Entities),
		zap.Int64("created", stats.Created),
		zap.Int64("matched", stats.Matched),
		zap.Int("review_candidates", stats.Reviews),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// ingestSource streams one file through a bounded worker pool. A stream
// error aborts the run; workers drain their in-flight rows first.
func (e *Engine) ingestSource(ctx context.Context, src ingest.Source) error {
	log := zap.L().With(zap.String("source", src.Meta.Name), zap.String("path", src.Path))
	log.Info("engine: ingesting source", zap.Int("tier", src.Meta.Tier))

	rowCh, errCh := ingest.Stream(ctx, src)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for row := range rowCh {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return e.processRow(row, src.Meta)
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrapf(err, "engine: process %s", src.Meta.Name)
	}
	if err := <-errCh; err != nil {
		return eris.Wrapf(err, "engine: stream %s", src.Meta.Name)
	}
	return nil
}

func (e *Engine) processRow(row map[string]any, meta model.SourceMeta) error {
	rec := normalize.Record(row, meta, e.now())
	e.records.Add(1)
	e.fieldsDropped.Add(int64(len(rec.Issues)))
	for _, issue := range rec.Issues {
		zap.L().Debug("engine: dropped malformed field",
			zap.String("source", meta.Name),
			zap.String("field", issue.FieldKey),
			zap.String("reason", issue.Reason),
		)
	}

	res, err := e.resolver.Resolve(rec)
	if err != nil {
		if errors.Is(err, model.ErrUnresolvableRecord) {
			e.skipped.Add(1)
			zap.L().Warn("engine: skipping unresolvable record",
				zap.String("source", meta.Name),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	if res.Created {
		e.created.Add(1)
	} else {
		e.matched.Add(1)
	}

	candidates := make([]model.FieldValue, 0, len(rec.Fields))
	for _, fv := range rec.Fields {
		candidates = append(candidates, fv)
	}
	records := e.reconcileEntity(res.Entity, candidates)

	e.mu.Lock()
	e.provenance = append(e.provenance, records...)
	e.reviews = append(e.reviews, res.Review...)
	e.mu.Unlock()
	return nil
}

// applyEnrichment feeds accepted model candidates back through the
// reconciler, same as any other source.
func (e *Engine) applyEnrichment(entity *model.CanonicalEntity, candidates []model.FieldValue) {
	records := e.reconcileEntity(entity, candidates)
	e.mu.Lock()
	e.provenance = append(e.provenance, records...)
	e.mu.Unlock()
}

// reconcileEntity runs Apply inside the resolver's critical section, which
// also refreshes the index with any name or identifier the winner carried.
func (e *Engine) reconcileEntity(entity *model.CanonicalEntity, candidates []model.FieldValue) []model.FieldProvenance {
	var records []model.FieldProvenance
	e.resolver.Commit(entity, func() {
		records = e.reconciler.Apply(entity, candidates, e.now())
	})
	return records
}

func (e *Engine) persist(ctx context.Context, entities []*model.CanonicalEntity) error {
	if err := e.sink.SaveEntities(ctx, entities); err != nil {
		return eris.Wrap(err, "engine: save entities")
	}
	if err := e.sink.SaveProvenance(ctx, e.provenance); err != nil {
		return eris.Wrap(err, "engine: save provenance")
	}
	if err := e.sink.SaveReviews(ctx, e.reviews); err != nil {
		return eris.Wrap(err, "engine: save review candidates")
	}
	return nil
}
