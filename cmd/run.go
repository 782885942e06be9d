package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/resolve-cli/internal/config"
	"github.com/sells-group/resolve-cli/internal/engine"
	"github.com/sells-group/resolve-cli/internal/enrich"
	"github.com/sells-group/resolve-cli/internal/ingest"
	"github.com/sells-group/resolve-cli/internal/model"
	"github.com/sells-group/resolve-cli/internal/resilience"
	anthropicpkg "github.com/sells-group/resolve-cli/pkg/anthropic"
)

var (
	runDry      bool
	runNoEnrich bool
	runWorkers  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve and enrich all configured sources",
	Long: `Streams every configured source file through the full pass:
normalize, resolve onto canonical entities, reconcile field conflicts by
source trust tier, enrich missing fields, score, and persist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runDry {
			cfg.Store.Driver = "memory"
		}
		if runNoEnrich {
			cfg.Enrich.Enabled = false
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		sink, err := initSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()

		registry, err := buildRegistry(cfg)
		if err != nil {
			return err
		}

		var orch *enrich.Orchestrator
		var enricher engine.Enricher
		if cfg.Enrich.Enabled {
			orch = buildOrchestrator(cfg, registry)
			enricher = orch
		}

		eng := engine.New(engine.Options{
			Sources:         buildSources(cfg.Sources),
			Registry:        registry,
			HighThreshold:   cfg.Resolver.HighThreshold,
			ReviewThreshold: cfg.Resolver.ReviewThreshold,
			CombinableTier:  cfg.Reconcile.CombinableTier,
			Enricher:        enricher,
			Sink:            sink,
			Workers:         runWorkers,
		})

		stats, err := eng.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		out := runResult{Run: stats}
		if orch != nil {
			es := orch.Stats()
			cs := orch.CacheStats()
			out.Enrich = &es
			out.Cache = &cs
		}

		zap.L().Info("run complete",
			zap.Int64("records", stats.Records),
			zap.Int("entities", stats.Entities),
			zap.Int("review_candidates", stats.Reviews),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

type runResult struct {
	Run    *engine.RunStats   `json:"run"`
	Enrich *enrich.Stats      `json:"enrich,omitempty"`
	Cache  *enrich.CacheStats `json:"cache,omitempty"`
}

// buildSources maps configured sources onto ingest descriptors.
func buildSources(sources []config.SourceConfig) []ingest.Source {
	out := make([]ingest.Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, ingest.Source{
			Path: s.Path,
			Meta: model.SourceMeta{Name: s.Name, Tier: s.Tier},
		})
	}
	return out
}

// buildRegistry returns the field registry, with taxonomy overrides applied
// when a taxonomy file is configured.
func buildRegistry(cfg *config.Config) (*model.Registry, error) {
	registry := model.DefaultRegistry()
	if cfg.TaxonomyFile == "" {
		return registry, nil
	}
	taxonomy, err := config.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}
	if err := taxonomy.Apply(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// buildOrchestrator assembles the enrichment stack from config.
func buildOrchestrator(cfg *config.Config, registry *model.Registry) *enrich.Orchestrator {
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	gen := enrich.NewModelGenerator(client, cfg.Anthropic.Model,
		int64(cfg.Enrich.MaxTokens), cfg.Enrich.Temperature)
	cache := enrich.NewResponseCache(cfg.Enrich.CacheEntries,
		time.Duration(cfg.Enrich.CacheTTLHours)*time.Hour)

	return enrich.New(gen, registry, cache, enrich.Config{
		Concurrency:       cfg.Enrich.Concurrency,
		Timeout:           time.Duration(cfg.Enrich.TimeoutSecs) * time.Second,
		AcceptThreshold:   cfg.Enrich.AcceptThreshold,
		RequestsPerSecond: cfg.Enrich.RequestsPerSecond,
		AssessQuality:     cfg.Enrich.AssessQuality,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Enrich.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Enrich.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Enrich.Retry.MaxBackoffMS) * time.Millisecond,
		},
		Breaker: resilience.BreakerConfig{
			FailureThreshold: cfg.Enrich.Breaker.FailureThreshold,
			ResetTimeout:     time.Duration(cfg.Enrich.Breaker.ResetTimeoutSecs) * time.Second,
		},
	})
}

func init() {
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "keep results in memory, do not persist")
	runCmd.Flags().BoolVar(&runNoEnrich, "no-enrich", false, "skip the model enrichment pass")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent record workers (0 = default)")
	rootCmd.AddCommand(runCmd)
}
