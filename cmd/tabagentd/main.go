// Command tabagentd hosts the TabAgent cognitive storage engine as a
// standalone process: it opens the KV Engine, wires the Index Manager and
// Temperature Tiers coordinator on top of it, starts the Weaver enrichment
// pipeline, and serves until interrupted. Storage and enrichment run
// in-process; the request/response transport named in spec.md §6 is an
// external collaborator this binary does not implement.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tabagent/tabagent/pkg/config"
	"github.com/tabagent/tabagent/pkg/indexmgr"
	"github.com/tabagent/tabagent/pkg/mlclient"
	"github.com/tabagent/tabagent/pkg/model"
	"github.com/tabagent/tabagent/pkg/storage"
	"github.com/tabagent/tabagent/pkg/tiers"
	"github.com/tabagent/tabagent/pkg/weaver"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tabagentd",
		Short: "TabAgent cognitive storage engine",
		Long: `tabagentd opens the TabAgent memory store and runs its enrichment
pipeline: semantic indexing, entity linking, associative and topological
linking, and summarization, all triggered by storage events.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tabagentd v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the store and run the enrichment pipeline until interrupted",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Open (creating if absent) the store at TABAGENT_BASE_DIR and exit",
		RunE:  runInit,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process-wide zerolog.Logger, console-formatted for a
// terminal and json-formatted otherwise, matching cfg.Logging.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if cfg.Logging.Format == "console" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}

// engineSet bundles the opened store and every subsystem layered on it, so
// main's two commands can share one construction path.
type engineSet struct {
	engine   *storage.BadgerEngine
	registry *storage.Registry
	indexes  *indexmgr.Manager
	coord    *tiers.Coordinator
	bus      *weaver.Bus
	linker   *weaver.EntityLinker
	topo     *weaver.TopologicalLinker
}

// knowledgeTiers lists the Knowledge domain's per-tier databases the
// Database Coordinator moves Entity rows between as they're promoted or
// demoted. Listed explicitly (rather than derived from model.EntityTier)
// because the Registry opens lazily and a startup reconciliation pass needs
// to know what to check even before any entity has actually moved into a
// tier.
var knowledgeTiers = []string{string(model.EntityActive), string(model.EntityStable), string(model.EntityInferred)}

func openEngineSet(cfg *config.Config, log zerolog.Logger) (*engineSet, error) {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("tabagentd: creating base dir: %w", err)
	}

	engine, err := storage.Open(storage.Options{
		DataDir:         cfg.BaseDir,
		SyncWrites:      cfg.Storage.SyncWrites,
		LowMemory:       cfg.Storage.LowMemory,
		MaxMapSizeBytes: cfg.MaxMapSizeBytes,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("tabagentd: opening kv engine: %w", err)
	}

	registry, err := storage.OpenRegistry(storage.RegistryConfig{
		BaseDir:         filepath.Join(cfg.BaseDir, "tiers"),
		SyncWrites:      cfg.Storage.SyncWrites,
		LowMemory:       cfg.Storage.LowMemory,
		MaxMapSizeBytes: cfg.MaxMapSizeBytes,
		Logger:          log,
	})
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("tabagentd: opening storage registry: %w", err)
	}

	indexes := indexmgr.New(engine, cfg.BaseDir, cfg.ML.EmbedDims, cfg.HNSW, log)
	coord := tiers.NewWithRegistry(cfg.Tiers, registry, log)

	embedder := mlclient.NewEmbedder(mlclient.EmbedderConfig{
		Endpoint: cfg.MLEndpoint,
		APIKey:   cfg.ML.APIKey,
		Model:    cfg.ML.EmbedModel,
		Dims:     cfg.ML.EmbedDims,
		Timeout:  cfg.ML.RequestTimeout,
	})

	generator, err := mlclient.NewGenerator(cfg.ML.GenerateModel)
	if err != nil {
		registry.Close()
		engine.Close()
		return nil, fmt.Errorf("tabagentd: creating generator: %w", err)
	}

	bus, linker, topo := weaver.NewDefaultPipeline(
		engine, embedder, indexes, coord, generator, nil, cfg.Weaver.TopologyRefreshInterval, log,
	)
	if err := linker.LoadKnownEntities(); err != nil {
		log.Warn().Err(err).Msg("loading known entities, starting with an empty gazetteer")
	}

	reconcileSidecars(context.Background(), engine, indexes, log)

	return &engineSet{engine: engine, registry: registry, indexes: indexes, coord: coord, bus: bus, linker: linker, topo: topo}, nil
}

// reconcileSidecars runs the Index Manager's crash-consistency check against
// every domain/tier combination the enrichment pipeline actually writes to
// (see pkg/weaver/domain.go's domainTierFor), plus each of the Knowledge
// domain's per-tier databases the Database Coordinator promotes entities
// between. A mismatch triggers a full rebuild from the embeddings sub-DB;
// failures are logged rather than fatal, since a missing sidecar on first
// run is the expected case, not an error.
func reconcileSidecars(ctx context.Context, engine *storage.BadgerEngine, indexes *indexmgr.Manager, log zerolog.Logger) {
	trueCount, err := engine.EmbeddingCount()
	if err != nil {
		log.Warn().Err(err).Msg("counting embeddings for sidecar reconciliation")
		return
	}

	keys := []indexmgr.TierKey{
		{Domain: string(tiers.DomainConversations), Tier: tiers.TierActive},
		{Domain: string(tiers.DomainConversations), Tier: tiers.TierRecent},
		{Domain: string(tiers.DomainConversations), Tier: tiers.TierArchive},
	}
	for _, tier := range knowledgeTiers {
		keys = append(keys, indexmgr.TierKey{Domain: string(tiers.DomainKnowledge), Tier: tier})
	}
	for _, key := range keys {
		if err := indexes.ReconcileSidecar(ctx, key, int(trueCount)); err != nil {
			log.Warn().Err(err).Str("domain", key.Domain).Str("tier", key.Tier).Msg("sidecar reconciliation failed")
		}
	}
}

func (s *engineSet) Close() {
	s.topo.Close()
	s.bus.Close()
	s.registry.Close()
	s.engine.Close()
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("tabagentd: invalid config: %w", err)
	}
	log := newLogger(cfg)

	set, err := openEngineSet(cfg, log)
	if err != nil {
		return err
	}
	defer set.Close()

	log.Info().Str("base_dir", cfg.BaseDir).Msg("store initialized")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("tabagentd: invalid config: %w", err)
	}
	log := newLogger(cfg)
	log.Info().Str("base_dir", cfg.BaseDir).Str("ml_endpoint", cfg.MLEndpoint).Msg("starting tabagentd")

	set, err := openEngineSet(cfg, log)
	if err != nil {
		return err
	}
	defer set.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("tabagentd ready")
	for {
		select {
		case <-sig:
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			stats := set.bus.Stats()
			log.Debug().
				Int("processed", stats.Processed).
				Int("failed", stats.Failed).
				Int("dropped", stats.Dropped).
				Int("queued", stats.Queued).
				Msg("bus stats")
		case <-ctx.Done():
			return nil
		}
	}
}
