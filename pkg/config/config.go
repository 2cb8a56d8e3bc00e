// Package config handles TabAgent configuration via environment variables.
//
// Configuration is loaded once at process start with LoadFromEnv() and
// validated with Validate() before the storage engine is opened. An
// optional YAML overlay (TABAGENT_CONFIG_FILE) can set the same fields for
// deployments that prefer a file over a long environment block; environment
// variables always win when both are set.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tabagent/tabagent/pkg/tiers"
	"github.com/tabagent/tabagent/pkg/vectorindex"
)

// Config holds all TabAgent configuration loaded from the environment.
//
// Fields are grouped by the subsystem that consumes them:
//   - the top-level fields are spec.md §6's literal environment contract
//   - Storage configures the KV Engine's mmap environment
//   - HNSW configures the Vector Index
//   - Tiers configures the Temperature Tiers coordinator (decay + access tracking)
//   - Weaver configures the enrichment bus and its modules
//   - ML configures the ML Client's backends
//   - Logging and Runtime are ambient, process-wide knobs
type Config struct {
	// BaseDir is the root directory every domain/tier's mmap pair lives
	// under (TABAGENT_BASE_DIR).
	BaseDir string
	// MLEndpoint is the address of the external inference worker
	// (TABAGENT_ML_ENDPOINT).
	MLEndpoint string
	// MaxMapSizeBytes bounds each logical database's on-disk file
	// (TABAGENT_MAX_MAP_SIZE_BYTES).
	MaxMapSizeBytes int64
	// Verbose toggles debug-level logging process-wide (TABAGENT_VERBOSE).
	Verbose bool

	Storage StorageConfig
	HNSW    vectorindex.HNSWConfig
	Tiers   tiers.Config
	Weaver  WeaverConfig
	ML      MLConfig
	Logging LoggingConfig
	Runtime RuntimeConfig
}

// StorageConfig holds KV Engine tunables beyond the map size ceiling.
type StorageConfig struct {
	// SyncWrites forces an fsync on every commit. Off by default: the
	// durability model only promises page-cache visibility (spec.md §5).
	SyncWrites bool
	// LowMemory trades throughput for a smaller in-process footprint,
	// for single-user desktop deployments.
	LowMemory bool
}

// WeaverConfig holds enrichment-bus tunables.
type WeaverConfig struct {
	// TopologyRefreshInterval controls how often the topological linker
	// rebuilds its graph snapshot.
	TopologyRefreshInterval time.Duration
}

// MLConfig holds ML Client tunables.
type MLConfig struct {
	APIKey        string
	EmbedModel    string
	EmbedDims     int
	GenerateModel string
	RequestTimeout time.Duration
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error); forced to "debug" whenever Verbose is set.
	Level string
	// Format (json, console).
	Format string
}

// RuntimeConfig holds Go runtime tuning knobs (GOMEMLIMIT, GOGC).
type RuntimeConfig struct {
	// LimitBytes is the soft memory limit (GOMEMLIMIT). 0 = unlimited.
	LimitBytes int64
	// LimitStr is the human-readable form the value was parsed from.
	LimitStr string
	// GCPercent controls GC aggressiveness (GOGC). 100 = default.
	GCPercent int
}

// LoadFromEnv loads configuration from environment variables, applying a
// TABAGENT_CONFIG_FILE YAML overlay first if set so environment variables
// can still override individual fields on top of it.
//
// All values have defaults, so LoadFromEnv() is safe to call with no
// environment set at all.
func LoadFromEnv() *Config {
	cfg := defaultConfig()

	if path := os.Getenv("TABAGENT_CONFIG_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	cfg.BaseDir = getEnv("TABAGENT_BASE_DIR", cfg.BaseDir)
	cfg.MLEndpoint = getEnv("TABAGENT_ML_ENDPOINT", cfg.MLEndpoint)
	cfg.MaxMapSizeBytes = getEnvInt64("TABAGENT_MAX_MAP_SIZE_BYTES", cfg.MaxMapSizeBytes)
	cfg.Verbose = getEnvBool("TABAGENT_VERBOSE", cfg.Verbose)

	cfg.Storage.SyncWrites = getEnvBool("TABAGENT_SYNC_WRITES", cfg.Storage.SyncWrites)
	cfg.Storage.LowMemory = getEnvBool("TABAGENT_LOW_MEMORY", cfg.Storage.LowMemory)

	cfg.HNSW.M = getEnvInt("TABAGENT_HNSW_M", cfg.HNSW.M)
	cfg.HNSW.EfConstruction = getEnvInt("TABAGENT_HNSW_EF_CONSTRUCTION", cfg.HNSW.EfConstruction)
	cfg.HNSW.EfSearch = getEnvInt("TABAGENT_HNSW_EF_SEARCH", cfg.HNSW.EfSearch)

	cfg.Tiers.SessionIdleAfter = getEnvDuration("TABAGENT_SESSION_IDLE_AFTER", cfg.Tiers.SessionIdleAfter)
	cfg.Tiers.Decay.RecalculateInterval = getEnvDuration("TABAGENT_DECAY_INTERVAL", cfg.Tiers.Decay.RecalculateInterval)
	cfg.Tiers.Decay.ArchiveThreshold = getEnvFloat("TABAGENT_DECAY_ARCHIVE_THRESHOLD", cfg.Tiers.Decay.ArchiveThreshold)

	cfg.Weaver.TopologyRefreshInterval = getEnvDuration("TABAGENT_TOPOLOGY_REFRESH_INTERVAL", cfg.Weaver.TopologyRefreshInterval)

	cfg.ML.APIKey = getEnv("TABAGENT_ML_API_KEY", cfg.ML.APIKey)
	cfg.ML.EmbedModel = getEnv("TABAGENT_EMBED_MODEL", cfg.ML.EmbedModel)
	cfg.ML.EmbedDims = getEnvInt("TABAGENT_EMBED_DIMENSIONS", cfg.ML.EmbedDims)
	cfg.ML.GenerateModel = getEnv("TABAGENT_GENERATE_MODEL", cfg.ML.GenerateModel)
	cfg.ML.RequestTimeout = getEnvDuration("TABAGENT_ML_REQUEST_TIMEOUT", cfg.ML.RequestTimeout)

	cfg.Logging.Level = getEnv("TABAGENT_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("TABAGENT_LOG_FORMAT", cfg.Logging.Format)
	if cfg.Verbose {
		cfg.Logging.Level = "debug"
	}

	cfg.Runtime.LimitStr = getEnv("TABAGENT_MEMORY_LIMIT", cfg.Runtime.LimitStr)
	cfg.Runtime.LimitBytes = parseMemorySize(cfg.Runtime.LimitStr)
	cfg.Runtime.GCPercent = getEnvInt("TABAGENT_GC_PERCENT", cfg.Runtime.GCPercent)

	return cfg
}

// defaultConfig returns the baseline Config before the environment and any
// YAML overlay are applied.
func defaultConfig() *Config {
	return &Config{
		BaseDir:         defaultBaseDir(),
		MLEndpoint:      "localhost:50051",
		MaxMapSizeBytes: 10 << 30, // 10 GiB
		Verbose:         false,

		Storage: StorageConfig{SyncWrites: false, LowMemory: false},
		HNSW:    vectorindex.DefaultHNSWConfig(),
		Tiers:   tiers.DefaultConfig(),
		Weaver:  WeaverConfig{TopologyRefreshInterval: 10 * time.Minute},
		ML: MLConfig{
			EmbedModel:     "text-embedding-3-small",
			EmbedDims:      1024,
			GenerateModel:  "llama3",
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Runtime: RuntimeConfig{LimitStr: "0", GCPercent: 100},
	}
}

// defaultBaseDir returns an OS-appropriate application data directory,
// falling back to a relative ./data when the platform gives nothing usable.
func defaultBaseDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir + "/tabagent"
	}
	return "./data"
}

// Validate checks the configuration for values that would fail at open
// time, so callers can fail fast with a clear message instead of a
// storage-layer error three calls deep.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("config: base dir must not be empty")
	}
	if c.MaxMapSizeBytes < 0 {
		return fmt.Errorf("config: max map size must not be negative: %d", c.MaxMapSizeBytes)
	}
	if c.ML.EmbedDims <= 0 {
		return fmt.Errorf("config: embed dimensions must be positive: %d", c.ML.EmbedDims)
	}
	if c.HNSW.M <= 0 || c.HNSW.EfConstruction <= 0 || c.HNSW.EfSearch <= 0 {
		return fmt.Errorf("config: hnsw parameters must be positive (M=%d, efConstruction=%d, efSearch=%d)",
			c.HNSW.M, c.HNSW.EfConstruction, c.HNSW.EfSearch)
	}
	if c.Tiers.Decay.ArchiveThreshold < 0 || c.Tiers.Decay.ArchiveThreshold > 1 {
		return fmt.Errorf("config: decay archive threshold must be in [0,1]: %f", c.Tiers.Decay.ArchiveThreshold)
	}
	return nil
}

// String returns a safe representation of the Config for logging; API keys
// are never included.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{BaseDir: %s, MLEndpoint: %s, MaxMapSizeBytes: %s, Verbose: %v}",
		c.BaseDir, c.MLEndpoint, FormatMemorySize(c.MaxMapSizeBytes), c.Verbose,
	)
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Apply applies the runtime memory settings to the Go runtime. Call early
// in main() before heavy allocations.
func (c *RuntimeConfig) Apply() {
	if c.LimitBytes > 0 {
		debug.SetMemoryLimit(c.LimitBytes)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}
