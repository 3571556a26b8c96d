// Package config implements Config & Budgets (spec §4.H): the set of
// recognized build options, loaded from TOML with CLI-flag overrides.
package config

import (
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/position"
)

// Config holds every recognized build option, spec.md's table plus the
// SPEC_FULL.md additions.
type Config struct {
	BatchSize          int               `toml:"batch_size"`
	DocBatchSize       int               `toml:"doc_batch_size"`
	StoreBatchSize     int               `toml:"store_batch_size"`
	MemoryBudget       datasize.ByteSize `toml:"memory_budget_mb"`
	FanIn              int               `toml:"fanin"`
	WriteBuffer        datasize.ByteSize `toml:"write_buffer_mb"`
	Cache              datasize.ByteSize `toml:"cache_mb"`
	Compression        string            `toml:"compression"`
	PreserveExisting   bool              `toml:"preserve_existing"`
	SizeThreshold      datasize.ByteSize `toml:"size_threshold_bytes"`
	ThreadCount        int               `toml:"thread_count"`
	StopwordsPath      string            `toml:"stopwords_path"`

	// SPEC_FULL.md additions.
	FuzzyDedupFlavors []string          `toml:"fuzzy_dedup_flavors"`
	CompressMinBytes  int               `toml:"compress_min_bytes"`
	DocBitmapSidecar  bool              `toml:"doc_bitmap_sidecar"`
	FilterExpr        map[string]string `toml:"filter_expr"`
	WorkerTaskTimeout string            `toml:"worker_task_timeout"`
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		BatchSize:         1000,
		DocBatchSize:      1000,
		StoreBatchSize:    10000,
		MemoryBudget:      256 * datasize.MB,
		FanIn:             10,
		WriteBuffer:       256 * datasize.MB,
		Cache:             1024 * datasize.MB,
		Compression:       "fast-byte-compressor",
		PreserveExisting:  false,
		SizeThreshold:     1 * datasize.GB,
		ThreadCount:       0, // resolved to runtime.NumCPU() by the caller when 0
		FuzzyDedupFlavors: []string{"unigram"},
		CompressMinBytes:  256,
		DocBitmapSidecar:  true,
		WorkerTaskTimeout: "1h",
	}
}

// Load reads a TOML config file on top of Default, then returns the
// merged Config. A missing path is not an error (Default alone is
// returned); a malformed file is a ConfigError.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errs.Wrap(err, errs.KindConfig, "reading config file")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.Wrap(err, errs.KindConfig, "parsing config file")
	}
	return cfg, nil
}

// TaskTimeout parses WorkerTaskTimeout, defaulting to 1h on an empty
// value; an unparseable value is a ConfigError.
func (c Config) TaskTimeout() (time.Duration, error) {
	if c.WorkerTaskTimeout == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(c.WorkerTaskTimeout)
	if err != nil {
		return 0, errs.Wrap(err, errs.KindConfig, "parsing worker_task_timeout")
	}
	return d, nil
}

// Codec resolves the compression hint into the concrete outer codec used
// by position.SerializeOptions (spec §3's "may then pass through a
// general-purpose byte compressor"): "none" disables it, "deflate" picks
// the higher-ratio codec, and "fast-byte-compressor" (the documented
// default) picks snappy for its much lower CPU cost per byte.
func (c Config) Codec() (position.Codec, error) {
	switch c.Compression {
	case "", "none":
		return position.CodecNone, nil
	case "fast-byte-compressor", "snappy":
		return position.CodecSnappy, nil
	case "deflate":
		return position.CodecDeflate, nil
	default:
		return position.CodecNone, errs.New(errs.KindConfig, "unrecognized compression: "+c.Compression)
	}
}

// Validate checks cross-field invariants not expressible in the TOML
// shape itself.
func (c Config) Validate() error {
	if c.StopwordsPath == "" {
		return errs.New(errs.KindConfig, "stopwords_path is required")
	}
	if c.BatchSize <= 0 {
		return errs.New(errs.KindConfig, "batch_size must be positive")
	}
	if c.StoreBatchSize <= 0 {
		return errs.New(errs.KindConfig, "store_batch_size must be positive")
	}
	if c.FanIn <= 1 {
		return errs.New(errs.KindConfig, "fanin must be greater than 1")
	}
	if _, err := c.TaskTimeout(); err != nil {
		return err
	}
	for flavor, expr := range c.FilterExpr {
		if expr == "" {
			return errs.New(errs.KindConfig, "filter_expr["+flavor+"] must not be empty")
		}
	}
	return nil
}
