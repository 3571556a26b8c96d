package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/textcorpus/posindex/internal/position"
)

func TestDefaultValidateRequiresStopwords(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())
	cfg.StopwordsPath = "/tmp/stop.txt"
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaultsFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posindex.toml")
	body := `
batch_size = 5000
memory_budget_mb = "512MB"
stopwords_path = "/tmp/stop.txt"
fuzzy_dedup_flavors = ["unigram", "ner"]

[filter_expr]
unigram = "doc_id > 0"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.BatchSize)
	require.Equal(t, 512*datasize.MB, cfg.MemoryBudget)
	require.Equal(t, []string{"unigram", "ner"}, cfg.FuzzyDedupFlavors)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "doc_id > 0", cfg.FilterExpr["unigram"])

	// Unset options retain their defaults.
	require.Equal(t, 10, cfg.FanIn)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().BatchSize, cfg.BatchSize)
}

func TestTaskTimeoutParsesDuration(t *testing.T) {
	cfg := Default()
	d, err := cfg.TaskTimeout()
	require.NoError(t, err)
	require.Equal(t, "1h0m0s", d.String())

	cfg.WorkerTaskTimeout = "not-a-duration"
	require.Error(t, cfg.Validate())
}

func TestCodecResolvesCompressionHint(t *testing.T) {
	cfg := Default()
	codec, err := cfg.Codec()
	require.NoError(t, err)
	require.Equal(t, position.CodecSnappy, codec, "documented default is fast-byte-compressor")

	cfg.Compression = "deflate"
	codec, err = cfg.Codec()
	require.NoError(t, err)
	require.Equal(t, position.CodecDeflate, codec)

	cfg.Compression = "none"
	codec, err = cfg.Codec()
	require.NoError(t, err)
	require.Equal(t, position.CodecNone, codec)

	cfg.Compression = "bogus"
	_, err = cfg.Codec()
	require.Error(t, err)
}
