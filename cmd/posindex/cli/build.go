package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/spf13/cobra"

	"github.com/textcorpus/posindex/internal/config"
	"github.com/textcorpus/posindex/internal/errs"
	"github.com/textcorpus/posindex/internal/extract"
	"github.com/textcorpus/posindex/internal/indexdir"
	"github.com/textcorpus/posindex/internal/logging"
	"github.com/textcorpus/posindex/internal/metrics"
	"github.com/textcorpus/posindex/internal/pipeline"
	"github.com/textcorpus/posindex/internal/position"
	"github.com/textcorpus/posindex/internal/source"
	"github.com/textcorpus/posindex/internal/source/jsonlsource"
	"github.com/textcorpus/posindex/internal/store"
	"github.com/textcorpus/posindex/internal/synonym"
)

type buildFlags struct {
	flavors       []string
	outDir        string
	sourceDir     string
	stopwordsPath string
	batchSize     int
	threads       int
	preserve      bool
	configPath    string
	graph         bool
	filterExprs   []string
	confirmDelete bool
}

func newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one or more flavor indexes from an annotated corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), f)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&f.flavors, "flavor", nil, "index flavor(s) to build (repeatable)")
	flags.StringVar(&f.outDir, "out", "", "index base output directory")
	flags.StringVar(&f.sourceDir, "source-dir", "", "directory of documents.jsonl/annotations.jsonl/dependencies.jsonl")
	flags.StringVar(&f.stopwordsPath, "stopwords", "", "stopwords file (overrides config)")
	flags.IntVar(&f.batchSize, "batch", 0, "fetch batch size in sentences (overrides config)")
	flags.IntVar(&f.threads, "threads", 0, "extractor worker count (overrides config)")
	flags.BoolVar(&f.preserve, "preserve", false, "preserve an existing non-empty index directory")
	flags.StringVar(&f.configPath, "config", "", "TOML config file")
	flags.BoolVar(&f.graph, "graph", false, "emit the state-machine diagram (state_machine.dot) alongside the index")
	flags.StringArrayVar(&f.filterExprs, "filter-expr", nil, "flavor=CEL-expression, repeatable")
	flags.BoolVar(&f.confirmDelete, "confirm-delete", false, "confirm deletion of an oversized existing index directory")

	_ = cmd.MarkFlagRequired("flavor")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("source-dir")

	return cmd
}

func runBuild(ctx context.Context, f *buildFlags) error {
	log := logging.New("info")
	defer log.Sync()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.stopwordsPath != "" {
		cfg.StopwordsPath = f.stopwordsPath
	}
	if f.batchSize > 0 {
		cfg.BatchSize = f.batchSize
	}
	if f.threads > 0 {
		cfg.ThreadCount = f.threads
	}
	if f.preserve {
		cfg.PreserveExisting = true
	}
	for flavor, expr := range parseFilterExprs(f.filterExprs) {
		if cfg.FilterExpr == nil {
			cfg.FilterExpr = map[string]string{}
		}
		cfg.FilterExpr[flavor] = expr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stopwords, err := extract.LoadStopwords(cfg.StopwordsPath)
	if err != nil {
		return err
	}
	taskTimeout, err := cfg.TaskTimeout()
	if err != nil {
		return err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}

	synonyms, closeSynonyms, err := openSynonymTables(f.outDir)
	if err != nil {
		return err
	}
	defer closeSynonyms()

	src, err := jsonlsource.New(f.sourceDir)
	if err != nil {
		return err
	}
	defer src.Close()

	var results []metrics.FlavorResult
	for _, flavor := range f.flavors {
		result, err := buildFlavor(ctx, log, cfg, extract.Flavor(flavor), f.outDir, src, stopwords, synonyms, taskTimeout, codec, f.confirmDelete)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	metrics.WriteSummary(os.Stdout, results)

	if f.graph {
		path := filepath.Join(f.outDir, "state_machine.dot")
		if err := os.WriteFile(path, []byte(metrics.StateMachineDot()), 0o644); err != nil {
			return errs.Wrap(err, errs.KindConfig, "writing state machine graph")
		}
		log.Info("wrote state machine graph", "path", path)
	}

	for _, r := range results {
		if r.State != pipeline.StateDone {
			return errs.New(errs.KindCancelled, fmt.Sprintf("flavor %s did not complete (state=%s)", r.Flavor, r.State))
		}
	}
	return nil
}

func buildFlavor(
	ctx context.Context,
	log *logging.Logger,
	cfg config.Config,
	flavor extract.Flavor,
	outDir string,
	src source.Source,
	stopwords *extract.StopwordSet,
	synonyms map[synonym.Kind]*synonym.Table,
	taskTimeout time.Duration,
	codec position.Codec,
	confirmDelete bool,
) (metrics.FlavorResult, error) {
	flog := log.With("flavor", string(flavor))

	dir, err := indexdir.Prepare(filepath.Join(outDir, string(flavor)), indexdir.Options{
		PreserveExisting:   cfg.PreserveExisting,
		SizeThresholdBytes: int64(cfg.SizeThreshold.Bytes()),
		ConfirmDelete:      confirmDelete,
	})
	if err != nil {
		return metrics.FlavorResult{}, err
	}
	defer dir.Release()

	st, err := store.Open(filepath.Join(dir.Dir(), "store.db"), store.Options{Bucket: string(flavor)})
	if err != nil {
		return metrics.FlavorResult{}, err
	}
	defer st.Close()

	filterProgram, err := compiledFilterFor(cfg, flavor)
	if err != nil {
		return metrics.FlavorResult{}, err
	}

	opts := extract.Options{
		Stopwords:  stopwords,
		Synonyms:   synonyms,
		Dedup:      dedupModeFor(cfg, flavor),
		FilterExpr: filterProgram,
		Log:        flog,
	}
	ex, err := extract.New(flavor, opts)
	if err != nil {
		return metrics.FlavorResult{}, err
	}

	fetcher, err := source.NewSentenceFetcher(ctx, src, cfg.BatchSize*8)
	if err != nil {
		return metrics.FlavorResult{}, err
	}

	threads := cfg.ThreadCount
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	p := pipeline.New[extract.Batch](flog, fetcher, ex, st, pipeline.Options{
		BatchSize:      cfg.BatchSize,
		Threads:        threads,
		StoreBatchSize: cfg.StoreBatchSize,
		FanIn:          cfg.FanIn,
		Dedup:          dedupModeFor(cfg, flavor),
		Serialize:        position.SerializeOptions{Codec: codec, CompressMinBytes: cfg.CompressMinBytes},
		TaskTimeout:      taskTimeout,
		ScratchDir:       dir.Dir(),
		DocBitmapSidecar: cfg.DocBitmapSidecar,
	})

	runErr := p.Run(ctx)
	result := metrics.FlavorResult{Flavor: string(flavor), State: p.State(), Stats: p.Stats.Snapshot()}
	if runErr != nil {
		flog.Error("build failed", "err", runErr)
		return result, runErr
	}
	return result, nil
}

func dedupModeFor(cfg config.Config, flavor extract.Flavor) position.DedupMode {
	for _, f := range cfg.FuzzyDedupFlavors {
		if f == string(flavor) {
			return position.DedupFuzzy
		}
	}
	return position.DedupExact
}

func compiledFilterFor(cfg config.Config, flavor extract.Flavor) (cel.Program, error) {
	expr, ok := cfg.FilterExpr[string(flavor)]
	if !ok || expr == "" {
		return nil, nil
	}
	return extract.CompileFilter(expr)
}

func parseFilterExprs(raw []string) map[string]string {
	out := map[string]string{}
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

func openSynonymTables(baseDir string) (map[synonym.Kind]*synonym.Table, func() error, error) {
	kinds := map[synonym.Kind]string{
		synonym.KindDate:       "date_synonyms",
		synonym.KindNER:        "ner_synonyms",
		synonym.KindPOS:        "pos_synonyms",
		synonym.KindDependency: "dependency_synonyms",
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, nil, errs.Wrap(err, errs.KindConfig, "creating index base directory")
	}
	tables := make(map[synonym.Kind]*synonym.Table, len(kinds))
	for kind, file := range kinds {
		t, err := synonym.Open(kind, filepath.Join(baseDir, file))
		if err != nil {
			return nil, nil, err
		}
		tables[kind] = t
	}
	closeAll := func() error {
		var firstErr error
		for _, t := range tables {
			if err := t.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return tables, closeAll, nil
}
