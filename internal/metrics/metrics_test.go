package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/textcorpus/posindex/internal/pipeline"
)

func TestWriteSummaryRendersOneRowPerFlavor(t *testing.T) {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	results := []FlavorResult{
		{
			Flavor: "unigram",
			State:  pipeline.StateDone,
			Stats: pipeline.StatsSnapshot{
				BatchesFetched:    3,
				TuplesExtracted:   42,
				UniqueKeysWritten: 17,
				Started:           started,
				Finished:          started.Add(2 * time.Second),
			},
		},
		{
			Flavor: "bigram",
			State:  pipeline.StateAborted,
			Stats:  pipeline.StatsSnapshot{},
		},
	}

	var buf bytes.Buffer
	WriteSummary(&buf, results)

	out := buf.String()
	require.Contains(t, out, "unigram")
	require.Contains(t, out, "DONE")
	require.Contains(t, out, "bigram")
	require.Contains(t, out, "ABORTED")
	require.Contains(t, out, "42")
}

func TestWriteSummaryEmptyResultsStillRenders(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, nil)
	require.True(t, strings.Contains(buf.String(), "FLAVOR"))
}

func TestStateMachineDotIncludesAllNodes(t *testing.T) {
	out := StateMachineDot()
	for _, want := range []string{"INIT", "LOADING_SYNONYMS", "STREAMING", "MERGING", "LOADING", "DONE", "ABORTED"} {
		require.Contains(t, out, want)
	}
}

func TestSummarizeIncludesCounters(t *testing.T) {
	s := pipeline.StatsSnapshot{BatchesFetched: 1, TuplesExtracted: 2, UniqueKeysWritten: 3, BytesSpilled: 4}
	line := Summarize("pos", s)
	require.Contains(t, line, "flavor=pos")
	require.Contains(t, line, "batches=1")
	require.Contains(t, line, "tuples=2")
	require.Contains(t, line, "unique_keys=3")
	require.Contains(t, line, "bytes_spilled=4")
}
