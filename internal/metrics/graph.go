package metrics

import (
	"github.com/emicklei/dot"

	"github.com/textcorpus/posindex/internal/pipeline"
)

// StateMachineDot renders the canonical per-flavor-run state machine
// (spec §4.F's INIT -> LOADING_SYNONYMS? -> STREAMING -> MERGING ->
// LOADING -> DONE/ABORTED lifecycle) as a Graphviz dot graph, for the
// CLI's --graph flag. This is the static topology, not a run's actual
// transition trace.
func StateMachineDot() string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	nodes := make(map[pipeline.State]dot.Node)
	for _, s := range []pipeline.State{
		pipeline.StateInit,
		pipeline.StateLoadingSynonyms,
		pipeline.StateStreaming,
		pipeline.StateMerging,
		pipeline.StateLoading,
		pipeline.StateDone,
		pipeline.StateAborted,
	} {
		nodes[s] = g.Node(s.String())
	}

	g.Edge(nodes[pipeline.StateInit], nodes[pipeline.StateLoadingSynonyms])
	g.Edge(nodes[pipeline.StateInit], nodes[pipeline.StateStreaming])
	g.Edge(nodes[pipeline.StateLoadingSynonyms], nodes[pipeline.StateStreaming])
	g.Edge(nodes[pipeline.StateStreaming], nodes[pipeline.StateMerging])
	g.Edge(nodes[pipeline.StateMerging], nodes[pipeline.StateLoading])
	g.Edge(nodes[pipeline.StateLoading], nodes[pipeline.StateDone])
	for _, s := range []pipeline.State{
		pipeline.StateLoadingSynonyms,
		pipeline.StateStreaming,
		pipeline.StateMerging,
		pipeline.StateLoading,
	} {
		g.Edge(nodes[s], nodes[pipeline.StateAborted])
	}

	return g.String()
}
