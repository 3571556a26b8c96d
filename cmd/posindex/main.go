// Command posindex builds positional inverted indexes over a
// pre-annotated text corpus (spec §6's minimal CLI surface).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/textcorpus/posindex/cmd/posindex/cli"
	"github.com/textcorpus/posindex/internal/errs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy (spec §7) onto the documented exit
// codes: 0 success, 2 config error, 3 source error, 4 store error,
// 5 aborted (anything else, including extract/spill/cancelled).
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindConfig:
		return 2
	case errs.KindSource:
		return 3
	case errs.KindStore:
		return 4
	default:
		return 5
	}
}
