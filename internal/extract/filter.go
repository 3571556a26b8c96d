package extract

import (
	"github.com/google/cel-go/cel"

	"github.com/textcorpus/posindex/internal/errs"
)

// filterEnv declares the CEL variables every flavor's candidate fields
// may bind (the union across flavors; unset ones simply go unused in a
// given expression). See SPEC_FULL.md component O.
var filterEnv = []cel.EnvOption{
	cel.Variable("lemma", cel.StringType),
	cel.Variable("pos", cel.StringType),
	cel.Variable("ner", cel.StringType),
	cel.Variable("text", cel.StringType),
	cel.Variable("head", cel.StringType),
	cel.Variable("dep", cel.StringType),
	cel.Variable("rel", cel.StringType),
	cel.Variable("token", cel.StringType),
	cel.Variable("kind", cel.StringType),
	cel.Variable("normalized_ner", cel.StringType),
	cel.Variable("doc_id", cel.IntType),
}

// CompileFilter compiles a boolean CEL expression against the shared
// filter environment, for use as Options.FilterExpr.
func CompileFilter(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(filterEnv...)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "constructing CEL environment")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errs.Wrap(issues.Err(), errs.KindConfig, "compiling filter expression")
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfig, "building CEL program")
	}
	return prg, nil
}
