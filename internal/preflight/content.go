package preflight

import (
	"context"

	"github.com/Aman-CERP/rubricrank/internal/corpus"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

// CheckCorpora checks that every corpus file in dir loads. An empty
// directory only warns.
func (c *Checker) CheckCorpora(ctx context.Context, dir string) CheckResult {
	const name = "corpora"

	if err := ctx.Err(); err != nil {
		return fail(name, true, "%v", err)
	}

	corpora, err := corpus.LoadDir(dir)
	if err != nil {
		r := fail(name, true, "%v", err)
		r.Details = "Corpus files are .json, .jsonl or .txt in " + dir
		return r
	}
	if len(corpora) == 0 {
		return warn(name, "no corpus files in %s", dir)
	}

	docs := 0
	for _, cp := range corpora {
		docs += len(cp.Documents)
	}
	return pass(name, true, "%d corpora, %d documents", len(corpora), docs)
}

// CheckRubrics checks that the rubric files in dir load. Search works
// without rubrics, so problems only warn.
func (c *Checker) CheckRubrics(dir string) CheckResult {
	const name = "rubrics"

	rubrics, err := rubric.LoadDir(dir)
	if err != nil {
		return warn(name, "%v", err)
	}
	if len(rubrics) == 0 {
		r := warn(name, "no rubric files in %s", dir)
		r.Details = "Create one by hand or with 'rubricrank rubric generate'"
		return r
	}
	return pass(name, false, "%d rubrics", len(rubrics))
}

// CheckScorer checks that the configured scorer can be built. Keyword and
// semantic search work without one, so a failure only warns.
func (c *Checker) CheckScorer(probe func() (string, error)) CheckResult {
	const name = "scorer"

	provider, err := probe()
	if err != nil {
		r := warn(name, "%v", err)
		r.Details = "Rubric reranking and indexing need a scorer; RUBRICRANK_SCORER=static scores offline"
		return r
	}
	return pass(name, false, "%s", provider)
}
