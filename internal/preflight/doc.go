// Package preflight checks that rubricrank can run: free disk and a
// writable snapshot directory, the open file limit, loadable corpora and
// rubrics, and a scorer that can be built from the configuration.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to index
//	}
package preflight
