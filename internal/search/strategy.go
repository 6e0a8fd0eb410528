package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// Mode selects a retrieval strategy.
type Mode string

const (
	// ModeKeyword ranks with the lexical BM25 index.
	ModeKeyword Mode = "keyword"
	// ModeSemantic ranks with the TF-IDF vector model.
	ModeSemantic Mode = "semantic"
	// ModeHybrid fuses keyword and semantic rankings with RRF.
	ModeHybrid Mode = "hybrid"
)

// DefaultMode is used when a request names no mode.
const DefaultMode = ModeKeyword

// Modes lists every valid mode.
var Modes = []Mode{ModeKeyword, ModeSemantic, ModeHybrid}

// ParseMode validates a mode name. Matching ignores case and surrounding space.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeKeyword, ModeSemantic, ModeHybrid:
		return m, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidMode, "unknown search mode %q", s).
			WithDetail("mode", s).
			WithSuggestion("Use one of: keyword, semantic, hybrid")
	}
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// Strategy executes one retrieval mode against a corpus's engines.
type Strategy interface {
	Mode() Mode
	Execute(ctx context.Context, query string, limit int, engines *Engines) ([]store.Hit, *Trace, error)
}

// StrategyOption configures strategy construction.
type StrategyOption func(*strategyOptions)

type strategyOptions struct {
	rrfK int
}

// WithRRFConstant sets k for the hybrid strategy.
func WithRRFConstant(k int) StrategyOption {
	return func(o *strategyOptions) {
		o.rrfK = k
	}
}

// StrategyFor returns the strategy for mode. The set is closed: every valid
// Mode maps to exactly one implementation.
func StrategyFor(mode Mode, opts ...StrategyOption) (Strategy, error) {
	o := strategyOptions{rrfK: DefaultRRFConstant}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rrfK <= 0 {
		o.rrfK = DefaultRRFConstant
	}

	switch mode {
	case ModeKeyword:
		return keywordStrategy{}, nil
	case ModeSemantic:
		return semanticStrategy{}, nil
	case ModeHybrid:
		return hybridStrategy{k: o.rrfK}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidMode, "unknown search mode %q", string(mode)).
			WithDetail("mode", string(mode))
	}
}

type keywordStrategy struct{}

func (keywordStrategy) Mode() Mode { return ModeKeyword }

func (keywordStrategy) Execute(ctx context.Context, query string, limit int, engines *Engines) ([]store.Hit, *Trace, error) {
	hits, err := runLexical(ctx, query, limit, engines)
	if err != nil {
		return nil, nil, err
	}
	return hits, &Trace{Mode: ModeKeyword, KeywordResults: topHits(hits, TraceDepth)}, nil
}

type semanticStrategy struct{}

func (semanticStrategy) Mode() Mode { return ModeSemantic }

func (semanticStrategy) Execute(ctx context.Context, query string, limit int, engines *Engines) ([]store.Hit, *Trace, error) {
	hits, err := runVector(ctx, query, limit, engines)
	if err != nil {
		return nil, nil, err
	}
	return hits, &Trace{Mode: ModeSemantic, SemanticResults: topHits(hits, TraceDepth)}, nil
}

type hybridStrategy struct {
	k int
}

func (hybridStrategy) Mode() Mode { return ModeHybrid }

// Execute runs both engines at limit and fuses them. Readiness of both
// engines is checked before either runs.
func (s hybridStrategy) Execute(ctx context.Context, query string, limit int, engines *Engines) ([]store.Hit, *Trace, error) {
	if err := requireEngines(engines, true, true); err != nil {
		return nil, nil, err
	}

	keyword, err := runLexical(ctx, query, limit, engines)
	if err != nil {
		return nil, nil, err
	}
	semantic, err := runVector(ctx, query, limit, engines)
	if err != nil {
		return nil, nil, err
	}

	fused := Fuse(keyword, semantic, s.k)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	trace := &Trace{
		Mode:            ModeHybrid,
		KeywordResults:  topHits(keyword, TraceDepth),
		SemanticResults: topHits(semantic, TraceDepth),
		HybridResults:   topHits(fused, TraceDepth),
		RRFK:            s.k,
	}
	return fused, trace, nil
}

func runLexical(ctx context.Context, query string, limit int, engines *Engines) ([]store.Hit, error) {
	if err := requireEngines(engines, true, false); err != nil {
		return nil, err
	}
	hits, err := engines.Lexical.Search(ctx, query, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, fmt.Sprintf("keyword search failed: %v", err), err).
			WithDetail("corpus_id", engines.CorpusID)
	}
	return hits, nil
}

func runVector(ctx context.Context, query string, limit int, engines *Engines) ([]store.Hit, error) {
	if err := requireEngines(engines, false, true); err != nil {
		return nil, err
	}
	hits, err := engines.Vector.Search(ctx, query, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, fmt.Sprintf("semantic search failed: %v", err), err).
			WithDetail("corpus_id", engines.CorpusID)
	}
	return hits, nil
}

// requireEngines fails fast when a needed engine is missing, so a corpus
// that was never built is never mistaken for a zero-result query.
func requireEngines(engines *Engines, lexical, vector bool) error {
	if engines == nil {
		return errors.NotReadyError("", "search")
	}
	if lexical && engines.Lexical == nil {
		return errors.NotReadyError(engines.CorpusID, "lexical")
	}
	if vector && engines.Vector == nil {
		return errors.NotReadyError(engines.CorpusID, "vector")
	}
	return nil
}
