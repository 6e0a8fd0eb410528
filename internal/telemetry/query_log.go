// Package telemetry records search and indexing activity: an in-memory query
// log for history and tuning, and Prometheus collectors for scraping.
// Nothing is reported externally unless a metrics address is configured.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is one executed search.
type QueryEvent struct {
	Query       string        `json:"query"`
	Mode        string        `json:"mode"`
	CorpusID    string        `json:"corpus_id"`
	RubricID    string        `json:"rubric_id,omitempty"`
	ResultCount int           `json:"result_count"`
	Latency     time.Duration `json:"latency"`
	Timestamp   time.Time     `json:"timestamp"`
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// Reranked reports whether a rubric was applied.
func (e QueryEvent) Reranked() bool {
	return e.RubricID != ""
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Full: oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Term Extraction
// =============================================================================

// ExtractTerms extracts tracked terms from a query string.
// Terms are lowercased and filtered to minimum length 3.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Query Log Snapshot
// =============================================================================

// QueryLogSnapshot is an immutable snapshot of the query log.
type QueryLogSnapshot struct {
	ModeCounts          map[string]int64        `json:"mode_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	RerankedCount       int64                   `json:"reranked_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *QueryLogSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// =============================================================================
// Query Log
// =============================================================================

// QueryLogConfig configures the query log.
type QueryLogConfig struct {
	TopTermsCapacity      int // Max terms to track (default: 100)
	ZeroResultsCapacity   int // Max zero-result queries to keep (default: 100)
	HistoryCapacity       int // Max recent events to keep (default: 200)
	RecentQueriesCapacity int // Max query hashes for repeat detection (default: 500)
}

// DefaultQueryLogConfig returns sensible defaults.
func DefaultQueryLogConfig() QueryLogConfig {
	return QueryLogConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		HistoryCapacity:       200,
		RecentQueriesCapacity: 500,
	}
}

// QueryLog aggregates search events in memory. Safe for concurrent use.
type QueryLog struct {
	mu sync.RWMutex

	modes           map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	history         *CircularBuffer[QueryEvent]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	rerankedCount   int64
	startTime       time.Time

	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64
}

// NewQueryLog creates a query log with default configuration.
func NewQueryLog() *QueryLog {
	return NewQueryLogWithConfig(DefaultQueryLogConfig())
}

// NewQueryLogWithConfig creates a query log with custom configuration.
func NewQueryLogWithConfig(cfg QueryLogConfig) *QueryLog {
	def := DefaultQueryLogConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &QueryLog{
		modes:         make(map[string]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		history:       NewCircularBuffer[QueryEvent](cfg.HistoryCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recentQueries,
	}
}

// Record captures one search. A nil log ignores the call.
func (l *QueryLog) Record(event QueryEvent) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.modes[event.Mode]++
	l.totalQueries++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := l.topTerms.Get(term)
		l.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		l.zeroResults.Add(event.Query)
		l.zeroResultCount++
	}
	if event.Reranked() {
		l.rerankedCount++
	}

	l.latencies[LatencyToBucket(event.Latency)]++
	l.history.Add(event)

	queryHash := hashQuery(event.Query)
	if _, exists := l.recentQueries.Get(queryHash); exists {
		l.exactRepeatCount++
	}
	l.recentQueries.Add(queryHash, struct{}{})
}

// hashQuery creates a normalized hash of the query for repeat detection.
func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Recent returns up to n most recent events, newest first.
func (l *QueryLog) Recent(n int) []QueryEvent {
	if l == nil {
		return nil
	}
	items := l.history.Items()
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	out := make([]QueryEvent, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}

// Snapshot returns current aggregates.
func (l *QueryLog) Snapshot() *QueryLogSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	modes := make(map[string]int64, len(l.modes))
	for k, v := range l.modes {
		modes[k] = v
	}

	topTerms := make([]TermCount, 0, l.topTerms.Len())
	for _, key := range l.topTerms.Keys() {
		if count, ok := l.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(l.latencies))
	for k, v := range l.latencies {
		latencies[k] = v
	}

	var repeatRate float64
	if l.totalQueries > 0 {
		repeatRate = float64(l.exactRepeatCount) / float64(l.totalQueries)
	}

	return &QueryLogSnapshot{
		ModeCounts:          modes,
		TopTerms:            topTerms,
		ZeroResultQueries:   l.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        l.totalQueries,
		ZeroResultCount:     l.zeroResultCount,
		RerankedCount:       l.rerankedCount,
		ExactRepeatCount:    l.exactRepeatCount,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(l.recentQueries.Len()),
		Since:               l.startTime,
	}
}
