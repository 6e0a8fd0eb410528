//go:build ignore

// Package main generates a synthetic JSONL corpus for load testing search
// and rubric indexing.
// Usage: go run scripts/generate-corpus.go -docs 20000 -output corpora/bench.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 10000, "Number of documents to generate")
	outputPth = flag.String("output", "corpora/bench.jsonl", "Output JSONL file")
	minWords  = flag.Int("min-words", 40, "Minimum words per document")
	maxWords  = flag.Int("max-words", 400, "Maximum words per document")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// topics give each document a skewed vocabulary so BM25 and TF-IDF rank
// differently than uniform noise would.
var topics = map[string][]string{
	"databases":  {"index", "query", "transaction", "replica", "shard", "schema", "btree", "postgres", "latency", "commit"},
	"networking": {"packet", "socket", "tcp", "handshake", "router", "bandwidth", "dns", "tls", "proxy", "timeout"},
	"cooking":    {"recipe", "oven", "flour", "simmer", "garlic", "season", "knife", "butter", "roast", "broth"},
	"gardening":  {"soil", "seed", "compost", "prune", "shade", "water", "fern", "cactus", "bloom", "mulch"},
	"finance":    {"budget", "interest", "loan", "equity", "dividend", "ledger", "audit", "invoice", "tax", "hedge"},
}

var filler = []string{
	"the", "a", "and", "of", "to", "in", "is", "for", "with", "on", "that", "this",
	"when", "how", "why", "example", "step", "first", "then", "finally", "note",
}

type document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
}

func main() {
	flag.Parse()
	if *numDocs <= 0 || *minWords <= 0 || *maxWords < *minWords {
		fmt.Fprintln(os.Stderr, "invalid flags: need docs > 0 and 0 < min-words <= max-words")
		os.Exit(2)
	}

	rng := rand.New(rand.NewSource(*seed))

	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := os.MkdirAll(filepath.Dir(*outputPth), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*outputPth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	words := 0
	for i := 0; i < *numDocs; i++ {
		topic := names[rng.Intn(len(names))]
		doc := generateDoc(rng, i, topic)
		words += strings.Count(doc.Text, " ") + 1
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing document %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents (%d words) in %s\n", *numDocs, words, *outputPth)
}

func generateDoc(rng *rand.Rand, i int, topic string) document {
	vocab := topics[topic]
	n := *minWords + rng.Intn(*maxWords-*minWords+1)

	var sb strings.Builder
	for j := 0; j < n; j++ {
		if j > 0 {
			sb.WriteByte(' ')
		}
		// Roughly one word in three is on topic.
		if rng.Intn(3) == 0 {
			sb.WriteString(vocab[rng.Intn(len(vocab))])
		} else {
			sb.WriteString(filler[rng.Intn(len(filler))])
		}
		if j%12 == 11 {
			sb.WriteByte('.')
		}
	}

	title := fmt.Sprintf("%s notes on %s", strings.ToUpper(topic[:1])+topic[1:], vocab[rng.Intn(len(vocab))])
	return document{
		ID:    fmt.Sprintf("doc-%06d", i),
		Title: title,
		Text:  sb.String(),
		URL:   fmt.Sprintf("https://example.com/%s/%d", topic, i),
	}
}
