// Package corpus loads document collections from disk and keeps the search
// registry in step with a watched corpus directory.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/store"
)

// Extensions lists the file types LoadFile understands.
var Extensions = []string{".json", ".jsonl", ".txt"}

// Supported reports whether path has a corpus file extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IDFromPath derives a corpus id from a file name.
func IDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

type rawDocument struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type rawCorpus struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Documents []rawDocument `json:"documents"`
}

// LoadFile reads one corpus file.
//
//   - .json holds an array of documents or {"id", "name", "documents"}
//   - .jsonl holds one document per line; malformed lines are skipped
//   - .txt is split into documents on blank lines
//
// The corpus id defaults to the file name. Documents without an id get
// "<corpusID>-<i>". A file that yields no documents is invalid.
func LoadFile(path string) (store.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store.Corpus{}, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("corpus file %s not found", path), err).
				WithDetail("path", path)
		}
		return store.Corpus{}, fmt.Errorf("failed to read corpus file: %w", err)
	}

	corpus := store.Corpus{ID: IDFromPath(path)}
	var docs []rawDocument

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		raw, err := parseJSON(data)
		if err != nil {
			return store.Corpus{}, errors.New(errors.ErrCodeCorpusInvalid, fmt.Sprintf("corpus file %s is not valid JSON", path), err).
				WithDetail("path", path)
		}
		if raw.ID != "" {
			corpus.ID = raw.ID
		}
		corpus.Name = raw.Name
		docs = raw.Documents
	case ".jsonl":
		docs = parseJSONL(path, data)
	case ".txt":
		docs = parseText(data)
	default:
		return store.Corpus{}, errors.Newf(errors.ErrCodeCorpusInvalid, "unsupported corpus file %s", path).
			WithSuggestion("Use .json, .jsonl or .txt")
	}

	if len(docs) == 0 {
		return store.Corpus{}, errors.Newf(errors.ErrCodeCorpusInvalid, "corpus file %s has no documents", path).
			WithDetail("path", path)
	}
	if corpus.Name == "" {
		corpus.Name = corpus.ID
	}

	corpus.Documents = make([]store.Document, len(docs))
	for i, d := range docs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			id = fmt.Sprintf("%s-%d", corpus.ID, i)
		}
		corpus.Documents[i] = store.Document{ID: id, Text: d.Text, Title: d.Title, URL: d.URL}
	}
	corpus.Ready = true
	return corpus, nil
}

func parseJSON(data []byte) (rawCorpus, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var docs []rawDocument
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return rawCorpus{}, err
		}
		return rawCorpus{Documents: docs}, nil
	}
	var raw rawCorpus
	err := json.Unmarshal(trimmed, &raw)
	return raw, err
}

func parseJSONL(path string, data []byte) []rawDocument {
	var docs []rawDocument
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var d rawDocument
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			slog.Warn("corpus_line_skipped",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("error", err.Error()))
			continue
		}
		docs = append(docs, d)
	}
	return docs
}

func parseText(data []byte) []rawDocument {
	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")
	var docs []rawDocument
	for _, chunk := range strings.Split(normalized, "\n\n") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			docs = append(docs, rawDocument{Text: chunk})
		}
	}
	return docs
}

// LoadDir loads every supported file directly under dir, ordered by corpus
// id. Two files resolving to the same corpus id are rejected.
func LoadDir(dir string) ([]store.Corpus, error) {
	files, err := loadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]store.Corpus, len(files))
	for i, f := range files {
		out[i] = f.corpus
	}
	return out, nil
}

type corpusFile struct {
	path   string
	corpus store.Corpus
}

func loadDir(dir string) ([]corpusFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("corpus directory %s not found", dir), err).
				WithDetail("path", dir)
		}
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	seen := make(map[string]string)
	var out []corpusFile
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		c, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[c.ID]; dup {
			return nil, errors.Newf(errors.ErrCodeCorpusInvalid, "corpus id %q is defined by both %s and %s", c.ID, prev, path)
		}
		seen[c.ID] = path
		out = append(out, corpusFile{path: path, corpus: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].corpus.ID < out[j].corpus.ID })
	return out, nil
}
