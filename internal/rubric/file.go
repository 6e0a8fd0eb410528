package rubric

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// LoadFile reads a rubric from a YAML or JSON file. A missing id is derived
// from the file name.
func LoadFile(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("rubric file %s not found", path), err).
				WithDetail("path", path)
		}
		return nil, fmt.Errorf("failed to read rubric file: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if r.ID == "" {
		r.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Parse decodes a rubric document. JSON is accepted as a YAML subset.
func Parse(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "rubric is not valid YAML or JSON", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return &r, nil
}

// LoadDir reads every .yaml, .yml and .json rubric in dir, ordered by file
// name.
func LoadDir(dir string) ([]*Rubric, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric directory: %w", err)
	}

	var out []*Rubric
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		r, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// WriteFile saves r as YAML.
func WriteFile(path string, r *Rubric) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode rubric: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create rubric directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
