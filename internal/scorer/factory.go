package scorer

import (
	"fmt"
	"os"
	"strings"

	"github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/llm"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
)

// Provider selects a scoring oracle.
type Provider string

const (
	// ProviderPi uses the hosted scoring API (default).
	ProviderPi Provider = "pi"

	// ProviderJudge uses an OpenAI-compatible chat model as judge.
	ProviderJudge Provider = "judge"

	// ProviderStatic scores offline by vocabulary overlap.
	ProviderStatic Provider = "static"
)

// ValidProviders lists every provider name.
func ValidProviders() []string {
	return []string{string(ProviderPi), string(ProviderJudge), string(ProviderStatic)}
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderPi, ProviderJudge, ProviderStatic:
		return p, nil
	case "":
		return ProviderPi, nil
	default:
		return "", errors.ConfigError(
			fmt.Sprintf("unknown scorer provider: %s (valid options: %s)", s, strings.Join(ValidProviders(), ", ")), nil)
	}
}

// Options configures New.
type Options struct {
	Provider  string
	Endpoint  string
	APIKeyEnv string
	Model     string

	// CacheSize enables the LRU cache when positive.
	CacheSize int

	// PoolSize bounds HTTP connections of the hosted client.
	PoolSize int
}

// New creates the configured scorer. RUBRICRANK_SCORER overrides the provider.
func New(opts Options) (rubric.Scorer, error) {
	name := opts.Provider
	if env := os.Getenv("RUBRICRANK_SCORER"); env != "" {
		name = env
	}
	provider, err := ParseProvider(name)
	if err != nil {
		return nil, err
	}

	var s rubric.Scorer
	switch provider {
	case ProviderPi:
		keyEnv := opts.APIKeyEnv
		if keyEnv == "" {
			keyEnv = DefaultPiAPIKeyEnv
		}
		s, err = NewPiScorer(PiConfig{
			Endpoint: opts.Endpoint,
			APIKey:   os.Getenv(keyEnv),
			PoolSize: opts.PoolSize,
		})
	case ProviderJudge:
		var c *llm.Client
		c, err = llm.NewClient(llm.Config{
			APIKey:  llm.APIKeyFromEnv(),
			BaseURL: opts.Endpoint,
			Model:   opts.Model,
		})
		if err == nil {
			s = NewJudgeScorer(c)
		}
	case ProviderStatic:
		s = NewStaticScorer()
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheSize > 0 && provider != ProviderStatic {
		s = NewCachedScorer(s, opts.CacheSize)
	}
	return s, nil
}
