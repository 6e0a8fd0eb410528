package search

import (
	"fmt"
	"math"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// Calibration holds the empirical constants that map raw engine scores into
// [0,1]. They are tuned to the bundled engines and need re-tuning for others.
type Calibration struct {
	// KeywordDivisor is the BM25 magnitude treated as a perfect match.
	KeywordDivisor float64 `json:"keyword_divisor" yaml:"keyword_divisor"`

	// HybridMultiplier scales RRF sums up into [0,1].
	HybridMultiplier float64 `json:"hybrid_multiplier" yaml:"hybrid_multiplier"`
}

// DefaultCalibration returns divisor 10 and multiplier 10.
func DefaultCalibration() Calibration {
	return Calibration{
		KeywordDivisor:   10,
		HybridMultiplier: 10,
	}
}

// Normalize maps a raw score from mode into [0,1]:
//   - keyword:  min(raw/KeywordDivisor, 1)
//   - semantic: clamp(raw, 0, 1)
//   - hybrid:   min(raw*HybridMultiplier, 1)
//
// NaN and infinities normalize to 0. An unknown mode normalizes to 0.
func (c Calibration) Normalize(raw float64, mode Mode) float64 {
	if !isFinite(raw) {
		return 0
	}

	switch mode {
	case ModeKeyword:
		div := c.KeywordDivisor
		if div <= 0 {
			div = DefaultCalibration().KeywordDivisor
		}
		return clamp01(raw / div)
	case ModeSemantic:
		return clamp01(raw)
	case ModeHybrid:
		mul := c.HybridMultiplier
		if mul <= 0 {
			mul = DefaultCalibration().HybridMultiplier
		}
		return clamp01(raw * mul)
	default:
		return 0
	}
}

// Normalize applies DefaultCalibration.
func Normalize(raw float64, mode Mode) float64 {
	return DefaultCalibration().Normalize(raw, mode)
}

// NormalizeRubric clamps an oracle score into [0,1]; NaN becomes 0.
func NormalizeRubric(score float64) float64 {
	if !isFinite(score) {
		return 0
	}
	return clamp01(score)
}

// ValidateWeight rejects weights outside [0,1].
func ValidateWeight(weight float64) error {
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return errors.New(errors.ErrCodeInvalidWeight,
			fmt.Sprintf("weight must be between 0 and 1, got %v", weight), nil).
			WithDetail("weight", fmt.Sprintf("%v", weight)).
			WithSuggestion("Use 0 for retrieval only, 1 for rubric only")
	}
	return nil
}

// Combine blends a normalized retrieval score with a rubric score:
// (1-weight)*retrieval + weight*rubric. weight must be in [0,1].
func Combine(retrieval, rubricScore, weight float64) (float64, error) {
	if err := ValidateWeight(weight); err != nil {
		return 0, err
	}
	if !isFinite(retrieval) {
		retrieval = 0
	}
	if !isFinite(rubricScore) {
		rubricScore = 0
	}
	return clamp01((1-weight)*retrieval + weight*rubricScore), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
