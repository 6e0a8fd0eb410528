package ui

import (
	"sync"
	"time"
)

// ProgressTracker manages progress state across stages and corpora.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	corpus      string
	corporaDone int
	documents   int
	startTime   time.Time
	corpusStart time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent

	// previous ETA, for exponential smoothing
	lastETA time.Duration

	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64 // documents/sec
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int
	sparkline     *Sparkline
}

// SpeedStats contains speed metrics for display.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	Corpus      string
	CorporaDone int
	Documents   int // documents scored across finished corpora and the current one
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// speedInterval is how often throughput is sampled.
const speedInterval = 500 * time.Millisecond

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StageLoading,
		startTime:     now,
		corpusStart:   now,
		lastSpeedCalc: now,
		sparkline:     NewSparkline(60),
	}
}

// SetStage transitions to a new stage.
func (p *ProgressTracker) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stage == p.stage {
		return
	}
	p.finishCorpus()
	p.stage = stage
	p.total = 0
	p.current = 0
	p.corpus = ""
}

// Update records document progress within a corpus. A new corpus name
// resets the per-corpus counters. Speed history is kept across corpora.
func (p *ProgressTracker) Update(current, total int, corpus string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if corpus != p.corpus {
		p.finishCorpus()
		p.corpus = corpus
		p.current = 0
		p.lastCurrent = 0
		p.lastETA = 0
		p.corpusStart = time.Now()
		p.lastSpeedCalc = p.corpusStart
	}
	p.current = current
	p.total = total

	now := time.Now()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed < speedInterval {
		return
	}

	if delta := current - p.lastCurrent; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.currentSpeed = speed

		p.speedSamples++
		if p.speedSamples == 1 {
			p.avgSpeed = speed
		} else {
			p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
		}
		if speed > p.peakSpeed {
			p.peakSpeed = speed
		}
		p.sparkline.Add(speed)
	}
	p.lastCurrent = current
	p.lastSpeedCalc = now
}

// finishCorpus folds the current corpus into the totals. Caller holds mu.
func (p *ProgressTracker) finishCorpus() {
	if p.corpus == "" || p.stage != StageScoring {
		return
	}
	p.corporaDone++
	p.documents += p.current
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns progress within the current corpus (0.0-1.0).
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.fraction()
}

func (p *ProgressTracker) fraction() float64 {
	if p.total == 0 {
		return 0.0
	}
	f := float64(p.current) / float64(p.total)
	if f > 1.0 {
		return 1.0
	}
	return f
}

// ETA estimates remaining time for the current corpus.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns current statistics snapshot.
// Uses write lock because calculateETA updates the smoothing state.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	docs := p.documents
	if p.stage == StageScoring {
		docs += p.current
	}

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    p.fraction(),
		ETA:         p.calculateETA(),
		Corpus:      p.corpus,
		CorporaDone: p.corporaDone,
		Documents:   docs,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed: SpeedStats{
			Current: p.currentSpeed,
			Avg:     p.avgSpeed,
			Peak:    p.peakSpeed,
		},
	}
}

// etaSmoothingFactor is the weight of a new ETA sample.
const etaSmoothingFactor = 0.3

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	progress := float64(p.current) / float64(p.total)
	if progress >= 1.0 {
		return 0
	}

	elapsed := time.Since(p.corpusStart)
	remaining := time.Duration(float64(elapsed)/progress) - elapsed
	if remaining < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = remaining
		return remaining
	}
	smoothed := time.Duration(etaSmoothingFactor*float64(remaining) + (1-etaSmoothingFactor)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

// RenderSparkline returns the throughput sparkline.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if width <= 0 {
		return p.sparkline.Render()
	}
	return p.sparkline.RenderWithWidth(width)
}

// SpeedStats returns current speed statistics.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return SpeedStats{Current: p.currentSpeed, Avg: p.avgSpeed, Peak: p.peakSpeed}
}
