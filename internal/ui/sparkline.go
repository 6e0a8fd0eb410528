package ui

import "strings"

// Sparkline renders recent throughput samples as Unicode block characters.
type Sparkline struct {
	samples []float64 // ring buffer
	width   int
	head    int
	count   int
	max     float64
}

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{samples: make([]float64, width), width: width}
}

// Add appends a sample, overwriting the oldest once full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++

	if value > s.max {
		s.max = value
	}
	// Rescan once per full lap so the scale can shrink again.
	if s.count%s.width == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the full-width sparkline.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(s.width)
}

// RenderWithWidth renders the most recent width samples, oldest first,
// padded with spaces until enough samples exist.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > s.width {
		width = s.width
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}
	if s.max <= 0 {
		s.recalculateMax()
	}

	n := min(s.count, s.width, width)

	var sb strings.Builder
	sb.Grow(width * 3)
	for i := n; i > 0; i-- {
		idx := ((s.head-i)%s.width + s.width) % s.width
		sb.WriteRune(s.bar(s.samples[idx]))
	}
	for i := n; i < width; i++ {
		sb.WriteRune(' ')
	}
	return sb.String()
}

func (s *Sparkline) bar(value float64) rune {
	idx := int(value / s.max * float64(len(SparklineChars)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(SparklineChars) {
		idx = len(SparklineChars) - 1
	}
	return SparklineChars[idx]
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current scale maximum.
func (s *Sparkline) Max() float64 {
	return s.max
}
