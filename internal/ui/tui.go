package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides a live terminal panel using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexingModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newIndexingModel(tracker, cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(event.Stage)
	if event.Stage == StageScoring {
		r.tracker.Update(event.Current, event.Total, event.Corpus)
	}
	if r.program != nil {
		r.program.Send(progressUpdateMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)
	if r.program != nil {
		r.program.Send(errorMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete)
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer. Messages are delivered in order, so a pending
// completeMsg is rendered before the quit. The wait is bounded so an
// unresponsive terminal cannot hang the process.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	cancel := r.cancel
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

type (
	progressUpdateMsg ProgressEvent
	errorMsg          ErrorEvent
	completeMsg       CompletionStats
	tickMsg           time.Time
)

// indexingModel is the bubbletea model for indexing progress.
type indexingModel struct {
	tracker     *ProgressTracker
	width       int
	quitting    bool
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
	title       string
}

func newIndexingModel(tracker *ProgressTracker, title string) *indexingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	p := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &indexingModel{
		tracker:     tracker,
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
		title:       title,
	}
}

// Init implements tea.Model.
func (m *indexingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-20, 20)

	case progressUpdateMsg, errorMsg:
		// state lives in the tracker; the next tick redraws

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *indexingModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	divider := m.styles.Border.Render(strings.Repeat("─", width))

	sections := []string{
		m.renderStages(),
		divider,
		m.renderProgress(),
		m.renderSpeed(),
		divider,
		m.renderSparkline(width),
	}

	title := "rubricrank index"
	if m.title != "" {
		title += " • " + m.title
	}
	panel := m.styles.Panel.Width(width).Render(strings.Join(sections, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Header.Render(title), panel) +
		"\n" + m.renderStatusBar()
}

func (m *indexingModel) renderStages() string {
	current := m.tracker.Stats().Stage

	var parts []string
	for _, s := range []Stage{StageLoading, StageScoring, StageSaving} {
		var icon string
		var style lipgloss.Style
		switch {
		case s < current:
			icon, style = "●", m.styles.Success
		case s == current:
			icon, style = m.spinner.View(), m.styles.Active
		default:
			icon, style = "○", m.styles.Dim
		}
		parts = append(parts, style.Render(icon+" "+s.String()))
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *indexingModel) renderProgress() string {
	stats := m.tracker.Stats()

	if stats.Total == 0 {
		return fmt.Sprintf("%s %s...", m.spinner.View(), stats.Stage)
	}

	bar := m.progressBar.ViewAs(stats.Progress)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100))
	count := m.styles.Label.Render(fmt.Sprintf("%s: %d / %d documents  (%d corpora done)",
		stats.Corpus, stats.Current, stats.Total, stats.CorporaDone))

	return fmt.Sprintf("%s  %s\n%s", bar, pct, count)
}

func (m *indexingModel) renderSpeed() string {
	stats := m.tracker.Stats()

	speed := fmt.Sprintf("Speed: %.1f docs/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.1f, peak: %.1f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	parts := []string{m.styles.Speed.Render(speed)}
	if stats.ETA > 0 {
		parts = append(parts, m.styles.Label.Render("ETA: "+formatDuration(stats.ETA)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

func (m *indexingModel) renderSparkline(width int) string {
	spark := m.tracker.RenderSparkline(max(width-14, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("throughput")
}

func (m *indexingModel) renderStatusBar() string {
	stats := m.tracker.Stats()

	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *indexingModel) renderComplete() string {
	header := m.styles.Success.Render("✓ Indexing complete")
	if m.stats.Cancelled {
		header = m.styles.Warning.Render("⚠ Indexing cancelled")
	}

	row := func(label, value string) string {
		return fmt.Sprintf("%-11s %s", m.styles.Label.Render(label), m.styles.Active.Render(value))
	}

	lines := []string{header, ""}
	if m.stats.Rubric != "" {
		lines = append(lines, row("Rubric:", m.stats.Rubric))
	}
	lines = append(lines,
		row("Corpora:", fmt.Sprintf("%d", m.stats.Corpora)),
		row("Documents:", fmt.Sprintf("%d", m.stats.Documents)),
		row("Duration:", formatDuration(m.stats.Duration)),
	)
	if avg := m.tracker.SpeedStats().Avg; avg > 0 {
		lines = append(lines, row("Avg speed:", fmt.Sprintf("%.1f docs/s", avg)))
	}
	if m.stats.Failures > 0 {
		lines = append(lines, "", m.styles.Warning.Render(fmt.Sprintf("⚠ %d documents scored 0 after retries", m.stats.Failures)))
	}
	if m.stats.Errors > 0 {
		lines = append(lines, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.stats.Errors)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccent)).
		Padding(1, 2).
		Width(max(m.width-4, 40))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

var _ Renderer = (*TUIRenderer)(nil)
