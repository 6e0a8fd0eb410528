package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	rrerrors "github.com/Aman-CERP/rubricrank/internal/errors"
	"github.com/Aman-CERP/rubricrank/internal/rubric"
	"github.com/Aman-CERP/rubricrank/internal/search"
	"github.com/Aman-CERP/rubricrank/internal/store"
	"github.com/Aman-CERP/rubricrank/internal/telemetry"
	"github.com/Aman-CERP/rubricrank/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "rubricrank"

// Server is the MCP server for rubricrank. It exposes corpus search with
// optional rubric reranking and background rubric indexing.
type Server struct {
	mcp     *mcp.Server
	engine  *search.Engine
	manager *rubric.Manager
	queries *telemetry.QueryLog
	logger  *slog.Logger

	snapshotPath  string
	defaultWeight float64

	// saves serializes snapshot writes from finished jobs.
	saves sync.Mutex
	wg    sync.WaitGroup
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search a corpus by keyword (BM25), semantic (TF-IDF cosine) or hybrid (reciprocal rank fusion) retrieval. Pass a rubric id to rerank results by rubric quality scores.",
	},
	{
		Name:        "list_corpora",
		Description: "List loaded corpora with their document counts and the rubrics indexed against them.",
	},
	{
		Name:        "index_rubric",
		Description: "Start scoring every document of the given corpora against a rubric in the background. Returns a job id; follow it with index_status.",
	},
	{
		Name:        "index_status",
		Description: "Report rubric indexing jobs and the precomputed rubric indexes that exist.",
	},
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSnapshotPath persists the rubric store to path after every finished
// indexing job.
func WithSnapshotPath(path string) ServerOption {
	return func(s *Server) {
		s.snapshotPath = path
	}
}

// WithDefaultWeight sets the rubric weight used when a search names none.
func WithDefaultWeight(w float64) ServerOption {
	return func(s *Server) {
		s.defaultWeight = w
	}
}

// WithQueryLog exposes the query log as the query_log resource.
func WithQueryLog(l *telemetry.QueryLog) ServerOption {
	return func(s *Server) {
		s.queries = l
	}
}

// NewServer creates a new MCP server.
func NewServer(engine *search.Engine, manager *rubric.Manager, opts ...ServerOption) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if manager == nil {
		return nil, errors.New("rubric manager is required")
	}

	s := &Server{
		engine:        engine,
		manager:       manager,
		logger:        slog.Default(),
		defaultWeight: search.DefaultRubricWeight,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version.Version,
	}, nil)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with decoded arguments. It is the
// transport-free entry point used by the SDK handlers and tests.
func (s *Server) CallTool(ctx context.Context, name string, input any) (any, error) {
	switch name {
	case "search":
		in, ok := input.(SearchInput)
		if !ok {
			return nil, NewInvalidParamsError("search expects SearchInput")
		}
		return s.handleSearch(ctx, in)
	case "list_corpora":
		return s.handleListCorpora(ctx)
	case "index_rubric":
		in, ok := input.(IndexRubricInput)
		if !ok {
			return nil, NewInvalidParamsError("index_rubric expects IndexRubricInput")
		}
		return s.handleIndexRubric(ctx, in)
	case "index_status":
		in, _ := input.(IndexStatusInput)
		return s.handleIndexStatus(ctx, in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if in.Corpus == "" {
		return nil, NewInvalidParamsError("corpus is required; call list_corpora to see loaded corpora")
	}

	mode := search.DefaultMode
	if in.Mode != "" {
		m, err := search.ParseMode(in.Mode)
		if err != nil {
			return nil, MapError(err)
		}
		mode = m
	}

	req := search.Request{
		CorpusID: in.Corpus,
		Query:    in.Query,
		Limit:    in.Limit,
		Mode:     mode,
	}

	if in.Rubric != "" {
		r, err := s.manager.Store().Rubric(in.Rubric)
		if err != nil {
			return nil, MapError(err)
		}
		req.Rubric = r
		req.Weight = s.defaultWeight
		if in.Weight != nil {
			req.Weight = *in.Weight
		}
		if !in.Live {
			if idx, ok := s.manager.Store().Index(r.ID, in.Corpus); ok {
				req.RubricIndex = idx
			}
		}
	}

	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("corpus_id", in.Corpus),
		slog.String("mode", string(mode)),
		slog.String("rubric_id", in.Rubric))

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(resp.Results)))

	out := &SearchOutput{
		Query:   resp.Query,
		Corpus:  resp.CorpusID,
		Mode:    string(resp.Mode),
		Results: resp.Results,
	}
	if out.Results == nil {
		out.Results = []search.Result{}
	}
	if in.Explain {
		out.Trace = resp.Trace
	}
	return out, nil
}

func (s *Server) handleListCorpora(_ context.Context) (*ListCorporaOutput, error) {
	indexed := make(map[string][]string)
	for _, idx := range s.manager.Store().Indexes() {
		indexed[idx.CorpusID] = append(indexed[idx.CorpusID], idx.RubricID)
	}

	out := &ListCorporaOutput{Corpora: []CorpusInfo{}}
	for _, e := range s.engine.Registry().List() {
		out.Corpora = append(out.Corpora, CorpusInfo{
			ID:        e.CorpusID,
			Name:      e.CorpusName,
			Documents: e.DocumentCount(),
			Rubrics:   indexed[e.CorpusID],
		})
	}
	return out, nil
}

func (s *Server) handleIndexRubric(ctx context.Context, in IndexRubricInput) (*IndexRubricOutput, error) {
	if in.Rubric == "" {
		return nil, NewInvalidParamsError("rubric is required")
	}
	r, err := s.manager.Store().Rubric(in.Rubric)
	if err != nil {
		return nil, MapError(err)
	}

	corpora, err := s.selectCorpora(in.Corpora)
	if err != nil {
		return nil, MapError(err)
	}

	job, err := s.manager.Start(ctx, r, corpora, nil)
	if err != nil {
		return nil, MapError(err)
	}

	s.logger.Info("mcp_index_started",
		slog.String("job_id", job.ID()),
		slog.String("rubric_id", r.ID),
		slog.Int("corpora", len(corpora)))

	if s.snapshotPath != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			<-job.Done()
			s.saveSnapshot(job.ID())
		}()
	}

	out := &IndexRubricOutput{JobID: job.ID(), State: job.State(), Corpora: []string{}}
	for _, c := range rubric.EligibleCorpora(corpora) {
		out.Corpora = append(out.Corpora, c.ID)
	}
	return out, nil
}

// selectCorpora resolves ids against the registry. No ids selects every
// loaded corpus.
func (s *Server) selectCorpora(ids []string) ([]store.Corpus, error) {
	registry := s.engine.Registry()

	if len(ids) == 0 {
		all := registry.List()
		corpora := make([]store.Corpus, 0, len(all))
		for _, e := range all {
			corpora = append(corpora, e.Corpus())
		}
		return corpora, nil
	}

	corpora := make([]store.Corpus, 0, len(ids))
	for _, id := range ids {
		e, ok := registry.Get(id)
		if !ok {
			return nil, rrerrors.Newf(rrerrors.ErrCodeNoCorpus, "corpus %q is not loaded", id).
				WithDetail("corpus_id", id)
		}
		corpora = append(corpora, e.Corpus())
	}
	return corpora, nil
}

func (s *Server) saveSnapshot(jobID string) {
	s.saves.Lock()
	defer s.saves.Unlock()

	if err := rubric.SaveSnapshot(s.snapshotPath, s.manager.Store().Snapshot()); err != nil {
		attrs := append([]slog.Attr{slog.String("job_id", jobID)}, rrerrors.LogAttrs(err)...)
		s.logger.LogAttrs(context.Background(), slog.LevelError, "snapshot_save_failed", attrs...)
		return
	}
	s.logger.Info("snapshot_saved", slog.String("job_id", jobID), slog.String("path", s.snapshotPath))
}

func (s *Server) handleIndexStatus(_ context.Context, in IndexStatusInput) (*IndexStatusOutput, error) {
	out := &IndexStatusOutput{Jobs: []JobInfo{}, Rubrics: []RubricInfo{}}

	if in.JobID != "" {
		job, ok := s.manager.Job(in.JobID)
		if !ok {
			return nil, NewInvalidParamsError(fmt.Sprintf("job %q not found", in.JobID))
		}
		out.Jobs = append(out.Jobs, jobInfo(job.Snapshot()))
	} else {
		for _, snap := range s.manager.Jobs() {
			out.Jobs = append(out.Jobs, jobInfo(snap))
		}
	}

	st := s.manager.Store()
	for _, r := range st.Rubrics() {
		info := RubricInfo{ID: r.ID, Name: r.DisplayName(), Criteria: len(r.Criteria), Indexes: []IndexInfo{}}
		for _, idx := range st.Indexes() {
			if idx.RubricID != r.ID {
				continue
			}
			info.Indexes = append(info.Indexes, IndexInfo{
				CorpusID:  idx.CorpusID,
				Documents: idx.DocumentCount,
				Failures:  idx.Failures,
				CreatedAt: idx.CreatedAt.Format(time.RFC3339),
			})
		}
		out.Rubrics = append(out.Rubrics, info)
	}
	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpListCorporaHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexRubricHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, *SearchOutput, error) {
	out, err := s.handleSearch(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	// Markdown for the model, structured output for programmatic clients.
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(out)}},
	}, out, nil
}

func (s *Server) mcpListCorporaHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListCorporaInput) (*mcp.CallToolResult, *ListCorporaOutput, error) {
	out, err := s.handleListCorpora(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexRubricHandler(ctx context.Context, _ *mcp.CallToolRequest, in IndexRubricInput) (*mcp.CallToolResult, *IndexRubricOutput, error) {
	out, err := s.handleIndexRubric(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, in IndexStatusInput) (*mcp.CallToolResult, *IndexStatusOutput, error) {
	out, err := s.handleIndexStatus(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatIndexStatus(out)}},
	}, out, nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close cancels running indexing jobs and waits for their snapshots.
func (s *Server) Close() error {
	s.manager.Shutdown()
	s.wg.Wait()
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
