package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/campus-cli/internal/browser"
	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/task"
	"github.com/sells-group/campus-cli/pkg/llm"
)

// --- LLM Mock ---

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *mockLLMClient) Name() string {
	return "mock"
}

// --- Ledger Mock ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreateRun(ctx context.Context, taskName, institution string) (*model.Run, error) {
	args := m.Called(ctx, taskName, institution)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockLedger) RecordAttempt(ctx context.Context, runID string, a model.Attempt) error {
	args := m.Called(ctx, runID, a)
	return args.Error(0)
}

func (m *mockLedger) CompleteRun(ctx context.Context, runID string, outcome model.RunOutcome) error {
	args := m.Called(ctx, runID, outcome)
	return args.Error(0)
}

// --- Scripted browser ---

// pageScript describes what one browser session does. Errors are returned
// from the matching step; a nil error lets the session proceed.
type pageScript struct {
	searchErr error
	matched   string
	openErr   error
	tabErr    error
	html      string
	htmlErr   error
}

// fakeLauncher hands out one session per Launch call, following scripts in
// order. The last script repeats.
type fakeLauncher struct {
	mu        sync.Mutex
	scripts   []pageScript
	launchErr error
	launched  int
	closed    int
	tabs      []browser.Tab
	searched  []string
}

func (l *fakeLauncher) Launch(_ context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	idx := l.launched
	if idx >= len(l.scripts) {
		idx = len(l.scripts) - 1
	}
	l.launched++
	return &fakeSession{l: l, script: l.scripts[idx]}, nil
}

func (l *fakeLauncher) counts() (launched, closed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched, l.closed
}

type fakeSession struct {
	l      *fakeLauncher
	script pageScript
}

func (s *fakeSession) Search(_ context.Context, name string) error {
	s.l.mu.Lock()
	s.l.searched = append(s.l.searched, name)
	s.l.mu.Unlock()
	return s.script.searchErr
}

func (s *fakeSession) OpenFirstResult(_ context.Context) (string, error) {
	return s.script.matched, s.script.openErr
}

func (s *fakeSession) ClickTab(_ context.Context, tab browser.Tab) error {
	s.l.mu.Lock()
	s.l.tabs = append(s.l.tabs, tab)
	s.l.mu.Unlock()
	return s.script.tabErr
}

func (s *fakeSession) PageHTML(_ context.Context) (string, error) {
	return s.script.html, s.script.htmlErr
}

func (s *fakeSession) Close() error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	s.l.closed++
	return nil
}

// --- Scripted extraction ---

type fakeExtraction struct {
	mu       sync.Mutex
	outcomes []ExtractionOutcome
	calls    int
	chunks   [][]model.PromptChunk
}

func (f *fakeExtraction) Extract(_ context.Context, _ task.Descriptor, _ string, chunks []model.PromptChunk) ExtractionOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	f.calls++
	f.chunks = append(f.chunks, chunks)
	return f.outcomes[idx]
}

// --- Batch fakes ---

type recordingSink struct {
	batches [][]model.ResultRow
	err     error
}

func (s *recordingSink) WriteRows(rows []model.ResultRow) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, rows)
	return nil
}

type scriptedRunner struct {
	results map[string]RunResult
	order   []string
}

func (r *scriptedRunner) Run(_ context.Context, _ task.Descriptor, inst model.Institution) RunResult {
	r.order = append(r.order, inst.Name)
	if res, ok := r.results[inst.Name]; ok {
		return res
	}
	return RunResult{
		Status: model.RunStatusComplete,
		Rows:   []model.ResultRow{{University: inst.Name, Label: "Biology"}},
	}
}

func llmUsage(in, out int64) llm.Usage {
	return llm.Usage{InputTokens: in, OutputTokens: out}
}
