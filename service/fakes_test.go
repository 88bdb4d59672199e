package service

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"nvr-orchestrator/constant"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

type fakeFootage struct {
	calls   atomic.Int32
	content string
	err     error
	// failReader makes the returned stream fail after its content.
	failReader bool
}

type failingReader struct {
	r io.Reader
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func (f *fakeFootage) FetchClip(ctx context.Context, req dto.ClipRequest) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var r io.Reader = strings.NewReader(f.content)
	if f.failReader {
		r = &failingReader{r: r}
	}
	return io.NopCloser(r), nil
}

type fakeAnalysis struct {
	mu sync.Mutex

	uploads      atomic.Int32
	submissions  atomic.Int32
	uploadErr    error
	createErr    error
	resultErr    error
	searchErr    error
	videoID      string
	pipelineID   string
	summaries    map[string]string
	uploadedPath string
	uploadedBody string
}

func (f *fakeAnalysis) UploadVideo(ctx context.Context, path string) (string, error) {
	f.uploads.Add(1)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.uploadedPath = path
	f.uploadedBody = string(data)
	f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.videoID, nil
}

func (f *fakeAnalysis) CreateSummary(ctx context.Context, payload dto.SummaryPayload) (string, error) {
	f.submissions.Add(1)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.pipelineID, nil
}

func (f *fakeAnalysis) SummaryResult(ctx context.Context, pipelineID string) (*dto.SummaryResultResponse, error) {
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dto.SummaryResultResponse{Summary: f.summaries[pipelineID]}, nil
}

func (f *fakeAnalysis) SearchEmbeddings(ctx context.Context, videoID string) (string, error) {
	if f.searchErr != nil {
		return "", f.searchErr
	}
	return "Embeddings created for " + videoID, nil
}

func (f *fakeAnalysis) setSummary(id, summary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaries == nil {
		f.summaries = map[string]string{}
	}
	f.summaries[id] = summary
}

// memRepo is an in-memory RuleRepository with injectable failures.
type memRepo struct {
	mu        sync.Mutex
	rules     map[string]entities.Rule
	summaries map[string][]string
	searches  map[string][]entities.SearchResult

	listErr   error
	idsErrFor string
}

func newMemRepo(rules ...entities.Rule) *memRepo {
	r := &memRepo{
		rules:     map[string]entities.Rule{},
		summaries: map[string][]string{},
		searches:  map[string][]entities.SearchResult{},
	}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
	}
	return r
}

func (r *memRepo) Add(ctx context.Context, rule entities.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; ok {
		return apperror.Conflict("add rule", "Rule ID already exists")
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *memRepo) List(ctx context.Context) ([]entities.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]entities.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*entities.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, apperror.NotFound("get rule", "Rule not found")
	}
	return &rule, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return apperror.NotFound("delete rule", "Rule not found")
	}
	delete(r.rules, id)
	delete(r.summaries, id)
	delete(r.searches, id)
	return nil
}

func (r *memRepo) AppendSummaryID(ctx context.Context, ruleID, pipelineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[ruleID] = append(r.summaries[ruleID], pipelineID)
	return nil
}

func (r *memRepo) SummaryIDs(ctx context.Context, ruleID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ruleID == r.idsErrFor {
		return nil, errors.New("redis: connection reset")
	}
	return append([]string(nil), r.summaries[ruleID]...), nil
}

func (r *memRepo) AppendSearchResult(ctx context.Context, ruleID string, result entities.SearchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches[ruleID] = append(r.searches[ruleID], result)
	return nil
}

func (r *memRepo) SearchResults(ctx context.Context, ruleID string) ([]entities.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.SearchResult(nil), r.searches[ruleID]...), nil
}

func (r *memRepo) Close() error {
	return nil
}

func newRule(id, camera string, action constant.Action) entities.Rule {
	return entities.Rule{ID: id, Label: "person", Camera: camera, Action: action}
}

func endedEvent(id, camera string, start, end float64) entities.Event {
	return entities.Event{ID: id, Camera: camera, Label: "person", StartTime: start, EndTime: &end}
}
