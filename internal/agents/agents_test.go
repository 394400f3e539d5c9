package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jobkit/jobtailor/internal/hackernews"
	"github.com/jobkit/jobtailor/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, system+"\n"+message)
	if s.err != nil {
		return "", s.err
	}

	if len(s.responses) == 0 {
		return "", errors.New("no stubbed response")
	}
	response := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return response, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

type stubSearcher struct {
	params *hackernews.SearchParams
	jobs   *hackernews.Jobs
	err    error
}

func (s *stubSearcher) Search(params *hackernews.SearchParams) (*hackernews.Jobs, error) {
	s.params = params
	return s.jobs, s.err
}

func TestSearchAgentExpandsTerms(t *testing.T) {
	generator := &stubGenerator{responses: []string{"```json\n[\"golang\", \"go backend\", \"GOLANG\"]\n```"}}
	searcher := &stubSearcher{jobs: &hackernews.Jobs{Items: []*hackernews.Job{{ID: "1"}}}}

	agent := NewSearchAgent(generator, searcher, 50, 0, zap.NewNop())

	jobs, err := agent.Run(context.Background(), []string{"go"}, "Remote")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if jobs.Len() != 1 {
		t.Fatalf("expected 1 job, got %d", jobs.Len())
	}

	want := []string{"golang", "go backend"}
	if len(searcher.params.Terms) != len(want) {
		t.Fatalf("unexpected queries: %v", searcher.params.Terms)
	}
	for i, term := range want {
		if searcher.params.Terms[i] != term {
			t.Fatalf("unexpected queries: %v", searcher.params.Terms)
		}
	}

	if searcher.params.Location != "Remote" || searcher.params.Limit != 50 {
		t.Fatalf("unexpected params: %+v", searcher.params)
	}
}

func TestSearchAgentFallsBackToSeedTerms(t *testing.T) {
	generator := &stubGenerator{err: errors.New("llm down")}
	searcher := &stubSearcher{jobs: &hackernews.Jobs{}}

	agent := NewSearchAgent(generator, searcher, 0, 0, zap.NewNop())

	if _, err := agent.Run(context.Background(), []string{"python", "ml"}, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(searcher.params.Terms) != 2 || searcher.params.Terms[0] != "python" {
		t.Fatalf("expected seed terms, got %v", searcher.params.Terms)
	}
}

func TestSearchAgentSurfacesBoardError(t *testing.T) {
	generator := &stubGenerator{responses: []string{`["go"]`}}
	searcher := &stubSearcher{err: errors.New("api down")}

	agent := NewSearchAgent(generator, searcher, 0, 0, zap.NewNop())

	if _, err := agent.Run(context.Background(), []string{"go"}, ""); err == nil {
		t.Fatal("expected error from board search")
	}
}

func TestScreenAgentShortlists(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		`[{"id": "2", "score": 0.9, "reason": "strong go match"},
		  {"id": "1", "score": "0.4", "reason": "partial match"},
		  {"id": "ghost", "score": 0.99, "reason": "does not exist"}]`,
	}}

	jobs := &hackernews.Jobs{Items: []*hackernews.Job{
		{ID: "1", Title: "Backend"},
		{ID: "2", Title: "Go Engineer"},
		{ID: "3", Title: "Designer"},
	}}

	agent := NewScreenAgent(generator, 10, 0, zap.NewNop())

	shortlist, err := agent.Run(context.Background(), "resume text", jobs)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if shortlist.Len() != 2 {
		t.Fatalf("expected 2 shortlisted jobs, got %d", shortlist.Len())
	}

	if shortlist.Items[0].ID != "2" || shortlist.Items[1].ID != "1" {
		t.Fatalf("expected score ordering, got %v", shortlist.IDs())
	}

	if shortlist.Items[0].Screen == nil || shortlist.Items[0].Screen.Reason != "strong go match" {
		t.Fatalf("expected screening annotation, got %+v", shortlist.Items[0].Screen)
	}
	if shortlist.Items[1].Screen.Score != 0.4 {
		t.Fatalf("expected coerced score, got %v", shortlist.Items[1].Screen.Score)
	}

	if !strings.Contains(generator.prompts[0], "resume text") {
		t.Fatal("expected resume text in prompt")
	}
}

func TestScreenAgentCutsToShortlistSize(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		`[{"id": "1", "score": 0.5}, {"id": "2", "score": 0.9}, {"id": "3", "score": 0.7}]`,
	}}

	jobs := &hackernews.Jobs{Items: []*hackernews.Job{{ID: "1"}, {ID: "2"}, {ID: "3"}}}

	agent := NewScreenAgent(generator, 2, 0, zap.NewNop())

	shortlist, err := agent.Run(context.Background(), "resume", jobs)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if shortlist.Len() != 2 || shortlist.Items[0].ID != "2" || shortlist.Items[1].ID != "3" {
		t.Fatalf("unexpected shortlist: %v", shortlist.IDs())
	}
}

func TestScreenAgentRejectsEmptyResume(t *testing.T) {
	agent := NewScreenAgent(&stubGenerator{}, 0, 0, zap.NewNop())

	if _, err := agent.Run(context.Background(), "   ", &hackernews.Jobs{}); err == nil {
		t.Fatal("expected error for empty resume")
	}
}

func TestScreenAgentEmptyJobs(t *testing.T) {
	agent := NewScreenAgent(&stubGenerator{}, 0, 0, zap.NewNop())

	shortlist, err := agent.Run(context.Background(), "resume", &hackernews.Jobs{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if shortlist.Len() != 0 {
		t.Fatalf("expected empty shortlist, got %d", shortlist.Len())
	}
}

type recordingWriter struct {
	mu       sync.Mutex
	sections map[string]string
	err      error
}

func (w *recordingWriter) Append(job *hackernews.Job, section string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.sections == nil {
		w.sections = make(map[string]string)
	}
	w.sections[job.ID] = section
	return nil
}

func TestTailorAgentWritesSections(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		`{"id": "1", "section": "Tailored for Acme.", "preview": "Acme preview"}`,
	}}
	writer := &recordingWriter{}

	agent := NewTailorAgent(generator, writer, 1, 0, zap.NewNop())

	selected := &hackernews.Jobs{Items: []*hackernews.Job{
		{ID: "1", Company: "Acme"},
	}}

	previews, err := agent.Run(context.Background(), "resume", selected)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if previews["1"] != "Acme preview" {
		t.Fatalf("unexpected previews: %v", previews)
	}
	if writer.sections["1"] != "Tailored for Acme." {
		t.Fatalf("unexpected sections: %v", writer.sections)
	}
}

func TestTailorAgentKeepsSuccessesOnFailure(t *testing.T) {
	// Single worker makes the response order deterministic: the first job
	// succeeds, the second gets an invalid reply.
	generator := &stubGenerator{responses: []string{
		`{"id": "1", "section": "ok section", "preview": "ok"}`,
		`not json at all`,
	}}
	writer := &recordingWriter{}

	agent := NewTailorAgent(generator, writer, 1, 0, zap.NewNop())

	selected := &hackernews.Jobs{Items: []*hackernews.Job{{ID: "1"}, {ID: "2"}}}

	previews, err := agent.Run(context.Background(), "resume", selected)
	if err == nil {
		t.Fatal("expected error for failed job")
	}

	if _, ok := previews["1"]; !ok {
		t.Fatalf("expected preview for successful job, got %v", previews)
	}
	if _, ok := previews["2"]; ok {
		t.Fatal("did not expect preview for failed job")
	}
}

func TestAgentsTagLogsWithModel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	generator := &stubGenerator{responses: []string{`["go"]`}}
	searcher := &stubSearcher{jobs: &hackernews.Jobs{}}

	agent := NewSearchAgent(generator, searcher, 0, 0, zap.New(core))
	if _, err := agent.Run(context.Background(), []string{"go"}, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tagged := logs.FilterField(zap.String(logger.FieldModel, "stub-model"))
	if tagged.Len() == 0 {
		t.Fatal("expected log entries tagged with the generator model")
	}
}

func TestParseTailoredFallsBackToSectionPreview(t *testing.T) {
	t.Parallel()

	section, preview, err := parseTailored(`{"id": "1", "section": "Short section."}`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if section != "Short section." || preview != "Short section." {
		t.Fatalf("got section %q preview %q", section, preview)
	}

	if _, _, err := parseTailored(`{"id": "1"}`); err == nil {
		t.Fatal("expected error for missing section")
	}
}
