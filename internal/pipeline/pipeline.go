// Package pipeline wires the job-search agents into a workflow graph: search
// the hiring board, enrich large result sets with deterministic tags, screen
// against the resume, pause for a human shortlist selection and tailor the
// resume for the chosen postings.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobkit/jobtailor/internal/graph"
	"github.com/jobkit/jobtailor/internal/hackernews"
	"go.uber.org/zap"
)

// Node names of the workflow graph.
const (
	NodeSearch = "search"
	NodeEnrich = "enrich"
	NodeScreen = "screen"
	NodeSelect = "select"
	NodeTailor = "tailor"
)

const (
	// defaultEnrichThreshold is the result-set size above which the cheap
	// tagging pass runs before the LLM sees the jobs.
	defaultEnrichThreshold = 12

	// defaultMaxSelect bounds the automatic selection used when the human
	// reply is empty or references no shortlisted job.
	defaultMaxSelect = 2

	// longDescriptionRunes separates long-desc from short-desc postings.
	longDescriptionRunes = 600
)

// State is the workflow state carried between nodes. It must survive a JSON
// round trip, checkpoints store it serialized.
type State struct {
	SeedTerms  []string `json:"seed_terms"`
	Location   string   `json:"location,omitempty"`
	ResumeText string   `json:"resume_text"`

	Jobs      *hackernews.Jobs `json:"jobs,omitempty"`
	Shortlist *hackernews.Jobs `json:"shortlist,omitempty"`
	Selected  *hackernews.Jobs `json:"selected,omitempty"`

	Previews map[string]string `json:"previews,omitempty"`
}

// Selection is the interrupt payload shown to the human operator.
type Selection struct {
	Instruction string
	Shortlist   *hackernews.Jobs
}

type searchAgent interface {
	Run(ctx context.Context, terms []string, location string) (*hackernews.Jobs, error)
}

type screenAgent interface {
	Run(ctx context.Context, resumeText string, jobs *hackernews.Jobs) (*hackernews.Jobs, error)
}

type tailorAgent interface {
	Run(ctx context.Context, resumeText string, selected *hackernews.Jobs) (map[string]string, error)
}

type Config struct {
	EnrichThreshold int
	MaxSelect       int
}

type Pipeline struct {
	search searchAgent
	screen screenAgent
	tailor tailorAgent

	enrichThreshold int
	maxSelect       int
	logger          *zap.Logger
}

func New(search searchAgent, screen screenAgent, tailor tailorAgent, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.EnrichThreshold <= 0 {
		cfg.EnrichThreshold = defaultEnrichThreshold
	}
	if cfg.MaxSelect <= 0 {
		cfg.MaxSelect = defaultMaxSelect
	}

	return &Pipeline{
		search:          search,
		screen:          screen,
		tailor:          tailor,
		enrichThreshold: cfg.EnrichThreshold,
		maxSelect:       cfg.MaxSelect,
		logger:          log,
	}
}

// Build compiles the workflow graph into a runner.
func (p *Pipeline) Build(opts ...graph.Option[State]) (*graph.Runner[State], error) {
	g := graph.New[State]()

	nodes := map[string]graph.NodeFunc[State]{
		NodeSearch: p.searchNode,
		NodeEnrich: p.enrichNode,
		NodeScreen: p.screenNode,
		NodeSelect: p.selectNode,
		NodeTailor: p.tailorNode,
	}
	for name, fn := range nodes {
		if err := g.AddNode(name, fn); err != nil {
			return nil, err
		}
	}

	// Large result sets take the tagging detour, small ones go straight to
	// screening. An empty search ends the run without bothering the LLM.
	err := g.AddConditionalEdges(NodeSearch, func(s State) string {
		switch {
		case s.Jobs.Len() == 0:
			return "empty"
		case s.Jobs.Len() > p.enrichThreshold:
			return "enrich"
		default:
			return "screen"
		}
	}, map[string]string{
		"empty":  graph.END,
		"enrich": NodeEnrich,
		"screen": NodeScreen,
	})
	if err != nil {
		return nil, err
	}

	if err := g.AddEdge(NodeEnrich, NodeScreen); err != nil {
		return nil, err
	}

	// A shortlist with nothing on it ends the run before the interrupt.
	err = g.AddConditionalEdges(NodeScreen, func(s State) string {
		if s.Shortlist.Len() == 0 {
			return "empty"
		}
		return "select"
	}, map[string]string{
		"empty":  graph.END,
		"select": NodeSelect,
	})
	if err != nil {
		return nil, err
	}

	if err := g.AddEdge(NodeSelect, NodeTailor); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodeTailor, graph.END); err != nil {
		return nil, err
	}

	if err := g.SetEntryPoint(NodeSearch); err != nil {
		return nil, err
	}

	return g.Compile(opts...)
}

func (p *Pipeline) searchNode(ctx context.Context, s State) (State, error) {
	jobs, err := p.search.Run(ctx, s.SeedTerms, s.Location)
	if err != nil {
		return s, err
	}

	s.Jobs = jobs
	if jobs.Len() == 0 {
		p.logger.Info("no postings matched the search terms")
	}

	return s, nil
}

// enrichNode attaches deterministic tags so the screening prompt can lean on
// them instead of re-deriving the same facts for every posting.
func (p *Pipeline) enrichNode(_ context.Context, s State) (State, error) {
	for _, job := range s.Jobs.Items {
		job.Tags = enrichTags(job)
	}

	p.logger.Debug("enriched postings", zap.Int("jobs", s.Jobs.Len()))

	return s, nil
}

func enrichTags(job *hackernews.Job) []string {
	var tags []string

	if len([]rune(job.Description)) >= longDescriptionRunes {
		tags = append(tags, "long-desc")
	} else {
		tags = append(tags, "short-desc")
	}

	haystack := strings.ToLower(job.Location + "\n" + job.Description)
	if strings.Contains(haystack, "remote") {
		tags = append(tags, "remote")
	}
	if strings.Contains(haystack, "onsite") || strings.Contains(haystack, "on-site") {
		tags = append(tags, "onsite")
	}
	if strings.Contains(haystack, "hybrid") {
		tags = append(tags, "hybrid")
	}
	if strings.Contains(haystack, "visa") {
		tags = append(tags, "visa")
	}

	return tags
}

func (p *Pipeline) screenNode(ctx context.Context, s State) (State, error) {
	shortlist, err := p.screen.Run(ctx, s.ResumeText, s.Jobs)
	if err != nil {
		return s, err
	}

	s.Shortlist = shortlist
	return s, nil
}

// selectNode pauses the workflow and waits for the operator to pick jobs from
// the shortlist. Ids not on the shortlist are ignored; when nothing valid was
// picked, the top scored postings are selected instead.
func (p *Pipeline) selectNode(ctx context.Context, s State) (State, error) {
	ids, err := graph.Interrupt[[]string](ctx, &Selection{
		Instruction: fmt.Sprintf("Pick the postings to tailor the resume for (%d shortlisted).", s.Shortlist.Len()),
		Shortlist:   s.Shortlist,
	})
	if err != nil {
		return s, err
	}

	selected := &hackernews.Jobs{}
	for _, id := range ids {
		job := s.Shortlist.FindByID(id)
		if job == nil {
			p.logger.Warn("ignoring unknown job id in selection", zap.String("job_id", id))
			continue
		}
		if selected.FindByID(id) != nil {
			continue
		}
		selected.Items = append(selected.Items, job)
	}

	if selected.Len() == 0 {
		selected = s.Shortlist.Take(p.maxSelect)
		p.logger.Info("no valid selection, keeping top shortlisted postings",
			zap.Strings("job_ids", selected.IDs()),
		)
	}

	s.Selected = selected
	return s, nil
}

// tailorNode tailors the resume for the selected postings. A partial failure
// does not abort the run, the sections that succeeded are already written.
func (p *Pipeline) tailorNode(ctx context.Context, s State) (State, error) {
	previews, err := p.tailor.Run(ctx, s.ResumeText, s.Selected)
	s.Previews = previews

	if err != nil {
		if len(previews) == 0 {
			return s, fmt.Errorf("tailoring: %w", err)
		}
		p.logger.Warn("some postings failed to tailor", zap.Error(err))
	}

	return s, nil
}
