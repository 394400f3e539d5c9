// Package agents holds the per-stage pipeline agents. Each agent assembles a
// prompt from an embedded template, makes a single LLM call and parses the
// JSON reply.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/jobkit/jobtailor/internal/ai"
	"github.com/jobkit/jobtailor/internal/hackernews"
	"github.com/jobkit/jobtailor/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultMaxLogLength = 200
	maxSearchQueries    = 8
)

//go:embed search_prompt.md
var searchPrompt string

// searcher is the part of the hackernews client the search agent uses.
type searcher interface {
	Search(params *hackernews.SearchParams) (*hackernews.Jobs, error)
}

type SearchAgent struct {
	generator ai.Generator
	client    searcher
	logger    *zap.Logger
	maxLogLen int
	limit     int
}

func NewSearchAgent(generator ai.Generator, client searcher, limit, maxLogLength int, log *zap.Logger) *SearchAgent {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &SearchAgent{
		generator: generator,
		client:    client,
		logger:    log.With(zap.String(logger.FieldModel, generator.Model())),
		maxLogLen: maxLogLength,
		limit:     limit,
	}
}

// Run expands the seed terms through the LLM and searches the hiring board
// with the expanded queries. A failed or empty expansion falls back to the
// seed terms, a failed board search is a hard error.
func (a *SearchAgent) Run(ctx context.Context, terms []string, location string) (*hackernews.Jobs, error) {
	queries := a.expandTerms(ctx, terms, location)

	jobs, err := a.client.Search(&hackernews.SearchParams{
		Terms:    queries,
		Location: location,
		Limit:    a.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("board search: %w", err)
	}

	a.logger.Info("search agent finished",
		zap.Strings("queries", queries),
		zap.Int("jobs", jobs.Len()),
	)

	return jobs, nil
}

func (a *SearchAgent) expandTerms(ctx context.Context, terms []string, location string) []string {
	seed, err := json.Marshal(map[string]any{
		"terms":    terms,
		"location": location,
	})
	if err != nil {
		return terms
	}

	a.logger.Debug("search agent request",
		zap.Int("prompt_length", utf8.RuneCountInString(searchPrompt)),
		zap.String("message", string(seed)),
	)

	raw, err := a.generator.GenerateContent(ctx, searchPrompt, string(seed))
	if err != nil {
		a.logger.Warn("term expansion failed, falling back to seed terms", zap.Error(err))
		return terms
	}

	a.logger.Debug("search agent response",
		zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
	)

	queries := parseQueryTerms(raw)
	if len(queries) == 0 {
		a.logger.Warn("term expansion returned no queries, falling back to seed terms",
			zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
		)
		return terms
	}

	return queries
}

func parseQueryTerms(raw string) []string {
	payload := ai.ExtractJSONArray(raw)
	if payload == "" {
		return nil
	}

	var values []any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	queries := make([]string, 0, len(values))
	for _, value := range values {
		query := strings.ToLower(ai.CoerceString(value))
		if query == "" {
			continue
		}
		if _, ok := seen[query]; ok {
			continue
		}
		seen[query] = struct{}{}
		queries = append(queries, query)
		if len(queries) == maxSearchQueries {
			break
		}
	}

	return queries
}
