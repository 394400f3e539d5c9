package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/jobkit/jobtailor/internal/ai"
	"github.com/jobkit/jobtailor/internal/hackernews"
	"github.com/jobkit/jobtailor/internal/logger"
	"go.uber.org/zap"
)

const defaultShortlist = 10

//go:embed screen_prompt.md
var screenPrompt string

type ScreenAgent struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
	shortlist int
}

func NewScreenAgent(generator ai.Generator, shortlist, maxLogLength int, log *zap.Logger) *ScreenAgent {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if shortlist <= 0 {
		shortlist = defaultShortlist
	}

	return &ScreenAgent{
		generator: generator,
		logger:    log.With(zap.String(logger.FieldModel, generator.Model())),
		maxLogLen: maxLogLength,
		shortlist: shortlist,
	}
}

// Run screens the jobs against the resume text and returns the shortlist,
// highest score first. Replies referencing unknown job ids are ignored.
func (a *ScreenAgent) Run(ctx context.Context, resumeText string, jobs *hackernews.Jobs) (*hackernews.Jobs, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("resume text is required for screening")
	}

	if jobs.Len() == 0 {
		return &hackernews.Jobs{}, nil
	}

	jobsJSON, err := json.MarshalIndent(jobs.Items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal jobs payload: %w", err)
	}

	prompt := screenPrompt
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", resumeText)
	prompt = strings.ReplaceAll(prompt, "{{JOBS_JSON}}", string(jobsJSON))

	a.logger.Debug("screen agent request",
		zap.Int("jobs", jobs.Len()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("screen jobs: %w", err)
	}

	a.logger.Debug("screen agent response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
	)

	verdicts, err := parseVerdicts(raw)
	if err != nil {
		return nil, err
	}

	screened := &hackernews.Jobs{}
	for _, verdict := range verdicts {
		job := jobs.FindByID(verdict.id)
		if job == nil {
			a.logger.Debug("dropping verdict for unknown job id", zap.String("job_id", verdict.id))
			continue
		}

		job.Screen = &hackernews.Screening{
			Score:  verdict.score,
			Reason: verdict.reason,
		}
		screened.Items = append(screened.Items, job)
	}

	sort.SliceStable(screened.Items, func(i, j int) bool {
		return screened.Items[i].Screen.Score > screened.Items[j].Screen.Score
	})

	shortlisted := screened.Take(a.shortlist)

	a.logger.Info("screening completed",
		zap.Int("initial_jobs", jobs.Len()),
		zap.Int("shortlisted_jobs", shortlisted.Len()),
	)

	return shortlisted, nil
}

type verdict struct {
	id     string
	score  float64
	reason string
}

func parseVerdicts(raw string) ([]verdict, error) {
	payload := ai.ExtractJSONArray(raw)
	if payload == "" {
		return nil, fmt.Errorf("no json array in screen response")
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, fmt.Errorf("parse screen response: %w", err)
	}

	verdicts := make([]verdict, 0, len(entries))
	for _, entry := range entries {
		id := ai.CoerceString(entry["id"])
		if id == "" {
			continue
		}

		score := ai.CoerceFloat(entry["score"])
		if math.IsNaN(score) {
			score = 0
		}

		verdicts = append(verdicts, verdict{
			id:     id,
			score:  score,
			reason: ai.CoerceString(entry["reason"]),
		})
	}

	return verdicts, nil
}
