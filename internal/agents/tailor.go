package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	_ "embed"

	"github.com/jobkit/jobtailor/internal/ai"
	"github.com/jobkit/jobtailor/internal/hackernews"
	"github.com/jobkit/jobtailor/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTailorConcurrency = 2
	previewLimit             = 300
)

//go:embed tailor_prompt.md
var tailorPrompt string

// sectionWriter persists one tailored section per job.
type sectionWriter interface {
	Append(job *hackernews.Job, section string) error
}

type TailorAgent struct {
	generator   ai.Generator
	writer      sectionWriter
	logger      *zap.Logger
	maxLogLen   int
	concurrency int
}

func NewTailorAgent(generator ai.Generator, writer sectionWriter, concurrency, maxLogLength int, log *zap.Logger) *TailorAgent {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if concurrency <= 0 {
		concurrency = defaultTailorConcurrency
	}

	return &TailorAgent{
		generator:   generator,
		writer:      writer,
		logger:      log.With(zap.String(logger.FieldModel, generator.Model())),
		maxLogLen:   maxLogLength,
		concurrency: concurrency,
	}
}

// Run tailors the resume for every selected job and appends each section to
// the writer. Jobs are processed concurrently; previews for jobs that
// succeeded are returned even when some jobs failed.
func (a *TailorAgent) Run(ctx context.Context, resumeText string, selected *hackernews.Jobs) (map[string]string, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("resume text is required for tailoring")
	}

	previews := make(map[string]string, selected.Len())
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)

	for _, job := range selected.Items {
		group.Go(func() error {
			preview, err := a.tailorJob(groupCtx, resumeText, job)
			if err != nil {
				return fmt.Errorf("tailor job %s: %w", job.ID, err)
			}

			mu.Lock()
			previews[job.ID] = preview
			mu.Unlock()
			return nil
		})
	}

	err := group.Wait()

	a.logger.Info("tailoring completed",
		zap.Int("selected_jobs", selected.Len()),
		zap.Int("tailored_jobs", len(previews)),
	)

	return previews, err
}

func (a *TailorAgent) tailorJob(ctx context.Context, resumeText string, job *hackernews.Job) (string, error) {
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	prompt := tailorPrompt
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", resumeText)
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", string(jobJSON))

	a.logger.Debug("tailor agent request",
		zap.String("job_id", job.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := a.generator.GenerateContent(ctx, "", prompt)
	if err != nil {
		return "", err
	}

	a.logger.Debug("tailor agent response",
		zap.String("job_id", job.ID),
		zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
	)

	section, preview, err := parseTailored(raw)
	if err != nil {
		return "", err
	}

	if err := a.writer.Append(job, section); err != nil {
		return "", fmt.Errorf("write tailored section: %w", err)
	}

	a.logger.Info("tailored section written",
		zap.String("job_id", job.ID),
		zap.String("company", job.Company),
	)

	return preview, nil
}

func parseTailored(raw string) (section, preview string, err error) {
	payload := ai.ExtractJSONObject(raw)
	if payload == "" {
		return "", "", fmt.Errorf("no json object in tailor response")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return "", "", fmt.Errorf("parse tailor response: %w", err)
	}

	section = ai.CoerceString(data["section"])
	if section == "" {
		return "", "", fmt.Errorf("tailor response has no section")
	}

	preview = logger.TruncateForLog(ai.CoerceString(data["preview"]), previewLimit)
	if preview == "" {
		preview = logger.TruncateForLog(section, previewLimit)
	}

	return section, preview, nil
}
