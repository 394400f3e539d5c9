package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jobkit/jobtailor/internal/agents"
	"github.com/jobkit/jobtailor/internal/ai"
	"github.com/jobkit/jobtailor/internal/ai/gemini"
	"github.com/jobkit/jobtailor/internal/graph"
	"github.com/jobkit/jobtailor/internal/hackernews"
	"github.com/jobkit/jobtailor/internal/logger"
	"github.com/jobkit/jobtailor/internal/pipeline"
	"github.com/jobkit/jobtailor/internal/resumes"
	"github.com/jobkit/jobtailor/internal/secrets"
	"github.com/jobkit/jobtailor/internal/tailored"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptDone            = "Done, tailor the selected postings"
	PromptReportByCompany = "Report by company"
	PromptJobsToFile      = "Dump shortlist to file"
	PromptAbort           = "Abort"

	defaultCheckpointDir = ".jobtailor"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the full search, screen and tailor workflow",
	PreRun: bindOutputFlag,
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "skip the selection prompt and tailor the top shortlisted postings")
	runCmd.Flags().String("thread", "", "thread id for the workflow, generated when empty")
	runCmd.Flags().StringP("output", "o", "", "file the tailored sections are appended to")
}

// bindOutputFlag points pipeline.output at the invoked command's own --output
// flag. Several commands carry the flag, so an init-time bind would leave the
// key on whichever command's init ran last.
func bindOutputFlag(cmd *cobra.Command, _ []string) {
	viper.BindPFlag("pipeline.output", cmd.Flags().Lookup("output"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobtailor", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := validateConfig(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	resumeText, err := resumes.Extract(config.Resume.File)
	if err != nil {
		logger.Fatal("extracting resume text",
			zap.Error(err),
			zap.String("file", config.Resume.File),
		)
	}

	logger.Info("extracted resume text",
		zap.String("file", config.Resume.File),
		zap.Int("characters", len(resumeText)),
	)

	runner, saver, err := buildRunner(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the workflow", zap.Error(err))
	}

	state := pipeline.State{
		SeedTerms:  config.Search.Terms,
		Location:   config.Search.Location,
		ResumeText: resumeText,
	}

	result, err := runner.Invoke(ctx, state, cmd.Flag("thread").Value.String())
	if err != nil {
		logger.Fatal("running the workflow", zap.Error(err))
	}

	if result.Interrupt == nil {
		logger.Info("exiting", zap.String("reason", "nothing shortlisted"))
		return
	}

	logger.Info("workflow paused for job selection",
		zap.String("thread", result.ThreadID),
		zap.String("hint", fmt.Sprintf("resume later with: %s resume --thread %s", app, result.ThreadID)),
	)

	selection, ok := result.Interrupt.Payload.(*pipeline.Selection)
	if !ok {
		logger.Fatal("unexpected interrupt payload")
	}

	ids := []string{}
	if cmd.Flag("auto-approve").Value.String() == "false" {
		ids, err = selectJobs(selection.Shortlist, logger)
		if err != nil {
			if errors.Is(err, errExit) {
				logger.Info("exiting",
					zap.String("reason", "selection aborted"),
					zap.String("thread", result.ThreadID),
				)
				return
			}
			logger.Fatal("selecting postings", zap.Error(err))
		}
	}

	finished, err := runner.Resume(ctx, result.ThreadID, ids)
	if err != nil {
		logger.Fatal("resuming the workflow", zap.Error(err))
	}

	if err := saver.Delete(finished.ThreadID); err != nil {
		logger.Warn("cleaning up checkpoint", zap.Error(err))
	}

	reportPreviews(finished.State, config, logger)
}

// selectJobs runs the interactive selection loop over the shortlist. The
// returned ids may be empty when the operator picked nothing before Done.
func selectJobs(shortlist *hackernews.Jobs, logger *zap.Logger) ([]string, error) {
	picked := make(map[string]struct{})

	for {
		items := make([]string, 0, shortlist.Len()+4)
		for _, job := range shortlist.Items {
			label := fmt.Sprintf("%s %s / %s / %s", job.ID, job.Company, job.Title, job.Location)
			if job.Screen != nil {
				label = fmt.Sprintf("%s (score %.2f)", label, job.Screen.Score)
			}
			if _, ok := picked[job.ID]; ok {
				label = "[x] " + label
			}
			items = append(items, label)
		}
		items = append(items, PromptDone, PromptReportByCompany, PromptJobsToFile, PromptAbort)

		jobPrompt := promptui.Select{
			Label: "Pick postings to tailor the resume for, then choose Done",
			Items: items,
			Size:  len(items),
		}

		_, selected, err := jobPrompt.Run()
		if err != nil {
			return nil, err
		}

		switch selected {
		case PromptDone:
			ids := make([]string, 0, len(picked))
			for _, job := range shortlist.Items {
				if _, ok := picked[job.ID]; ok {
					ids = append(ids, job.ID)
				}
			}
			return ids, nil
		case PromptAbort:
			return nil, errExit
		case PromptReportByCompany:
			pretty, _ := json.MarshalIndent(shortlist.ReportByCompany(), "", "  ")
			logger.Info(string(pretty), zap.Int("jobs count", shortlist.Len()))
		case PromptJobsToFile:
			filename, err := shortlist.DumpToTmpFile()
			if err != nil {
				return nil, fmt.Errorf("dump shortlist to file: %w", err)
			}
			logger.Info("dumping shortlist to file", zap.String("filename", filename))
		default:
			id := strings.Split(strings.TrimPrefix(selected, "[x] "), " ")[0]
			if shortlist.FindByID(id) == nil {
				return nil, fmt.Errorf("there is no such job id %s", id)
			}

			if _, ok := picked[id]; ok {
				delete(picked, id)
			} else {
				picked[id] = struct{}{}
			}
		}
	}
}

// buildRunner assembles the agents and compiles the workflow graph.
func buildRunner(ctx context.Context, config *Config, logger *zap.Logger) (*graph.Runner[pipeline.State], *graph.FileSaver, error) {
	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		return nil, nil, err
	}

	hn := hackernews.New(ctx, logger)
	if config.UserAgent != "" {
		hn.UserAgent = config.UserAgent
	}

	maxLogLength := config.AI.Gemini.MaxLogLength

	writer := tailored.NewWriter(pipelineConfig(config).Output)

	p := pipeline.New(
		agents.NewSearchAgent(generator, searchClient(hn, config), config.Search.Limit, maxLogLength, logger),
		agents.NewScreenAgent(generator, pipelineConfig(config).Shortlist, maxLogLength, logger),
		agents.NewTailorAgent(generator, writer, pipelineConfig(config).Concurrency, maxLogLength, logger),
		pipeline.Config{
			EnrichThreshold: pipelineConfig(config).EnrichThreshold,
			MaxSelect:       pipelineConfig(config).MaxSelect,
		},
		logger,
	)

	saver, err := newCheckpointSaver(config)
	if err != nil {
		return nil, nil, err
	}

	runner, err := p.Build(
		graph.WithCheckpointer[pipeline.State](saver),
		graph.WithLogger[pipeline.State](logger),
	)
	if err != nil {
		return nil, nil, err
	}

	return runner, saver, nil
}

// searchClient pins the configured hiring story so the agent searches the
// same thread on every query.
func searchClient(hn *hackernews.Client, config *Config) *boundSearcher {
	return &boundSearcher{client: hn, storyID: config.Search.StoryID}
}

type boundSearcher struct {
	client  *hackernews.Client
	storyID string
}

func (b *boundSearcher) Search(params *hackernews.SearchParams) (*hackernews.Jobs, error) {
	if params.StoryID == "" {
		params.StoryID = b.storyID
	}
	return b.client.Search(params)
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

func newCheckpointSaver(config *Config) (*graph.FileSaver, error) {
	dir := pipelineConfig(config).CheckpointDir
	if dir == "" {
		dir = defaultCheckpointDir
	}
	return graph.NewFileSaver(dir)
}

func pipelineConfig(config *Config) *PipelineConfig {
	if config.Pipeline == nil {
		return &PipelineConfig{}
	}
	return config.Pipeline
}

func validateConfig(config *Config) error {
	if config == nil {
		return errors.New("config is required")
	}
	if config.Search == nil || len(config.Search.Terms) == 0 {
		return errors.New("at least one search term is required under search.terms")
	}
	if config.Resume == nil || strings.TrimSpace(config.Resume.File) == "" {
		return errors.New("a resume pdf is required under resume.file")
	}
	if config.AI == nil || config.AI.Gemini == nil {
		return errors.New("gemini configuration is required under ai.gemini")
	}
	return nil
}

func reportPreviews(state pipeline.State, config *Config, logger *zap.Logger) {
	if len(state.Previews) == 0 {
		logger.Info("exiting", zap.String("reason", "no sections were tailored"))
		return
	}

	output := pipelineConfig(config).Output
	if output == "" {
		output = tailored.DefaultPath
	}

	for id, preview := range state.Previews {
		job := state.Selected.FindByID(id)
		company := ""
		if job != nil {
			company = job.Company
		}
		logger.Info("tailored section",
			zap.String("job_id", id),
			zap.String("company", company),
			zap.String("preview", preview),
		)
	}

	logger.Info("tailoring finished",
		zap.Int("sections", len(state.Previews)),
		zap.String("output", output),
	)
}
