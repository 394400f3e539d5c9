package cmd

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jobkit/jobtailor/internal/hackernews"
	"github.com/jobkit/jobtailor/internal/logger"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const PromptExit = "Exit"

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the latest hiring thread without involving the LLM",
	Run: func(cmd *cobra.Command, _ []string) {
		search(cmd)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

// search queries the hiring thread with the configured seed terms as-is.
// Useful for tuning search.terms before spending LLM quota on a full run.
func search(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil || config.Search == nil || len(config.Search.Terms) == 0 {
		logger.Fatal("at least one search term is required under search.terms")
	}

	hn := hackernews.New(ctx, logger)
	if config.UserAgent != "" {
		hn.UserAgent = config.UserAgent
	}

	jobs, err := hn.Search(&hackernews.SearchParams{
		Terms:    config.Search.Terms,
		Location: config.Search.Location,
		StoryID:  config.Search.StoryID,
		Limit:    config.Search.Limit,
	})
	if err != nil {
		logger.Fatal("searching the hiring thread", zap.Error(err))
	}

	if jobs.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	logger.Info("found postings", zap.Int("count", jobs.Len()))

	prompt := promptui.Select{
		Label: "What to do with the results?",
		Items: []string{PromptReportByCompany, PromptJobsToFile, PromptExit},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		switch action {
		case PromptReportByCompany:
			pretty, _ := json.MarshalIndent(jobs.ReportByCompany(), "", "  ")
			logger.Info(string(pretty), zap.Int("jobs count", jobs.Len()))
		case PromptJobsToFile:
			filename, err := jobs.DumpToTmpFile()
			if err != nil {
				logger.Fatal("dumping results to file", zap.Error(err))
			}
			logger.Info("dumping results to file", zap.String("filename", filename))
		case PromptExit:
			return
		}
	}
}
