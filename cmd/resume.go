package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/jobkit/jobtailor/internal/logger"
	"github.com/jobkit/jobtailor/internal/pipeline"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var resumeCmd = &cobra.Command{
	Use:    "resume",
	Short:  "Resume an interrupted workflow from its checkpoint",
	PreRun: bindOutputFlag,
	Run: func(cmd *cobra.Command, _ []string) {
		resumeRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().BoolP("auto-approve", "y", false, "skip the selection prompt and tailor the top shortlisted postings")
	resumeCmd.Flags().String("thread", "", "thread id of the interrupted workflow")
	resumeCmd.Flags().StringP("output", "o", "", "file the tailored sections are appended to")

	resumeCmd.MarkFlagRequired("thread")
}

// resumeRun picks an interrupted thread up from its file checkpoint, replays
// the selection prompt and finishes the workflow.
func resumeRun(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if err := validateConfig(config); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	threadID := cmd.Flag("thread").Value.String()

	saver, err := newCheckpointSaver(config)
	if err != nil {
		logger.Fatal("opening checkpoint store", zap.Error(err))
	}

	checkpoint, err := saver.Get(threadID)
	if err != nil {
		threads, _ := saver.Threads()
		logger.Fatal("loading checkpoint",
			zap.Error(err),
			zap.Strings("known threads", threads),
		)
	}

	var state pipeline.State
	if err := json.Unmarshal(checkpoint.State, &state); err != nil {
		logger.Fatal("parsing checkpointed state", zap.Error(err))
	}

	if state.Shortlist == nil || state.Shortlist.Len() == 0 {
		logger.Fatal("checkpoint carries no shortlist", zap.String("thread", threadID))
	}

	logger.Info("resuming thread",
		zap.String("thread", threadID),
		zap.String("node", checkpoint.Node),
		zap.Time("saved_at", checkpoint.SavedAt),
		zap.Int("shortlisted_jobs", state.Shortlist.Len()),
	)

	ids := []string{}
	if cmd.Flag("auto-approve").Value.String() == "false" {
		ids, err = selectJobs(state.Shortlist, logger)
		if err != nil {
			if errors.Is(err, errExit) {
				logger.Info("exiting",
					zap.String("reason", "selection aborted"),
					zap.String("thread", threadID),
				)
				return
			}
			logger.Fatal("selecting postings", zap.Error(err))
		}
	}

	runner, _, err := buildRunner(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the workflow", zap.Error(err))
	}

	finished, err := runner.Resume(ctx, threadID, ids)
	if err != nil {
		logger.Fatal("resuming the workflow", zap.Error(err))
	}

	if err := saver.Delete(finished.ThreadID); err != nil {
		logger.Warn("cleaning up checkpoint", zap.Error(err))
	}

	reportPreviews(finished.State, config, logger)
}
