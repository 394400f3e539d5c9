package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobtailor"
)

type Config struct {
	Search    *SearchConfig   `mapstructure:"search"`
	Resume    *ResumeConfig   `mapstructure:"resume"`
	Pipeline  *PipelineConfig `mapstructure:"pipeline"`
	UserAgent string          `mapstructure:"user-agent"`
	AI        *AIConfig       `mapstructure:"ai"`
}

type SearchConfig struct {
	Terms    []string `mapstructure:"terms"`
	Location string   `mapstructure:"location"`
	Limit    int      `mapstructure:"limit"`
	StoryID  string   `mapstructure:"story-id"`
}

type ResumeConfig struct {
	File string `mapstructure:"file"`
}

type PipelineConfig struct {
	EnrichThreshold int    `mapstructure:"enrich-threshold"`
	Shortlist       int    `mapstructure:"shortlist"`
	MaxSelect       int    `mapstructure:"max-select"`
	Concurrency     int    `mapstructure:"concurrency"`
	Output          string `mapstructure:"output"`
	CheckpointDir   string `mapstructure:"checkpoint-dir"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobtailor searches Hacker News hiring threads and tailors your resume to the postings you pick",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobtailor.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the commands touching the board or the LLM.
	if runCmd.CalledAs() == "" && resumeCmd.CalledAs() == "" && searchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
