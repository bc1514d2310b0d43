package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkravets/thema/internal/cache"
	"github.com/pkravets/thema/internal/model"
	"github.com/pkravets/thema/internal/oracle"
	"github.com/pkravets/thema/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outputDir  string
	baseURL    string
	runTimeout time.Duration
	batchSize  int
	noCache    bool
	openModel  string
	deepModel  string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <transcript>",
	Short: "Run the full coding pipeline over one transcript",
	Long: `Run reads a Q/A interview transcript and executes all five coding
stages in order:
- Segment the transcript into question/answer blocks
- Open-code every answer (one model call each)
- Filter the deduplicated codes for relevance, in batches
- Group retained codes into axial themes
- Distill aggregate concepts and write the storyline

Example:
  thema run interview.txt
  thema run interview.txt --output-dir ./results --no-cache
  thema run interview.txt --base-url https://api.deepseek.com --deep-model deepseek-reasoner`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Output flags
	runCmd.Flags().StringVar(&outputDir, "output-dir", "outputs", "directory for stage outputs")

	// Oracle flags
	runCmd.Flags().StringVar(&baseURL, "base-url", "", "chat-completions endpoint (default: config or https://api.deepseek.com)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Hour, "overall pipeline timeout (long transcripts make many calls)")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 0, "filtering batch size (default: config or 60)")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable reply cache (force fresh model calls)")
	runCmd.Flags().StringVar(&openModel, "open-model", "", "model for open coding (default: config)")
	runCmd.Flags().StringVar(&deepModel, "deep-model", "", "model for filtering, axial, selective and storyline (default: config)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	transcript := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// .env is optional; explicit environment always wins
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags override config
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if baseURL != "" {
		cfg.Oracle.BaseURL = baseURL
	}
	if batchSize > 0 {
		cfg.Filter.BatchSize = batchSize
	}
	if openModel != "" {
		cfg.Models.Open = openModel
	}
	if deepModel != "" {
		cfg.Models.Filter = deepModel
		cfg.Models.Axial = deepModel
		cfg.Models.Selective = deepModel
		cfg.Models.Storyline = deepModel
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Output.Verbose = verbose

	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = apiKeyFromEnv()
	}
	if cfg.Oracle.APIKey == "" {
		return fmt.Errorf("no API key: set THEMA_API_KEY or DEEPSEEK_API_KEY (a .env file works too)")
	}

	text, err := os.ReadFile(transcript)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Transcript: %s\n", transcript)
		fmt.Fprintf(os.Stderr, "Endpoint:   %s\n", cfg.Oracle.BaseURL)
		fmt.Fprintf(os.Stderr, "Output dir: %s\n", cfg.Output.Dir)
		fmt.Fprintf(os.Stderr, "Cache:      %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	result, err := pipeline.New(cfg, client).Run(ctx, string(text))
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.Dir, cfg.Output.Verbose)
	if err := renderer.Render(result); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	renderer.RenderSummary(result)

	return nil
}

// loadConfig layers the viper sources (file, env) over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return cfg, nil
}

func apiKeyFromEnv() string {
	for _, name := range []string{"THEMA_API_KEY", "DEEPSEEK_API_KEY", "OPENAI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

// buildClient wraps the HTTP oracle with the reply cache when enabled
func buildClient(cfg *model.Config) (oracle.Client, error) {
	client, err := oracle.NewHTTPClient(cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", err)
	}
	if !cfg.Cache.Enabled {
		return client, nil
	}
	store := cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
	return oracle.NewCachedClient(client, store, cfg.Cache.TTL), nil
}
