package cli

import (
	"fmt"
	"os"

	"github.com/pkravets/thema/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Thema configuration",
	Long: `Manage Thema configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (THEMA_*)
3. Config file (~/.thema/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration including all sources (defaults, config file, env vars, flags).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		// API keys never land on stdout
		if cfg.Oracle.APIKey != "" {
			cfg.Oracle.APIKey = "***"
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Println(string(yamlData))

		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (THEMA_*, THEMA_API_KEY, DEEPSEEK_API_KEY)")
		fmt.Println("  3. Config file (~/.thema/config.yaml)")
		fmt.Println("  4. Defaults")
		fmt.Println()

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.thema/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.thema"
		configPath := configDir + "/config.yaml"

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'thema config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		header := `# Thema Configuration File
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (THEMA_*)
#   3. This config file
#   4. Built-in defaults

`
		if _, err := f.WriteString(header); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		if _, err := f.Write(yamlData); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		footer := `
# API key (recommended to use environment variables instead):
#   export THEMA_API_KEY=sk-...
# or, for a DeepSeek endpoint:
#   export DEEPSEEK_API_KEY=sk-...
`
		if _, err := f.WriteString(footer); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  thema config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
