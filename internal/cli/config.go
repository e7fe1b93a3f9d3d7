package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/papertrail/internal/model"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (PAPERTRAIL_*, e.g. PAPERTRAIL_API_BASE_URL; .env is loaded first)
  3. Config file (~/.papertrail/config.yaml)
  4. Defaults`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage PaperTrail configuration",
	Long:  "Manage PaperTrail configuration files and settings.\n\n" + configHierarchy,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", file)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found\n\n")
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Print(string(data))

		if cfg.Suggest.APIKey != "" {
			fmt.Fprintln(os.Stderr, "\nsuggest.api_key is set (hidden)")
		}
		fmt.Fprintf(os.Stderr, "\n%s\n", configHierarchy)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.papertrail/config.yaml with every option at its default value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := configDir()
		if err != nil {
			return err
		}
		path := filepath.Join(dir, "config.yaml")

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'papertrail config show' to view it, or delete it first to recreate", path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		data, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}

		header := "# PaperTrail configuration\n#\n# " + strings.ReplaceAll(configHierarchy, "\n", "\n# ") + "\n"
		footer := "\n# Suggestion provider keys are best kept in the environment:\n" +
			"#   export OPENAI_API_KEY=sk-...\n" +
			"#   export ANTHROPIC_API_KEY=sk-ant-...\n" +
			"#   export OLLAMA_BASE_URL=http://localhost:11434\n"

		content := header + "\n" + string(data) + footer
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", path)
		fmt.Printf("\nTo view the effective configuration:\n  papertrail config show\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
