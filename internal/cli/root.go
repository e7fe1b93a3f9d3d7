package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/papertrail/internal/model"
)

// version is overridden at build time with -ldflags "-X"
var version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	baseURL   string
	apiKey    string
	logFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "papertrail",
	Short: "PaperTrail - claim extraction and citation checking for research papers",
	Long: `PaperTrail uploads a paper to the PaperTrail backend, streams the claims
it extracts, and helps close citation gaps.

Claims arrive as they are found and are printed as a JSON snapshot once the
job is done. Each claim can then be verified against a source document or
given suggested citations.

PaperTrail reports how well claims are cited. It does not decide whether
they are true.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cfg.Log.Format, verbose))
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("papertrail %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.papertrail/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "backend API key (overrides the saved key)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// configDir returns ~/.papertrail
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".papertrail"), nil
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// PAPERTRAIL_API_BASE_URL maps to api.base_url
	viper.SetEnvPrefix("PAPERTRAIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(model.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables are
// picked up by Unmarshal
func setDefaults(cfg *model.Config) {
	viper.SetDefault("api.base_url", cfg.API.BaseURL)
	viper.SetDefault("api.version", cfg.API.Version)
	viper.SetDefault("api.timeout", cfg.API.Timeout)
	viper.SetDefault("api.user_agent", cfg.API.UserAgent)
	viper.SetDefault("api.rate_limit", cfg.API.RateLimit)
	viper.SetDefault("api.burst", cfg.API.Burst)
	viper.SetDefault("api.http_proxy", cfg.API.HTTPProxy)
	viper.SetDefault("api.https_proxy", cfg.API.HTTPSProxy)

	viper.SetDefault("suggest.provider", cfg.Suggest.Provider)
	viper.SetDefault("suggest.model", cfg.Suggest.Model)
	viper.SetDefault("suggest.api_key", cfg.Suggest.APIKey)
	viper.SetDefault("suggest.base_url", cfg.Suggest.BaseURL)
	viper.SetDefault("suggest.timeout", cfg.Suggest.Timeout)
	viper.SetDefault("suggest.max_tokens", cfg.Suggest.MaxTokens)
	viper.SetDefault("suggest.cache_ttl", cfg.Suggest.CacheTTL)
	viper.SetDefault("suggest.cache_dir", cfg.Suggest.CacheDir)

	viper.SetDefault("concurrency.verify_workers", cfg.Concurrency.VerifyWorkers)
	viper.SetDefault("log.format", cfg.Log.Format)
	viper.SetDefault("metrics.addr", cfg.Metrics.Addr)
	viper.SetDefault("api_key", "")
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Suggest.APIKey == "" {
		switch strings.ToLower(cfg.Suggest.Provider) {
		case "openai":
			cfg.Suggest.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.Suggest.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "ollama":
			if cfg.Suggest.BaseURL == "" {
				cfg.Suggest.BaseURL = os.Getenv("OLLAMA_BASE_URL")
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
