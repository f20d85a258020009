package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/candidate-vetter/internal/analysis"
	"github.com/spigell/candidate-vetter/internal/evaluation"
	"github.com/spigell/candidate-vetter/internal/retry"
	"github.com/spigell/candidate-vetter/internal/server"
)

const (
	app       = "candidate-vetter"
	envPrefix = "CANDIDATE_VETTER"
)

type Config struct {
	GitHub     *GitHubConfig     `mapstructure:"github" validate:"required"`
	LinkedIn   *LinkedInConfig   `mapstructure:"linkedin" validate:"required"`
	AI         *AIConfig         `mapstructure:"ai" validate:"required"`
	Retry      retry.Policy      `mapstructure:"retry"`
	Evaluation evaluation.Config `mapstructure:"evaluation"`
	Server     server.Options    `mapstructure:"server"`
}

type GitHubConfig struct {
	APIURL      string          `mapstructure:"api-url" validate:"omitempty,url"`
	Token       string          `mapstructure:"token" json:"-"`
	TokenFile   string          `mapstructure:"token-file"`
	UserAgent   string          `mapstructure:"user-agent"`
	Timeout     time.Duration   `mapstructure:"timeout"`
	ReadmeLimit int             `mapstructure:"readme-limit" validate:"gte=0"`
	RateLimit   RateLimitConfig `mapstructure:"rate-limit"`
}

type LinkedInConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	BaseURL   string          `mapstructure:"base-url" validate:"omitempty,url"`
	UserAgent string          `mapstructure:"user-agent"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit RateLimitConfig `mapstructure:"rate-limit"`
}

// RateLimitConfig is the local sliding window. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" validate:"gte=0"`
	Window   time.Duration `mapstructure:"window"`
}

type AIConfig struct {
	Enabled           bool              `mapstructure:"enabled"`
	Provider          string            `mapstructure:"provider" validate:"omitempty,oneof=gemini openrouter"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	RequestsPerMinute int               `mapstructure:"requests-per-minute" validate:"gte=0"`
	MaxLogLength      int               `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini            *GeminiConfig     `mapstructure:"gemini"`
	OpenRouter        *OpenRouterConfig `mapstructure:"openrouter"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenRouterConfig struct {
	APIURL     string `mapstructure:"api-url" validate:"omitempty,url"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	Referer    string `mapstructure:"referer"`
	Title      string `mapstructure:"title"`
}

func defaultConfig() *Config {
	return &Config{
		GitHub: &GitHubConfig{
			RateLimit: RateLimitConfig{Requests: 60, Window: time.Minute},
		},
		LinkedIn: &LinkedInConfig{
			Enabled:   true,
			RateLimit: RateLimitConfig{Requests: 10, Window: time.Minute},
		},
		AI: &AIConfig{
			Enabled:           true,
			Provider:          "gemini",
			Timeout:           analysis.DefaultTimeout,
			RequestsPerMinute: 15,
			Gemini:            &GeminiConfig{},
			OpenRouter:        &OpenRouterConfig{Title: app},
		},
		Retry:      retry.Default(),
		Evaluation: evaluation.DefaultConfig(),
		Server:     server.Options{Listen: ":8080"},
	}
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "candidate-vetter checks a résumé against the candidate's public code and professional profiles",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"github.token":          "GITHUB_TOKEN",
		"ai.gemini.api-key":     "GEMINI_API_KEY",
		"ai.openrouter.api-key": "OPENROUTER_API_KEY",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env, envPrefix+"_"+strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key))); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is candidate-vetter.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults are enough unless a file was asked for explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}
