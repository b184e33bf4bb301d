package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Supported image providers
const (
	ProviderGemini    = "gemini"
	ProviderGeminiSDK = "gemini-sdk"
	ProviderOpenAI    = "openai"
)

// Config application configuration
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Image generation settings
	Generator GeneratorConfig `yaml:"generator" json:"generator"`

	// Gemini API settings
	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`

	// OpenAI API settings
	OpenAI OpenAIConfig `yaml:"openai" json:"openai"`

	// Generated file storage
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Logo and label overlay
	Compositor CompositorConfig `yaml:"compositor" json:"compositor"`

	// Security settings
	Security SecurityConfig `yaml:"security" json:"security"`

	// Outbound HTTP client settings
	HTTPClient HTTPClientConfig `yaml:"http_client" json:"http_client"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig server settings
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	PublicURL       string        `yaml:"public_url" json:"public_url"`
	Environment     string        `yaml:"environment" json:"environment"`
	BodyLimit       string        `yaml:"body_limit" json:"body_limit"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// GeneratorConfig image generation settings
type GeneratorConfig struct {
	Provider       string        `yaml:"provider" json:"provider"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// GeminiConfig Gemini API settings
type GeminiConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// OpenAIConfig OpenAI image API settings
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Size    string `yaml:"size" json:"size"`
}

// StorageConfig generated file storage
type StorageConfig struct {
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	TempDir   string `yaml:"temp_dir" json:"temp_dir"`
	KeepFiles int    `yaml:"keep_files" json:"keep_files"`
}

// CompositorConfig logo and label overlay
type CompositorConfig struct {
	LogoPath    string       `yaml:"logo_path" json:"logo_path"`
	FontPath    string       `yaml:"font_path" json:"font_path"`
	Placeholder bool         `yaml:"placeholder" json:"placeholder"`
	Layout      LayoutConfig `yaml:"layout" json:"layout"`
}

// LayoutConfig declarative overlay positions
type LayoutConfig struct {
	Logo   RectConfig    `yaml:"logo" json:"logo"`
	Labels []LabelConfig `yaml:"labels" json:"labels"`
}

// RectConfig a positioned box
type RectConfig struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// LabelConfig one text label slot
type LabelConfig struct {
	Role       string  `yaml:"role" json:"role"`
	X          int     `yaml:"x" json:"x"`
	Y          int     `yaml:"y" json:"y"`
	FontSize   float64 `yaml:"font_size" json:"font_size"`
	Color      string  `yaml:"color" json:"color"`
	Background string  `yaml:"background" json:"background"`
	Padding    int     `yaml:"padding" json:"padding"`
}

// SecurityConfig security settings
type SecurityConfig struct {
	BearerToken      string `yaml:"bearer_token" json:"bearer_token"`
	TLSSkipVerify    bool   `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	RateLimitEnabled bool   `yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RateLimitRPS     int    `yaml:"rate_limit_rps" json:"rate_limit_rps"`
}

// HTTPClientConfig outbound HTTP client settings
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host" json:"max_conns_per_host"`
}

// LoggingConfig logging settings
type LoggingConfig struct {
	Level            string `yaml:"level" json:"level"`
	Format           string `yaml:"format" json:"format"`
	EnableRequestLog bool   `yaml:"enable_request_log" json:"enable_request_log"`
}

// Load loads configuration. Precedence: environment > config file > defaults.
func Load() (*Config, error) {
	// 1. defaults
	config := Default()

	// 2. .env file, if any
	_ = godotenv.Load()

	// 3. config file
	if err := loadConfigFile(config); err != nil {
		// a missing config file is not fatal, env and defaults still apply
		fmt.Printf("Warning: Failed to load config file: %v\n", err)
	}

	// 4. environment overrides
	overrideWithEnv(config)

	// 5. validate
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			Environment:     "development",
			BodyLimit:       "1M",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    7 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Generator: GeneratorConfig{
			Provider:       ProviderGemini,
			MaxAttempts:    3,
			RetryDelay:     5 * time.Second,
			RequestTimeout: 2 * time.Minute,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash-preview-image-generation",
			BaseURL: "https://generativelanguage.googleapis.com",
		},
		OpenAI: OpenAIConfig{
			Model:   "dall-e-3",
			BaseURL: "https://api.openai.com/v1",
			Size:    "1024x1024",
		},
		Storage: StorageConfig{
			OutputDir: ".",
			KeepFiles: 10,
		},
		Compositor: CompositorConfig{
			LogoPath:    "logo.png",
			Placeholder: true,
			Layout:      DefaultLayout(),
		},
		Security: SecurityConfig{
			TLSSkipVerify:    false,
			RateLimitEnabled: false, // disabled unless configured
			RateLimitRPS:     0,
		},
		HTTPClient: HTTPClientConfig{
			Timeout:             3 * time.Minute,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     50,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "json",
			EnableRequestLog: true,
		},
	}
}

// DefaultLayout logo in the upper left corner, one label per meal below it
func DefaultLayout() LayoutConfig {
	label := func(role string, y int) LabelConfig {
		return LabelConfig{
			Role:       role,
			X:          30,
			Y:          y,
			FontSize:   36,
			Color:      "#FFFFFF",
			Background: "#000000A0",
			Padding:    12,
		}
	}
	return LayoutConfig{
		Logo: RectConfig{X: 30, Y: 30, Width: 250, Height: 250},
		Labels: []LabelConfig{
			label("Breakfast", 330),
			label("Snack", 400),
			label("Lunch", 470),
		},
	}
}

// loadConfigFile looks for a config file in the usual places
func loadConfigFile(config *Config) error {
	// explicit path wins
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath, config)
	}

	configPaths := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"./configs/config.yaml",
		"./configs/config.yml",
		"./configs/config.json",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return loadFromFile(path, config)
		}
	}

	return fmt.Errorf("no config file found")
}

// loadFromFile decodes a YAML or JSON file over config
func loadFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// overrideWithEnv applies environment variables over config
func overrideWithEnv(config *Config) {
	// server
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	// PORT kept for platforms that inject it
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if publicURL := os.Getenv("PUBLIC_URL"); publicURL != "" {
		config.Server.PublicURL = strings.TrimRight(publicURL, "/")
	}
	if env := os.Getenv("NODE_ENV"); env != "" {
		config.Server.Environment = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.Server.Environment = env
	}

	// generator
	if provider := os.Getenv("IMAGE_PROVIDER"); provider != "" {
		config.Generator.Provider = provider
	}
	if attempts := os.Getenv("GENERATE_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil {
			config.Generator.MaxAttempts = n
		}
	}
	if delay := os.Getenv("GENERATE_RETRY_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Generator.RetryDelay = d
		}
	}

	// providers
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.OpenAI.APIKey = key
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.OpenAI.Model = model
	}

	// storage and overlay
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		config.Storage.OutputDir = dir
	}
	if keep := os.Getenv("KEEP_FILES"); keep != "" {
		if n, err := strconv.Atoi(keep); err == nil {
			config.Storage.KeepFiles = n
		}
	}
	if logo := os.Getenv("LOGO_PATH"); logo != "" {
		config.Compositor.LogoPath = logo
	}
	if font := os.Getenv("FONT_PATH"); font != "" {
		config.Compositor.FontPath = font
	}

	// security
	if token := os.Getenv("BEARER_TOKEN"); token != "" {
		config.Security.BearerToken = token
	}
	if rateLimitEnabled := os.Getenv("RATE_LIMIT_ENABLED"); rateLimitEnabled != "" {
		if enabled, err := strconv.ParseBool(rateLimitEnabled); err == nil {
			config.Security.RateLimitEnabled = enabled
		}
	}
	if rateLimitRPS := os.Getenv("RATE_LIMIT_RPS"); rateLimitRPS != "" {
		if rps, err := strconv.Atoi(rateLimitRPS); err == nil {
			config.Security.RateLimitRPS = rps
		}
	}

	// logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// Validate checks the configuration and fails closed on missing credentials
func (c *Config) Validate() error {
	var errors []string

	// credentials for the selected provider
	switch c.Generator.Provider {
	case ProviderGemini, ProviderGeminiSDK:
		if c.Gemini.APIKey == "" {
			errors = append(errors, "GOOGLE_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errors = append(errors, "OPENAI_API_KEY is required")
		}
	default:
		errors = append(errors, fmt.Sprintf("IMAGE_PROVIDER must be one of: %s, %s, %s",
			ProviderGemini, ProviderGeminiSDK, ProviderOpenAI))
	}

	// port range
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	// generation
	if c.Generator.MaxAttempts < 1 {
		errors = append(errors, "GENERATE_MAX_ATTEMPTS must be at least 1")
	}
	if c.Generator.RetryDelay < 0 {
		errors = append(errors, "GENERATE_RETRY_DELAY must not be negative")
	}
	// the response is written after the last attempt
	if worst := c.WorstCaseGeneration(); worst > 0 && c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < worst {
		errors = append(errors, fmt.Sprintf("server write_timeout %s is shorter than the worst-case generation time %s",
			c.Server.WriteTimeout, worst))
	}

	// storage
	if c.Storage.OutputDir == "" {
		errors = append(errors, "OUTPUT_DIR is required")
	}
	if c.Storage.KeepFiles < 1 {
		errors = append(errors, "KEEP_FILES must be at least 1")
	}

	// rate limiting
	if c.Security.RateLimitRPS <= 0 {
		// non-positive RPS disables the limiter
		c.Security.RateLimitEnabled = false
	}
	if c.Security.RateLimitRPS > 10000 {
		errors = append(errors, "RATE_LIMIT_RPS should not exceed 10000")
	}

	// log level
	validLevels := []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	if !lo.Contains(validLevels, c.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLevels, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// WorstCaseGeneration longest a generation can take with every attempt timing
// out, zero when attempts are unbounded
func (c *Config) WorstCaseGeneration() time.Duration {
	g := c.Generator
	if g.RequestTimeout <= 0 || g.MaxAttempts < 1 {
		return 0
	}
	return time.Duration(g.MaxAttempts)*g.RequestTimeout + time.Duration(g.MaxAttempts-1)*g.RetryDelay
}

// GetAddress listen address
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
