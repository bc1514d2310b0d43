package model

import "time"

// Config holds the full pipeline configuration
type Config struct {
	Oracle OracleConfig `yaml:"oracle" mapstructure:"oracle"`
	Models ModelsConfig `yaml:"models" mapstructure:"models"`
	Open   OpenConfig   `yaml:"open" mapstructure:"open"`
	Filter FilterConfig `yaml:"filter" mapstructure:"filter"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// OracleConfig configures the chat-completions endpoint
type OracleConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Proxy settings
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`

	// RequestsPerSecond paces all oracle calls (0 = unlimited)
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ModelsConfig names the model used at each stage
type ModelsConfig struct {
	Open      string `yaml:"open" mapstructure:"open"`
	Filter    string `yaml:"filter" mapstructure:"filter"`
	Axial     string `yaml:"axial" mapstructure:"axial"`
	Selective string `yaml:"selective" mapstructure:"selective"`
	Storyline string `yaml:"storyline" mapstructure:"storyline"`
}

// OpenConfig tunes the per-answer open-coding stage
type OpenConfig struct {
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetrySleep time.Duration `yaml:"retry_sleep" mapstructure:"retry_sleep"`
	ItemPause  time.Duration `yaml:"item_pause" mapstructure:"item_pause"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FilterConfig tunes the batched filtering stage
type FilterConfig struct {
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetrySleep time.Duration `yaml:"retry_sleep" mapstructure:"retry_sleep"`
	Cooldown   time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig controls oracle reply caching
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls where stage artifacts land
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults for a DeepSeek-compatible endpoint
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleConfig{
			BaseURL:           "https://api.deepseek.com",
			Timeout:           120 * time.Second,
			RequestsPerSecond: 1,
		},
		Models: ModelsConfig{
			Open:      "deepseek-chat",
			Filter:    "deepseek-reasoner",
			Axial:     "deepseek-reasoner",
			Selective: "deepseek-reasoner",
			Storyline: "deepseek-reasoner",
		},
		Open: OpenConfig{
			MaxRetries: 3,
			RetrySleep: 2 * time.Second,
			ItemPause:  1 * time.Second,
			Timeout:    120 * time.Second,
		},
		Filter: FilterConfig{
			BatchSize:  60,
			MaxRetries: 2,
			RetrySleep: 2 * time.Second,
			Cooldown:   1 * time.Second,
			Timeout:    180 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".thema-cache",
			TTL:     24 * time.Hour,
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
	}
}
