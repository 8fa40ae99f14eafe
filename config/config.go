package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds harvester configuration.
type Config struct {
	BaseURL       string   `mapstructure:"base_url"`
	SearchPath    string   `mapstructure:"search_path"`
	ProductPrefix string   `mapstructure:"product_prefix"`
	Location      string   `mapstructure:"location"`
	DeviceHeader  string   `mapstructure:"device_header"`
	AppFamily     string   `mapstructure:"app_family"`
	Categories    []string `mapstructure:"categories"`

	PageSize    int `mapstructure:"page_size"`
	MaxPages    int `mapstructure:"max_pages"`
	Parallelism int `mapstructure:"parallelism"`
	MaxInFlight int `mapstructure:"max_in_flight"`

	Delay       time.Duration `mapstructure:"delay"`
	RandomDelay time.Duration `mapstructure:"random_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`

	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`

	// BootstrapStatusThreshold is the first status code treated as a failed
	// navigation step during session bootstrap.
	BootstrapStatusThreshold int  `mapstructure:"bootstrap_status_threshold"`
	StrictForbidden          bool `mapstructure:"strict_forbidden"`

	DedupeMaxSize      int `mapstructure:"dedupe_max_size"`
	PipelineBufferSize int `mapstructure:"pipeline_buffer_size"`
	BatchSize          int `mapstructure:"batch_size"`

	OutputFile   string   `mapstructure:"output_file"`
	OutputFormat string   `mapstructure:"output_format"` // comma-separated: csv, json, dual, redis, postgres, kafka
	RedisAddr    string   `mapstructure:"redis_addr"`
	RedisStream  string   `mapstructure:"redis_stream"`
	PostgresURL  string   `mapstructure:"postgres_url"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	UserAgents  []string `mapstructure:"user_agents"`
	Verbose     bool     `mapstructure:"verbose"`
	MetricsAddr string   `mapstructure:"metrics_addr"`
}

// EnvPrefix namespaces environment overrides, e.g. HARVEST_MAX_PAGES.
const EnvPrefix = "HARVEST"

var outputFormats = []string{"csv", "json", "dual", "redis", "postgres", "kafka"}

// DefaultConfig returns conservative defaults for the storefront.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://www.myntra.com",
		SearchPath:    "/gateway/v2/search",
		ProductPrefix: "/product",
		Location:      "400018",
		DeviceHeader:  "x-myntra-app",
		AppFamily:     "MyntraRetailWeb",
		Categories:    []string{"men-clothing"},

		PageSize:    50,
		MaxPages:    5,
		Parallelism: 2,
		MaxInFlight: 1,

		Delay:       time.Second,
		RandomDelay: 500 * time.Millisecond,
		Timeout:     15 * time.Second,
		RunTimeout:  0,

		MaxRetries:      3,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 30 * time.Second,

		BootstrapStatusThreshold: 500,
		StrictForbidden:          false,

		DedupeMaxSize:      0,
		PipelineBufferSize: 512,
		BatchSize:          64,

		OutputFile:   "output/items.jsonl",
		OutputFormat: "json",
		RedisAddr:    "localhost:6379",
		RedisStream:  "harvest:items",
		PostgresURL:  "",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "harvest-items",

		UserAgents:  DefaultUserAgents(),
		Verbose:     false,
		MetricsAddr: "",
	}
}

// DefaultUserAgents is the rotation pool used when none is configured.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/121.0",
	}
}

// Load layers an optional config file and HARVEST_* environment variables
// over DefaultConfig. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("search_path", cfg.SearchPath)
	v.SetDefault("product_prefix", cfg.ProductPrefix)
	v.SetDefault("location", cfg.Location)
	v.SetDefault("device_header", cfg.DeviceHeader)
	v.SetDefault("app_family", cfg.AppFamily)
	v.SetDefault("categories", cfg.Categories)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("parallelism", cfg.Parallelism)
	v.SetDefault("max_in_flight", cfg.MaxInFlight)
	v.SetDefault("delay", cfg.Delay)
	v.SetDefault("random_delay", cfg.RandomDelay)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("run_timeout", cfg.RunTimeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_backoff", cfg.RetryBackoff)
	v.SetDefault("retry_backoff_max", cfg.RetryBackoffMax)
	v.SetDefault("bootstrap_status_threshold", cfg.BootstrapStatusThreshold)
	v.SetDefault("strict_forbidden", cfg.StrictForbidden)
	v.SetDefault("dedupe_max_size", cfg.DedupeMaxSize)
	v.SetDefault("pipeline_buffer_size", cfg.PipelineBufferSize)
	v.SetDefault("batch_size", cfg.BatchSize)
	v.SetDefault("output_file", cfg.OutputFile)
	v.SetDefault("output_format", cfg.OutputFormat)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_stream", cfg.RedisStream)
	v.SetDefault("postgres_url", cfg.PostgresURL)
	v.SetDefault("kafka_brokers", cfg.KafkaBrokers)
	v.SetDefault("kafka_topic", cfg.KafkaTopic)
	v.SetDefault("user_agents", cfg.UserAgents)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if !strings.HasPrefix(c.SearchPath, "/") {
		return fmt.Errorf("search path must start with /")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	for _, category := range c.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("categories cannot contain empty entries")
		}
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.MaxInFlight <= 0 {
		return fmt.Errorf("max in-flight requests must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run timeout cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.BootstrapStatusThreshold < 200 || c.BootstrapStatusThreshold > 600 {
		return fmt.Errorf("bootstrap status threshold must be between 200 and 600")
	}
	if c.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	formats := c.OutputFormats()
	if len(formats) == 0 {
		return fmt.Errorf("output format cannot be empty")
	}
	for i, format := range formats {
		if !slices.Contains(outputFormats, format) {
			return fmt.Errorf("output format must be one of %s", strings.Join(outputFormats, ", "))
		}
		if slices.Contains(formats[:i], format) {
			return fmt.Errorf("output format %s listed twice", format)
		}
		switch format {
		case "csv", "json":
			if c.OutputFile == "" {
				return fmt.Errorf("output file cannot be empty")
			}
		case "redis":
			if c.RedisAddr == "" || c.RedisStream == "" {
				return fmt.Errorf("redis output needs redis addr and stream")
			}
		case "postgres":
			if c.PostgresURL == "" {
				return fmt.Errorf("postgres output needs a postgres url")
			}
		case "kafka":
			if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
				return fmt.Errorf("kafka output needs brokers and a topic")
			}
		}
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agents cannot be empty")
	}

	return nil
}

// OutputFormats splits OutputFormat into its sinks. "dual" stands for csv
// plus json.
func (c *Config) OutputFormats() []string {
	var formats []string
	for _, part := range strings.Split(c.OutputFormat, ",") {
		switch part = strings.ToLower(strings.TrimSpace(part)); part {
		case "":
		case "dual":
			formats = append(formats, "csv", "json")
		default:
			formats = append(formats, part)
		}
	}
	return formats
}
