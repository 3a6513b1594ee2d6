package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config carries every knob of the orchestration layer. Defaults match
// the production backend; tests shrink the durations.
type Config struct {
	// BaseURL is the research backend root, e.g. "http://localhost:8000".
	BaseURL string `mapstructure:"base_url"`

	// HTTPTimeout bounds each individual backend request.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// PollInterval is the delay between consecutive status polls.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PollBudget is the wall-clock session budget measured from the
	// first poll; exceeding it raises a client-side timeout.
	PollBudget time.Duration `mapstructure:"poll_budget"`

	// DebounceQuiet is the quiet period before a snapshot is delivered.
	DebounceQuiet time.Duration `mapstructure:"debounce_quiet"`

	// BucketCap limits resources admitted per subtopic bucket.
	BucketCap int `mapstructure:"bucket_cap"`

	// DomainCap limits resources per registrable domain within a bucket.
	DomainCap int `mapstructure:"domain_cap"`

	// SummaryBatch is the maximum number of new summary fetches started
	// per trigger. A soft throttle, not a global semaphore.
	SummaryBatch int `mapstructure:"summary_batch"`

	// SummaryRPS paces outbound summarize-url requests; <= 0 disables.
	SummaryRPS float64 `mapstructure:"summary_rps"`
}

// Default returns the production defaults.
func Default() *Config {
	return &Config{
		BaseURL:       "http://localhost:8000",
		HTTPTimeout:   30 * time.Second,
		PollInterval:  2 * time.Second,
		PollBudget:    180 * time.Second,
		DebounceQuiet: 300 * time.Millisecond,
		BucketCap:     7,
		DomainCap:     2,
		SummaryBatch:  3,
		SummaryRPS:    4,
	}
}

// Load builds the config from defaults, an optional YAML file named by
// ORCHESTRATOR_CONFIG_PATH, and env overrides, in that precedence order.
func Load() (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("http_timeout", def.HTTPTimeout)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("poll_budget", def.PollBudget)
	v.SetDefault("debounce_quiet", def.DebounceQuiet)
	v.SetDefault("bucket_cap", def.BucketCap)
	v.SetDefault("domain_cap", def.DomainCap)
	v.SetDefault("summary_batch", def.SummaryBatch)
	v.SetDefault("summary_rps", def.SummaryRPS)

	if path := os.Getenv("ORCHESTRATOR_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	bindEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnvOverrides(v *viper.Viper) {
	if s := os.Getenv("RESEARCH_BASE_URL"); s != "" {
		v.Set("base_url", s)
	}
	setDurationMs(v, "http_timeout", "RESEARCH_HTTP_TIMEOUT_MS")
	setDurationMs(v, "poll_interval", "POLL_INTERVAL_MS")
	setDurationMs(v, "poll_budget", "POLL_BUDGET_MS")
	setDurationMs(v, "debounce_quiet", "DEBOUNCE_QUIET_MS")
	setInt(v, "bucket_cap", "BUCKET_CAP")
	setInt(v, "domain_cap", "DOMAIN_CAP")
	setInt(v, "summary_batch", "SUMMARY_BATCH")
	if s := os.Getenv("SUMMARY_RPS"); s != "" {
		var f float64
		_, _ = fmt.Sscanf(s, "%f", &f)
		if f > 0 {
			v.Set("summary_rps", f)
		}
	}
}

func setDurationMs(v *viper.Viper, key, env string) {
	if s := os.Getenv(env); s != "" {
		var ms int
		_, _ = fmt.Sscanf(s, "%d", &ms)
		if ms > 0 {
			v.Set(key, time.Duration(ms)*time.Millisecond)
		}
	}
}

func setInt(v *viper.Viper, key, env string) {
	if s := os.Getenv(env); s != "" {
		var n int
		_, _ = fmt.Sscanf(s, "%d", &n)
		if n > 0 {
			v.Set(key, n)
		}
	}
}

// Validate rejects configurations the orchestration layer cannot run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	if c.PollBudget <= 0 {
		return fmt.Errorf("config: poll_budget must be positive")
	}
	if c.DebounceQuiet <= 0 {
		return fmt.Errorf("config: debounce_quiet must be positive")
	}
	if c.BucketCap <= 0 || c.DomainCap <= 0 {
		return fmt.Errorf("config: bucket_cap and domain_cap must be positive")
	}
	if c.SummaryBatch <= 0 {
		return fmt.Errorf("config: summary_batch must be positive")
	}
	return nil
}
