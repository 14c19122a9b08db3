// Package config loads client configuration from the environment and
// validates it before anything touches the network.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/netsuite-restlet-client/pkg/oauth"
)

// Config is the full runtime configuration. Credentials come from the
// environment only; they are never written to disk or logs.
type Config struct {
	// NetSuite token-based auth credentials.
	AccountID      string `validate:"required"`
	ConsumerKey    string `validate:"required"`
	ConsumerSecret string `validate:"required"`
	TokenID        string `validate:"required"`
	TokenSecret    string `validate:"required"`

	// RESTletURL is the deployed script endpoint, including the
	// script and deploy query parameters.
	RESTletURL string `validate:"required,url"`

	// DefaultSearchID is used when the caller names no saved search.
	DefaultSearchID string

	// PageSize is rows per page requested from the RESTlet.
	PageSize int `validate:"gt=0,lte=1000"`

	// MaxWorkers bounds parallel page fetches.
	MaxWorkers int `validate:"gt=0,lte=10"`

	// MinParallelPages is the page count below which pages are
	// fetched sequentially.
	MinParallelPages int `validate:"gt=0"`

	// IntraWaveDelay spaces page submissions within a wave.
	IntraWaveDelay time.Duration `validate:"gte=0"`

	// InterWaveDelay is the pause between waves.
	InterWaveDelay time.Duration `validate:"gte=0"`

	// HTTPTimeout is the per-page request timeout.
	HTTPTimeout time.Duration `validate:"gt=0"`

	// CacheTTL is the result cache freshness window.
	CacheTTL time.Duration `validate:"gte=0"`

	// SnapshotTTL is the longer freshness window for scheduled
	// snapshot retrievals.
	SnapshotTTL time.Duration `validate:"gte=0"`

	// CacheDir is the disk cache location.
	CacheDir string

	// RedisURL selects the Redis cache backend when set; empty means
	// disk.
	RedisURL string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Environment variable names.
const (
	EnvAccountID        = "NETSUITE_ACCOUNT_ID"
	EnvConsumerKey      = "NETSUITE_CONSUMER_KEY"
	EnvConsumerSecret   = "NETSUITE_CONSUMER_SECRET"
	EnvTokenID          = "NETSUITE_TOKEN_ID"
	EnvTokenSecret      = "NETSUITE_TOKEN_SECRET"
	EnvRESTletURL       = "NETSUITE_RESTLET_URL"
	EnvSavedSearchID    = "NETSUITE_SAVED_SEARCH_ID"
	EnvPageSize         = "NETSUITE_PAGE_SIZE"
	EnvMaxWorkers       = "NETSUITE_MAX_WORKERS"
	EnvMinParallelPages = "NETSUITE_MIN_PARALLEL_PAGES"
	EnvIntraWaveDelay   = "NETSUITE_INTRA_WAVE_DELAY"
	EnvInterWaveDelay   = "NETSUITE_INTER_WAVE_DELAY"
	EnvHTTPTimeout      = "NETSUITE_HTTP_TIMEOUT"
	EnvCacheTTL         = "NETSUITE_CACHE_TTL"
	EnvSnapshotTTL      = "NETSUITE_SNAPSHOT_TTL"
	EnvCacheDir         = "NETSUITE_CACHE_DIR"
	EnvRedisURL         = "NETSUITE_REDIS_URL"
	EnvLogLevel         = "LOG_LEVEL"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultPageSize         = 1000
	DefaultMaxWorkers       = 5
	DefaultMinParallelPages = 3
	DefaultIntraWaveDelay   = 300 * time.Millisecond
	DefaultInterWaveDelay   = 2 * time.Second
	DefaultHTTPTimeout      = 120 * time.Second
	DefaultCacheTTL         = 15 * time.Minute
	DefaultSnapshotTTL      = 24 * time.Hour
	DefaultCacheDir         = ".restlet-cache"
	DefaultLogLevel         = "info"
)

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AccountID:        os.Getenv(EnvAccountID),
		ConsumerKey:      os.Getenv(EnvConsumerKey),
		ConsumerSecret:   os.Getenv(EnvConsumerSecret),
		TokenID:          os.Getenv(EnvTokenID),
		TokenSecret:      os.Getenv(EnvTokenSecret),
		RESTletURL:       os.Getenv(EnvRESTletURL),
		DefaultSearchID:  os.Getenv(EnvSavedSearchID),
		PageSize:         DefaultPageSize,
		MaxWorkers:       DefaultMaxWorkers,
		MinParallelPages: DefaultMinParallelPages,
		IntraWaveDelay:   DefaultIntraWaveDelay,
		InterWaveDelay:   DefaultInterWaveDelay,
		HTTPTimeout:      DefaultHTTPTimeout,
		CacheTTL:         DefaultCacheTTL,
		SnapshotTTL:      DefaultSnapshotTTL,
		CacheDir:         DefaultCacheDir,
		RedisURL:         os.Getenv(EnvRedisURL),
		LogLevel:         DefaultLogLevel,
	}

	if v := os.Getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPageSize, err)
		}
		cfg.PageSize = n
	}
	if v := os.Getenv(EnvMaxWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMaxWorkers, err)
		}
		cfg.MaxWorkers = n
	}
	if v := os.Getenv(EnvMinParallelPages); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMinParallelPages, err)
		}
		cfg.MinParallelPages = n
	}
	if v := os.Getenv(EnvIntraWaveDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvIntraWaveDelay, err)
		}
		cfg.IntraWaveDelay = d
	}
	if v := os.Getenv(EnvInterWaveDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvInterWaveDelay, err)
		}
		cfg.InterWaveDelay = d
	}
	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvHTTPTimeout, err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvCacheTTL, err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv(EnvSnapshotTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSnapshotTTL, err)
		}
		cfg.SnapshotTTL = d
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration, naming every missing credential
// rather than failing on the first.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %s", describeFields(verrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Credentials returns the OAuth credential set.
func (c *Config) Credentials() oauth.Credentials {
	return oauth.Credentials{
		ConsumerKey:    c.ConsumerKey,
		ConsumerSecret: c.ConsumerSecret,
		TokenID:        c.TokenID,
		TokenSecret:    c.TokenSecret,
		AccountID:      c.AccountID,
	}
}

func describeFields(verrs validator.ValidationErrors) string {
	out := ""
	for i, fe := range verrs {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
	}
	return out
}
