package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process and the CLI.
// All values must come from env (or a .env file loaded by LoadDotEnv).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Bland     BlandConfig
	Anthropic AnthropicConfig
	Calls     CallsConfig
	Directory DirectoryConfig
	Catalog   CatalogConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// RedisConfig is optional. Without a host the process keeps its batch cap and
// directory snapshot local.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type BlandConfig struct {
	APIKey  string
	BaseURL string
	Voice   string
	// MaxDuration is the provider-side cap per call, in seconds.
	MaxDuration int
}

// AnthropicConfig is optional; without a key single calls skip summary refinement.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

type CallsConfig struct {
	// Delay is the pause between consecutive calls in a batch.
	Delay                time.Duration
	MaxConcurrentBatches int
	// WebsiteFallback checks retailer websites after unanswered calls.
	WebsiteFallback bool
}

type DirectoryConfig struct {
	CacheFile string
}

type CatalogConfig struct {
	// Path overrides the embedded product catalog when set.
	Path string
}

const (
	defaultCallDelay   = 30 * time.Second
	defaultMaxBatches  = 2
	defaultMaxDuration = 120
	defaultCacheFile   = "retailers.json"
)

// LoadDotEnv loads the first .env found in the working directory or up to
// four parents. Variables already set in the environment win.
func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Load reads and validates the API process configuration.
func Load() (Config, error) {
	c, err := parse()
	if err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadCLI reads the configuration for command-line use. Server settings
// (port, token secret) are not required.
func LoadCLI() (Config, error) {
	return parse()
}

func parse() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := optionalInt("APP_PORT")
		c.App.Port, parseErrs = n, appendErr(parseErrs, err)
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		c.Redis.Port, parseErrs = n, appendErr(parseErrs, err)
		c.Redis.Password = os.Getenv("REDIS_PASSWORD")
		db, err := optionalInt("REDIS_DB")
		c.Redis.DB, parseErrs = db, appendErr(parseErrs, err)
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in ApplyDefaults().
	{
		d, err := optionalDuration("JWT_ACCESS_TTL")
		c.Auth.AccessTokenTTL, parseErrs = d, appendErr(parseErrs, err)
	}

	c.Bland.APIKey = strings.TrimSpace(os.Getenv("BLAND_API_KEY"))
	c.Bland.BaseURL = strings.TrimSpace(os.Getenv("BLAND_BASE_URL"))
	c.Bland.Voice = strings.TrimSpace(os.Getenv("BLAND_VOICE"))
	{
		n, err := optionalInt("BLAND_MAX_DURATION")
		c.Bland.MaxDuration, parseErrs = n, appendErr(parseErrs, err)
	}

	c.Anthropic.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	c.Anthropic.Model = strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL"))

	{
		d, err := optionalDuration("CALL_DELAY")
		c.Calls.Delay, parseErrs = d, appendErr(parseErrs, err)
		n, err := optionalInt("CALL_MAX_CONCURRENT_BATCHES")
		c.Calls.MaxConcurrentBatches, parseErrs = n, appendErr(parseErrs, err)
		b, err := optionalBool("CALL_WEBSITE_FALLBACK")
		c.Calls.WebsiteFallback, parseErrs = b, appendErr(parseErrs, err)
	}

	c.Directory.CacheFile = strings.TrimSpace(os.Getenv("DIRECTORY_CACHE_FILE"))
	c.Catalog.Path = strings.TrimSpace(os.Getenv("CATALOG_PATH"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyDefaults fills optional settings that were left unset.
func (c *Config) ApplyDefaults() {
	if c.Auth.AccessTokenTTL <= 0 {
		// Default: one operator shift.
		c.Auth.AccessTokenTTL = 12 * time.Hour
	}
	if c.Bland.MaxDuration <= 0 {
		c.Bland.MaxDuration = defaultMaxDuration
	}
	if c.Calls.Delay == 0 {
		c.Calls.Delay = defaultCallDelay
	}
	if c.Calls.MaxConcurrentBatches <= 0 {
		c.Calls.MaxConcurrentBatches = defaultMaxBatches
	}
	if c.Directory.CacheFile == "" {
		c.Directory.CacheFile = defaultCacheFile
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Bland.APIKey == "" {
			errs = append(errs, errors.New("BLAND_API_KEY is required in production"))
		}
	}

	if c.Bland.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("BLAND_MAX_DURATION must be positive, got %d", c.Bland.MaxDuration))
	}
	if c.Calls.Delay < 0 {
		errs = append(errs, fmt.Errorf("CALL_DELAY must not be negative, got %s", c.Calls.Delay))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// optionalDuration accepts Go durations ("45s") or bare seconds ("45").
func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
