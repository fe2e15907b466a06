// Package config holds curator's typed configuration and its loader.
// Values come from a YAML file, then environment variables (see the `env`
// struct tags), with .env files loaded first.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

const (
	defaultServerPort        = 8070
	defaultServerTimeout     = 30 * time.Second
	defaultDatabasePort      = 5432
	defaultMaxOpenConns      = 25
	defaultMaxIdleConns      = 5
	defaultConnMaxLifetime   = 5 * time.Minute
	defaultMigrationsPath    = "migrations"
	defaultRedisAddress      = "localhost:6379"
	defaultRedisStream       = "curator:events"
	defaultESAddress         = "http://localhost:9200"
	defaultESIndex           = "curator_content"
	defaultUserAgent         = "curator-bot/1.0 (+https://northcloud.one/bot)"
	defaultRequestTimeout    = 30 * time.Second
	defaultPolitenessDelay   = time.Second
	defaultMaxConcurrency    = 4
	defaultMaxJobs           = 8
	defaultRobotsCacheTTL    = 24 * time.Hour
	defaultValuableThreshold = 50
	defaultConfidenceFloor   = 40
	defaultAnthropicModel    = "claude-haiku-4-5-20251001"
	defaultAnthropicTokens   = 256
	defaultAutoCrawlSpec     = "@daily"
	defaultRescoreBatchSize  = 200
)

// Config is the root configuration for the curator service.
type Config struct {
	Debug         bool                `env:"APP_DEBUG" yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Crawler       CrawlerConfig       `yaml:"crawler"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Logging       logger.Config       `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"         yaml:"host"`
	Port            int           `env:"DB_PORT"         yaml:"port"`
	User            string        `env:"DB_USER"         yaml:"user"`
	Password        string        `env:"DB_PASSWORD"     yaml:"password"`
	DBName          string        `env:"DB_NAME"         yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"      yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrationsPath  string        `env:"DB_MIGRATIONS"   yaml:"migrations_path"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" yaml:"auto_migrate"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig configures the optional job/content event stream.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Stream   string `env:"REDIS_STREAM"         yaml:"stream"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"`
}

// ElasticsearchConfig configures the optional content search mirror.
type ElasticsearchConfig struct {
	Address  string `env:"ES_ADDRESS"  yaml:"address"`
	Username string `env:"ES_USERNAME" yaml:"username"`
	Password string `env:"ES_PASSWORD" yaml:"password"`
	Index    string `env:"ES_INDEX"    yaml:"index"`
	Enabled  bool   `env:"ES_ENABLED"  yaml:"enabled"`
}

// CrawlerConfig holds fetcher defaults. Jobs and scraping configs may override
// the politeness delay and concurrency.
type CrawlerConfig struct {
	UserAgent       string        `env:"CRAWLER_USER_AGENT"       yaml:"user_agent"`
	RequestTimeout  time.Duration `env:"CRAWLER_REQUEST_TIMEOUT"  yaml:"request_timeout"`
	PolitenessDelay time.Duration `env:"CRAWLER_POLITENESS_DELAY" yaml:"politeness_delay"`
	MaxConcurrency  int           `env:"CRAWLER_MAX_CONCURRENCY"  yaml:"max_concurrency"`
	MaxJobs         int           `env:"CRAWLER_MAX_JOBS"         yaml:"max_jobs"`
	RobotsCacheTTL  time.Duration `yaml:"robots_cache_ttl"`
	RespectRobots   *bool         `yaml:"respect_robots"`
}

// ScoringConfig holds the valuable-content rule parameters.
type ScoringConfig struct {
	ValuableThreshold int `env:"SCORING_VALUABLE_THRESHOLD" yaml:"valuable_threshold"`
	ConfidenceFloor   int `env:"SCORING_CONFIDENCE_FLOOR"   yaml:"confidence_floor"`
	RescoreBatchSize  int `yaml:"rescore_batch_size"`
}

// AnthropicConfig enables AI summaries. An empty API key selects the
// extractive summarizer.
type AnthropicConfig struct {
	APIKey    string `env:"ANTHROPIC_API_KEY"  yaml:"api_key"`
	BaseURL   string `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
	Model     string `env:"ANTHROPIC_MODEL"    yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

type SchedulerConfig struct {
	AutoCrawlEnabled bool   `env:"AUTO_CRAWL_ENABLED" yaml:"auto_crawl_enabled"`
	DefaultSpec      string `yaml:"default_spec"`
}

// Load reads configuration from path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}
	return cfg, nil
}

// Validate reports the first required setting that is missing or out of range.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Scoring.ValuableThreshold < 0 || c.Scoring.ValuableThreshold > 100 {
		return errors.New("scoring.valuable_threshold must be within 0-100")
	}
	if c.Scoring.ConfidenceFloor < 0 || c.Scoring.ConfidenceFloor > 100 {
		return errors.New("scoring.confidence_floor must be within 0-100")
	}
	if c.Crawler.MaxConcurrency <= 0 {
		return errors.New("crawler.max_concurrency must be positive")
	}
	return nil
}

// RobotsEnabled reports whether robots.txt is honoured. Defaults to true.
func (c CrawlerConfig) RobotsEnabled() bool {
	return c.RespectRobots == nil || *c.RespectRobots
}

func setDefaults(cfg *Config) {
	setServerDefaults(&cfg.Server)
	setDatabaseDefaults(&cfg.Database)
	setCrawlerDefaults(&cfg.Crawler)

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = defaultRedisStream
	}
	if cfg.Elasticsearch.Address == "" {
		cfg.Elasticsearch.Address = defaultESAddress
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = defaultESIndex
	}
	if cfg.Scoring.ValuableThreshold == 0 {
		cfg.Scoring.ValuableThreshold = defaultValuableThreshold
	}
	if cfg.Scoring.ConfidenceFloor == 0 {
		cfg.Scoring.ConfidenceFloor = defaultConfidenceFloor
	}
	if cfg.Scoring.RescoreBatchSize == 0 {
		cfg.Scoring.RescoreBatchSize = defaultRescoreBatchSize
	}
	if cfg.Anthropic.Model == "" {
		cfg.Anthropic.Model = defaultAnthropicModel
	}
	if cfg.Anthropic.MaxTokens == 0 {
		cfg.Anthropic.MaxTokens = defaultAnthropicTokens
	}
	if cfg.Scheduler.DefaultSpec == "" {
		cfg.Scheduler.DefaultSpec = defaultAutoCrawlSpec
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = defaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultServerTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultServerTimeout
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"http://localhost:3000"}
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = defaultDatabasePort
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = defaultMaxOpenConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if d.MigrationsPath == "" {
		d.MigrationsPath = defaultMigrationsPath
	}
}

func setCrawlerDefaults(c *CrawlerConfig) {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.PolitenessDelay == 0 {
		c.PolitenessDelay = defaultPolitenessDelay
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	if c.MaxJobs == 0 {
		c.MaxJobs = defaultMaxJobs
	}
	if c.RobotsCacheTTL == 0 {
		c.RobotsCacheTTL = defaultRobotsCacheTTL
	}
}
