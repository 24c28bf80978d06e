package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
)

// EnvPrefix is prepended to every environment override (BESTBETS_EV_MIN_EV)
const EnvPrefix = "BESTBETS"

// Config holds all configuration for the best-bets run and the dashboard
type Config struct {
	Server      ServerConfig
	Logging     LoggingConfig
	Forecast    ForecastConfig
	Exchange    ExchangeConfig
	Conferences []ConferenceConfig
	Matcher     MatcherConfig
	EV          EVConfig
	Output      OutputConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Dashboard   DashboardConfig
	Metrics     MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// ForecastConfig holds the BartTorvik scraping configuration
type ForecastConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration // Per page load
	Settle    time.Duration // Wait after load for client-side tables to render
	Headless  bool
	ChromeExe string `mapstructure:"chrome_exe"` // Empty uses the system default
}

// ExchangeConfig holds the Kalshi REST configuration
type ExchangeConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration // Per request
	RateLimit        float64       `mapstructure:"rate_limit"` // Requests per second
	MaxRetries       int           `mapstructure:"max_retries"`
	PageLimit        int           `mapstructure:"page_limit"`
	TournamentSeries string        `mapstructure:"tournament_series"`
	GameSeries       string        `mapstructure:"game_series"`
	KeyID            string        `mapstructure:"key_id"`
	PrivateKeyPath   string        `mapstructure:"private_key_path"`
	Preflight        bool
}

// ConferenceConfig ties a conference to its forecast code and exchange series
type ConferenceConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Code   string `mapstructure:"code" yaml:"code"`     // BartTorvik conlimit code
	Series string `mapstructure:"series" yaml:"series"` // Kalshi series ticker
}

// MatcherConfig holds name matching configuration
type MatcherConfig struct {
	MinScore   float64 `mapstructure:"min_score"`   // Fuzzy matches must exceed this (0-100)
	TablesFile string  `mapstructure:"tables_file"` // YAML aliases, abbreviations and mascots
}

// EVConfig holds EV and ranking parameters
type EVConfig struct {
	MinEV          float64 `mapstructure:"min_ev"`       // Minimum EV to report (0.02 = 2 cents per dollar)
	ShareFactor    float64 `mapstructure:"share_factor"` // Payout fraction for a shared title (0-1)
	TopN           int     `mapstructure:"top_n"`        // 0 = no cap
	EvaluateNoSide bool    `mapstructure:"evaluate_no_side"`
	RequireQuote   bool    `mapstructure:"require_quote"`
}

// OutputConfig holds report output configuration
type OutputConfig struct {
	Dir         string
	Screenshots bool
	Table       bool // Print the console table
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string // Feed snapshots
	GroupID string `mapstructure:"group_id"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DashboardConfig holds dashboard API configuration
type DashboardConfig struct {
	JWTSecret   string            `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration     `mapstructure:"token_ttl"`
	Users       map[string]string // username -> bcrypt hash
	CORSOrigins []string          `mapstructure:"cors_origins"`
	SeedFile    string            `mapstructure:"seed_file"` // feed.json loaded into the cache at startup
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"` // Batch runs push here when set
	Job            string
}

// DefaultConferences are the conferences with both a forecast page and an exchange series
var DefaultConferences = []ConferenceConfig{
	{Name: "SEC", Code: "SEC", Series: "KXSECREG"},
	{Name: "Big 12", Code: "B12", Series: "KXBIG12REG"},
	{Name: "ACC", Code: "ACC", Series: "KXACCREG"},
	{Name: "Big Ten", Code: "B10", Series: "KXBIG10REG"},
	{Name: "Big East", Code: "BE", Series: "KXBIGEASTREG"},
	{Name: "West Coast Conference", Code: "WCC", Series: "KXWCCREG"},
	{Name: "Mountain West Conference", Code: "MWC", Series: "KXMWREG"},
	{Name: "Atlantic 10 Conference", Code: "A10", Series: "KXA10REG"},
	{Name: "American Athletic Conference", Code: "Amer", Series: "KXAACREG"},
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"min-ev":       "ev.min_ev",
	"share-factor": "ev.share_factor",
	"top":          "ev.top_n",
	"screenshots":  "output.screenshots",
	"out-dir":      "output.dir",
	"log-level":    "logging.level",
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	return Load(configPath, nil)
}

// Load loads configuration from file, environment variables and changed flags
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("forecast.base_url", "https://barttorvik.com")
	v.SetDefault("forecast.timeout", 30*time.Second)
	v.SetDefault("forecast.settle", 5*time.Second)
	v.SetDefault("forecast.headless", true)
	v.SetDefault("forecast.chrome_exe", "")

	v.SetDefault("exchange.base_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("exchange.timeout", 30*time.Second)
	v.SetDefault("exchange.rate_limit", 10.0)
	v.SetDefault("exchange.max_retries", 3)
	v.SetDefault("exchange.page_limit", 200)
	v.SetDefault("exchange.tournament_series", "KXMAKEMARMAD")
	v.SetDefault("exchange.game_series", "KXNCAAMBGAME")
	v.SetDefault("exchange.key_id", "")
	v.SetDefault("exchange.private_key_path", "")
	v.SetDefault("exchange.preflight", true)

	conferences := make([]map[string]interface{}, 0, len(DefaultConferences))
	for _, c := range DefaultConferences {
		conferences = append(conferences, map[string]interface{}{"name": c.Name, "code": c.Code, "series": c.Series})
	}
	v.SetDefault("conferences", conferences)

	v.SetDefault("matcher.min_score", 90.0)
	v.SetDefault("matcher.tables_file", "")

	v.SetDefault("ev.min_ev", 0.02)
	v.SetDefault("ev.share_factor", 0.5)
	v.SetDefault("ev.top_n", 20)
	v.SetDefault("ev.evaluate_no_side", false)
	v.SetDefault("ev.require_quote", true)

	v.SetDefault("output.dir", "out")
	v.SetDefault("output.screenshots", false)
	v.SetDefault("output.table", true)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "best_bets_feed")
	v.SetDefault("kafka.group_id", "bestbets-dashboard")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("dashboard.jwt_secret", "")
	v.SetDefault("dashboard.token_ttl", 720*time.Minute)
	v.SetDefault("dashboard.users", map[string]string{})
	v.SetDefault("dashboard.cors_origins", []string{"*"})
	v.SetDefault("dashboard.seed_file", "")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "kalshi_best_bets")

	// Read config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Replace . with _ for environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Flags win over everything once set on the command line
	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	// Unmarshal to struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks parameter ranges
func (c *Config) Validate() error {
	if c.EV.ShareFactor < 0 || c.EV.ShareFactor > 1 {
		return fmt.Errorf("ev.share_factor: %w", &models.InvalidInputError{Field: "share_factor", Value: c.EV.ShareFactor})
	}
	if c.EV.TopN < 0 {
		return fmt.Errorf("ev.top_n must not be negative: %d", c.EV.TopN)
	}
	if c.Matcher.MinScore < 0 || c.Matcher.MinScore > 100 {
		return fmt.Errorf("matcher.min_score must be within [0,100]: %v", c.Matcher.MinScore)
	}
	if c.Exchange.PageLimit <= 0 {
		return fmt.Errorf("exchange.page_limit must be positive: %d", c.Exchange.PageLimit)
	}
	return nil
}

// ToEVParams converts config to EV calculator parameters
func (c *EVConfig) ToEVParams() models.EVParams {
	return models.EVParams{
		ShareFactor:    c.ShareFactor,
		EvaluateNoSide: c.EvaluateNoSide,
		RequireQuote:   c.RequireQuote,
	}
}

// ConferenceCodes returns conference name -> forecast code
func (c *Config) ConferenceCodes() map[string]string {
	out := make(map[string]string, len(c.Conferences))
	for _, conf := range c.Conferences {
		code := conf.Code
		if code == "" {
			code = conf.Name
		}
		out[conf.Name] = code
	}
	return out
}

// ConferenceSeries returns conference name -> exchange series ticker
func (c *Config) ConferenceSeries() map[string]string {
	out := make(map[string]string, len(c.Conferences))
	for _, conf := range c.Conferences {
		if conf.Series != "" {
			out[conf.Name] = conf.Series
		}
	}
	return out
}

// Tables are the static matching tables kept outside the main config
type Tables struct {
	Aliases       map[string]string `yaml:"aliases"`       // forecast name -> ticker or market name
	Abbreviations map[string]string `yaml:"abbreviations"` // merged over the built-in expansions
	Mascots       []string          `yaml:"mascots"`       // appended to the built-in suffixes
}

// LoadTables reads the matching tables. An empty path yields empty tables.
func LoadTables(path string) (*Tables, error) {
	tables := &Tables{}
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	if err := yaml.Unmarshal(data, tables); err != nil {
		return nil, fmt.Errorf("failed to parse tables file: %w", err)
	}

	return tables, nil
}
