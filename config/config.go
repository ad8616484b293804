package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig bounds the incremental load controller. The loop ends on
// whichever limit is reached first.
type LoadConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	NoGrowthThreshold int           `yaml:"no_growth_threshold"`
	SettleWait        time.Duration `yaml:"settle_wait"`
	TimeBudget        time.Duration `yaml:"time_budget"`
	ClickTimeout      time.Duration `yaml:"click_timeout"`
	DismissTimeout    time.Duration `yaml:"dismiss_timeout"`
	CaptureTimeout    time.Duration `yaml:"capture_timeout"`
}

// DefaultCaptureTimeout bounds the final markup and screenshot captures.
const DefaultCaptureTimeout = 30 * time.Second

// CaptureLimit returns CaptureTimeout, or DefaultCaptureTimeout when unset.
func (c LoadConfig) CaptureLimit() time.Duration {
	if c.CaptureTimeout <= 0 {
		return DefaultCaptureTimeout
	}
	return c.CaptureTimeout
}

// ImputationConfig is the affordability model used to estimate a monthly
// installment from the listing price.
type ImputationConfig struct {
	DownPaymentFraction    float64 `yaml:"down_payment_fraction"`
	AdditionalCostFraction float64 `yaml:"additional_cost_fraction"`
	InterestFraction       float64 `yaml:"interest_fraction"`
	TenorMonths            int     `yaml:"tenor_months"`
}

// Config holds all application configuration. Values are resolved in order:
// defaults, optional YAML file, environment variables (.env included).
type Config struct {
	Keyword        string `yaml:"keyword"`
	BaseURL        string `yaml:"base_url"`
	SearchPath     string `yaml:"search_path"`
	SearchLocation string `yaml:"search_location"`

	BrowserEngine   string        `yaml:"browser_engine"`
	Headless        bool          `yaml:"headless"`
	Stealth         bool          `yaml:"stealth"`
	ChromeBin       string        `yaml:"chrome_bin"`
	UserAgent       string        `yaml:"user_agent"`
	GotoTimeout     time.Duration `yaml:"goto_timeout"`
	NavigateRetries int           `yaml:"navigate_retries"`
	PopupSelectors  []string      `yaml:"popup_selectors"`

	Load       LoadConfig       `yaml:"load"`
	Imputation ImputationConfig `yaml:"imputation"`

	LocationDelimiters []string `yaml:"location_delimiters"`
	PostedTimeMaxLen   int      `yaml:"posted_time_max_len"`

	DBDriver         string `yaml:"db_driver"`
	DBURL            string `yaml:"db_url"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`
	SQLitePath       string `yaml:"sqlite_path"`
	TableName        string `yaml:"table_name"`

	DataDir       string `yaml:"data_dir"`
	ScreenshotDir string `yaml:"screenshot_dir"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Paths are the per-keyword artifact locations of one pipeline run.
type Paths struct {
	HTML        string
	Parsed      string
	Transformed string
	Inserted    string
	Screenshot  string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:        "https://www.olx.co.id",
		SearchPath:     "/mobil-bekas_c198/q-{keyword}",
		SearchLocation: "Indonesia",

		BrowserEngine: "chromedp",
		Headless:      true,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		GotoTimeout:     60 * time.Second,
		NavigateRetries: 2,
		PopupSelectors: []string{
			"//button[normalize-space(.)='Never allow']",
			"button[aria-label='Close']",
		},

		Load: LoadConfig{
			MaxAttempts:       120,
			NoGrowthThreshold: 3,
			SettleWait:        1500 * time.Millisecond,
			TimeBudget:        5 * time.Minute,
			ClickTimeout:      2 * time.Second,
			DismissTimeout:    2 * time.Second,
			CaptureTimeout:    DefaultCaptureTimeout,
		},
		Imputation: ImputationConfig{
			DownPaymentFraction:    0.30,
			AdditionalCostFraction: 0.11,
			InterestFraction:       0.20,
			TenorMonths:            36,
		},

		LocationDelimiters: []string{".", " | ", " - "},
		PostedTimeMaxLen:   7,

		DBDriver:         "postgres",
		PostgresHost:     "localhost",
		PostgresPort:     "5435",
		PostgresUser:     "postgres",
		PostgresPassword: "postgres",
		PostgresDB:       "scrape-olx",
		PostgresSSLMode:  "disable",
		SQLitePath:       "./data/olx.db",
		TableName:        "scrape_data",

		DataDir:       "data",
		ScreenshotDir: "screenshots",

		LogLevel: "info",
		LogFile:  "logs/pipeline.log",
	}
}

// Load reads the .env file, an optional YAML file and the environment and
// returns a validated Config. An empty path falls back to $CONFIG_FILE.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Keyword = getEnv("KEYWORD", c.Keyword)
	c.BaseURL = strings.TrimRight(getEnv("SITE_BASE_URL", c.BaseURL), "/")
	c.SearchPath = getEnv("SEARCH_PATH", c.SearchPath)
	c.SearchLocation = getEnv("SEARCH_LOCATION", c.SearchLocation)

	c.BrowserEngine = getEnv("BROWSER_ENGINE", c.BrowserEngine)
	c.Headless = getEnvBool("HEADLESS", c.Headless)
	c.Stealth = getEnvBool("STEALTH", c.Stealth)
	c.ChromeBin = getEnv("CHROME_BIN", c.ChromeBin)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.GotoTimeout = getEnvDuration("GOTO_TIMEOUT", c.GotoTimeout)
	c.NavigateRetries = getEnvInt("NAVIGATE_RETRIES", c.NavigateRetries)

	c.Load.MaxAttempts = getEnvInt("LOAD_MAX_ATTEMPTS", c.Load.MaxAttempts)
	c.Load.NoGrowthThreshold = getEnvInt("LOAD_NO_GROWTH_THRESHOLD", c.Load.NoGrowthThreshold)
	c.Load.SettleWait = getEnvDuration("LOAD_SETTLE_WAIT", c.Load.SettleWait)
	c.Load.TimeBudget = getEnvDuration("LOAD_TIME_BUDGET", c.Load.TimeBudget)
	c.Load.ClickTimeout = getEnvDuration("LOAD_CLICK_TIMEOUT", c.Load.ClickTimeout)
	c.Load.DismissTimeout = getEnvDuration("LOAD_DISMISS_TIMEOUT", c.Load.DismissTimeout)
	c.Load.CaptureTimeout = getEnvDuration("LOAD_CAPTURE_TIMEOUT", c.Load.CaptureTimeout)

	c.Imputation.DownPaymentFraction = getEnvFloat("IMPUTE_DOWN_PAYMENT", c.Imputation.DownPaymentFraction)
	c.Imputation.AdditionalCostFraction = getEnvFloat("IMPUTE_ADDITIONAL_COST", c.Imputation.AdditionalCostFraction)
	c.Imputation.InterestFraction = getEnvFloat("IMPUTE_INTEREST", c.Imputation.InterestFraction)
	c.Imputation.TenorMonths = getEnvInt("IMPUTE_TENOR_MONTHS", c.Imputation.TenorMonths)

	c.PostedTimeMaxLen = getEnvInt("POSTED_TIME_MAX_LEN", c.PostedTimeMaxLen)

	var err error
	if c.LocationDelimiters, err = getEnvList("LOCATION_DELIMITERS", c.LocationDelimiters); err != nil {
		return err
	}
	if c.PopupSelectors, err = getEnvList("POPUP_SELECTORS", c.PopupSelectors); err != nil {
		return err
	}

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBURL = getEnv("DB_URL", c.DBURL)
	c.PostgresHost = getEnv("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnv("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnv("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresDB = getEnv("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", c.PostgresSSLMode)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.TableName = getEnv("DB_TABLE", c.TableName)

	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.ScreenshotDir = getEnv("SCREENSHOT_DIR", c.ScreenshotDir)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is empty"))
	}
	if c.Load.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("load.max_attempts must be >= 1, got %d", c.Load.MaxAttempts))
	}
	if c.Load.NoGrowthThreshold < 1 {
		errs = append(errs, fmt.Errorf("load.no_growth_threshold must be >= 1, got %d", c.Load.NoGrowthThreshold))
	}
	if c.Load.SettleWait < 0 {
		errs = append(errs, fmt.Errorf("load.settle_wait must not be negative, got %v", c.Load.SettleWait))
	}
	if c.Load.TimeBudget <= 0 {
		errs = append(errs, fmt.Errorf("load.time_budget must be positive, got %v", c.Load.TimeBudget))
	}
	fractions := []struct {
		name  string
		value float64
	}{
		{"down_payment_fraction", c.Imputation.DownPaymentFraction},
		{"additional_cost_fraction", c.Imputation.AdditionalCostFraction},
		{"interest_fraction", c.Imputation.InterestFraction},
	}
	for _, f := range fractions {
		if f.value < 0 || f.value >= 1 {
			errs = append(errs, fmt.Errorf("imputation.%s must be in [0,1), got %v", f.name, f.value))
		}
	}
	if c.Imputation.TenorMonths < 1 {
		errs = append(errs, fmt.Errorf("imputation.tenor_months must be >= 1, got %d", c.Imputation.TenorMonths))
	}
	if len(c.LocationDelimiters) == 0 {
		errs = append(errs, errors.New("location_delimiters is empty"))
	}
	for _, d := range c.LocationDelimiters {
		if d == "" {
			errs = append(errs, errors.New("location_delimiters contains an empty delimiter"))
			break
		}
	}
	if c.PostedTimeMaxLen < 1 {
		errs = append(errs, fmt.Errorf("posted_time_max_len must be >= 1, got %d", c.PostedTimeMaxLen))
	}
	switch c.BrowserEngine {
	case "chromedp", "rod":
	default:
		errs = append(errs, fmt.Errorf("unknown browser engine %q", c.BrowserEngine))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DBDriver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string. DB_URL wins over the
// individual POSTGRES_* settings.
func (c *Config) DSN() string {
	if c.DBURL != "" {
		return strings.Replace(c.DBURL, "postgresql+psycopg2://", "postgres://", 1)
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SearchURL builds the catalog search URL for a keyword.
func (c *Config) SearchURL(keyword string) string {
	return c.BaseURL + strings.ReplaceAll(c.SearchPath, "{keyword}", Slug(keyword))
}

// Paths returns the artifact locations for a keyword under DataDir.
func (c *Config) Paths(keyword string) Paths {
	slug := Slug(keyword)
	return Paths{
		HTML:        filepath.Join(c.DataDir, "raw_html", slug+".html"),
		Parsed:      filepath.Join(c.DataDir, "parsed", slug+".csv"),
		Transformed: filepath.Join(c.DataDir, "transformed", slug+"_transformed.csv"),
		Inserted:    filepath.Join(c.DataDir, "inserted", slug+"_inserted.json"),
		Screenshot:  filepath.Join(c.ScreenshotDir, strings.Join(strings.Fields(keyword), "_")+".png"),
	}
}

// Slug lowercases a keyword and joins its words with hyphens.
func Slug(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), "-")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList reads a YAML flow sequence such as [".", " | ", " - "].
func getEnvList(key string, fallback []string) ([]string, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	var out []string
	if err := yaml.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return out, nil
}
