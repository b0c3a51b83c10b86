package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-diary/internal/store"
)

// CronParser accepts six-field cron expressions with a leading seconds field.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIURL     string // empty means the provider default
	City              string
	WeatherAPITimeout time.Duration
	WeatherAPIRPS     float64 // 0 disables pacing
	WeatherAPIBurst   int

	RefreshSchedule string
	RefreshTimeout  time.Duration

	// Location is the zone "today" and the refresh schedule are evaluated in.
	Location *time.Location

	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int
	DBMaxIdleConns int

	Port            string
	ShutdownTimeout time.Duration
}

// Store returns the settings for store.New.
func (c *AppConfig) Store() store.Config {
	return store.Config{
		Driver:       c.DBDriver,
		DSN:          c.DBDSN,
		MaxOpenConns: c.DBMaxOpenConns,
		MaxIdleConns: c.DBMaxIdleConns,
	}
}

// fileConfig is the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Weather struct {
		APIKey  string   `yaml:"api_key"`
		URL     string   `yaml:"url"`
		City    string   `yaml:"city"`
		Timeout string   `yaml:"timeout"`
		RPS     *float64 `yaml:"rps"`
		Burst   int      `yaml:"burst"`
	} `yaml:"weather"`

	Refresh struct {
		Schedule string `yaml:"schedule"`
		Timeout  string `yaml:"timeout"`
		Timezone string `yaml:"timezone"`
	} `yaml:"refresh"`

	DB struct {
		Driver       string `yaml:"driver"`
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"db"`

	Server struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
}

// values flattens the file into the environment variable names it stands in for.
func (fc *fileConfig) values() map[string]string {
	v := map[string]string{
		"OPENWEATHERMAP_KEY":  fc.Weather.APIKey,
		"WEATHER_API_URL":     fc.Weather.URL,
		"WEATHER_CITY":        fc.Weather.City,
		"WEATHER_API_TIMEOUT": fc.Weather.Timeout,
		"REFRESH_SCHEDULE":    fc.Refresh.Schedule,
		"REFRESH_TIMEOUT":     fc.Refresh.Timeout,
		"TIMEZONE":            fc.Refresh.Timezone,
		"DB_DRIVER":           fc.DB.Driver,
		"DB_DSN":              fc.DB.DSN,
		"PORT":                fc.Server.Port,
		"SHUTDOWN_TIMEOUT":    fc.Server.ShutdownTimeout,
	}
	if fc.Weather.RPS != nil {
		v["WEATHER_API_RPS"] = strconv.FormatFloat(*fc.Weather.RPS, 'f', -1, 64)
	}
	if fc.Weather.Burst != 0 {
		v["WEATHER_API_BURST"] = strconv.Itoa(fc.Weather.Burst)
	}
	if fc.DB.MaxOpenConns != 0 {
		v["DB_MAX_OPEN_CONNS"] = strconv.Itoa(fc.DB.MaxOpenConns)
	}
	if fc.DB.MaxIdleConns != 0 {
		v["DB_MAX_IDLE_CONNS"] = strconv.Itoa(fc.DB.MaxIdleConns)
	}
	return v
}

// Load reads configuration from .env, the optional CONFIG_FILE and the
// environment, in increasing order of precedence.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	file := map[string]string{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		file = fc.values()
	}
	l := loader{file: file}

	cfg := &AppConfig{
		OpenWeatherAPIKey: l.str("OPENWEATHERMAP_KEY", ""),
		WeatherAPIURL:     l.str("WEATHER_API_URL", ""),
		City:              l.str("WEATHER_CITY", "seoul"),
		WeatherAPITimeout: l.duration("WEATHER_API_TIMEOUT", 5*time.Second),
		WeatherAPIRPS:     l.float("WEATHER_API_RPS", 1),
		WeatherAPIBurst:   l.integer("WEATHER_API_BURST", 5),
		RefreshSchedule:   l.str("REFRESH_SCHEDULE", "0 0 1 * * *"),
		RefreshTimeout:    l.duration("REFRESH_TIMEOUT", 30*time.Second),
		DBDriver:          strings.ToLower(l.str("DB_DRIVER", store.DriverSQLite)),
		DBDSN:             l.str("DB_DSN", ""),
		DBMaxOpenConns:    l.integer("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    l.integer("DB_MAX_IDLE_CONNS", 5),
		Port:              l.str("PORT", "8080"),
		ShutdownTimeout:   l.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if l.err != nil {
		return nil, l.err
	}

	cfg.Location = time.Local
	if tz := l.str("TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if cfg.DBDSN == "" {
		switch cfg.DBDriver {
		case store.DriverSQLite:
			cfg.DBDSN = "weather_diary.db"
		case store.DriverMySQL:
			cfg.DBDSN = store.MySQLDSN(
				getenvDefault("MYSQL_HOST", "localhost"),
				getenvDefault("MYSQL_PORT", "3306"),
				getenvDefault("MYSQL_DB", "weather_diary"),
				getenvDefault("MYSQL_USER", "root"),
				os.Getenv("MYSQL_PASSWORD"),
			)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *AppConfig) error {
	if cfg.OpenWeatherAPIKey == "" {
		return fmt.Errorf("OPENWEATHERMAP_KEY is required")
	}
	if cfg.City == "" {
		return fmt.Errorf("WEATHER_CITY must not be empty")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	// Zero disables pacing.
	if cfg.WeatherAPIRPS < 0 {
		return fmt.Errorf("WEATHER_API_RPS must not be negative")
	}
	if cfg.WeatherAPIBurst < 1 {
		return fmt.Errorf("WEATHER_API_BURST must be at least 1")
	}
	if _, err := CronParser.Parse(cfg.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid REFRESH_SCHEDULE %q: %w", cfg.RefreshSchedule, err)
	}
	if cfg.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive")
	}
	switch cfg.DBDriver {
	case store.DriverSQLite, store.DriverMySQL, store.DriverMemory:
	default:
		return fmt.Errorf("%w: DB_DRIVER %q (want sqlite, mysql or memory)", store.ErrUnknownDriver, cfg.DBDriver)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// loader resolves a key from the environment, then the config file, then
// the default. The first parse error is kept in err.
type loader struct {
	file map[string]string
	err  error
}

func (l *loader) lookup(key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(l.file[key]); v != "" {
		return v, true
	}
	return "", false
}

func (l *loader) str(key, def string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return def
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (l *loader) integer(key string, def int) int {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
