package store

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-diary/internal/diary"
	"github.com/i474232898/weather-diary/internal/weather"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ErrUnknownDriver is returned by New for a driver name it does not support.
var ErrUnknownDriver = errors.New("unknown store driver")

// Config selects and tunes the backing database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Backend is a store serving both the weather cache and the diary.
type Backend interface {
	weather.Store
	diary.Store
	Close() error
}

// New opens the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Driver == DriverMemory {
		return NewMemoryStore(), nil
	}
	return OpenSQL(ctx, cfg)
}

// MySQLDSN builds a go-sql-driver DSN. parseTime stays off so DATE columns
// come back as YYYY-MM-DD text.
func MySQLDSN(host, port, dbName, user, password string) string {
	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, port)
	c.DBName = dbName
	c.User = user
	c.Passwd = password
	c.Timeout = 5 * time.Second
	return c.FormatDSN()
}

type dialect struct {
	driverName   string
	singleWriter bool
	lockClause   string
	dsn          func(string) string // rewrites the configured DSN; nil keeps it
	schema       []string
}

// sqlitePragmas are applied by the driver on every new connection.
var sqlitePragmas = []string{"busy_timeout(5000)", "journal_mode(WAL)"}

// sqliteDSN adds the connection pragmas to a modernc.org/sqlite DSN,
// keeping any _pragma the caller already set for the same name.
func sqliteDSN(dsn string) string {
	path, query, _ := strings.Cut(dsn, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}

	set := make(map[string]bool)
	for _, p := range values["_pragma"] {
		name, _, _ := strings.Cut(p, "(")
		set[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, p := range sqlitePragmas {
		name, _, _ := strings.Cut(p, "(")
		if !set[name] {
			values.Add("_pragma", p)
		}
	}
	return path + "?" + values.Encode()
}

var dialects = map[string]dialect{
	DriverSQLite: {
		driverName:   "sqlite",
		singleWriter: true,
		dsn:          sqliteDSN,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS date_weather (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				date TEXT NOT NULL,
				weather TEXT NOT NULL,
				icon TEXT NOT NULL,
				temperature REAL NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_date_weather_date ON date_weather (date)`,
			`CREATE TABLE IF NOT EXISTS diary (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				date TEXT NOT NULL,
				weather TEXT NOT NULL,
				icon TEXT NOT NULL,
				temperature REAL NOT NULL,
				text TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_diary_date ON diary (date)`,
		},
	},
	DriverMySQL: {
		driverName: "mysql",
		lockClause: " FOR UPDATE",
		schema: []string{
			"CREATE TABLE IF NOT EXISTS date_weather (" +
				"id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
				"`date` DATE NOT NULL," +
				"weather VARCHAR(64) NOT NULL," +
				"icon VARCHAR(16) NOT NULL," +
				"temperature DOUBLE NOT NULL," +
				"INDEX idx_date_weather_date (`date`)" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
			"CREATE TABLE IF NOT EXISTS diary (" +
				"id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
				"`date` DATE NOT NULL," +
				"weather VARCHAR(64) NOT NULL," +
				"icon VARCHAR(16) NOT NULL," +
				"temperature DOUBLE NOT NULL," +
				"`text` TEXT NOT NULL," +
				"INDEX idx_diary_date (`date`)" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		},
	},
}
