package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/weather-diary/internal/diary"
	"github.com/i474232898/weather-diary/internal/weather"
)

// SQLStore implements the date-weather store and the diary store on a relational database.
// Row order within a date follows the auto-increment id, which is insertion order.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL opens the database for driver ("sqlite" or "mysql"), applies the
// connection settings and creates the schema when missing.
func OpenSQL(ctx context.Context, cfg Config) (*SQLStore, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	dsn := cfg.DSN
	if d.dsn != nil {
		dsn = d.dsn(dsn)
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if d.singleWriter {
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLStore{db: db, dialect: d}, nil
}

// Append inserts one weather record in its own transaction.
func (s *SQLStore) Append(ctx context.Context, rec weather.Record) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO date_weather (`date`, weather, icon, temperature) VALUES (?, ?, ?, ?)",
			weather.FormatDate(rec.Date), rec.Condition, rec.Icon, rec.Temperature)
		if err != nil {
			return fmt.Errorf("insert date_weather: %w", err)
		}
		return nil
	})
}

// FindByDate returns the weather records on date in insertion order.
func (s *SQLStore) FindByDate(ctx context.Context, date time.Time) ([]weather.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT `date`, weather, icon, temperature FROM date_weather WHERE `date` = ? ORDER BY id",
		weather.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("query date_weather: %w", err)
	}
	defer rows.Close()

	var out []weather.Record
	for rows.Next() {
		var (
			d   dateColumn
			rec weather.Record
		)
		if err := rows.Scan(&d, &rec.Condition, &rec.Icon, &rec.Temperature); err != nil {
			return nil, fmt.Errorf("scan date_weather: %w", err)
		}
		rec.Date = d.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateEntry inserts a diary entry and returns it with its id.
func (s *SQLStore) CreateEntry(ctx context.Context, e diary.Entry) (diary.Entry, error) {
	e.Date = weather.DateOf(e.Date)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO diary (`date`, weather, icon, temperature, `text`) VALUES (?, ?, ?, ?, ?)",
			weather.FormatDate(e.Date), e.Condition, e.Icon, e.Temperature, e.Text)
		if err != nil {
			return fmt.Errorf("insert diary: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("diary id: %w", err)
		}
		e.ID = id
		return nil
	})
	if err != nil {
		return diary.Entry{}, err
	}
	return e, nil
}

// EntriesByDate returns the entries on date ordered by id.
func (s *SQLStore) EntriesByDate(ctx context.Context, date time.Time) ([]diary.Entry, error) {
	return s.queryEntries(ctx,
		"SELECT id, `date`, weather, icon, temperature, `text` FROM diary WHERE `date` = ? ORDER BY id",
		weather.FormatDate(date))
}

// EntriesBetween returns the entries with start <= date <= end ordered by date, then id.
func (s *SQLStore) EntriesBetween(ctx context.Context, start, end time.Time) ([]diary.Entry, error) {
	return s.queryEntries(ctx,
		"SELECT id, `date`, weather, icon, temperature, `text` FROM diary WHERE `date` >= ? AND `date` <= ? ORDER BY `date`, id",
		weather.FormatDate(start), weather.FormatDate(end))
}

// UpdateFirstText sets the text of the lowest-id entry on date.
func (s *SQLStore) UpdateFirstText(ctx context.Context, date time.Time, text string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM diary WHERE `date` = ? ORDER BY id LIMIT 1"+s.dialect.lockClause,
			weather.FormatDate(date)).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return diary.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select diary: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE diary SET `text` = ? WHERE id = ?", text, id); err != nil {
			return fmt.Errorf("update diary: %w", err)
		}
		return nil
	})
}

// DeleteByDate removes every entry on date.
func (s *SQLStore) DeleteByDate(ctx context.Context, date time.Time) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM diary WHERE `date` = ?", weather.FormatDate(date))
		if err != nil {
			return fmt.Errorf("delete diary: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) queryEntries(ctx context.Context, query string, args ...any) ([]diary.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diary: %w", err)
	}
	defer rows.Close()

	out := make([]diary.Entry, 0)
	for rows.Next() {
		var (
			d dateColumn
			e diary.Entry
		)
		if err := rows.Scan(&e.ID, &d, &e.Condition, &e.Icon, &e.Temperature, &e.Text); err != nil {
			return nil, fmt.Errorf("scan diary: %w", err)
		}
		e.Date = d.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

// withTx runs fn in a transaction, committing on success and rolling back otherwise.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// dateColumn scans a DATE or TEXT column into a calendar date.
type dateColumn struct {
	Time time.Time
}

func (d *dateColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = weather.DateOf(v)
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("unsupported date column type %T", src)
	}
}

func (d *dateColumn) parse(s string) error {
	if len(s) > len(weather.DateLayout) {
		s = s[:len(weather.DateLayout)]
	}
	t, err := weather.ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
