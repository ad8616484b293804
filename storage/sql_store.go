package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"olx-scraper/models"
	"olx-scraper/utils"
)

const batchSize = 50

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// columns in insert order; id and created_at are filled by the database.
var columns = []string{
	"title", "price", "listing_url", "location", "posted_time",
	"installment", "installment_imputed", "year", "lower_km", "upper_km",
}

// dialect holds what differs between the supported SQL backends.
type dialect struct {
	name        string
	idColumn    string
	floatType   string
	placeholder func(n int) string
}

var postgresDialect = dialect{
	name:        "postgres",
	idColumn:    "id SERIAL PRIMARY KEY",
	floatType:   "DOUBLE PRECISION",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

var sqliteDialect = dialect{
	name:        "sqlite",
	idColumn:    "id INTEGER PRIMARY KEY AUTOINCREMENT",
	floatType:   "REAL",
	placeholder: func(int) string { return "?" },
}

// SQLStore persists normalized listings to one table.
type SQLStore struct {
	db      *sql.DB
	table   string
	quoted  string
	dialect dialect
	logger  *utils.Logger
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, table string, logger *utils.Logger) (*SQLStore, error) {
	if !tableNameRegexp.MatchString(table) {
		return nil, fmt.Errorf("%s: invalid table name %q", d.name, table)
	}
	s := &SQLStore{
		db:      db,
		table:   table,
		quoted:  pq.QuoteIdentifier(table),
		dialect: d,
		logger:  logger,
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", d.name, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	ft := s.dialect.floatType
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s,
			title               TEXT,
			price               %s,
			listing_url         TEXT,
			location            TEXT,
			posted_time         TEXT,
			installment         %s,
			installment_imputed BOOLEAN NOT NULL DEFAULT FALSE,
			year                INTEGER,
			lower_km            %s,
			upper_km            %s,
			created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.quoted, s.dialect.idColumn, ft, ft, ft, ft))
	return err
}

// Clear deletes all existing listings from the table.
func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.quoted); err != nil {
		return fmt.Errorf("%s: clear: %w", s.dialect.name, err)
	}
	return nil
}

// Write batch-inserts all listings inside a single transaction. Nothing is
// inserted if any batch fails.
func (s *SQLStore) Write(ctx context.Context, listings []*models.Listing) ([]Record, error) {
	if len(listings) == 0 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(listings))
	for _, l := range listings {
		records = append(records, RecordOf(l))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.dialect.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))
		if err := s.insertBatch(ctx, tx, records[i:end]); err != nil {
			return nil, fmt.Errorf("%s: insert into %q: %w", s.dialect.name, s.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", s.dialect.name, err)
	}
	s.logger.Info("[%s] Inserted %d rows into %q", s.dialect.name, len(records), s.table)
	return records, nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, batch []Record) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*len(columns))

	n := 0
	for _, r := range batch {
		ph := make([]string, len(columns))
		for j := range ph {
			n++
			ph[j] = s.dialect.placeholder(n)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			r.Title, r.Price, r.ListingURL, r.Location, r.PostedTime,
			r.Installment, r.InstallmentImputed, r.Year, r.LowerKM, r.UpperKM)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		s.quoted, strings.Join(columns, ", "), strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

// FetchAll retrieves all stored listings in insertion order.
func (s *SQLStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY id", strings.Join(columns, ", "), s.quoted))
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.dialect.name, err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.Title, &r.Price, &r.ListingURL, &r.Location, &r.PostedTime,
			&r.Installment, &r.InstallmentImputed, &r.Year, &r.LowerKM, &r.UpperKM,
		); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.dialect.name, err)
		}
		listings = append(listings, r.Listing())
	}
	return listings, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
