package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"airbnb-listings/models"
)

// PostgresWriter persists the clean table to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

var _ ListingWriter = (*PostgresWriter)(nil)

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                SERIAL PRIMARY KEY,
			link              TEXT UNIQUE NOT NULL,
			city              TEXT NOT NULL,
			name              TEXT NOT NULL DEFAULT '',
			location          TEXT,
			roomtype          TEXT,
			detailed_location TEXT,
			guests            NUMERIC(6,1),
			bedrooms          NUMERIC(6,1),
			beds              NUMERIC(6,1),
			bathrooms         NUMERIC(6,1),
			price             NUMERIC(10,2),
			discountedprice   NUMERIC(10,2),
			score             NUMERIC(4,2),
			reviewnumber      INTEGER,
			facilities        TEXT[]    NOT NULL DEFAULT '{}',
			description       TEXT      NOT NULL DEFAULT '',
			host_info         TEXT      NOT NULL DEFAULT '',
			detailed_scores   NUMERIC[] NOT NULL DEFAULT '{}',
			reviews           TEXT[]    NOT NULL DEFAULT '{}',
			response_time     TEXT      NOT NULL DEFAULT '',
			response_rate     NUMERIC(5,1),
			languages         TEXT[]    NOT NULL DEFAULT '{}',
			amenities         TEXT[]    NOT NULL DEFAULT '{}',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_city  ON listings(city);
		CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);
		CREATE INDEX IF NOT EXISTS idx_listings_score ON listings(score);
	`)
	return err
}

// Clear deletes all existing listings from the table.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM listings")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write replaces the stored table with listings, in batches.
func (pw *PostgresWriter) Write(listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	if err := pw.Clear(); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.insertBatch(listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

const listingColumns = 23

func (pw *PostgresWriter) insertBatch(batch []models.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*listingColumns)

	for idx := range batch {
		l := &batch[idx]
		placeholders := make([]string, listingColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*listingColumns+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		d := l.Detail
		if d == nil {
			d = &models.ListingDetail{}
		}
		valueArgs = append(valueArgs,
			l.Link, l.City, l.Name, l.Location, l.RoomType, l.DetailedLocation,
			l.Guests, l.Bedrooms, l.Beds, l.Bathrooms,
			l.Price, l.DiscountedPrice, l.Score, l.ReviewNumber,
			pq.Array(facilityTokens(l.Facilities)),
			d.Description, d.HostInfo, pq.Array(nonNilFloats(d.DetailedScores)), pq.Array(nonNilStrings(d.Reviews)),
			d.ResponseTime, d.ResponseRate, pq.Array(nonNilStrings(d.Languages)), pq.Array(nonNilStrings(d.Amenities)),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (
			link, city, name, location, roomtype, detailed_location,
			guests, bedrooms, beds, bathrooms,
			price, discountedprice, score, reviewnumber,
			facilities,
			description, host_info, detailed_scores, reviews,
			response_time, response_rate, languages, amenities
		)
		VALUES %s
		ON CONFLICT (link) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored listings, used by the insight service.
func (pw *PostgresWriter) FetchAll() ([]models.Listing, error) {
	rows, err := pw.db.Query(`
		SELECT link, city, name, location, price, discountedprice, score, reviewnumber, response_rate
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l := models.Listing{Detail: &models.ListingDetail{}}
		if err := rows.Scan(
			&l.Link, &l.City, &l.Name, &l.Location, &l.Price, &l.DiscountedPrice,
			&l.Score, &l.ReviewNumber, &l.Detail.ResponseRate,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func facilityTokens(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for token, n := range m {
		if n > 0 {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
