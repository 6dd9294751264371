package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"airbnb-listings/models"
)

// CSVWriter writes one table to a CSV file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRows appends rows and flushes.
func (c *CSVWriter) WriteRows(rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range rows {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// WriteRawCSV dumps the scraped rows before cleaning.
func WriteRawCSV(path string, rows []models.ListingRow) error {
	w, err := NewCSVWriter(path, RawHeader)
	if err != nil {
		return err
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, RawRecord(r))
	}
	if err := w.WriteRows(records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// WriteListingsCSV writes the clean table with one dummy column per
// facility token in vocabulary.
func WriteListingsCSV(path string, listings []models.Listing, vocabulary []string) error {
	w, err := NewCSVWriter(path, ListingHeader(vocabulary))
	if err != nil {
		return err
	}
	records := make([][]string, 0, len(listings))
	for i := range listings {
		records = append(records, ListingRecord(&listings[i], vocabulary))
	}
	if err := w.WriteRows(records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
