package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"airbnb-listings/models"
)

// DetailHeader is the header row of the intermediate detail file.
var DetailHeader = []string{"details_page", "amenities_page", "link"}

// DetailSink appends detail records to a CSV file, one record per row,
// flushing after each so a crash loses at most the record in flight.
// The header is written exactly once, before the first record.
// It is safe for concurrent use.
//
// Fetched pages are stored as Go-quoted strings so they reload byte for
// byte; a bare FailedMarker cell only ever comes from a failed fetch.
type DetailSink struct {
	mu            sync.Mutex
	path          string
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
	count         int
	dropped       int64
}

// OpenDetailSink opens the sink at path. With resume set an existing file
// is appended to and its records counted; otherwise the file is truncated.
// A partial record left at the end of the file by a crash is cut off
// before appending.
func OpenDetailSink(path string, resume bool) (*DetailSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("details: create output dir: %w", err)
	}

	count := 0
	var dropped int64
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		n, valid, size, err := countRecords(path)
		if err != nil {
			return nil, err
		}
		if valid < size {
			if err := os.Truncate(path, valid); err != nil {
				return nil, fmt.Errorf("details: cut partial record: %w", err)
			}
			dropped = size - valid
		}
		count = n
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("details: open %q: %w", path, err)
	}

	headerWritten := false
	if resume {
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("details: stat %q: %w", path, err)
		}
		headerWritten = info.Size() > 0
	}

	return &DetailSink{
		path:          path,
		file:          f,
		writer:        csv.NewWriter(f),
		headerWritten: headerWritten,
		count:         count,
		dropped:       dropped,
	}, nil
}

// Append writes rec and returns the number of records in the file. The
// header decision, the write and the counter update happen under one lock.
func (s *DetailSink) Append(rec models.DetailRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return s.count, errors.New("details: sink closed")
	}

	if !s.headerWritten {
		if err := s.writer.Write(DetailHeader); err != nil {
			return s.count, fmt.Errorf("details: write header: %w", err)
		}
	}
	if err := s.writer.Write(detailRow(rec)); err != nil {
		return s.count, fmt.Errorf("details: write record: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return s.count, fmt.Errorf("details: flush: %w", err)
	}

	s.headerWritten = true
	s.count++
	return s.count, nil
}

// Count returns the number of records in the file.
func (s *DetailSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Dropped returns how many trailing bytes of a partial record were cut
// from the file when it was reopened.
func (s *DetailSink) Dropped() int64 {
	return s.dropped
}

// Path returns the file the sink writes to.
func (s *DetailSink) Path() string {
	return s.path
}

// Close flushes and closes the underlying file.
func (s *DetailSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	err := s.file.Close()
	s.file = nil
	return err
}

func detailRow(rec models.DetailRecord) []string {
	if !rec.OK() {
		return []string{models.FailedMarker, models.FailedMarker, rec.Link}
	}
	return []string{strconv.Quote(rec.DetailsPage), strconv.Quote(rec.AmenitiesPage), rec.Link}
}

func parseDetailRow(row []string) (models.DetailRecord, error) {
	if row[0] == models.FailedMarker && row[1] == models.FailedMarker {
		return models.FailedRecord(row[2], models.FailureFetch), nil
	}
	details, err := strconv.Unquote(row[0])
	if err != nil {
		return models.DetailRecord{}, fmt.Errorf("details page of %s: %w", row[2], err)
	}
	amenities, err := strconv.Unquote(row[1])
	if err != nil {
		return models.DetailRecord{}, fmt.Errorf("amenities page of %s: %w", row[2], err)
	}
	return models.DetailRecord{DetailsPage: details, AmenitiesPage: amenities, Link: row[2]}, nil
}

// LoadDetails reads a detail file back into a map keyed by link. Rows whose
// pages hold the failure marker come back as failed records. When a link
// appears more than once a fetched record wins over a failed one, and a
// later row wins over an earlier one of the same kind. A partial record at
// the end of the file is ignored.
func LoadDetails(path string) (map[string]models.DetailRecord, error) {
	out := make(map[string]models.DetailRecord)
	_, _, err := readDetails(path, func(rec models.DetailRecord) {
		if prev, ok := out[rec.Link]; ok && prev.OK() && !rec.OK() {
			return
		}
		out[rec.Link] = rec
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func countRecords(path string) (n int, valid, size int64, err error) {
	valid, size, err = readDetails(path, func(models.DetailRecord) { n++ })
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, 0, nil
	}
	return n, valid, size, err
}

// readDetails calls fn for every complete record in the file at path. It
// returns the offset just past the last complete record and the file size.
// The two differ when the last write was cut short: a record that does not
// parse and runs to the end of the file, or one missing its line ending.
func readDetails(path string, fn func(models.DetailRecord)) (valid, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("details: open %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("details: stat %q: %w", path, err)
	}
	size = info.Size()
	if size == 0 {
		return 0, 0, nil
	}
	terminated, err := endsWithNewline(f, size)
	if err != nil {
		return 0, size, err
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(DetailHeader)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil || (r.InputOffset() == size && !terminated) {
		if partialHeader(f, size) {
			return 0, size, nil
		}
		if err != nil {
			return 0, size, fmt.Errorf("details: read header: %w", err)
		}
	}
	if !slices.Equal(header, DetailHeader) {
		return 0, size, fmt.Errorf("details: unexpected header %v", header)
	}
	valid = r.InputOffset()

	for {
		row, err := r.Read()
		if err == io.EOF {
			return valid, size, nil
		}
		end := r.InputOffset()
		if end == size && !terminated {
			return valid, size, nil
		}
		if err != nil {
			if _, next := r.Read(); next == io.EOF {
				return valid, size, nil
			}
			return valid, size, fmt.Errorf("details: read record: %w", err)
		}
		rec, err := parseDetailRow(row)
		if err != nil {
			return valid, size, fmt.Errorf("details: %w", err)
		}
		fn(rec)
		valid = end
	}
}

func endsWithNewline(f *os.File, size int64) (bool, error) {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, fmt.Errorf("details: read tail: %w", err)
	}
	return last[0] == '\n', nil
}

// partialHeader reports whether the whole file is a cut-off header line.
func partialHeader(f *os.File, size int64) bool {
	line := strings.Join(DetailHeader, ",") + "\n"
	if size >= int64(len(line)) {
		return false
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return false
	}
	return strings.HasPrefix(line, string(buf))
}
