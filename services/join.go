package services

import (
	"math/rand"
	"sort"

	"airbnb-listings/models"
)

// JoinStats counts what the join with the detail file left out.
type JoinStats struct {
	// Missing rows had no record in the detail file at all.
	Missing int
	// Failed rows had only a sentinel record.
	Failed int
	// Dropped is the number of rows removed from the table.
	Dropped int
}

// Join attaches the parsed detail record of each row, matched by link. A
// row without a record is dropped. A row whose record is a failure
// sentinel is dropped when dropFailed is set and otherwise kept with an
// empty detail carrying the failure kind.
func Join(rows []models.Listing, details map[string]models.DetailRecord, parser *DetailParser, dropFailed bool) ([]models.Listing, JoinStats) {
	var stats JoinStats
	out := make([]models.Listing, 0, len(rows))

	for _, l := range rows {
		rec, ok := details[l.Link]
		if !ok {
			stats.Missing++
			stats.Dropped++
			continue
		}
		if !rec.OK() {
			stats.Failed++
			if dropFailed {
				stats.Dropped++
				continue
			}
		}
		l.Detail = parser.Parse(rec)
		out = append(out, l)
	}
	return out, stats
}

// Sample returns n rows picked with a generator seeded by seed, in their
// original order. The same seed and table always give the same sample.
// n <= 0 or n >= len(rows) returns every row.
func Sample(rows []models.Listing, n int, seed int64) []models.Listing {
	if n <= 0 || n >= len(rows) {
		out := make([]models.Listing, len(rows))
		copy(out, rows)
		return out
	}

	idx := rand.New(rand.NewSource(seed)).Perm(len(rows))[:n]
	sort.Ints(idx)

	out := make([]models.Listing, 0, n)
	for _, i := range idx {
		out = append(out, rows[i])
	}
	return out
}

// Links returns the link of every row, in order.
func Links(rows []models.Listing) []string {
	out := make([]string, len(rows))
	for i, l := range rows {
		out[i] = l.Link
	}
	return out
}
