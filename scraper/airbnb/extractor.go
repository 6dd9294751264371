package airbnb

import (
	"errors"

	"github.com/PuerkitoBio/goquery"

	"airbnb-listings/models"
)

// Extractor turns listing fragments into ListingRows.
type Extractor struct {
	sel     ListingSelectors
	baseURL string
}

// NewExtractor creates an Extractor. Relative listing links are resolved
// against baseURL.
func NewExtractor(sel ListingSelectors, baseURL string) *Extractor {
	return &Extractor{sel: sel, baseURL: baseURL}
}

// Extract reads every field of one listing. A field that cannot be read
// is recorded as failed; the other fields are still extracted.
func (e *Extractor) Extract(listing *goquery.Selection) models.ListingRow {
	row := models.ListingRow{
		Title:        extractField(e.sel.Title, listing),
		TopRow:       extractField(e.sel.TopRow, listing),
		RoomInfo:     extractField(e.sel.RoomInfo, listing),
		Facilities:   extractField(e.sel.Facilities, listing),
		Price:        extractField(e.sel.Price, listing),
		Rating:       extractField(e.sel.Rating, listing),
		ReviewNumber: extractField(e.sel.ReviewNumber, listing),
	}

	if link := extractField(e.sel.Link, listing); link.OK() {
		if abs, err := Resolve(e.baseURL, link.Value); err == nil {
			row.Link = abs
		}
	}
	return row
}

// ExtractPage extracts all listings of one results page in document order.
func (e *Extractor) ExtractPage(page *goquery.Document) []models.ListingRow {
	listings := e.sel.Listings(page)
	rows := make([]models.ListingRow, 0, listings.Length())
	listings.Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, e.Extract(s))
	})
	return rows
}

// Aggregate concatenates the listings of all pages in page order and
// stamps each row with city.
func (e *Extractor) Aggregate(pages []*goquery.Document, city string) []models.ListingRow {
	var rows []models.ListingRow
	for _, page := range pages {
		rows = append(rows, e.ExtractPage(page)...)
	}
	for i := range rows {
		rows[i].City = city
	}
	return rows
}

func extractField(read func(*goquery.Selection) (string, error), listing *goquery.Selection) (f models.Field) {
	defer func() {
		if r := recover(); r != nil {
			f = models.Failed(models.FailureMalformed)
		}
	}()

	v, err := read(listing)
	if err != nil {
		return models.Failed(failureKind(err))
	}
	return models.Text(v)
}

func failureKind(err error) models.FailureKind {
	if errors.Is(err, ErrNotFound) {
		return models.FailureMissing
	}
	return models.FailureMalformed
}
