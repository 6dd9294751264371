package models

import "database/sql"

// FailedMarker is written in place of a value that could not be extracted
// or fetched. It never collides with a legitimate count such as "0".
const FailedMarker = "-1"

// FailureKind names why a field or record holds no value.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureMissing   FailureKind = "missing"
	FailureMalformed FailureKind = "malformed"
	FailureFetch     FailureKind = "fetch"
	FailureTimeout   FailureKind = "timeout"
)

// Field is one extracted raw value, or the reason it is absent.
type Field struct {
	Value   string
	Failure FailureKind
}

// Text returns a successfully extracted value.
func Text(v string) Field { return Field{Value: v} }

// Failed returns a field holding the given failure.
func Failed(kind FailureKind) Field { return Field{Failure: kind} }

// OK reports whether the field was extracted.
func (f Field) OK() bool { return f.Failure == FailureNone }

// String renders the field the way it is persisted: the raw value, or
// FailedMarker when extraction failed.
func (f Field) String() string {
	if !f.OK() {
		return FailedMarker
	}
	return f.Value
}

// ListingRow holds one listing as scraped from a search results page,
// before any cleaning. Link is the unique key and is empty when it could
// not be extracted.
type ListingRow struct {
	Title        Field
	TopRow       Field
	RoomInfo     Field
	Facilities   Field
	Price        Field
	Rating       Field
	ReviewNumber Field
	Link         string
	City         string
}

// Failures returns the names of the fields that failed to extract.
func (r ListingRow) Failures() []string {
	var out []string
	for _, f := range []struct {
		name  string
		field Field
	}{
		{"title", r.Title},
		{"toprow", r.TopRow},
		{"roominfo", r.RoomInfo},
		{"facilities", r.Facilities},
		{"price", r.Price},
		{"rating", r.Rating},
		{"reviewnumber", r.ReviewNumber},
	} {
		if !f.field.OK() {
			out = append(out, f.name)
		}
	}
	if r.Link == "" {
		out = append(out, "link")
	}
	return out
}

// Listing is one row of the clean table. Numeric columns use sql.Null*
// so a value that could not be parsed stays distinguishable from zero.
type Listing struct {
	Raw ListingRow

	Link string
	City string

	Name     string
	Location sql.NullString

	// Facilities counts bag-of-words tokens from the facilities summary.
	Facilities map[string]int

	RoomType         sql.NullString
	DetailedLocation sql.NullString

	Guests    sql.NullFloat64
	Bedrooms  sql.NullFloat64
	Beds      sql.NullFloat64
	Bathrooms sql.NullFloat64

	Price           sql.NullFloat64
	DiscountedPrice sql.NullFloat64
	Score           sql.NullFloat64
	ReviewNumber    sql.NullInt64

	Detail *ListingDetail
}

// ListingDetail holds the fields derived from the detail and amenities
// pages of a listing.
type ListingDetail struct {
	Description    string
	HostInfo       string
	DetailedScores []float64
	Reviews        []string
	ResponseTime   string
	ResponseRate   sql.NullFloat64
	Languages      []string
	Amenities      []string
	Failure        FailureKind
}

// InsightReport holds the computed analytics over the clean table.
type InsightReport struct {
	TotalListings   int
	ListingsByCity  map[string]int
	AveragePrice    float64
	MinPrice        float64
	MaxPrice        float64
	MostExpensive   *Listing
	DiscountedCount int
	AverageScore    float64
	TopRated        []*Listing
	DetailFailures  int
	DroppedOnJoin   int
	FieldFailures   map[string]int
}
