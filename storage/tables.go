package storage

import (
	"database/sql"
	"encoding/json"
	"strconv"

	"airbnb-listings/models"
)

// RawHeader is the column order of the raw listings dump.
var RawHeader = []string{
	"title", "toprow", "roominfo", "facilities", "price", "rating", "link", "reviewnumber", "city",
}

// RawRecord renders a scraped row; failed fields hold models.FailedMarker.
func RawRecord(r models.ListingRow) []string {
	return []string{
		r.Title.String(),
		r.TopRow.String(),
		r.RoomInfo.String(),
		r.Facilities.String(),
		r.Price.String(),
		r.Rating.String(),
		r.Link,
		r.ReviewNumber.String(),
		r.City,
	}
}

// FacilityColumn names the dummy column of a facility token.
func FacilityColumn(token string) string {
	return "facility_" + token
}

// ListingHeader is the column order of the clean table: identifying
// columns, facility dummies, typed listing columns, detail columns, and
// price, review count and link last.
func ListingHeader(vocabulary []string) []string {
	header := []string{"city", "name", "location"}
	for _, token := range vocabulary {
		header = append(header, FacilityColumn(token))
	}
	return append(header,
		"roomtype", "detailed_location",
		"guests", "bedrooms", "beds", "bathrooms",
		"discountedprice", "score",
		"description", "host_info", "detailed_scores", "reviews",
		"response_time", "response_rate", "languages", "amenities",
		"price", "reviewnumber", "link",
	)
}

// ListingRecord renders one clean row in ListingHeader order. Missing
// values are empty cells; list values are JSON arrays.
func ListingRecord(l *models.Listing, vocabulary []string) []string {
	row := []string{l.City, l.Name, nullString(l.Location)}
	for _, token := range vocabulary {
		row = append(row, strconv.Itoa(l.Facilities[token]))
	}
	row = append(row,
		nullString(l.RoomType), nullString(l.DetailedLocation),
		nullFloat(l.Guests), nullFloat(l.Bedrooms), nullFloat(l.Beds), nullFloat(l.Bathrooms),
		nullFloat(l.DiscountedPrice), nullFloat(l.Score),
	)

	d := l.Detail
	if d == nil {
		d = &models.ListingDetail{}
	}
	row = append(row,
		d.Description, d.HostInfo, jsonList(d.DetailedScores), jsonList(d.Reviews),
		d.ResponseTime, nullFloat(d.ResponseRate), jsonList(d.Languages), jsonList(d.Amenities),
	)

	return append(row, nullFloat(l.Price), nullInt(l.ReviewNumber), l.Link)
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func jsonList[T any](v []T) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
