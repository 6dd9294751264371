package services

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"airbnb-listings/models"
	"airbnb-listings/scraper/airbnb"
	"airbnb-listings/utils"
)

const (
	languagePrefix = len("Language: ")
	responseOffset = len("Response time: ")
	rateDigits     = 5
)

// DetailParser derives the detail columns of the clean table from the raw
// markup kept in the detail file.
type DetailParser struct {
	sel    airbnb.DetailSelectors
	logger *utils.Logger
}

// NewDetailParser creates a DetailParser reading markup through sel.
func NewDetailParser(sel airbnb.DetailSelectors, logger *utils.Logger) *DetailParser {
	return &DetailParser{sel: sel, logger: logger.With("component", "detail-parser")}
}

// Parse reads one record. A failed record yields a detail holding only
// its failure kind; a field missing from the page stays empty.
func (p *DetailParser) Parse(rec models.DetailRecord) *models.ListingDetail {
	if !rec.OK() {
		return &models.ListingDetail{Failure: rec.Failure, ResponseTime: ResponseTime("")}
	}

	d := &models.ListingDetail{}
	page, err := goquery.NewDocumentFromReader(strings.NewReader(rec.DetailsPage))
	if err != nil {
		p.logger.Warn("[details] %s: unreadable detail page: %v", rec.Link, err)
		d.Failure = models.FailureMalformed
		d.ResponseTime = ResponseTime("")
		return d
	}

	d.Description, _ = p.sel.Description(page)
	d.HostInfo, _ = p.sel.HostInfo(page)
	d.DetailedScores = p.sel.DetailedScores(page)
	d.Reviews = p.sel.Reviews(page)

	info, _ := p.sel.ResponseInfo(page)
	d.ResponseTime = ResponseTime(info)
	d.ResponseRate = ResponseRate(info)
	d.Languages = Languages(info)

	amenities, err := goquery.NewDocumentFromReader(strings.NewReader(rec.AmenitiesPage))
	if err != nil {
		p.logger.Warn("[details] %s: unreadable amenities page: %v", rec.Link, err)
		return d
	}
	d.Amenities = p.sel.Amenities(amenities)
	return d
}

// ResponseTime returns the text following "Response time: ", up to the next
// "Response" label, or "Unknown".
func ResponseTime(info string) string {
	idx := strings.Index(info, "Response time")
	if idx < 0 || idx+responseOffset > len(info) {
		return "Unknown"
	}
	rest := info[idx+responseOffset:]
	if end := strings.Index(rest, "Response"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// ResponseRate returns the percentage following "Response rate: ".
func ResponseRate(info string) sql.NullFloat64 {
	idx := strings.Index(info, "Response rate")
	if idx < 0 {
		return sql.NullFloat64{}
	}
	start := idx + responseOffset
	end := start + rateDigits
	if start > len(info) {
		return sql.NullFloat64{}
	}
	if end > len(info) {
		end = len(info)
	}

	var digits strings.Builder
	for _, r := range info[start:end] {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Languages returns the comma separated list following "Language: ", up to
// the first "Response" label. It is nil when the host lists none.
func Languages(info string) []string {
	idx := strings.Index(info, "Language")
	if idx < 0 {
		return nil
	}
	start := idx + languagePrefix
	if start > len(info) {
		return nil
	}
	rest := info[start:]
	if end := strings.Index(rest, "Response"); end >= 0 {
		rest = rest[:end]
	}

	var out []string
	for _, lang := range strings.Split(rest, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}
