package services

import (
	"database/sql"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"airbnb-listings/models"
	"airbnb-listings/utils"
)

// facilityTokenRegexp splits the facilities summary into bag-of-words
// tokens of two or more word characters.
var facilityTokenRegexp = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Stage is one table transform of the cleaning chain. A stage never
// mutates its input; it returns a new table.
type Stage struct {
	Name  string
	Apply func(rows []models.Listing) []models.Listing
}

// Stages returns the cleaning chain in the order it must run.
func Stages() []Stage {
	return []Stage{
		{"title", CleanTitle},
		{"facilities", CleanFacilities},
		{"toprow", CleanTopRow},
		{"roominfo", CleanRoomInfo},
		{"price", CleanPrice},
		{"rating", CleanRating},
		{"reviewnumber", CleanReviewNumber},
	}
}

// Cleaner turns scraped listing rows into typed clean rows.
type Cleaner struct {
	stages []Stage
	logger *utils.Logger
}

// NewCleaner creates a Cleaner running the default stages.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{stages: Stages(), logger: logger.With("component", "cleaner")}
}

// Clean drops rows without a link, keeps the first row of each link, runs
// every stage and returns the table with its facility vocabulary.
func (c *Cleaner) Clean(raw []models.ListingRow) ([]models.Listing, []string) {
	seen := make(map[string]struct{}, len(raw))
	rows := make([]models.Listing, 0, len(raw))
	noLink, dups := 0, 0

	for _, r := range raw {
		link := strings.TrimSpace(r.Link)
		if link == "" {
			noLink++
			c.logger.Warn("[cleaner] Dropping listing with no link: %s", r.Title.Value)
			continue
		}
		if _, dup := seen[link]; dup {
			dups++
			c.logger.Debug("[cleaner] Duplicate link skipped: %s", link)
			continue
		}
		seen[link] = struct{}{}
		rows = append(rows, models.Listing{Raw: r, Link: link, City: r.City})
	}

	for _, s := range c.stages {
		rows = s.Apply(rows)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (%d without link, %d duplicates)",
		len(raw), len(rows), noLink, dups)
	return rows, Vocabulary(rows)
}

// mapRows copies rows and applies fn to each copy.
func mapRows(rows []models.Listing, fn func(l *models.Listing)) []models.Listing {
	out := make([]models.Listing, len(rows))
	copy(out, rows)
	for i := range out {
		fn(&out[i])
	}
	return out
}

// CleanTitle splits the title into name and location.
func CleanTitle(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		if !l.Raw.Title.OK() {
			return
		}
		l.Name, l.Location = ParseTitle(l.Raw.Title.Value)
	})
}

// CleanFacilities counts the facility tokens of each row.
func CleanFacilities(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		l.Facilities = make(map[string]int)
		if !l.Raw.Facilities.OK() {
			return
		}
		for _, token := range FacilityTokens(l.Raw.Facilities.Value) {
			l.Facilities[token]++
		}
	})
}

// CleanTopRow splits the top row into room type and detailed location.
func CleanTopRow(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		if !l.Raw.TopRow.OK() {
			return
		}
		l.RoomType, l.DetailedLocation = ParseTopRow(l.Raw.TopRow.Value)
	})
}

// CleanRoomInfo parses guests, bedrooms, beds and bathrooms.
func CleanRoomInfo(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		if !l.Raw.RoomInfo.OK() {
			return
		}
		info := ParseRoomInfo(l.Raw.RoomInfo.Value)
		l.Guests, l.Bedrooms, l.Beds, l.Bathrooms = info[0], info[1], info[2], info[3]
	})
}

// CleanPrice parses the nightly price and the discounted price.
func CleanPrice(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		if !l.Raw.Price.OK() {
			return
		}
		l.Price, l.DiscountedPrice = ParsePrice(l.Raw.Price.Value)
	})
}

// CleanRating parses the score.
func CleanRating(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		if !l.Raw.Rating.OK() {
			return
		}
		l.Score = ParseRating(l.Raw.Rating.Value)
	})
}

// CleanReviewNumber parses the review count.
func CleanReviewNumber(rows []models.Listing) []models.Listing {
	return mapRows(rows, func(l *models.Listing) {
		if !l.Raw.ReviewNumber.OK() {
			return
		}
		l.ReviewNumber = ParseReviewNumber(l.Raw.ReviewNumber.Value)
	})
}

// ParseTitle splits "Name - null - Location" into its two halves. The
// location is missing when the separator is absent.
func ParseTitle(s string) (string, sql.NullString) {
	parts := strings.Split(s, " null ")
	name := strings.TrimSpace(strings.ReplaceAll(parts[0], "-", ""))
	if len(parts) < 2 {
		return name, sql.NullString{}
	}
	loc := strings.TrimSpace(strings.ReplaceAll(parts[1], "-", ""))
	return name, sql.NullString{String: loc, Valid: loc != ""}
}

// FacilityTokens lowercases s and returns its word tokens.
func FacilityTokens(s string) []string {
	return facilityTokenRegexp.FindAllString(strings.ToLower(s), -1)
}

// Vocabulary returns the sorted set of facility tokens across rows.
func Vocabulary(rows []models.Listing) []string {
	set := make(map[string]struct{})
	for _, l := range rows {
		for token := range l.Facilities {
			set[token] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(set))
	for token := range set {
		vocab = append(vocab, token)
	}
	sort.Strings(vocab)
	return vocab
}

// ParseTopRow splits "Entire cabin in Rutland" on " in ".
func ParseTopRow(s string) (sql.NullString, sql.NullString) {
	parts := strings.Split(s, " in ")
	roomType := nullString(parts[0])
	if len(parts) < 2 {
		return roomType, sql.NullString{}
	}
	return roomType, nullString(parts[1])
}

// ParseRoomInfo reads "4 guests · 2 bedrooms · 3 beds · 1.5 baths" into
// guests, bedrooms, beds and bathrooms. Each part is the number it starts
// with; anything else ("Studio", "Half-bath") is missing.
func ParseRoomInfo(s string) [4]sql.NullFloat64 {
	var out [4]sql.NullFloat64
	for i, part := range strings.Split(s, "·") {
		if i >= len(out) {
			break
		}
		out[i] = leadingNumber(part)
	}
	return out
}

// ParsePrice reads "$123.45 Discounted $99.00". The discounted price is
// missing when the listing has no discount.
func ParsePrice(s string) (price, discounted sql.NullFloat64) {
	before, after, found := strings.Cut(s, "Discounted")
	price = dollarAmount(before)
	if found {
		discounted = dollarAmount(after)
	}
	return price, discounted
}

// ParseRating reads the score from "Rating 4.85 out of 5;". A listing
// without reviews ("New") has no score.
func ParseRating(s string) sql.NullFloat64 {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return sql.NullFloat64{}
	}
	return parseFloat(strings.TrimSuffix(fields[1], ";"))
}

// ParseReviewNumber reads the count from "120 reviews" or "(120)".
func ParseReviewNumber(s string) sql.NullInt64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return sql.NullInt64{}
	}
	token := strings.ReplaceAll(strings.Trim(fields[0], "()"), ",", "")
	n, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

func dollarAmount(s string) sql.NullFloat64 {
	_, amount, found := strings.Cut(s, "$")
	if !found {
		return sql.NullFloat64{}
	}
	amount, _, _ = strings.Cut(amount, "/")
	return leadingNumber(strings.ReplaceAll(amount, ",", ""))
}

func leadingNumber(s string) sql.NullFloat64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return sql.NullFloat64{}
	}
	return parseFloat(fields[0])
}

func parseFloat(s string) sql.NullFloat64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
