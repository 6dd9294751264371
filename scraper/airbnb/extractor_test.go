package airbnb

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-listings/models"
)

func extractOne(t *testing.T, c card) models.ListingRow {
	t.Helper()
	doc := parse(t, resultsPage("", c))
	rows := NewExtractor(Markup2021{}, "https://airbnb.com").ExtractPage(doc)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestExtractAllFields(t *testing.T) {
	row := extractOne(t, fullCard(7))

	assert.Equal(t, models.Text("Cabin 7 - null - Rutland"), row.Title)
	assert.Equal(t, models.Text("Entire cabin in Rutland"), row.TopRow)
	assert.Equal(t, models.Text("4 guests · 2 bedrooms · 3 beds · 1.5 baths"), row.RoomInfo)
	assert.Equal(t, models.Text("Wifi·Kitchen·Freeparking"), row.Facilities)
	assert.Equal(t, models.Text("$123.45 Discounted $99.00"), row.Price)
	assert.Equal(t, models.Text("Rating 4.85 out of 5;"), row.Rating)
	assert.Equal(t, models.Text("120 reviews"), row.ReviewNumber)
	assert.Equal(t, "https://airbnb.com/rooms/7?adults=2", row.Link)
	assert.Empty(t, row.Failures())
}

func TestExtractIsolatesMissingField(t *testing.T) {
	tests := []struct {
		name   string
		strip  func(*card)
		failed func(models.ListingRow) models.Field
	}{
		{"title", func(c *card) { c.Title = "" }, func(r models.ListingRow) models.Field { return r.Title }},
		{"toprow", func(c *card) { c.TopRow = "" }, func(r models.ListingRow) models.Field { return r.TopRow }},
		{"price", func(c *card) { c.Price = "" }, func(r models.ListingRow) models.Field { return r.Price }},
		{"reviewnumber", func(c *card) { c.Reviews = "" }, func(r models.ListingRow) models.Field { return r.ReviewNumber }},
		{"facilities", func(c *card) { c.Facilities = "" }, func(r models.ListingRow) models.Field { return r.Facilities }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fullCard(3)
			tt.strip(&c)
			row := extractOne(t, c)

			f := tt.failed(row)
			assert.False(t, f.OK())
			assert.Equal(t, models.FailureMissing, f.Failure)
			assert.Equal(t, models.FailedMarker, f.String())
			assert.Equal(t, []string{tt.name}, row.Failures())
			assert.Equal(t, "https://airbnb.com/rooms/3?adults=2", row.Link)
		})
	}
}

func TestExtractEmptyElementIsMalformed(t *testing.T) {
	c := fullCard(1)
	c.Price = "   "
	row := extractOne(t, c)

	assert.Equal(t, models.FailureMalformed, row.Price.Failure)
	assert.True(t, row.Rating.OK())
}

func TestExtractMissingLinkKeepsRow(t *testing.T) {
	c := fullCard(0)
	row := extractOne(t, c)

	assert.Empty(t, row.Link)
	assert.Equal(t, []string{"link"}, row.Failures())
	assert.True(t, row.Title.OK())
}

type panickySelectors struct{ Markup2021 }

func (panickySelectors) Rating(*goquery.Selection) (string, error) { panic("selector bug") }

func TestExtractRecoversFromPanickingSelector(t *testing.T) {
	doc := parse(t, resultsPage("", fullCard(2)))
	rows := NewExtractor(panickySelectors{}, "https://airbnb.com").ExtractPage(doc)
	require.Len(t, rows, 1)

	assert.Equal(t, models.FailureMalformed, rows[0].Rating.Failure)
	assert.True(t, rows[0].Price.OK())
}

func TestAggregateKeepsPageOrderAndStampsCity(t *testing.T) {
	p1 := parse(t, resultsPage("/page2", fullCard(1), fullCard(2)))
	p2 := parse(t, resultsPage("", fullCard(3)))

	rows := NewExtractor(Markup2021{}, "https://airbnb.com").Aggregate([]*goquery.Document{p1, p2}, "Rutland")
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, "Rutland", r.City)
		assert.Contains(t, r.Link, "/rooms/")
		assert.Equal(t, models.Text(fullCard(i+1).Title), r.Title)
	}
}

func TestDetailSelectors(t *testing.T) {
	detail := parse(t, detailPage("/rooms/1/amenities"))
	amen := parse(t, amenitiesPage)
	sel := Markup2021{}

	desc, err := sel.Description(detail)
	require.NoError(t, err)
	assert.Equal(t, "A quiet cabin by the lake.", desc)

	host, err := sel.HostInfo(detail)
	require.NoError(t, err)
	assert.Equal(t, "Hosted by Jane Joined in May 2015", host)

	assert.Equal(t, []float64{4.9, 5.0}, sel.DetailedScores(detail))
	assert.Equal(t, []string{"Lovely stay!", "Would come back."}, sel.Reviews(detail))

	info, err := sel.ResponseInfo(detail)
	require.NoError(t, err)
	assert.Contains(t, info, "Response rate: 100%")

	href, err := sel.AmenitiesLink(detail)
	require.NoError(t, err)
	assert.Equal(t, "/rooms/1/amenities", href)

	assert.Equal(t, []string{"Wifi", "Kitchen", "Free parking on premises"}, sel.Amenities(amen))

	_, err = sel.ResponseInfo(amen)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve(t *testing.T) {
	got, err := Resolve("https://www.airbnb.com/s/Rutland/homes?page=1", "/s/Rutland/homes?page=2")
	require.NoError(t, err)
	assert.Equal(t, "https://www.airbnb.com/s/Rutland/homes?page=2", got)

	got, err = Resolve("https://www.airbnb.com/rooms/1", "https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", got)
}
