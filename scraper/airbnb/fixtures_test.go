package airbnb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// card describes one search-result listing. Empty strings leave the
// corresponding element out of the markup.
type card struct {
	ID         int
	Title      string
	TopRow     string
	RoomInfo   string
	Facilities string
	Price      string
	Rating     string
	Reviews    string
}

func fullCard(id int) card {
	return card{
		ID:         id,
		Title:      fmt.Sprintf("Cabin %d - null - Rutland", id),
		TopRow:     "Entire cabin in Rutland",
		RoomInfo:   "4 guests · 2 bedrooms · 3 beds · 1.5 baths",
		Facilities: "Wifi · Kitchen · Free parking",
		Price:      "$123.45 Discounted $99.00",
		Rating:     "Rating 4.85 out of 5;",
		Reviews:    "120 reviews",
	}
}

func (c card) html() string {
	var b strings.Builder
	b.WriteString(`<div class="_8ssblpx">`)
	if c.ID > 0 {
		fmt.Fprintf(&b, `<a href="/rooms/%d?adults=2">open</a>`, c.ID)
	}
	if c.Title != "" {
		fmt.Fprintf(&b, `<meta itemprop="name" content="%s">`, c.Title)
	}
	if c.TopRow != "" {
		fmt.Fprintf(&b, `<div class="_1tanv1h">%s</div>`, c.TopRow)
	}
	if c.RoomInfo != "" {
		fmt.Fprintf(&b, `<div class="_kqh46o">%s</div>`, c.RoomInfo)
	}
	if c.Facilities != "" {
		fmt.Fprintf(&b, `<div class="_kqh46o">%s</div>`, c.Facilities)
	}
	if c.Price != "" {
		fmt.Fprintf(&b, `<div class="_1bbeetd">%s</div>`, c.Price)
	}
	if c.Rating != "" {
		fmt.Fprintf(&b, `<span class="_krjbj">%s</span>`, c.Rating)
	}
	if c.Reviews != "" {
		fmt.Fprintf(&b, `<span class="_krjbj">%s</span>`, c.Reviews)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func resultsPage(next string, cards ...card) string {
	var b strings.Builder
	b.WriteString(`<html><body><main>`)
	for _, c := range cards {
		b.WriteString(c.html())
	}
	b.WriteString(`</main>`)
	if next != "" {
		fmt.Fprintf(&b, `<nav><a class="_za9j7e" href="%s">Next</a></nav>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func detailPage(amenitiesHref string) string {
	return `<html><body>
		<div class="_eeq7h0">A quiet cabin by the lake.</div>
		<div class="_f47qa6">Hosted by Jane Joined in May 2015</div>
		<span class="_a3qxec">Cleanliness4.9</span>
		<span class="_a3qxec">Accuracy5.0</span>
		<div class="_50mnu4">Lovely stay!</div>
		<div class="_50mnu4">Would come back.</div>
		<div class="_jofnfy">Language: English, FrançaisResponse rate: 100%Response time: within an hour</div>
		<a class="_1v4ygly5" href="` + amenitiesHref + `">Show all amenities</a>
	</body></html>`
}

const amenitiesPage = `<html><body>
	<div class="_vzrbjl">Wifi</div>
	<div class="_vzrbjl">KitchenSpace where guests can cook</div>
	<div class="_vzrbjl">Free parking on premises</div>
</body></html>`
