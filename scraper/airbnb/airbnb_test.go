package airbnb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-listings/config"
	"airbnb-listings/utils"
)

func newTestScraper(baseURL string) *Scraper {
	return New(newTestWalker(10), NewExtractor(Markup2021{}, baseURL), utils.NewNopLogger())
}

func TestScrapeConcatenatesCitiesInOrder(t *testing.T) {
	first := chainServer(t, 3, 0)
	defer first.Close()
	second := chainServer(t, 2, 0)
	defer second.Close()

	s := newTestScraper(first.URL)
	rows, err := s.Scrape(context.Background(), []config.City{
		{Name: "Rutland", URL: first.URL + "/page/1"},
		{Name: "Burlington", URL: second.URL + "/page/1"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	var cities []string
	for _, r := range rows {
		cities = append(cities, r.City)
	}
	assert.Equal(t, []string{"Rutland", "Rutland", "Rutland", "Burlington", "Burlington"}, cities)
	assert.Equal(t, "Cabin 1 - null - Rutland", rows[0].Title.Value)
	assert.Equal(t, "Cabin 3 - null - Rutland", rows[2].Title.Value)
}

func TestScrapeSkipsUnreachableCity(t *testing.T) {
	srv := chainServer(t, 2, 0)
	defer srv.Close()

	s := newTestScraper(srv.URL)
	rows, err := s.Scrape(context.Background(), []config.City{
		{Name: "Nowhere", URL: srv.URL + "/missing"},
		{Name: "Rutland", URL: srv.URL + "/page/1"},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestScrapeFailsWhenEveryCityFails(t *testing.T) {
	srv := chainServer(t, 2, 0)
	defer srv.Close()

	_, err := newTestScraper(srv.URL).Scrape(context.Background(), []config.City{
		{Name: "Nowhere", URL: srv.URL + "/missing"},
	})
	assert.Error(t, err)
}
