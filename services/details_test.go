package services

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-listings/models"
	"airbnb-listings/scraper/airbnb"
)

const detailMarkup = `<html><body>
	<div class="_eeq7h0">A quiet cabin by the lake.</div>
	<div class="_f47qa6">Hosted by Jane Joined in May 2015</div>
	<span class="_a3qxec">Cleanliness4.9</span>
	<span class="_a3qxec">Accuracy5.0</span>
	<div class="_50mnu4">Lovely stay!</div>
	<div class="_50mnu4">Would come back.</div>
	<div class="_jofnfy">Language: English, FrançaisResponse rate: 100%Response time: within an hour</div>
	<a class="_1v4ygly5" href="/rooms/1/amenities">Show all amenities</a>
</body></html>`

const amenitiesMarkup = `<html><body>
	<div class="_vzrbjl">Wifi</div>
	<div class="_vzrbjl">KitchenSpace where guests can cook</div>
</body></html>`

func TestResponseInfo(t *testing.T) {
	info := "Language: English, FrançaisResponse rate: 100%Response time: within an hour"

	assert.Equal(t, "within an hour", ResponseTime(info))
	assert.Equal(t, sql.NullFloat64{Float64: 100, Valid: true}, ResponseRate(info))
	assert.Equal(t, []string{"English", "Français"}, Languages(info))
}

func TestResponseInfoAbsent(t *testing.T) {
	assert.Equal(t, "Unknown", ResponseTime(""))
	assert.False(t, ResponseRate("").Valid)
	assert.Nil(t, Languages(""))

	info := "Language: Deutsch"
	assert.Equal(t, []string{"Deutsch"}, Languages(info))
	assert.Equal(t, "Unknown", ResponseTime(info))
	assert.False(t, ResponseRate(info).Valid)
}

func TestResponseRateShortTail(t *testing.T) {
	assert.Equal(t, sql.NullFloat64{Float64: 90, Valid: true}, ResponseRate("Response rate: 90"))
	assert.False(t, ResponseRate("Response rate").Valid)
}

func TestDetailParserParse(t *testing.T) {
	p := NewDetailParser(airbnb.Markup2021{}, newTestLogger())

	d := p.Parse(models.DetailRecord{DetailsPage: detailMarkup, AmenitiesPage: amenitiesMarkup, Link: "l1"})
	require.NotNil(t, d)
	assert.Equal(t, models.FailureNone, d.Failure)
	assert.Equal(t, "A quiet cabin by the lake.", d.Description)
	assert.Equal(t, "Hosted by Jane Joined in May 2015", d.HostInfo)
	assert.Equal(t, []float64{4.9, 5.0}, d.DetailedScores)
	assert.Equal(t, []string{"Lovely stay!", "Would come back."}, d.Reviews)
	assert.Equal(t, "within an hour", d.ResponseTime)
	assert.Equal(t, []string{"English", "Français"}, d.Languages)
	assert.Equal(t, []string{"Wifi", "Kitchen"}, d.Amenities)
}

func TestDetailParserFailedRecord(t *testing.T) {
	p := NewDetailParser(airbnb.Markup2021{}, newTestLogger())

	d := p.Parse(models.FailedRecord("l1", models.FailureTimeout))
	assert.Equal(t, models.FailureTimeout, d.Failure)
	assert.Equal(t, "Unknown", d.ResponseTime)
	assert.Empty(t, d.Reviews)
}

func TestDetailParserEmptyPage(t *testing.T) {
	p := NewDetailParser(airbnb.Markup2021{}, newTestLogger())

	d := p.Parse(models.DetailRecord{DetailsPage: "<html></html>", AmenitiesPage: "", Link: "l1"})
	assert.Equal(t, models.FailureNone, d.Failure)
	assert.Equal(t, "", d.Description)
	assert.Equal(t, "Unknown", d.ResponseTime)
	assert.Empty(t, d.Amenities)
}
