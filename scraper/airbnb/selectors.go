package airbnb

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNotFound means a selector matched no element or attribute.
	ErrNotFound = errors.New("element not found")
	// ErrMalformed means the element exists but holds no usable value.
	ErrMalformed = errors.New("element malformed")

	// amenityNameRegexp takes the leading capitalised phrase, dropping the
	// explanation Airbnb glues onto some amenities ("WifiAvailable in ...").
	amenityNameRegexp = regexp.MustCompile(`[A-Z][^A-Z]*`)
	scoreRegexp       = regexp.MustCompile(`(\d)\.(\d+)`)
)

// ListingSelectors is the markup contract for search result pages. Each
// method reads exactly one field, so a markup change touches one method.
type ListingSelectors interface {
	Listings(page *goquery.Document) *goquery.Selection
	NextPage(page *goquery.Document) (string, error)

	Title(listing *goquery.Selection) (string, error)
	Link(listing *goquery.Selection) (string, error)
	TopRow(listing *goquery.Selection) (string, error)
	RoomInfo(listing *goquery.Selection) (string, error)
	Facilities(listing *goquery.Selection) (string, error)
	Price(listing *goquery.Selection) (string, error)
	Rating(listing *goquery.Selection) (string, error)
	ReviewNumber(listing *goquery.Selection) (string, error)
}

// DetailSelectors is the markup contract for the browser-rendered detail
// page and the amenities page linked from it.
type DetailSelectors interface {
	// ReadMore returns the selector of the "read more" buttons and the index
	// of the first one to click.
	ReadMore() (selector string, from int)
	AmenitiesLink(detail *goquery.Document) (string, error)

	Description(detail *goquery.Document) (string, error)
	HostInfo(detail *goquery.Document) (string, error)
	DetailedScores(detail *goquery.Document) []float64
	Reviews(detail *goquery.Document) []string
	ResponseInfo(detail *goquery.Document) (string, error)

	Amenities(amenities *goquery.Document) []string
}

// Markup2021 reads the Airbnb markup served in early 2021.
type Markup2021 struct{}

var (
	_ ListingSelectors = Markup2021{}
	_ DetailSelectors  = Markup2021{}
)

func (Markup2021) Listings(page *goquery.Document) *goquery.Selection {
	return page.Find("div._8ssblpx")
}

func (Markup2021) NextPage(page *goquery.Document) (string, error) {
	return attrOf(page.Find("a._za9j7e"), "href")
}

func (Markup2021) Title(listing *goquery.Selection) (string, error) {
	return attrOf(listing.Find("meta"), "content")
}

func (Markup2021) Link(listing *goquery.Selection) (string, error) {
	return attrOf(listing.Find("a"), "href")
}

func (Markup2021) TopRow(listing *goquery.Selection) (string, error) {
	return textOf(listing.Find("div._1tanv1h"))
}

func (Markup2021) RoomInfo(listing *goquery.Selection) (string, error) {
	return textOf(listing.Find("div._kqh46o"))
}

// Facilities is the second room-info line with spaces stripped, so each
// facility becomes a single token.
func (Markup2021) Facilities(listing *goquery.Selection) (string, error) {
	text, err := textOf(listing.Find("div._kqh46o").Eq(1))
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(text, " ", ""), nil
}

func (Markup2021) Price(listing *goquery.Selection) (string, error) {
	return textOf(listing.Find("div._1bbeetd"))
}

func (Markup2021) Rating(listing *goquery.Selection) (string, error) {
	return textOf(listing.Find("span._krjbj"))
}

func (Markup2021) ReviewNumber(listing *goquery.Selection) (string, error) {
	return textOf(listing.Find("span._krjbj").Eq(1))
}

func (Markup2021) ReadMore() (string, int) {
	return "._1d079j1e", 2
}

func (Markup2021) AmenitiesLink(detail *goquery.Document) (string, error) {
	return attrOf(detail.Find("._1v4ygly5"), "href")
}

func (Markup2021) Description(detail *goquery.Document) (string, error) {
	return textOf(detail.Find("div._eeq7h0"))
}

func (Markup2021) HostInfo(detail *goquery.Document) (string, error) {
	return textOf(detail.Find("._f47qa6"))
}

// DetailedScores reads up to six category scores. The label is glued to
// the score ("Cleanliness4.9"), so only the digit before the first dot and
// the digits after it are kept.
func (Markup2021) DetailedScores(detail *goquery.Document) []float64 {
	var scores []float64
	detail.Find("._a3qxec").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 6 {
			return false
		}
		m := scoreRegexp.FindStringSubmatch(s.Text())
		if m == nil {
			return false
		}
		v, err := strconv.ParseFloat(m[1]+"."+m[2], 64)
		if err != nil {
			return false
		}
		scores = append(scores, v)
		return true
	})
	return scores
}

func (Markup2021) Reviews(detail *goquery.Document) []string {
	var reviews []string
	detail.Find("._50mnu4").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			reviews = append(reviews, text)
		}
	})
	return reviews
}

func (Markup2021) ResponseInfo(detail *goquery.Document) (string, error) {
	return textOf(detail.Find("._jofnfy"))
}

func (Markup2021) Amenities(amenities *goquery.Document) []string {
	var out []string
	amenities.Find("._vzrbjl").Each(func(_ int, s *goquery.Selection) {
		if name := amenityNameRegexp.FindString(s.Text()); name != "" {
			out = append(out, strings.TrimSpace(name))
		}
	})
	return out
}

func textOf(s *goquery.Selection) (string, error) {
	if s.Length() == 0 {
		return "", ErrNotFound
	}
	text := strings.TrimSpace(s.First().Text())
	if text == "" {
		return "", ErrMalformed
	}
	return text, nil
}

func attrOf(s *goquery.Selection, name string) (string, error) {
	if s.Length() == 0 {
		return "", ErrNotFound
	}
	v, ok := s.First().Attr(name)
	if !ok {
		return "", ErrNotFound
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrMalformed
	}
	return v, nil
}

// Resolve turns a possibly relative href into an absolute URL against base.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: href %q: %v", ErrMalformed, href, err)
	}
	return b.ResolveReference(ref).String(), nil
}
