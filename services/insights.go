package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"airbnb-listings/models"
	"airbnb-listings/utils"
)

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// Generate computes the report over the final table. Missing prices and
// scores are left out of the statistics rather than counted as zero.
func (s *InsightService) Generate(listings []models.Listing, res *Result) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByCity: make(map[string]int),
		FieldFailures:  make(map[string]int),
	}
	if res != nil {
		report.DetailFailures = res.Details.Failed
		report.DroppedOnJoin = res.Join.Dropped
		for k, v := range res.FieldFailures {
			report.FieldFailures[k] = v
		}
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var priced, rated []*models.Listing
	for i := range listings {
		l := &listings[i]
		report.ListingsByCity[l.City]++
		if l.Price.Valid {
			priced = append(priced, l)
		}
		if l.Score.Valid {
			rated = append(rated, l)
		}
		if l.DiscountedPrice.Valid {
			report.DiscountedCount++
		}
	}

	if len(priced) > 0 {
		report.MinPrice = priced[0].Price.Float64
		report.MaxPrice = priced[0].Price.Float64
		report.MostExpensive = priced[0]
		var total float64
		for _, l := range priced {
			p := l.Price.Float64
			total += p
			if p < report.MinPrice {
				report.MinPrice = p
			}
			if p > report.MaxPrice {
				report.MaxPrice = p
				report.MostExpensive = l
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	if len(rated) > 0 {
		var total float64
		for _, l := range rated {
			total += l.Score.Float64
		}
		report.AverageScore = round2(total / float64(len(rated)))
	}

	// Top 5 by score, ties broken by review count
	sort.SliceStable(rated, func(i, j int) bool {
		if rated[i].Score.Float64 != rated[j].Score.Float64 {
			return rated[i].Score.Float64 > rated[j].Score.Float64
		}
		return rated[i].ReviewNumber.Int64 > rated[j].ReviewNumber.Int64
	})
	if len(rated) > 5 {
		report.TopRated = rated[:5]
	} else {
		report.TopRated = rated
	}

	s.logger.Debug("[insights] %d listings, %d priced, %d rated", len(listings), len(priced), len(rated))
	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 AIRBNB LISTINGS INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings in final table : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Discounted listings     : \033[1m%d\033[0m\n", r.DiscountedCount)
	fmt.Fprintf(w, "  Failed detail fetches   : \033[1m%d\033[0m\n", r.DetailFailures)
	fmt.Fprintf(w, "  Dropped at detail join  : \033[1m%d\033[0m\n", r.DroppedOnJoin)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (per night)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Name, 50))
		fmt.Fprintf(w, "  City     : %s\n", r.MostExpensive.City)
		fmt.Fprintf(w, "  Price    : \033[1;31m$%.2f/night\033[0m\n", r.MostExpensive.Price.Float64)
		fmt.Fprintln(w)
	}

	// ── TOP 5 HIGHEST RATED ──────────────────────────────────────────────
	fmt.Fprintf(w, "\033[1;33m  Top 5 Highest Rated Properties (avg %.2f)\033[0m\n", r.AverageScore)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Fprintf(w, "  No rated listings found\n")
	} else {
		for i, l := range r.TopRated {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%.2f ★\033[0m\n",
				i+1, truncate(l.Name, 38), l.Score.Float64)
		}
	}
	fmt.Fprintln(w)

	// Listings by City
	fmt.Fprintf(w, "\033[1;33m  Listings by City\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByCity) == 0 {
		fmt.Fprintf(w, "  No listings\n")
	} else {
		for _, kc := range byCount(r.ListingsByCity) {
			bar := strings.Repeat("█", kc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(kc.key, 28), bar, kc.count)
		}
	}

	if len(r.FieldFailures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Fields Not Extracted\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, kc := range byCount(r.FieldFailures) {
			fmt.Fprintf(w, "  %-30s %d\n", kc.key, kc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

type keyCount struct {
	key   string
	count int
}

// byCount sorts map entries by count descending, then key.
func byCount(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
