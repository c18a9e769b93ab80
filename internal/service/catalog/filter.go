package catalog

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
)

// Filter keys accepted by Apply. Any other value behaves like FilterShowAll.
const (
	FilterShowAll   = "Show all"
	FilterNameAsc   = "A to Z"
	FilterNameDesc  = "Z to A"
	FilterCheap     = "Less than 10$"
	FilterExpensive = "Greater than 10$"
	FilterPopular   = "Popular"
	FilterUnpopular = "Not popular"
)

const priceThreshold = 10

// Apply returns a new slice ordered or narrowed according to the filter key.
// The input is never mutated and all sorts are stable, so ties keep their
// original relative order.
func Apply(profiles []domain.Psychologist, filter string) []domain.Psychologist {
	out := make([]domain.Psychologist, len(profiles))
	copy(out, profiles)

	switch filter {
	case FilterNameAsc:
		c := collate.New(language.Und)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Name, out[j].Name) < 0
		})
	case FilterNameDesc:
		c := collate.New(language.Und)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Name, out[j].Name) > 0
		})
	case FilterCheap:
		out = keepPrice(out, func(price float64) bool { return price < priceThreshold })
	case FilterExpensive:
		out = keepPrice(out, func(price float64) bool { return price > priceThreshold })
	case FilterPopular:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Rating > out[j].Rating
		})
	case FilterUnpopular:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Rating < out[j].Rating
		})
	}
	return out
}

func keepPrice(profiles []domain.Psychologist, keep func(float64) bool) []domain.Psychologist {
	filtered := profiles[:0]
	for _, profile := range profiles {
		if keep(profile.PricePerHour) {
			filtered = append(filtered, profile)
		}
	}
	return filtered
}
