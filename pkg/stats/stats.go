package stats

import (
	"math"

	"sitemap-monitor/pkg/models"
)

// Calculate aggregates results by status code and category.
// Every category is present in the output; percentages are rounded to one decimal and are
// all zero for an empty result set. Calculate has no side effects.
func Calculate(results []models.CheckResult) models.Stats {
	s := models.Stats{
		Total:            len(results),
		StatusCounts:     make(map[int]int),
		StatusCategories: make(map[models.StatusCategory]int, len(models.AllCategories)),
		Percentages:      make(map[models.StatusCategory]float64, len(models.AllCategories)),
	}
	for _, cat := range models.AllCategories {
		s.StatusCategories[cat] = 0
		s.Percentages[cat] = 0
	}

	for _, r := range results {
		s.StatusCounts[r.StatusCode]++
		s.StatusCategories[models.CategoryOf(r.StatusCode)]++
	}

	if s.Total == 0 {
		return s
	}
	for cat, count := range s.StatusCategories {
		s.Percentages[cat] = roundTo1(float64(count) * 100 / float64(s.Total))
	}
	return s
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
