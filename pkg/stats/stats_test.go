package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sitemap-monitor/pkg/models"
)

func results(codes ...int) []models.CheckResult {
	out := make([]models.CheckResult, len(codes))
	for i, code := range codes {
		out[i] = models.CheckResult{URL: "https://example.com/" + string(rune('a'+i)), StatusCode: code}
	}
	return out
}

func TestCalculate_Empty(t *testing.T) {
	s := Calculate(nil)

	assert.Equal(t, 0, s.Total)
	assert.Empty(t, s.StatusCounts)
	for _, cat := range models.AllCategories {
		assert.Equal(t, 0, s.StatusCategories[cat], cat)
		assert.Equal(t, 0.0, s.Percentages[cat], cat)
	}
}

func TestCalculate_Buckets(t *testing.T) {
	s := Calculate(results(200, 200, 204, 301, 404, 410, 500, 0, 0, 999))

	assert.Equal(t, 10, s.Total)
	assert.Equal(t, map[int]int{200: 2, 204: 1, 301: 1, 404: 1, 410: 1, 500: 1, 0: 2, 999: 1}, s.StatusCounts)
	assert.Equal(t, map[models.StatusCategory]int{
		models.CategorySuccess:     3,
		models.CategoryRedirect:    1,
		models.CategoryClientError: 2,
		models.CategoryServerError: 1,
		models.CategoryOther:       3,
	}, s.StatusCategories)
	assert.Equal(t, 30.0, s.Percentages[models.CategorySuccess])
	assert.Equal(t, 10.0, s.Percentages[models.CategoryRedirect])
	assert.Equal(t, 20.0, s.Percentages[models.CategoryClientError])
	assert.Equal(t, 10.0, s.Percentages[models.CategoryServerError])
	assert.Equal(t, 30.0, s.Percentages[models.CategoryOther])
}

func TestCalculate_RoundsToOneDecimal(t *testing.T) {
	s := Calculate(results(200, 404, 500))

	assert.Equal(t, 33.3, s.Percentages[models.CategorySuccess])
	assert.Equal(t, 33.3, s.Percentages[models.CategoryClientError])
	assert.Equal(t, 0.0, s.Percentages[models.CategoryRedirect])
}

func TestCalculate_SumsMatchTotal(t *testing.T) {
	sets := [][]int{
		{200},
		{200, 404, 500},
		{200, 200, 301, 302, 404, 0, 503},
		{0, 0, 0, 0, 0, 0, 200},
	}
	for _, codes := range sets {
		s := Calculate(results(codes...))

		catSum := 0
		for _, n := range s.StatusCategories {
			catSum += n
		}
		assert.Equal(t, s.Total, catSum)

		pctSum := 0.0
		for _, p := range s.Percentages {
			pctSum += p
		}
		assert.InDelta(t, 100.0, pctSum, 0.5, "codes %v", codes)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	in := results(200, 301, 404, 0, 500, 200)

	first := Calculate(in)
	second := Calculate(in)

	assert.Equal(t, first, second)
}
