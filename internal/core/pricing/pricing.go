package pricing

import (
	"strings"

	"github.com/penwyp/go-claude-usage/internal/core/model"
)

// ModelPricing defines token pricing for a model, in USD per million tokens.
type ModelPricing struct {
	Input         float64
	Output        float64
	CacheCreation float64
	CacheRead     float64
}

// modelPricingMap stores pricing for known Claude models.
var modelPricingMap = map[string]ModelPricing{
	model.ModelDefault: {
		Input:         3.00,
		Output:        15.00,
		CacheCreation: 3.75,
		CacheRead:     0.30,
	},
	model.ModelSonnet35: {
		Input:         3.00,
		Output:        15.00,
		CacheCreation: 3.75,
		CacheRead:     0.30,
	},
	model.ModelHaiku35: {
		Input:         0.80,
		Output:        4.00,
		CacheCreation: 1.00,
		CacheRead:     0.08,
	},
	model.ModelSonnet4: {
		Input:         3.00,
		Output:        15.00,
		CacheCreation: 3.75,
		CacheRead:     0.30,
	},
	model.ModelOpus4: {
		Input:         15.00,
		Output:        75.00,
		CacheCreation: 18.75,
		CacheRead:     1.50,
	},
}

// familyPricing maps model family substrings to pricing for versions not
// listed explicitly.
var familyPricing = []struct {
	substr  string
	pricing ModelPricing
}{
	{"opus", ModelPricing{Input: 15.00, Output: 75.00, CacheCreation: 18.75, CacheRead: 1.50}},
	{"haiku", ModelPricing{Input: 0.80, Output: 4.00, CacheCreation: 1.00, CacheRead: 0.08}},
	{"sonnet", ModelPricing{Input: 3.00, Output: 15.00, CacheCreation: 3.75, CacheRead: 0.30}},
}

// GetPricing returns the pricing for a specific model. Unknown models
// fall back to their family, then to default Sonnet-class pricing.
func GetPricing(modelName string) ModelPricing {
	if pricing, ok := modelPricingMap[modelName]; ok {
		return pricing
	}
	lower := strings.ToLower(modelName)
	for _, f := range familyPricing {
		if strings.Contains(lower, f.substr) {
			return f.pricing
		}
	}
	return modelPricingMap[model.ModelDefault]
}

// GetAllPricings returns a copy of all known model pricings.
func GetAllPricings() map[string]ModelPricing {
	result := make(map[string]ModelPricing, len(modelPricingMap))
	for k, v := range modelPricingMap {
		result[k] = v
	}
	return result
}

// Cost computes the USD cost of a call given its token counts.
func (p ModelPricing) Cost(input, output, cacheCreation, cacheRead int) float64 {
	cost := float64(input) / 1_000_000 * p.Input
	cost += float64(output) / 1_000_000 * p.Output
	cost += float64(cacheCreation) / 1_000_000 * p.CacheCreation
	cost += float64(cacheRead) / 1_000_000 * p.CacheRead
	return cost
}
