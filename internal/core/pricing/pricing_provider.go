package pricing

import "context"

// Provider resolves per-model token pricing. Implementations must be
// safe for concurrent use; the parser calls GetPricing from worker
// goroutines.
type Provider interface {
	GetPricing(ctx context.Context, modelName string) (ModelPricing, error)
	GetAllPricings(ctx context.Context) (map[string]ModelPricing, error)
	GetProviderName() string
}
