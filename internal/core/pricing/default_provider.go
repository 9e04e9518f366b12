package pricing

import (
	"context"
)

// DefaultProvider implements Provider using the static pricing table,
// optionally patched with per-model overrides from configuration.
type DefaultProvider struct {
	overrides map[string]ModelPricing
}

// NewDefaultProvider creates a provider backed by the built-in table.
func NewDefaultProvider() Provider {
	return &DefaultProvider{}
}

// NewDefaultProviderWithOverrides creates a provider whose table is
// patched with the given per-model overrides.
func NewDefaultProviderWithOverrides(overrides map[string]ModelPricing) Provider {
	return &DefaultProvider{overrides: overrides}
}

// GetPricing returns the pricing for a specific model.
func (p *DefaultProvider) GetPricing(ctx context.Context, modelName string) (ModelPricing, error) {
	if override, ok := p.overrides[modelName]; ok {
		return override, nil
	}
	return GetPricing(modelName), nil
}

// GetAllPricings returns all available model pricings.
func (p *DefaultProvider) GetAllPricings(ctx context.Context) (map[string]ModelPricing, error) {
	all := GetAllPricings()
	for k, v := range p.overrides {
		all[k] = v
	}
	return all, nil
}

// GetProviderName returns the name of this pricing provider.
func (p *DefaultProvider) GetProviderName() string {
	return "default"
}
