// Package credits converts stored forest carbon into illustrative carbon-credit
// market estimates, project classifications and development suggestions.
package credits

import "math"

// ProjectSize buckets a project by its CO2-equivalent volume.
type ProjectSize string

// Project sizes.
const (
	SizeSmall  ProjectSize = "small"
	SizeMedium ProjectSize = "medium"
	SizeLarge  ProjectSize = "large"
)

// Complexity is the development effort that goes with a ProjectSize.
type Complexity string

// Complexity levels.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// TierEstimate is the market value of a project's credits within one tier.
type TierEstimate struct {
	Min            float64    `json:"min" yaml:"min"`
	Avg            float64    `json:"avg" yaml:"avg"`
	Max            float64    `json:"max" yaml:"max"`
	Credits        float64    `json:"credits" yaml:"credits"`
	PricePerCredit MarketTier `json:"price_per_credit" yaml:"price_per_credit"`
}

// Estimate is the credit valuation for a quantity of stored carbon.
type Estimate struct {
	CarbonTonnes             float64               `json:"carbon_tonnes" yaml:"carbon_tonnes"`
	CO2EquivalentTonnes      float64               `json:"co2_equivalent_tonnes" yaml:"co2_equivalent_tonnes"`
	CreditEstimates          map[Tier]TierEstimate `json:"credit_estimates" yaml:"credit_estimates"`
	ProjectSize              ProjectSize           `json:"project_size" yaml:"project_size"`
	ProjectComplexity        Complexity            `json:"project_complexity" yaml:"project_complexity"`
	RecommendedMethodologies []Methodology         `json:"recommended_methodologies" yaml:"recommended_methodologies"`
	AllMethodologies         []Methodology         `json:"all_methodologies" yaml:"all_methodologies"`
	ConversionFactor         float64               `json:"conversion_factor" yaml:"conversion_factor"`
	MarketInfo               MarketInfo            `json:"market_info" yaml:"market_info"`
}

// EstimateCredits values carbonTonnes of stored carbon on each market tier.
// It reports false when no estimate is possible: zero, negative, NaN or
// infinite input. The result shares no memory with the static tables.
func EstimateCredits(carbonTonnes float64) (*Estimate, bool) {
	if math.IsNaN(carbonTonnes) || math.IsInf(carbonTonnes, 0) || carbonTonnes <= 0 {
		return nil, false
	}

	co2 := carbonTonnes * CarbonToCO2Factor

	estimates := make(map[Tier]TierEstimate, len(marketTiers))
	for tier, price := range marketTiers {
		estimates[tier] = TierEstimate{
			Min:            co2 * price.Min,
			Avg:            co2 * price.Avg,
			Max:            co2 * price.Max,
			Credits:        co2,
			PricePerCredit: price,
		}
	}

	size, complexity := Classify(co2)

	return &Estimate{
		CarbonTonnes:             carbonTonnes,
		CO2EquivalentTonnes:      co2,
		CreditEstimates:          estimates,
		ProjectSize:              size,
		ProjectComplexity:        complexity,
		RecommendedMethodologies: recommend(size),
		AllMethodologies:         Methodologies(),
		ConversionFactor:         CarbonToCO2Factor,
		MarketInfo:               marketInfo,
	}, true
}

// Classify maps a CO2e volume to a project size and complexity.
// Intervals are [100000, inf) large, [10000, 100000) medium, else small.
func Classify(co2Tonnes float64) (ProjectSize, Complexity) {
	switch {
	case co2Tonnes >= largeProjectMinCO2:
		return SizeLarge, ComplexityHigh
	case co2Tonnes >= mediumProjectMinCO2:
		return SizeMedium, ComplexityMedium
	default:
		return SizeSmall, ComplexityLow
	}
}

// recommend picks methodologies in catalogue order. Large projects accept
// every entry; others skip low-suitability ones. No catalogue entry is
// currently graded low, so this always yields the first two entries.
func recommend(size ProjectSize) []Methodology {
	out := make([]Methodology, 0, maxRecommendedMethodologies)
	for _, m := range methodologies {
		if len(out) == maxRecommendedMethodologies {
			break
		}
		if size == SizeLarge || m.Suitability != SuitabilityLow {
			out = append(out, m.clone())
		}
	}
	return out
}
