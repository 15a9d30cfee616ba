package credits

// CarbonToCO2Factor converts tonnes of stored carbon to tonnes of CO2
// equivalent (molecular weight ratio 44/12, rounded).
const CarbonToCO2Factor = 3.67

// Project size thresholds in tonnes CO2e. Each bound is inclusive.
const (
	largeProjectMinCO2  = 100_000
	mediumProjectMinCO2 = 10_000
)

// financialSuggestionMinValue is the voluntary-market average value (USD)
// above which the revenue suggestion is emitted.
const financialSuggestionMinValue = 100_000

// maxRecommendedMethodologies caps Estimate.RecommendedMethodologies.
const maxRecommendedMethodologies = 2

// Tier names a carbon market price band.
type Tier string

// Market tiers.
const (
	TierVoluntary   Tier = "voluntary"
	TierCompliance  Tier = "compliance"
	TierHighQuality Tier = "high_quality"
)

// Suitability grades how well a methodology fits a forest carbon project.
type Suitability string

// Suitability grades.
const (
	SuitabilityLow    Suitability = "low"
	SuitabilityMedium Suitability = "medium"
	SuitabilityHigh   Suitability = "high"
)

// MarketTier holds unit prices in USD per tonne CO2e.
type MarketTier struct {
	Min         float64 `json:"min" yaml:"min"`
	Avg         float64 `json:"avg" yaml:"avg"`
	Max         float64 `json:"max" yaml:"max"`
	Description string  `json:"description" yaml:"description"`
}

// Methodology describes a certification standard a project can register under.
type Methodology struct {
	Name         string      `json:"name" yaml:"name"`
	Organization string      `json:"organization" yaml:"organization"`
	Suitability  Suitability `json:"suitability" yaml:"suitability"`
	Description  string      `json:"description" yaml:"description"`
	Requirements []string    `json:"requirements" yaml:"requirements"`
	Timeline     string      `json:"timeline" yaml:"timeline"`
	CostEstimate string      `json:"cost_estimate" yaml:"cost_estimate"`
	Website      string      `json:"website" yaml:"website"`
}

// MarketInfo qualifies the price table.
type MarketInfo struct {
	Note        string `json:"note" yaml:"note"`
	LastUpdated string `json:"last_updated" yaml:"last_updated"`
}

// tierOrder is the canonical iteration order for tiers.
var tierOrder = []Tier{TierVoluntary, TierCompliance, TierHighQuality}

// marketTiers are 2024 estimates. Read only; hand out copies via Tiers.
var marketTiers = map[Tier]MarketTier{
	TierVoluntary: {
		Min:         5,
		Avg:         15,
		Max:         50,
		Description: "Voluntary carbon market (VCM) - varies by project type and quality",
	},
	TierCompliance: {
		Min:         20,
		Avg:         40,
		Max:         100,
		Description: "Compliance markets (e.g., California Cap-and-Trade, EU ETS)",
	},
	TierHighQuality: {
		Min:         25,
		Avg:         35,
		Max:         80,
		Description: "High-quality credits (VCS, Gold Standard certified)",
	},
}

// methodologies is the catalogue in recommendation order. Read only; hand
// out copies via Methodologies.
var methodologies = []Methodology{
	{
		Name:         "VCS (Verified Carbon Standard)",
		Organization: "Verra",
		Suitability:  SuitabilityHigh,
		Description:  "Most widely used voluntary carbon standard. Good for forest carbon projects.",
		Requirements: []string{
			"Project documentation and monitoring plan",
			"Third-party verification",
			"Additionality demonstration",
			"Permanence safeguards (buffer pool)",
		},
		Timeline:     "12-24 months",
		CostEstimate: "$50,000 - $200,000+",
		Website:      "https://verra.org",
	},
	{
		Name:         "Gold Standard",
		Organization: "Gold Standard Foundation",
		Suitability:  SuitabilityHigh,
		Description:  "Premium standard with strong social and environmental co-benefits.",
		Requirements: []string{
			"VCS requirements plus",
			"Social impact assessment",
			"Stakeholder engagement",
			"Sustainable Development Goals alignment",
		},
		Timeline:     "18-30 months",
		CostEstimate: "$75,000 - $250,000+",
		Website:      "https://www.goldstandard.org",
	},
	{
		Name:         "CAR (Climate Action Reserve)",
		Organization: "Climate Action Reserve",
		Suitability:  SuitabilityMedium,
		Description:  "US-focused standard, good for North American projects.",
		Requirements: []string{
			"Project protocol compliance",
			"Third-party verification",
			"Registry account setup",
		},
		Timeline:     "12-18 months",
		CostEstimate: "$40,000 - $150,000+",
		Website:      "https://www.climateactionreserve.org",
	},
	{
		Name:         "ACR (American Carbon Registry)",
		Organization: "Winrock International",
		Suitability:  SuitabilityMedium,
		Description:  "US-based registry with forest carbon protocols.",
		Requirements: []string{
			"Protocol-specific requirements",
			"Verification by approved verifiers",
			"Registry documentation",
		},
		Timeline:     "12-24 months",
		CostEstimate: "$45,000 - $180,000+",
		Website:      "https://americancarbonregistry.org",
	},
}

var marketInfo = MarketInfo{
	Note:        "Prices are estimates and vary significantly based on project quality, location, co-benefits, and market conditions.",
	LastUpdated: "2024",
}

// TierOrder returns the tiers in display order.
func TierOrder() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// Tiers returns a copy of the market price table.
func Tiers() map[Tier]MarketTier {
	out := make(map[Tier]MarketTier, len(marketTiers))
	for k, v := range marketTiers {
		out[k] = v
	}
	return out
}

// Methodologies returns a deep copy of the methodology catalogue.
func Methodologies() []Methodology {
	out := make([]Methodology, len(methodologies))
	for i, m := range methodologies {
		out[i] = m.clone()
	}
	return out
}

func (m Methodology) clone() Methodology {
	m.Requirements = append([]string(nil), m.Requirements...)
	return m
}
