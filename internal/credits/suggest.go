package credits

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Priority orders suggestions for display.
type Priority string

// Suggestion priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion types.
const (
	SuggestionScale       = "scale"
	SuggestionMethodology = "methodology"
	SuggestionNextSteps   = "next_steps"
	SuggestionFinancial   = "financial"
	SuggestionRisk        = "risk"
)

// Suggestion is a human-readable project development recommendation.
type Suggestion struct {
	Type        string   `json:"type" yaml:"type"`
	Priority    Priority `json:"priority" yaml:"priority"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Action      string   `json:"action" yaml:"action"`
}

// Suggest returns recommendations for est in display order:
// scale (large only), methodology, next steps, financial (voluntary average
// above 100,000 USD only), risk. A nil estimate yields an empty list.
func Suggest(est *Estimate) []Suggestion {
	suggestions := make([]Suggestion, 0, 5)
	if est == nil {
		return suggestions
	}

	p := message.NewPrinter(language.English)

	if est.ProjectSize == SizeLarge {
		suggestions = append(suggestions, Suggestion{
			Type:     SuggestionScale,
			Priority: PriorityHigh,
			Title:    "Large-scale project potential",
			Description: p.Sprintf("With %v tonnes CO2e, this project has significant credit generation potential. Consider engaging a carbon project developer.",
				decimal(est.CO2EquivalentTonnes)),
			Action: "Contact carbon project developers or consultants",
		})
	}

	suggestions = append(suggestions,
		Suggestion{
			Type:        SuggestionMethodology,
			Priority:    PriorityHigh,
			Title:       "Choose a certification standard",
			Description: "Select a recognized carbon standard (VCS, Gold Standard, etc.) based on your project goals and budget.",
			Action:      "Review recommended methodologies and select one",
		},
		Suggestion{
			Type:        SuggestionNextSteps,
			Priority:    PriorityMedium,
			Title:       "Project development roadmap",
			Description: "Typical steps: 1) Feasibility study, 2) Methodology selection, 3) Project documentation, 4) Verification, 5) Registration and issuance.",
			Action:      "Develop a project timeline and budget",
		},
	)

	voluntary := est.CreditEstimates[TierVoluntary]
	if voluntary.Avg > financialSuggestionMinValue {
		highQuality := est.CreditEstimates[TierHighQuality]
		suggestions = append(suggestions, Suggestion{
			Type:     SuggestionFinancial,
			Priority: PriorityMedium,
			Title:    "Significant revenue potential",
			Description: p.Sprintf("Estimated value: $%v - $%v USD (voluntary to high-quality markets).",
				decimal(voluntary.Avg), decimal(highQuality.Avg)),
			Action: "Consider upfront investment in certification",
		})
	}

	suggestions = append(suggestions, Suggestion{
		Type:        SuggestionRisk,
		Priority:    PriorityMedium,
		Title:       "Permanence and risk management",
		Description: "Carbon credits require long-term commitment. Consider buffer pools, insurance, and monitoring systems.",
		Action:      "Develop risk management strategy",
	})

	return suggestions
}

// decimal formats v with grouping and at most three fraction digits.
func decimal(v float64) number.Formatter {
	return number.Decimal(v, number.MaxFractionDigits(3))
}
