// Package report renders carbon and credit estimates for the command line.
package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/carbon-estimator/internal/biomass"
	"github.com/sells-group/carbon-estimator/internal/credits"
)

// Format selects a renderer.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a --format flag value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want text, json, yaml or xlsx)", s)
	}
}

// Binary reports whether the format produces non-text output.
func (f Format) Binary() bool { return f == FormatXLSX }

// Result is everything a report can show. Carbon is nil for offline
// estimates that start from a tonnage instead of a region.
type Result struct {
	Carbon      *biomass.CarbonTotal `json:"carbon,omitempty" yaml:"carbon,omitempty"`
	Credits     *credits.Estimate    `json:"credits" yaml:"credits"`
	Suggestions []credits.Suggestion `json:"suggestions" yaml:"suggestions"`
}

// NewResult estimates credits for total carbon tonnes and attaches the
// matching suggestions.
func NewResult(carbon *biomass.CarbonTotal, tonnes float64) Result {
	est, _ := credits.EstimateCredits(tonnes)
	return Result{
		Carbon:      carbon,
		Credits:     est,
		Suggestions: credits.Suggest(est),
	}
}

// Write renders r to w in the given format.
func Write(w io.Writer, format Format, r Result) error {
	switch format {
	case FormatText, "":
		return writeText(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatXLSX:
		return writeXLSX(w, r)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// WriteMethodologies renders the certification catalogue.
func WriteMethodologies(w io.Writer, format Format, ms []credits.Methodology) error {
	switch format {
	case FormatText, "":
		return writeMethodologiesText(w, ms)
	case FormatJSON:
		return writeJSON(w, ms)
	case FormatYAML:
		return writeYAML(w, ms)
	case FormatXLSX:
		return writeMethodologiesXLSX(w, ms)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: flush yaml")
	}
	return nil
}
