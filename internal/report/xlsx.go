package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/carbon-estimator/internal/credits"
)

// Sheet names in the XLSX workbook.
const (
	SheetSummary       = "Summary"
	SheetMarkets       = "Markets"
	SheetMethodologies = "Methodologies"
	SheetSuggestions   = "Suggestions"
)

func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch v := v.(type) {
		case float64:
			cell.SetFloat(v)
		case string:
			cell.SetString(v)
		default:
			cell.SetString(fmt.Sprint(v))
		}
	}
}

func writeXLSX(w io.Writer, r Result) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	addRow(summary, "Metric", "Value")
	if r.Carbon != nil {
		addRow(summary, "Above-ground carbon (t)", r.Carbon.AbovegroundTonnes)
		addRow(summary, "Below-ground carbon (t)", r.Carbon.BelowgroundTonnes)
		addRow(summary, "Total carbon (t)", r.Carbon.TotalTonnes)
	}

	est := r.Credits
	if est != nil {
		addRow(summary, "CO2 equivalent (t)", est.CO2EquivalentTonnes)
		addRow(summary, "Conversion factor", est.ConversionFactor)
		addRow(summary, "Project size", string(est.ProjectSize))
		addRow(summary, "Project complexity", string(est.ProjectComplexity))
		addRow(summary, "Market note", est.MarketInfo.Note)
		addRow(summary, "Prices as of", est.MarketInfo.LastUpdated)

		markets, err := f.AddSheet(SheetMarkets)
		if err != nil {
			return eris.Wrap(err, "report: add markets sheet")
		}
		addRow(markets, "Market", "Credits", "Low (USD)", "Average (USD)", "High (USD)", "Price min", "Price avg", "Price max", "Description")
		for _, tier := range credits.TierOrder() {
			te, ok := est.CreditEstimates[tier]
			if !ok {
				continue
			}
			addRow(markets, string(tier), te.Credits, te.Min, te.Avg, te.Max,
				te.PricePerCredit.Min, te.PricePerCredit.Avg, te.PricePerCredit.Max, te.PricePerCredit.Description)
		}

		if err := addMethodologiesSheet(f, est.AllMethodologies, est.RecommendedMethodologies); err != nil {
			return err
		}
	}

	suggestions, err := f.AddSheet(SheetSuggestions)
	if err != nil {
		return eris.Wrap(err, "report: add suggestions sheet")
	}
	addRow(suggestions, "Priority", "Type", "Title", "Description", "Action")
	for _, s := range r.Suggestions {
		addRow(suggestions, string(s.Priority), s.Type, s.Title, s.Description, s.Action)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func writeMethodologiesXLSX(w io.Writer, ms []credits.Methodology) error {
	f := xlsx.NewFile()
	if err := addMethodologiesSheet(f, ms, nil); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func addMethodologiesSheet(f *xlsx.File, all, recommended []credits.Methodology) error {
	sheet, err := f.AddSheet(SheetMethodologies)
	if err != nil {
		return eris.Wrap(err, "report: add methodologies sheet")
	}

	picked := make(map[string]bool, len(recommended))
	for _, m := range recommended {
		picked[m.Name] = true
	}

	addRow(sheet, "Name", "Organization", "Suitability", "Recommended", "Timeline", "Cost", "Requirements", "Website")
	for _, m := range all {
		rec := ""
		if picked[m.Name] {
			rec = "yes"
		}
		addRow(sheet, m.Name, m.Organization, string(m.Suitability), rec, m.Timeline, m.CostEstimate,
			strings.Join(m.Requirements, "; "), m.Website)
	}
	return nil
}
