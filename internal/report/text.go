package report

import (
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sells-group/carbon-estimator/internal/credits"
)

// tabular writes aligned text with English number grouping. It keeps the
// first write error so renderers can check once at the end.
type tabular struct {
	tw  *tabwriter.Writer
	p   *message.Printer
	err error
}

func newTabular(w io.Writer) *tabular {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	return &tabular{tw: tw, p: message.NewPrinter(language.English)}
}

func (t *tabular) line(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = t.p.Fprintf(t.tw, format+"\n", args...)
}

func (t *tabular) flush() error {
	if t.err != nil {
		return eris.Wrap(t.err, "report: write text")
	}
	if err := t.tw.Flush(); err != nil {
		return eris.Wrap(err, "report: flush text")
	}
	return nil
}

func whole(v float64) number.Formatter {
	return number.Decimal(v, number.MaxFractionDigits(0))
}

func tonnes(v float64) number.Formatter {
	return number.Decimal(v, number.MaxFractionDigits(1))
}

func writeText(w io.Writer, r Result) error {
	t := newTabular(w)

	if r.Carbon != nil {
		t.line("CARBON STOCK")
		t.line("  Above-ground:\t%v t", tonnes(r.Carbon.AbovegroundTonnes))
		t.line("  Below-ground:\t%v t", tonnes(r.Carbon.BelowgroundTonnes))
		t.line("  Total:\t%v t", tonnes(r.Carbon.TotalTonnes))
		t.line("")
	}

	est := r.Credits
	if est == nil {
		t.line("No measurable carbon; no credit estimate.")
		return t.flush()
	}

	t.line("CREDITS")
	t.line("  Carbon:\t%v t", tonnes(est.CarbonTonnes))
	t.line("  CO2 equivalent:\t%v t CO2e (x%v)", tonnes(est.CO2EquivalentTonnes), est.ConversionFactor)
	t.line("  Potential credits:\t%v", whole(est.CO2EquivalentTonnes))
	t.line("  Project:\t%s size, %s complexity", est.ProjectSize, est.ProjectComplexity)
	t.line("")

	t.line("MARKET\tLOW\tAVERAGE\tHIGH\tPRICE/CREDIT")
	t.line("------\t---\t-------\t----\t------------")
	for _, tier := range credits.TierOrder() {
		te, ok := est.CreditEstimates[tier]
		if !ok {
			continue
		}
		t.line("%s\t$%v\t$%v\t$%v\t$%v-$%v",
			tier, whole(te.Min), whole(te.Avg), whole(te.Max),
			whole(te.PricePerCredit.Min), whole(te.PricePerCredit.Max))
	}
	t.line("")
	t.line("%s (as of %s)", est.MarketInfo.Note, est.MarketInfo.LastUpdated)
	t.line("")

	if len(est.RecommendedMethodologies) > 0 {
		names := make([]string, 0, len(est.RecommendedMethodologies))
		for _, m := range est.RecommendedMethodologies {
			names = append(names, m.Name)
		}
		t.line("RECOMMENDED METHODOLOGIES")
		t.line("  %s", strings.Join(names, ", "))
		t.line("")
	}

	if len(r.Suggestions) > 0 {
		t.line("SUGGESTIONS")
		for _, s := range r.Suggestions {
			t.line("  [%s] %s", s.Priority, s.Title)
			t.line("      %s", s.Description)
			t.line("      -> %s", s.Action)
		}
	}

	return t.flush()
}

func writeMethodologiesText(w io.Writer, ms []credits.Methodology) error {
	t := newTabular(w)
	t.line("NAME\tORGANIZATION\tSUITABILITY\tTIMELINE\tCOST")
	t.line("----\t------------\t-----------\t--------\t----")
	for _, m := range ms {
		t.line("%s\t%s\t%s\t%s\t%s", m.Name, m.Organization, m.Suitability, m.Timeline, m.CostEstimate)
	}
	return t.flush()
}
