package main

import (
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/carbon-estimator/internal/report"
)

var (
	estimateTonnes float64
	estimateOutput outputFlags
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Value a known carbon stock without calling Earth Engine",
	Example: `  carbon-estimator estimate --tonnes 25000
  carbon-estimator estimate --tonnes 25000 --format xlsx --out estimate.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if math.IsNaN(estimateTonnes) || math.IsInf(estimateTonnes, 0) {
			return eris.New("--tonnes must be a finite number")
		}
		result := report.NewResult(nil, estimateTonnes)
		return estimateOutput.write(cmd, func(w io.Writer, f report.Format) error {
			return report.Write(w, f, result)
		})
	},
}

func init() {
	estimateCmd.Flags().Float64Var(&estimateTonnes, "tonnes", 0, "carbon stock in tonnes C")
	_ = estimateCmd.MarkFlagRequired("tonnes")
	estimateOutput.register(estimateCmd)
	rootCmd.AddCommand(estimateCmd)
}
