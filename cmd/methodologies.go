package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/carbon-estimator/internal/credits"
	"github.com/sells-group/carbon-estimator/internal/report"
)

var methodologiesOutput outputFlags

var methodologiesCmd = &cobra.Command{
	Use:   "methodologies",
	Short: "List carbon certification methodologies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ms := credits.Methodologies()
		return methodologiesOutput.write(cmd, func(w io.Writer, f report.Format) error {
			return report.WriteMethodologies(w, f, ms)
		})
	},
}

func init() {
	methodologiesOutput.register(methodologiesCmd)
	rootCmd.AddCommand(methodologiesCmd)
}
