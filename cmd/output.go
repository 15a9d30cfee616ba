package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/carbon-estimator/internal/report"
)

// outputFlags are shared by every command that renders a report.
type outputFlags struct {
	format string
	out    string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", "text", "output format: text, json, yaml or xlsx")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write to file instead of stdout (required for xlsx)")
}

// write renders into the --out file or the command's stdout.
func (o *outputFlags) write(cmd *cobra.Command, render func(io.Writer, report.Format) error) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}

	if o.out == "" {
		if format.Binary() {
			return eris.Errorf("--out is required for %s output", format)
		}
		return render(cmd.OutOrStdout(), format)
	}

	f, err := os.Create(o.out)
	if err != nil {
		return eris.Wrapf(err, "create %s", o.out)
	}
	if err := render(f, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", o.out)
	}
	return nil
}
