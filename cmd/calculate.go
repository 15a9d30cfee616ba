package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-estimator/internal/api"
	"github.com/sells-group/carbon-estimator/internal/geometry"
	"github.com/sells-group/carbon-estimator/internal/report"
)

var (
	calcGeoJSON   string
	calcShapefile string
	calcOutput    outputFlags
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Measure carbon in a local polygon and value it",
	Example: `  carbon-estimator calculate --geojson parcel.geojson
  carbon-estimator calculate --shapefile stands.shp --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := loadRegion(calcGeoJSON, calcShapefile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, err := newEarthEngineClient(ctx, cfg.EarthEngine)
		if err != nil {
			return err
		}

		result, err := calculate(ctx, newReducer(client, cfg), region)
		if err != nil {
			return err
		}
		return calcOutput.write(cmd, func(w io.Writer, f report.Format) error {
			return report.Write(w, f, result)
		})
	},
}

// loadRegion reads exactly one of a GeoJSON file or a shapefile.
func loadRegion(geojsonPath, shapefilePath string) (*geometry.Region, error) {
	switch {
	case geojsonPath != "" && shapefilePath != "":
		return nil, eris.New("use only one of --geojson or --shapefile")
	case geojsonPath != "":
		data, err := os.ReadFile(geojsonPath)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", geojsonPath)
		}
		return geometry.ParseGeoJSON(data)
	case shapefilePath != "":
		return geometry.ReadShapefile(shapefilePath)
	default:
		return nil, eris.New("one of --geojson or --shapefile is required")
	}
}

// calculate reduces region and values the total carbon.
func calculate(ctx context.Context, reducer api.Reducer, region *geometry.Region) (report.Result, error) {
	total, err := reducer.Reduce(ctx, region)
	if err != nil {
		return report.Result{}, eris.Wrap(err, "calculate carbon")
	}
	zap.L().Info("calculate: carbon reduced",
		zap.String("type", region.Type()),
		zap.Int("vertices", region.NumVertices()),
		zap.Float64("total_tonnes", total.TotalTonnes),
	)
	return report.NewResult(total, total.TotalTonnes), nil
}

func init() {
	calculateCmd.Flags().StringVar(&calcGeoJSON, "geojson", "", "GeoJSON geometry or Feature file")
	calculateCmd.Flags().StringVar(&calcShapefile, "shapefile", "", "polygon shapefile (.shp)")
	calcOutput.register(calculateCmd)
	rootCmd.AddCommand(calculateCmd)
}
