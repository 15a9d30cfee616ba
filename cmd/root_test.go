package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command in an empty working directory so no local
// config.yaml or .env leaks into the test.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())

	estimateOutput = outputFlags{format: "text"}
	methodologiesOutput = outputFlags{format: "text"}
	calcOutput = outputFlags{format: "text"}
	calcGeoJSON, calcShapefile = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"serve", "estimate", "calculate", "methodologies", "version"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "carbon-estimator", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestEstimateCommand_Flags(t *testing.T) {
	flag := estimateCmd.Flags().Lookup("tonnes")
	require.NotNil(t, flag, "estimate command should have --tonnes flag")
	assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])

	for _, c := range []*cobra.Command{estimateCmd, calculateCmd, methodologiesCmd} {
		format := c.Flags().Lookup("format")
		require.NotNil(t, format, "%s should have --format", c.Name())
		assert.Equal(t, "text", format.DefValue)
		assert.NotNil(t, c.Flags().ShorthandLookup("o"), "%s should have -o", c.Name())
	}
}

func TestCalculateCommand_Flags(t *testing.T) {
	for _, name := range []string{"geojson", "shapefile", "format", "out"} {
		assert.NotNil(t, calculateCmd.Flags().Lookup(name), "calculate should have --%s flag", name)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "carbon-estimator dev\n", out)
}
