package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	cfgpkg "github.com/KaramelBytes/haruspex-cli/internal/config"
	"github.com/KaramelBytes/haruspex-cli/internal/engine"
)

// writeUsage prints the driver usage. Defaults are the built-in ones, not
// those of any configuration file.
func writeUsage(w io.Writer) {
	d := cfgpkg.Defaults()
	fmt.Fprintln(w, "Usage: haruspex -d <file> -e <engine> [options]")
	fmt.Fprintln(w, "       haruspex <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs a statistics engine over a comma-delimited table and writes the")
	fmt.Fprintln(w, "annotated data and the model as CSV.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  -h\tprint this help and exit")
	fmt.Fprintln(tw, "  -d <file>\tinput data file, CSV or XLSX (required)")
	fmt.Fprintln(tw, "  -e <engine>\tstatistics engine (required), see below")
	fmt.Fprintln(tw, "  -m <prefix>\tinput model prefix (reported only)")
	fmt.Fprintf(tw, "  -s <prefix>\toutput model prefix (default %q)\n", d.OutputModelPrefix)
	fmt.Fprintf(tw, "  -a <file>\toutput data file (default %q)\n", d.OutputData)
	fmt.Fprintln(tw, "  -c <file>\tcolumns of interest, one headerless CSV row (default: all columns)")
	fmt.Fprintln(tw, "  -v\tincrease verbosity, may be repeated")
	fmt.Fprintf(tw, "  --clusters <k>\tk-means default number of clusters (default %d)\n", d.KMeans.DefaultClusters)
	fmt.Fprintln(tw, "  --manifest <file>\twrite a YAML run manifest")
	fmt.Fprintln(tw, "  --config <file>\tconfig file (default ~/.haruspex/config.yaml)")
	_ = tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Engines:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range engine.Kinds() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", k, k.Arity(), k.Description())
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range rootCmd.Commands() {
		if !c.IsAvailableCommand() {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name(), c.Short)
	}
	_ = tw.Flush()
}
