package cmd

import (
	"errors"
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/haruspex-cli/internal/config"
	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/KaramelBytes/haruspex-cli/internal/logging"
	"github.com/KaramelBytes/haruspex-cli/internal/pipeline"
	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Global flags
	cfgFile string

	// Driver flags
	flagData        string
	flagEngine      string
	flagInputModel  string
	flagOutputModel string
	flagOutputData  string
	flagColumns     string
	flagVerbosity   int
	flagClusters    int
	flagManifest    string

	// Loaded configuration
	cfg *cfgpkg.Global

	// helpShown is set by the root help function so that -h exits non-zero.
	helpShown bool
)

// errHelp is returned after the usage text was printed on request.
var errHelp = errors.New("help requested")

// usageError is a command-line error that is reported with the usage text.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "haruspex",
	Short: "Haruspex: run a statistics engine over a CSV table",
	Long: `Haruspex reads a comma-delimited table, runs one statistics engine over the
columns of interest and writes the annotated data plus the model as CSV files.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return usageError{cmd: cmd, err: err}
		}
		return nil
	},
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runDriver,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := executeArgs(os.Args[1:])
	if err == nil {
		return
	}
	var ue usageError
	switch {
	case errors.Is(err, errHelp):
	case errors.As(err, &ue):
		fmt.Fprintln(os.Stderr, "✗ Error:", ue.err)
		_ = ue.cmd.Usage()
	default:
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
	}
	os.Exit(1)
}

// executeArgs runs the command tree on args with every flag back at its
// default.
func executeArgs(args []string) error {
	resetFlags(rootCmd)
	helpShown = false
	cfg = nil
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil && helpShown {
		return errHelp
	}
	return err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
	// count flags add to their current value
	flagVerbosity = 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.haruspex/config.yaml)")

	f := rootCmd.Flags()
	f.StringVarP(&flagData, "data", "d", "", "input data file (required)")
	f.StringVarP(&flagEngine, "engine", "e", "", "statistics engine name (required)")
	f.StringVarP(&flagInputModel, "input-model", "m", "", "input model prefix")
	f.StringVarP(&flagOutputModel, "output-model", "s", "", "output model prefix")
	f.StringVarP(&flagOutputData, "output-data", "a", "", "output data file")
	f.StringVarP(&flagColumns, "columns", "c", "", "columns of interest file")
	f.CountVarP(&flagVerbosity, "verbose", "v", "increase verbosity (repeatable)")
	f.IntVar(&flagClusters, "clusters", 0, "k-means default number of clusters")
	f.StringVar(&flagManifest, "manifest", "", "write a YAML run manifest to this file")

	defaultHelp := rootCmd.HelpFunc()
	defaultUsage := rootCmd.UsageFunc()
	rootCmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		if c != rootCmd {
			defaultHelp(c, args)
			return
		}
		helpShown = true
		writeUsage(c.OutOrStdout())
	})
	rootCmd.SetUsageFunc(func(c *cobra.Command) error {
		if c != rootCmd {
			return defaultUsage(c)
		}
		writeUsage(c.ErrOrStderr())
		return nil
	})
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{cmd: c, err: err}
	})
}

// loadConfig reads the configuration once per invocation.
func loadConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func runDriver(cmd *cobra.Command, args []string) error {
	// no file is touched before both required flags are present
	if flagData == "" {
		return usageError{cmd: cmd, err: errors.New("a data file name is required")}
	}
	if flagEngine == "" {
		return usageError{cmd: cmd, err: errors.New("a statistics engine name is required")}
	}
	kind, err := engine.ParseKind(flagEngine)
	if err != nil {
		return err
	}

	c, err := loadConfig()
	if err != nil {
		return err
	}
	settings, err := c.EngineSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("clusters") {
		if flagClusters < 1 {
			return usageError{cmd: cmd, err: fmt.Errorf("invalid --clusters: %d (must be at least 1)", flagClusters)}
		}
		settings.KMeans.DefaultClusters = flagClusters
	}

	opts := pipeline.Options{
		InputData:            flagData,
		Kind:                 kind,
		InputModelPrefix:     flagInputModel,
		OutputModelPrefix:    c.OutputModelPrefix,
		OutputData:           c.OutputData,
		ColumnsFile:          flagColumns,
		Verbosity:            flagVerbosity,
		Manifest:             flagManifest,
		Read:                 table.ReadOptions{Sheet: c.XLSXSheet},
		Settings:             settings,
		KMeansParametersFile: c.KMeans.ParametersFile,
	}
	if cmd.Flags().Changed("output-model") {
		opts.OutputModelPrefix = flagOutputModel
	}
	if cmd.Flags().Changed("output-data") {
		opts.OutputData = flagOutputData
	}

	logger := logging.New(opts.Verbosity, c.LogFormat, cmd.ErrOrStderr())
	_, err = pipeline.Run(opts, logger)
	return err
}
