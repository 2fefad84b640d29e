// Package pipeline drives one statistics run: read the input table, select
// the columns of interest, build the engine request, run the engine and
// write the annotated data and the model.
package pipeline

import (
	"fmt"

	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/KaramelBytes/haruspex-cli/internal/table"
	log "github.com/sirupsen/logrus"
)

// Options is everything a run needs. It is filled once from the command
// line and configuration and not modified afterwards.
type Options struct {
	InputData string
	Kind      engine.Kind
	// InputModelPrefix is reported only; models are always learned.
	InputModelPrefix  string
	OutputModelPrefix string
	OutputData        string
	// ColumnsFile names the columns of interest; empty selects all columns.
	ColumnsFile string
	Verbosity   int
	// Manifest, when set, is where the run manifest is written.
	Manifest string
	Read     table.ReadOptions
	Settings engine.Settings
	// KMeansParametersFile holds initial cluster centers for kmeans.
	KMeansParametersFile string
}

// Validate checks the options that must be present before any file is read.
func (o Options) Validate() error {
	if o.InputData == "" {
		return fmt.Errorf("a data file name is required")
	}
	if o.OutputModelPrefix == "" {
		return fmt.Errorf("an output model prefix is required")
	}
	if o.OutputData == "" {
		return fmt.Errorf("an output data file name is required")
	}
	return nil
}

func (o Options) report(logger *log.Logger) {
	logger.Info("# Parsed command line")
	logger.Infof("Input data file: %s", o.InputData)
	if o.ColumnsFile == "" {
		logger.Info("Columns of interest: all")
	} else {
		logger.Infof("Columns of interest in file: %s", o.ColumnsFile)
	}
	if o.InputModelPrefix == "" {
		logger.Info("No input model")
	} else {
		logger.Infof("Input model prefix: %s", o.InputModelPrefix)
	}
	logger.Infof("Statistics engine: %s (%s)", o.Kind, o.Kind.Arity())
	logger.Infof("Output model prefix: %s", o.OutputModelPrefix)
	logger.Infof("Output data file: %s", o.OutputData)
}

// Run executes one run. It returns the manifest of what was written, which
// is also saved when o.Manifest is set.
func Run(o Options, logger *log.Logger) (*Manifest, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.report(logger)

	logger.Info("# Reading input data")
	in, err := table.Read(o.InputData, o.Read)
	if err != nil {
		return nil, fmt.Errorf("read input data: %w", err)
	}
	logger.Infof("Read %d rows and %d columns from %s", in.NumRows(), in.NumColumns(), o.InputData)

	sel := AllColumns()
	if o.ColumnsFile != "" {
		logger.Info("# Reading columns of interest")
		if sel, err = ReadColumnList(o.ColumnsFile); err != nil {
			return nil, err
		}
	}
	selected, err := sel.Resolve(in)
	if err != nil {
		return nil, err
	}
	logger.Infof("Columns of interest: %s", Columns(selected...))

	settings := o.Settings
	if o.Kind == engine.KMeans && o.KMeansParametersFile != "" {
		logger.Infof("Reading kmeans learn parameters from %s", o.KMeansParametersFile)
		p, err := table.Read(o.KMeansParametersFile, o.Read)
		if err != nil {
			return nil, fmt.Errorf("read kmeans parameters: %w", err)
		}
		settings.KMeans.Parameters = p
	}

	logger.Info("# Building request")
	req := BuildRequest(o.Kind.Arity(), in.ColumnNames(), selected, logger)
	if len(req) == 0 {
		return nil, fmt.Errorf("no %s request can be built from columns %s", o.Kind.Arity(), Columns(selected...))
	}

	logger.Infof("# Running %s engine", o.Kind)
	eng, err := engine.New(o.Kind, settings)
	if err != nil {
		return nil, err
	}
	res, err := eng.Run(in, req, engine.DriverPhases)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logger.Warn(w)
	}

	logger.Info("# Writing output data")
	if err := WriteData(o.OutputData, res.Data, logger); err != nil {
		return nil, err
	}
	logger.Info("# Writing output model")
	paths, err := WriteModel(o.OutputModelPrefix, res.Model, logger)
	if err != nil {
		return nil, err
	}

	m := newManifest()
	m.Engine = o.Kind.String()
	m.Arity = o.Kind.Arity().String()
	m.InputData = o.InputData
	m.InputModel = o.InputModelPrefix
	m.Rows = in.NumRows()
	m.Columns = in.NumColumns()
	for _, r := range req {
		m.Requests = append(m.Requests, r.String())
	}
	m.OutputData = o.OutputData
	m.Model = paths
	m.Warnings = res.Warnings
	if o.Manifest != "" {
		if err := m.Save(o.Manifest); err != nil {
			return nil, err
		}
		logger.Infof("Wrote run manifest %s to %s", m.ID, o.Manifest)
	}
	return m, nil
}
