package pipeline

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/KaramelBytes/haruspex-cli/internal/table"
	log "github.com/sirupsen/logrus"
)

// dumpRows is how many rows of each written table are logged at debug level.
const dumpRows = 10

// ModelPath returns the file name of model block i.
func ModelPath(prefix string, i int) string {
	return fmt.Sprintf("%s-%d.csv", prefix, i)
}

// WriteData writes the annotated data table to path.
func WriteData(path string, t *table.Table, logger *log.Logger) error {
	if err := table.WriteCSV(path, t); err != nil {
		return fmt.Errorf("write output data: %w", err)
	}
	logger.Infof("Wrote output data to %s", path)
	dump(logger, t)
	return nil
}

// WriteModel writes every table of m as <prefix>-<i>.csv, in block order,
// and returns the written paths. A SingleTable model yields <prefix>-0.csv.
func WriteModel(prefix string, m engine.Model, logger *log.Logger) ([]string, error) {
	var paths []string
	for i, t := range m.Tables() {
		p := ModelPath(prefix, i)
		if err := table.WriteCSV(p, t); err != nil {
			return paths, fmt.Errorf("write model block %d: %w", i, err)
		}
		logger.Infof("Wrote model block %d to %s", i, p)
		dump(logger, t)
		paths = append(paths, p)
	}
	return paths, nil
}

func dump(logger *log.Logger, t *table.Table) {
	if !logger.IsLevelEnabled(log.DebugLevel) {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(table.DumpString(t, dumpRows), "\n"), "\n") {
		logger.Debug(line)
	}
}
