package pipeline

import (
	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	log "github.com/sirupsen/logrus"
)

// BuildRequest turns the selected names into the request shape the engine
// arity calls for. all is the full column list of the input table, in table
// order.
//
// A bivariate request pairs selected[i] with every column all[j], j > i.
// The second index runs over the full table, so a selection can pair with
// columns it does not name. Pairs of a column with itself are skipped.
func BuildRequest(arity engine.Arity, all, selected []string, logger *log.Logger) engine.Request {
	var req engine.Request
	switch arity {
	case engine.Univariate:
		for _, name := range selected {
			logger.Infof("Requesting column %s", name)
			req = append(req, engine.UnivariateRequest{X: name})
		}
	case engine.Bivariate:
		for i, x := range selected {
			for j := i + 1; j < len(all); j++ {
				y := all[j]
				if x == y {
					continue
				}
				logger.Infof("Requesting column pair %s %s", x, y)
				req = append(req, engine.BivariateRequest{X: x, Y: y})
			}
		}
	default:
		vars := make([]string, 0, len(selected))
		for _, name := range selected {
			logger.Infof("Adding column %s to the request", name)
			vars = append(vars, name)
		}
		req = append(req, engine.MultivariateRequest{Vars: vars})
	}
	return req
}
