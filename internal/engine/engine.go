// Package engine wires the application's services together: storage,
// data source client, resolver, importer and boards. Commands construct
// one Engine and pick the pieces they need.
package engine

import (
	"github.com/switchbacklabs/towers-tt/internal/attempt"
	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/history"
	"github.com/switchbacklabs/towers-tt/internal/leaderboard"
	"github.com/switchbacklabs/towers-tt/internal/logging"
	"github.com/switchbacklabs/towers-tt/internal/observability"
	"github.com/switchbacklabs/towers-tt/internal/season"
	"github.com/switchbacklabs/towers-tt/internal/strava"
)

// Engine bundles the application services behind one constructor.
type Engine struct {
	Settings *conf.Settings
	DS       datastore.Interface
	Strava   *strava.Client
	Windows  *season.Resolver
	Selector *attempt.Selector
	Importer *history.Importer
	Boards   *leaderboard.Aggregator
	Metrics  *observability.Metrics
}

// New opens the datastore and constructs every service from settings.
func New(settings *conf.Settings) (*Engine, error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, errors.Newf("no database backend enabled in configuration").
			Component("engine").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ds.Open(); err != nil {
		return nil, err
	}

	client, err := strava.NewClient(strava.ConfigFromSettings(&settings.Strava))
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		_ = ds.Close()
		client.Close()
		return nil, err
	}

	windows := season.NewResolver(ds)

	return &Engine{
		Settings: settings,
		DS:       ds,
		Strava:   client,
		Windows:  windows,
		Selector: attempt.NewSelector(windows, client, ds, settings),
		Importer: history.NewImporter(client, ds, windows, settings),
		Boards:   leaderboard.NewAggregator(ds, settings),
		Metrics:  metrics,
	}, nil
}

// Close releases engine resources.
func (e *Engine) Close() {
	e.Strava.Close()
	if err := e.DS.Close(); err != nil {
		logging.Error("error closing datastore", "error", err)
	}
}
