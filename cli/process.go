package cli

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/spilink/spilink/config"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/metrics"
	"github.com/spilink/spilink/network"
	"github.com/spilink/spilink/resource"
	"github.com/spilink/spilink/scheduler"
	"github.com/spilink/spilink/utils"
)

// rootLoggerName prefixes the name of every component logger.
const rootLoggerName = "spilinkd"

// A process holds every constructed component of one config.
type process struct {
	logger    logging.Logger
	loggers   *logging.Registry
	scheduler *scheduler.Scheduler
	network   *network.Registry

	// resources in construction order, dependencies first.
	resources []resource.Resource
}

// newProcess constructs the components of `cfg` in dependency order. Components that loop are
// registered with the scheduler and links are registered with the network registry. On error
// every component built so far is closed.
func newProcess(
	ctx context.Context,
	cfg *config.Config,
	rec metrics.Recorder,
	logger logging.Logger,
	opts ...scheduler.Option,
) (*process, error) {
	loggers := logging.NewRegistry()
	if err := loggers.UpdateConfig(cfg.Logging.Patterns, logger); err != nil {
		return nil, err
	}
	loggers.Register(rootLoggerName, logger)

	opts = append([]scheduler.Option{
		scheduler.WithLoopInterval(cfg.LoopInterval),
		scheduler.WithHighFrequencyInterval(cfg.HighFrequencyInterval),
	}, opts...)
	p := &process{
		logger:    logger,
		loggers:   loggers,
		scheduler: scheduler.New(loggers.Sublogger(logger, rootLoggerName+".scheduler", "scheduler"), opts...),
		network:   network.NewRegistry(),
	}
	guard := utils.NewGuard(func() {
		goutils.UncheckedError(p.Close(ctx))
	})
	defer guard.OnFail()

	built := make(map[string]resource.Resource, len(cfg.Components))
	for _, conf := range cfg.Components {
		res, err := p.build(ctx, conf, built)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot build component %q", conf.Name)
		}
		built[conf.Name] = res
		p.resources = append(p.resources, res)

		if instrumented, ok := res.(metrics.Instrumented); ok {
			instrumented.SetMetrics(rec)
		}
		if provider, ok := res.(network.Provider); ok {
			p.network.Add(provider)
		}
		if c, ok := res.(scheduler.Component); ok {
			p.scheduler.Register(c)
		}
	}

	guard.Success()
	return p, nil
}

func (p *process) build(
	ctx context.Context,
	conf resource.Config,
	built map[string]resource.Resource,
) (resource.Resource, error) {
	reg, ok := resource.LookupRegistration(conf.API, conf.Model)
	if !ok {
		return nil, errors.Errorf("no registration for api %q and model %q", conf.API, conf.Model)
	}

	deps := make(resource.Dependencies, len(conf.Dependencies()))
	for _, name := range conf.Dependencies() {
		dep, ok := built[name]
		if !ok {
			return nil, errors.Errorf("dependency %q was not built before %q", name, conf.Name)
		}
		deps[dep.Name()] = dep
	}

	logger := p.loggers.Sublogger(p.logger, rootLoggerName+"."+conf.Name, conf.Name).
		WithFields("model", conf.Model.String())
	return reg.Constructor(ctx, deps, conf, logger)
}

// statusTable renders the status indicators of every looped component.
func (p *process) statusTable() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Component", "Status"})
	for _, s := range p.scheduler.Statuses() {
		t.AppendRow(table.Row{s.Name.String(), s.Status})
	}
	return t.Render()
}

// Close stops the scheduler and closes every component in reverse construction order. Looped
// components are closed by the scheduler.
func (p *process) Close(ctx context.Context) error {
	err := p.scheduler.Close(ctx)
	for i := len(p.resources) - 1; i >= 0; i-- {
		if _, ok := p.resources[i].(scheduler.Component); ok {
			continue
		}
		err = multierr.Combine(err, p.resources[i].Close(ctx))
	}
	return err
}
