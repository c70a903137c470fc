package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spilink/spilink/config"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/metrics"
	"github.com/spilink/spilink/network"
)

const (
	configReadTimeout   = 5 * time.Second
	serverShutdownDelay = 5 * time.Second
)

// RunAction sets up every configured component and loops them until SIGINT or SIGTERM.
func RunAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}
	applyLogging(c, cfg, logger)

	logFile := cfg.Logging.File
	if c.String(logFileFlag) != "" {
		logFile = c.String(logFileFlag)
	}
	if logFile != "" {
		appender := logging.NewFileAppender(logFile, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
		defer func() {
			err = multierr.Combine(err, appender.Close())
		}()
		logger.AddAppender(appender)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Bool(debugFlag) {
		ctx = logging.EnableDebugMode(ctx, "")
	}

	var (
		rec          metrics.Recorder = metrics.Noop{}
		server       *http.Server
		promRegistry = prometheus.NewRegistry()
	)
	if addr := c.String(metricsAddrFlag); addr != "" {
		prom, err := metrics.NewPrometheus(promRegistry)
		if err != nil {
			return err
		}
		rec = prom
		server = &http.Server{Addr: addr, ReadHeaderTimeout: time.Second}
	}

	p, err := newProcess(ctx, cfg, rec, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), serverShutdownDelay)
		defer cancel()
		err = multierr.Combine(err, p.Close(closeCtx))
	}()
	if server != nil {
		server.Handler = newHTTPHandler(promRegistry, p.network)
	}

	return serve(ctx, p, server, logger)
}

// serve runs the scheduler and the optional HTTP server until `ctx` ends or either fails.
func serve(ctx context.Context, p *process, server *http.Server, logger logging.Logger) error {
	errs, ctx := errgroup.WithContext(ctx)
	errs.Go(func() error {
		if err := p.scheduler.Setup(ctx); err != nil {
			return err
		}
		logger.Infof("components set up\n%s", p.statusTable())
		logger.Infow("network",
			"connected", p.network.IsConnected(),
			"ip", p.network.IPAddress(),
			"use_address", p.network.UseAddress())
		return p.scheduler.Run(ctx)
	})
	if server != nil {
		errs.Go(func() error {
			logger.Infow("serving metrics", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		errs.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownDelay)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err := errs.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newHTTPHandler serves the collectors of `gatherer` on /metrics and the link readiness on
// /readyz.
func newHTTPHandler(gatherer prometheus.Gatherer, links *network.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if links.Len() > 0 && !links.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			printf(w, "not connected")
			return
		}
		printf(w, "%s", links.UseAddress())
	})
	return mux
}

// ValidateAction reads the configuration and reports the components it would build.
func ValidateAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s: %d component(s) in setup order", cfg.ConfigFilePath, len(cfg.Components))
	for _, conf := range cfg.Components {
		printf(c.App.Writer, "  %s (%s, %s)", conf.Name, conf.API, conf.Model)
	}
	return nil
}

func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger(rootLoggerName)
	logger.AddAppender(logging.NewWriterAppender(c.App.Writer))
	logger.SetLevel(logging.INFO)
	if c.Bool(debugFlag) {
		logging.GlobalLogLevel.SetLevel(zap.DebugLevel)
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

func applyLogging(c *cli.Context, cfg *config.Config, logger logging.Logger) {
	if c.Bool(debugFlag) {
		return
	}
	logger.SetLevel(cfg.Logging.Level)
	if cfg.Logging.Level == logging.DEBUG {
		logging.GlobalLogLevel.SetLevel(zap.DebugLevel)
	}
}

func readConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	path := c.String(configFlag)
	if path == "" {
		return nil, errors.New("a config file is required, pass it with --config")
	}
	ctx, cancel := context.WithTimeout(c.Context, configReadTimeout)
	defer cancel()
	return config.Read(ctx, path, logger)
}
