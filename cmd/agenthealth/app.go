package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/agenthealth/auth"
	"github.com/jonwraymond/agenthealth/config"
	"github.com/jonwraymond/agenthealth/health"
	"github.com/jonwraymond/agenthealth/meter"
	"github.com/jonwraymond/agenthealth/observe"
	"github.com/jonwraymond/agenthealth/promrates"
	"github.com/jonwraymond/agenthealth/watch"
	"github.com/jonwraymond/agenthealth/watch/redis"
)

// app owns every long-lived component of the process.
type app struct {
	cfg      *config.Config
	obs      observe.Observer
	logger   observe.Logger
	registry *prometheus.Registry

	mux        *http.ServeMux
	aggregator *health.Aggregator
	supervisor *meter.SupervisorMetrics
	rates      *health.RateChecker
	conn       *health.ConnectivityChecker

	// services start in order and stop in reverse.
	services []health.Service
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ocfg := cfg.ObserverConfig(version)
	ocfg.Metrics.Registerer = reg
	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	a := &app{
		cfg:      cfg,
		obs:      obs,
		logger:   obs.Logger(),
		registry: reg,
		mux:      http.NewServeMux(),
	}
	if err := a.build(); err != nil {
		_ = a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) build() error {
	mw, err := observe.MiddlewareFromObserver(a.obs)
	if err != nil {
		return err
	}
	a.aggregator = health.NewAggregator(health.AggregatorConfig{
		Middleware: mw,
		Component:  a.cfg.Observe.ServiceName,
	})

	a.supervisor, err = meter.NewSupervisorMetrics(a.obs.Meter())
	if err != nil {
		return fmt.Errorf("supervisor metrics: %w", err)
	}
	a.closers = append(a.closers, a.supervisor.Close)
	authenticators, err := a.authenticators()
	if err != nil {
		return err
	}
	meter.RegisterHandlers(a.mux, a.supervisor,
		auth.Require(a.logger.With(observe.F("component", "auth")), authenticators...))

	var source health.FailureRates = a.supervisor
	if a.cfg.Rate.Source == config.SourcePrometheus {
		p := a.cfg.Rate.Prometheus
		sampler, err := promrates.New(promrates.Config{
			URL:             p.URL,
			Refresh:         p.Refresh,
			Timeout:         p.Timeout,
			TimeoutsQuery:   p.TimeoutsQuery,
			ExceptionsQuery: p.ExceptionsQuery,
			RunsQuery:       p.RunsQuery,
			Logger:          a.logger.With(observe.F("component", "promrates")),
		})
		if err != nil {
			return err
		}
		source = sampler
		a.services = append(a.services, sampler)
	}

	a.rates, err = health.NewRateChecker(source, health.RateCheckerConfig{
		LowWatermark:  a.cfg.Rate.LowWatermark,
		HighWatermark: a.cfg.Rate.HighWatermark,
		Interval:      a.cfg.Rate.Interval,
		Logger:        a.logger.With(observe.F("checker", "docker")),
	})
	if err != nil {
		return err
	}
	a.aggregator.Register(a.rates.Name(), a.rates)
	a.services = append(a.services, a.rates)

	if a.cfg.Watch.Enabled {
		r := a.cfg.Watch.Redis
		src := redis.New(redis.Config{
			Addr:                   r.Addr,
			Password:               r.Password,
			DB:                     r.DB,
			PingInterval:           r.PingInterval,
			LostAfter:              r.LostAfter,
			ConfigureNotifications: r.ConfigureNotifications,
			Logger:                 a.logger.With(observe.F("component", "redis")),
		})
		a.closers = append(a.closers, src.Close)
		a.addConnectivity(src)
	}

	health.RegisterHandlers(a.mux, a.aggregator)
	if a.cfg.Observe.Metrics.Enabled && a.cfg.Observe.Metrics.Exporter == "prometheus" {
		a.mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	}
	return nil
}

// authenticators builds the guards for the supervisor event endpoint.
func (a *app) authenticators() ([]auth.Authenticator, error) {
	cfg := a.cfg.Admin.Auth
	if !cfg.Enabled() {
		a.logger.Warn(context.Background(), "supervisor event endpoint is unauthenticated")
		return nil, nil
	}

	var out []auth.Authenticator
	if len(cfg.APIKeys) > 0 {
		keys, err := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Keys: cfg.APIKeys})
		if err != nil {
			return nil, err
		}
		out = append(out, keys)
	}
	if cfg.JWT.Secret != "" {
		tokens, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(cfg.JWT.Secret),
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, tokens)
	}
	return out, nil
}

// addConnectivity registers a connectivity checker fed by src.
func (a *app) addConnectivity(src watch.Source) {
	a.conn = health.NewConnectivityChecker(src, health.ConnectivityCheckerConfig{
		Name:   "coordination",
		Path:   a.cfg.Watch.Path,
		Logger: a.logger.With(observe.F("checker", "coordination"), observe.F("store", "redis")),
	})
	a.aggregator.Register(a.conn.Name(), a.conn)
	a.services = append(a.services, a.conn)
}

// start starts every service in order. On failure the ones already started
// are stopped.
func (a *app) start(ctx context.Context) error {
	for i, svc := range a.services {
		if err := svc.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				a.services[j].Stop()
			}
			return err
		}
	}
	return nil
}

func (a *app) stop() {
	for i := len(a.services) - 1; i >= 0; i-- {
		a.services[i].Stop()
	}
}

// run serves the admin endpoints until ctx is done, the server fails or the
// connectivity watch reports a fatal error.
func (a *app) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Admin.Listen)
	if err != nil {
		_ = a.close(context.Background())
		return fmt.Errorf("admin listen: %w", err)
	}
	return a.serve(ctx, ln)
}

func (a *app) serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.start(gctx); err != nil {
		_ = ln.Close()
		_ = a.close(context.Background())
		return err
	}

	srv := &http.Server{
		Handler:           a.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		a.logger.Info(gctx, "admin server listening", observe.F("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Admin.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if a.conn != nil {
		g.Go(func() error {
			select {
			case err := <-a.conn.Err():
				a.logger.Error(gctx, "connectivity watch failed", observe.F("error", err))
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}

	err := g.Wait()
	a.logger.Info(context.Background(), "shutting down")

	a.stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Admin.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.close(shutdownCtx))
}

// close releases clients and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.obs.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
