package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/okian/ahp/internal/adapters/http/api"
	"github.com/okian/ahp/internal/adapters/http/swagger"
	"github.com/okian/ahp/internal/adapters/policystore"
	service "github.com/okian/ahp/internal/app"
	"github.com/okian/ahp/internal/config"
	"github.com/okian/ahp/pkg/logger"
	"github.com/okian/ahp/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// The custom registry exports its own system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "scorer exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	svc := service.New(serviceOptions(cfg, store, log)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runSystemMetrics(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("service stop: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// newStore builds the configured policy store backend.
func newStore(cfg *config.Config) (policystore.Store, error) {
	ref := policystore.Ref{Namespace: cfg.PolicyNamespace, Name: cfg.PolicyName}
	switch cfg.PolicyStore {
	case config.PolicyStoreKubernetes:
		client, err := policystore.NewDynamicClient(cfg.Kubeconfig, cfg.KubeContext)
		if err != nil {
			return nil, fmt.Errorf("kubernetes client: %w", err)
		}
		gvr := schema.GroupVersionResource{Group: cfg.PolicyGroup, Version: cfg.PolicyVersion, Resource: cfg.PolicyResource}
		return policystore.NewKubeStore(client, policystore.WithResource(gvr)), nil
	default:
		return policystore.NewMemoryStore(ref), nil
	}
}

func serviceOptions(cfg *config.Config, store policystore.Store, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLogger(log),
		service.WithStore(store),
		service.WithPolicy(policystore.Ref{Namespace: cfg.PolicyNamespace, Name: cfg.PolicyName}),
		service.WithStrategy(cfg.PairwiseStrategy, cfg.RatioCap),
		service.WithExpectedEntities(cfg.ExpectedEntities),
		service.WithUpdateThreshold(cfg.UpdateThresholdDuration()),
		service.WithScoreTimeout(cfg.ScoreTimeoutDuration()),
		service.WithCommitQueueSize(cfg.CommitQueueSize),
		service.WithCommitWorkers(cfg.CommitWorkers),
		service.WithCommitTimeout(cfg.CommitTimeout()),
		service.WithHealthCheckTimeout(cfg.HealthCheckTimeout()),
	}
}

func newMux(ctx context.Context, cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Register(ctx, mux)
	return mux
}

func runSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
