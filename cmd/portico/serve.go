package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	portico "github.com/portico-dev/portico"
	"github.com/portico-dev/portico/pkg/middleware"
	"github.com/portico-dev/portico/pkg/snapshot"
)

// serveEnv is the environment surface of the serve command. Flags override
// decoded values.
type serveEnv struct {
	Address      string        `env:"PORTICO_ADDR,default=:8080"`
	MetricsAddr  string        `env:"PORTICO_METRICS_ADDR"`
	StaticDir    string        `env:"PORTICO_STATIC_DIR"`
	Store        string        `env:"PORTICO_SNAPSHOT_STORE,default=memory"`
	ResumeWindow time.Duration `env:"PORTICO_RESUME_WINDOW,default=5m"`
}

func serveCmd() *cobra.Command {
	var (
		address     string
		metricsAddr string
		staticDir   string
		storeKind   string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo server",
		Long: `Run the Portico demo server.

The demo page mounts a dynamic banner and a persistent ticker and
moves them between two zones; the ticker keeps its count across
moves. Sessions resume from the configured snapshot store after a
reconnect or a server restart.

Configuration comes from PORTICO_* environment variables; flags
override them.

Examples:
  portico serve
  portico serve --address=:3000
  portico serve --metrics=:9090
  PORTICO_SNAPSHOT_STORE=redis portico serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(address, metricsAddr, staticDir, storeKind, verbose)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Address to listen on (default from PORTICO_ADDR)")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Prometheus listen address, e.g. :9090 (default off)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of static files to serve")
	cmd.Flags().StringVar(&storeKind, "store", "", "Snapshot store: memory|redis|none")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runServe(address, metricsAddr, staticDir, storeKind string, verbose bool) error {
	var env serveEnv
	// Defaults come from the struct tags.
	_ = envdecode.Decode(&env)

	if address != "" {
		env.Address = address
	}
	if metricsAddr != "" {
		env.MetricsAddr = metricsAddr
	}
	if staticDir != "" {
		env.StaticDir = staticDir
	}
	if storeKind != "" {
		env.Store = storeKind
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := openStore(env.Store)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	registry := prometheus.NewRegistry()

	app := portico.New(portico.Config{
		Address: env.Address,
		Page: portico.PageConfig{
			Title:  "Portico demo",
			Styles: []string{demoCSS},
		},
		Static:   portico.StaticConfig{Dir: env.StaticDir},
		Session:  portico.SessionConfig{Store: store, ResumeWindow: env.ResumeWindow},
		Security: portico.SecurityConfig{AllowSameOrigin: true},
		Logger:   logger,
	})
	app.Use(
		middleware.Prometheus(middleware.WithRegistry(registry)),
		middleware.OpenTelemetry(),
	)
	app.MountFunc(mountDemo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{Addr: env.Address, Handler: app}
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if env.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: env.MetricsAddr, Handler: mux}
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		fmt.Println()
		info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			logger.Error("session shutdown failed", "error", err)
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	printBanner()
	success("Listening on http://%s", displayAddr(env.Address))
	if env.MetricsAddr != "" {
		info("Metrics on http://%s/metrics", displayAddr(env.MetricsAddr))
	}
	if store != nil {
		info("Snapshot store: %s", env.Store)
	}
	info("Press Ctrl+C to stop")

	return g.Wait()
}

// openStore builds the snapshot store named by kind.
func openStore(kind string) (snapshot.Store, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "memory":
		return snapshot.NewMemoryStore(), nil
	case "redis":
		return snapshot.OpenRedisStoreFromEnv()
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", kind)
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
