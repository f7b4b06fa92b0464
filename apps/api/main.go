package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dig_container "github.com/academia-hq/academia/apps/api/di/dig"
	echoapi "github.com/academia-hq/academia/apps/api/echo"
	"github.com/academia-hq/academia/apps/shared"
	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/user"
	logsvc "github.com/academia-hq/academia/services/logger"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		rootLogger *logsvc.RollbarLogger,
		apiLogger core.Logger,
		closeStorage dig_container.StorageCloser,
		registry *prometheus.Registry,
		svcs *shared.Services,
		server *echoapi.Server,
	) {
		defer func() { _ = rootLogger.Sync() }()

		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(conf.WorkDir, !conf.Debug, apiLogger)

		user.LoadCommonPasswords(conf.WorkDir, apiLogger)

		defer func() {
			if err := closeStorage(); err != nil {
				apiLogger.Error("failed to close storage", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		if n, err := svcs.Permission.EnsureDefaults(context.Background()); err != nil {
			apiLogger.Fatal(fmt.Sprintf("seeding permission templates: %v", err), err)
		} else if n > 0 {
			apiLogger.Info("seeded permission templates", map[string]interface{}{"count": n})
		}

		ingestCtx, stopIngest := context.WithCancel(context.Background())
		defer stopIngest()
		if err := svcs.Knowledge.Start(ingestCtx); err != nil {
			apiLogger.Fatal(fmt.Sprintf("starting ingestion: %v", err), err)
		}
		defer svcs.Knowledge.Stop()

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.
		// /metrics - Prometheus scrape endpoint.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		server.Start()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
