package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"github.com/framecast/videoengine/internal/config"
	"github.com/framecast/videoengine/internal/dag"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/master"
	"github.com/framecast/videoengine/internal/masterapi"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/metastore/sqlstore"
	"github.com/framecast/videoengine/internal/metrics"
	"github.com/framecast/videoengine/internal/shutdown"
	"github.com/framecast/videoengine/internal/storage/localfs"
	"github.com/framecast/videoengine/internal/workerservice"
)

// openIndex opens the configured secondary job/table index, if any.
// PostgresIndexDSN takes precedence over SQLIndexPath when both are set.
func openIndex(cfg config.Config) (sqlstore.Index, error) {
	if cfg.PostgresIndexDSN != "" {
		return sqlstore.OpenPostgres(cfg.PostgresIndexDSN)
	}
	if cfg.SQLIndexPath != "" {
		return sqlstore.OpenSQLite(cfg.SQLIndexPath)
	}
	return nil, nil
}

func levelFromString(s string) logging.Level {
	switch s {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}

func main() {
	var cfgFile string
	pflag.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.videoengine/config.yaml)")
	pflag.Parse()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	log := logging.New(levelFromString(cfg.LogLevel), cfg.LogJSON)

	backend, err := localfs.New(cfg.StorageDir)
	if err != nil {
		log.Errorf("opening storage dir %s: %v", cfg.StorageDir, err)
		os.Exit(1)
	}
	meta := metastore.New(backend, log)

	ctx := context.Background()
	db, err := meta.ReadDatabase(ctx)
	if err != nil {
		if !os.IsNotExist(err) && !errors.Is(err, os.ErrNotExist) {
			log.Errorf("reading database metadata: %v", err)
			os.Exit(1)
		}
		log.Infof("no existing database metadata found at %s; starting empty", cfg.StorageDir)
	}

	registry := dag.NewRegistry()
	m := metrics.New()
	mst := master.New(backend, meta, registry, nil, m, log, db)
	mst.SetDispatcher(workerservice.NewClient(&http.Client{Timeout: 0}))

	sd := shutdown.New(15*time.Second, log)

	if idx, err := openIndex(cfg); err != nil {
		log.Errorf("opening job index: %v", err)
		os.Exit(1)
	} else if idx != nil {
		mst.SetIndex(idx)
		sd.Register(shutdown.CloseResource("job index", idx, log))
	}

	handler := masterapi.NewHandler(mst, log)
	router := mux.NewRouter()
	router.Use(m.HTTPMiddleware)
	handler.RegisterRoutes(router)

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", m.Handler()).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()

	sd.Register(shutdown.StopHTTPServer("master", srv, log))
	sd.Register(shutdown.StopHTTPServer("metrics", metricsSrv, log))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("master listening on %s (storage=%s)", cfg.ListenAddr, cfg.StorageDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("master server: %v", err)
			os.Exit(1)
		}
	}()

	<-stop
	log.Infof("shutting down")
	sd.Shutdown()
}
