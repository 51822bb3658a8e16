package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"github.com/framecast/videoengine/internal/config"
	"github.com/framecast/videoengine/internal/dag"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/resources"
	"github.com/framecast/videoengine/internal/shutdown"
	"github.com/framecast/videoengine/internal/storage/localfs"
	"github.com/framecast/videoengine/internal/workerservice"
)

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
		log := logging.New(logging.ERROR, false)
		log.Errorf("loading config: %v", err)
		os.Exit(1)
	}

	log := logging.New(levelFromString(cfg.LogLevel), cfg.LogJSON)

	backend, err := localfs.New(cfg.StorageDir)
	if err != nil {
		log.Errorf("opening storage dir %s: %v", cfg.StorageDir, err)
		os.Exit(1)
	}
	meta := metastore.New(backend, log)
	registry := dag.NewRegistry()

	httpClient := &http.Client{Timeout: 0}
	masterClient := workerservice.NewMasterClient(cfg.MasterAddr, httpClient)

	svc := workerservice.NewService(backend, meta, registry, masterClient, workerservice.DiscardSink{}, log, cfg.WorkerConcurrency)

	router := mux.NewRouter()
	svc.RegisterRoutes(router)
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sd := shutdown.New(15*time.Second, log)
	sd.Register(shutdown.StopHTTPServer("worker", srv, log))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("worker listening on %s, master=%s, concurrency=%d", cfg.ListenAddr, cfg.MasterAddr, cfg.WorkerConcurrency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("worker server: %v", err)
			os.Exit(1)
		}
	}()

	if err := registerWithMaster(cfg); err != nil {
		log.Warnf("registering with master %s: %v", cfg.MasterAddr, err)
	}

	<-stop
	log.Infof("shutting down")
	sd.Shutdown()
}

// registerWithMaster posts this worker's advertised address to the
// master's /workers/register route, mirroring masterapi's own request
// shape without importing it (the HTTP route, not a Go dependency,
// is what's shared between the two processes).
func registerWithMaster(cfg config.Config) error {
	addr := cfg.AdvertiseAddr
	if addr == "" {
		addr = "http://localhost" + strings.TrimPrefix(cfg.ListenAddr, "http://")
	}

	body, err := json.Marshal(struct {
		Address   string             `json:"address"`
		Resources resources.Snapshot `json:"resources"`
	}{Address: addr, Resources: resources.Probe()})
	if err != nil {
		return err
	}

	resp, err := http.Post(cfg.MasterAddr+"/workers/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("master returned status %d", resp.StatusCode)
	}
	return nil
}
