// Command seedlink-server runs a SeedLink v3/v4 real-time data server: a
// bounded in-memory ring buffer served to any number of concurrent
// streaming clients. This command connects no ingest source, so the ring
// starts and stays empty unless a producer calls Supervisor.Push.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/MatusOllah/slogcolor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/seedlink-go/seedlink/internal/metrics"
	"github.com/seedlink-go/seedlink/internal/server"
)

const stationsFile = "stations.yaml"

var (
	listenAddr  = flag.String("listen", ":18000", "Address to listen for SeedLink clients on")
	metricsAddr = flag.String("metrics", ":9100", "Address to serve Prometheus metrics on")
	ringSize    = flag.Int("ring-size", 4096, "Number of records held in the ring buffer")
	isVerbose   = flag.Bool("verbose", false, "Enable display of DEBUG log messages")
	software    = flag.String("software", "SeedLink-Go", "Software name advertised in HELLO/INFO ID")
	version     = flag.String("version", "1.0", "Version string advertised in HELLO/INFO ID")
	org         = flag.String("organization", "", "Organization string advertised in HELLO/INFO ID")
)

// stationAnnotations loads the optional NET_STA -> display name mapping
// used to decorate INFO STATIONS/STREAMS. A missing file is fine; a
// malformed one is logged and ignored.
func stationAnnotations(fn string) map[string]string {
	data, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No station annotation file found", "fn", fn)
		} else {
			slog.Warn("Unable to read station annotation file", "fn", fn, "err", err)
		}
		return nil
	}
	names := make(map[string]string)
	if err := yaml.Unmarshal(data, &names); err != nil {
		slog.Warn("Unable to parse station annotation file", "fn", fn, "err", err)
		return nil
	}
	return names
}

func main() {
	flag.Parse()

	opts := slogcolor.DefaultOptions
	if *isVerbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}
	logger := slog.New(slogcolor.NewHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	cfg := server.Config{
		Software:     *software,
		Version:      *version,
		Organization: *org,
		RingCapacity: *ringSize,
		StationNames: stationAnnotations(stationsFile),
	}

	m := metrics.New()
	sup := server.NewSupervisor(cfg, m, logger)

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		slog.Error("Unable to listen", "addr", *listenAddr, "err", err)
		os.Exit(1)
	}
	slog.Info("Listening for SeedLink clients", "addr", *listenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
		slog.Info("Serving metrics", "addr", *metricsAddr)
		if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
			slog.Error("Metrics server exited", "err", err)
		}
	}()

	if err := sup.Serve(ctx, ln); err != nil {
		slog.Error("Server exited", "err", err)
	}
	wg.Wait()
	slog.Info("Shutdown complete")
}
