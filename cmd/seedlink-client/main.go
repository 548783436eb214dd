// Command seedlink-client connects to a SeedLink server, subscribes to
// one station/channel selection, and prints each received record,
// automatically reconnecting and resuming on connection loss.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/MatusOllah/slogcolor"

	"github.com/seedlink-go/seedlink/internal/client"
	"github.com/seedlink-go/seedlink/internal/wire"
)

var (
	addr      = flag.String("addr", "localhost:18000", "SeedLink server address")
	station   = flag.String("station", "", "Station in NET_STA form, e.g. IU_ANMO")
	selectArg = flag.String("select", "", "Comma-separated SELECT patterns, e.g. BHZ,BHN")
	preferV4  = flag.Bool("v4", true, "Negotiate the v4 protocol via SLPROTO")
	oneShot   = flag.Bool("fetch", false, "Issue FETCH (one-shot) instead of DATA (continuous)")
	isVerbose = flag.Bool("verbose", false, "Enable display of DEBUG log messages")
)

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

	if *station == "" {
		slog.Error("Missing required -station flag")
		os.Exit(1)
	}
	key, ok := wire.ParseNetSta(*station)
	if !ok {
		slog.Error("Invalid -station value, expected NET_STA form", "station", *station)
		os.Exit(1)
	}

	var patterns []string
	if *selectArg != "" {
		patterns = strings.Split(*selectArg, ",")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	rc := client.NewReconnecting(
		client.Options{
			Addr:           *addr,
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PreferV4:       *preferV4,
			UserAgent:      "seedlink-go-client/1.0",
			Logger:         logger,
		},
		client.ReconnectOptions{
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
	)
	rc.Configure(client.Select{
		Station:  key,
		Patterns: patterns,
		OneShot:  *oneShot,
	})

	err := rc.Run(ctx, func(rec client.Record) {
		fmt.Printf("seq=%s station=%s bytes=%d\n", rec.Sequence.Decimal(), rec.Station.NetSta(), len(rec.Payload))
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("Client exited", "err", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
