package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/seedlink-go/seedlink/internal/metrics"
	"github.com/seedlink-go/seedlink/internal/miniseed"
	"github.com/seedlink-go/seedlink/internal/ring"
	"github.com/seedlink-go/seedlink/internal/wire"
)

// Supervisor owns the shared ring and connection registry, accepts
// incoming TCP connections, and hands each to its own Handler goroutine.
type Supervisor struct {
	cfg     Config
	ring    *ring.Ring
	reg     *Registry
	metrics *metrics.Metrics
	logger  *slog.Logger
	started time.Time

	wg sync.WaitGroup
}

// NewSupervisor builds a Supervisor with a fresh ring sized per cfg.
func NewSupervisor(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Supervisor{
		cfg:     cfg,
		ring:    ring.New(cfg.RingCapacity),
		reg:     NewRegistry(),
		metrics: m,
		logger:  logger,
		started: time.Now(),
	}
}

// Ring exposes the supervisor's record store, for producers that push
// miniSEED records (e.g. an ingest feed or test harness).
func (s *Supervisor) Ring() *ring.Ring { return s.ring }

// Registry exposes the live connection table, for INFO CONNECTIONS and
// metrics scraping.
func (s *Supervisor) Registry() *Registry { return s.reg }

// Push validates and stores one miniSEED record, updating the ring depth
// gauge. Producer-side entry point; independent of any client connection.
func (s *Supervisor) Push(payload []byte) (wire.SequenceNumber, error) {
	station, err := miniseed.StationKey(payload)
	if err != nil {
		return 0, err
	}
	seq, err := s.ring.Push(station, payload)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RingDepth.Set(float64(s.ring.Len()))
	}
	return seq, nil
}

// Serve accepts connections on ln until ctx is cancelled or ln.Close is
// called, spawning one Handler goroutine per accepted connection. After
// ctx is cancelled it blocks until every spawned handler has returned and
// then returns nil; any other accept error is returned at once, without
// waiting for handlers.
func (s *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		s.ring.Close()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			h := NewHandler(conn, s.ring, s.reg, s.cfg, s.metrics, s.started, s.logger)
			h.Serve(ctx)
		}()
	}
}

// Shutdown waits for all in-flight handlers to finish. Callers typically
// cancel the context passed to Serve first, then call Shutdown to block
// until every connection has drained.
func (s *Supervisor) Shutdown() {
	s.wg.Wait()
}
