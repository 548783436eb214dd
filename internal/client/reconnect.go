package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seedlink-go/seedlink/internal/wire"
)

// ErrReconnectFailed is returned once a Reconnecting client exhausts its
// configured maximum number of consecutive reconnect attempts.
var ErrReconnectFailed = errors.New("client: exceeded maximum reconnect attempts")

// ReconnectOptions configures a Reconnecting client's backoff schedule.
type ReconnectOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64 // 0 means 2.0
	MaxAttempts    int     // 0 means unlimited
}

func (o ReconnectOptions) withDefaults() ReconnectOptions {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}

// Reconnecting wraps a Client with automatic reconnect-and-resume: it
// records the intent (station select, then subscription parameters)
// used to configure the connection, and replays it against each new
// connection, rewriting DATA's resume sequence to the last sequence
// actually observed for that station so no record is skipped or
// duplicated across a reconnect.
type Reconnecting struct {
	opts       Options
	reconn     ReconnectOptions
	logger     *slog.Logger
	intent     Select
	haveIntent bool

	client  *Client
	lastSeq map[wire.StationKey]wire.SequenceNumber
}

// NewReconnecting builds a Reconnecting client. Call Configure to record
// the subscription intent, then Run to drive the connect/stream/retry
// loop, delivering records to onRecord until ctx is cancelled or the
// backoff schedule is exhausted.
func NewReconnecting(opts Options, reconn ReconnectOptions) *Reconnecting {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconnecting{
		opts:    opts,
		reconn:  reconn.withDefaults(),
		logger:  logger,
		lastSeq: make(map[wire.StationKey]wire.SequenceNumber),
	}
}

// Configure records the subscription intent to replay on every
// (re)connect.
func (rc *Reconnecting) Configure(sel Select) {
	rc.intent = sel
	rc.haveIntent = true
}

// Run connects, configures, and streams records to onRecord until ctx is
// cancelled, reconnecting with exponential backoff on any I/O error. It
// returns ErrReconnectFailed if MaxAttempts consecutive reconnects fail
// without a single record being delivered in between, or ctx.Err() if
// cancelled.
func (rc *Reconnecting) Run(ctx context.Context, onRecord func(Record)) error {
	if !rc.haveIntent {
		return fmt.Errorf("client: Configure must be called before Run")
	}

	backoff := rc.reconn.InitialBackoff
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c := New(rc.opts)
		if err := c.Connect(ctx); err != nil {
			attempts++
			if rc.reconn.MaxAttempts > 0 && attempts >= rc.reconn.MaxAttempts {
				return ErrReconnectFailed
			}
			rc.logger.Warn("connect failed, retrying", "attempt", attempts, "backoff", backoff, "err", err)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, rc.reconn.MaxBackoff, rc.reconn.Multiplier)
			continue
		}
		sel := rc.intentForReplay()
		rc.client = c

		if err := c.Configure(sel); err != nil {
			c.Close()
			attempts++
			if rc.reconn.MaxAttempts > 0 && attempts >= rc.reconn.MaxAttempts {
				return ErrReconnectFailed
			}
			rc.logger.Warn("configure failed, retrying", "attempt", attempts, "backoff", backoff, "err", err)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, rc.reconn.MaxBackoff, rc.reconn.Multiplier)
			continue
		}

		delivered, streamErr := rc.streamUntilError(ctx, c, onRecord)
		c.Close()

		if streamErr == nil || errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded) {
			return streamErr
		}
		if delivered > 0 {
			// The connection was healthy before it dropped: this failure
			// starts a fresh consecutive-failure run.
			attempts = 0
			backoff = rc.reconn.InitialBackoff
		}

		attempts++
		if rc.reconn.MaxAttempts > 0 && attempts >= rc.reconn.MaxAttempts {
			return ErrReconnectFailed
		}
		rc.logger.Warn("stream lost, reconnecting", "attempt", attempts, "backoff", backoff, "err", streamErr)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, rc.reconn.MaxBackoff, rc.reconn.Multiplier)
	}
}

// streamUntilError delivers records for as long as the connection
// survives, dropping any frame whose sequence does not advance the
// dedup cursor recorded for its station: resume overlap after a
// reconnect can redeliver records the caller already saw, and onRecord
// must never observe them twice. It returns the number of records
// actually delivered upward alongside the terminating error.
func (rc *Reconnecting) streamUntilError(ctx context.Context, c *Client, onRecord func(Record)) (int, error) {
	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
		}
		rec, err := c.NextRecord(ctx)
		if err != nil {
			return delivered, err
		}
		station := rec.Station
		if station == (wire.StationKey{}) {
			// v3 frames carry no station id; attribute it to the
			// single station this subscription was opened for.
			station = rc.intent.Station
		} else {
			rc.intent.Station = station
		}

		if last, seen := rc.lastSeq[station]; seen && rec.Sequence <= last {
			continue
		}
		rc.lastSeq[station] = rec.Sequence
		onRecord(rec)
		delivered++
	}
}

// intentForReplay rewrites the recorded intent's resume point to the
// last sequence actually delivered upward for its station, so a
// reconnect resumes exactly where the previous connection left off
// instead of restarting from "now" (which would drop records) or from
// the original fixed sequence (which would re-deliver everything since
// then). It reads rc.lastSeq rather than the outgoing Client, since the
// Client's own per-instance tracking is discarded on reconnect.
func (rc *Reconnecting) intentForReplay() Select {
	sel := rc.intent
	if seq, ok := rc.lastSeq[sel.Station]; ok {
		sel.Resume = seq
	}
	return sel
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(cur, max time.Duration, multiplier float64) time.Duration {
	next := time.Duration(float64(cur) * multiplier)
	if next > max {
		return max
	}
	return next
}
