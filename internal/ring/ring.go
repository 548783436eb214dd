// Package ring implements the server's bounded FIFO record store: a
// thread-safe ring buffer keyed by global monotonic sequence number, with
// push, read-since-cursor, and cancellable wait-for-new-data operations.
package ring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davecgh/go-spew/spew"

	"github.com/seedlink-go/seedlink/internal/match"
	"github.com/seedlink-go/seedlink/internal/miniseed"
	"github.com/seedlink-go/seedlink/internal/wire"
)

// ErrInvalidPayloadLength is returned by Push when the payload isn't
// exactly 512 bytes, the v3-compatible miniSEED record length.
var ErrInvalidPayloadLength = fmt.Errorf("ring: payload must be exactly %d bytes", miniseed.RecordLength)

// ErrClosed is returned by WaitForNew once the ring has been shut down.
var ErrClosed = errors.New("ring: closed")

// Record is one pushed, immutable entry in the ring.
type Record struct {
	Sequence wire.SequenceNumber
	Station  wire.StationKey
	Payload  []byte
}

// StreamInfo summarises one (station, channel) stream's observed
// sequence range, for INFO STREAMS.
type StreamInfo struct {
	Station  wire.StationKey
	Location string
	Channel  string
	Type     byte
	FirstSeq wire.SequenceNumber
	LastSeq  wire.SequenceNumber
}

// Ring is a bounded, thread-safe FIFO of records keyed by global sequence.
// Push is non-blocking: producers never wait on consumers. Consumers that
// fall behind resume from the oldest available record and may observe a
// sequence gap.
type Ring struct {
	mu      sync.Mutex
	cap     int
	records []Record
	head    wire.SequenceNumber // sequence of the most recently pushed record, 0 if empty
	notify  chan struct{}
	closed  bool
}

// New returns a Ring with the given bounded capacity.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		cap:    capacity,
		notify: make(chan struct{}),
	}
}

// Push atomically assigns the next sequence number, appends the record,
// evicts the oldest record if over capacity, and wakes any waiters.
func (r *Ring) Push(station wire.StationKey, payload []byte) (wire.SequenceNumber, error) {
	if len(payload) != miniseed.RecordLength {
		return 0, ErrInvalidPayloadLength
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.head.Next()
	r.head = seq
	r.records = append(r.records, Record{Sequence: seq, Station: station, Payload: buf})
	if len(r.records) > r.cap {
		r.records = r.records[1:]
	}
	r.wakeLocked()
	return seq, nil
}

func (r *Ring) wakeLocked() {
	close(r.notify)
	r.notify = make(chan struct{})
}

// Len returns the number of records currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Head returns the most recently assigned sequence number, or 0 if the
// ring is empty.
func (r *Ring) Head() wire.SequenceNumber {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head
}

// Oldest returns the sequence number of the oldest record still held, and
// whether the ring holds any records at all.
func (r *Ring) Oldest() (wire.SequenceNumber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return 0, false
	}
	return r.records[0].Sequence, true
}

// ReadSince returns, in push order, every record with Sequence > cursor
// that matches at least one of subs. If subs is empty, no records pass
// (callers with no subscriptions have nothing to read).
func (r *Ring) ReadSince(cursor wire.SequenceNumber, subs []*wire.Subscription) []Record {
	if len(subs) == 0 {
		return nil
	}
	r.mu.Lock()
	snapshot := make([]Record, len(r.records))
	copy(snapshot, r.records)
	r.mu.Unlock()

	var out []Record
	for _, rec := range snapshot {
		if rec.Sequence <= cursor {
			continue
		}
		if match.Any(subs, rec.Station, rec.Payload) {
			out = append(out, rec)
		}
	}
	return out
}

// WaitForNew blocks until the ring's head advances past current, the ring
// is closed, or ctx is cancelled.
func (r *Ring) WaitForNew(ctx context.Context, current wire.SequenceNumber) error {
	for {
		r.mu.Lock()
		head := r.head
		closed := r.closed
		ch := r.notify
		r.mu.Unlock()

		if closed {
			return ErrClosed
		}
		if head != current {
			return nil
		}

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close wakes every waiter permanently; subsequent WaitForNew calls
// return ErrClosed immediately. Used by the server supervisor's shutdown
// path.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.wakeLocked()
}

// Stations returns, for each distinct station currently held, the
// (first, last) sequence numbers observed in the ring.
func (r *Ring) Stations() map[wire.StationKey][2]wire.SequenceNumber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[wire.StationKey][2]wire.SequenceNumber)
	for _, rec := range r.records {
		rng, ok := out[rec.Station]
		if !ok {
			out[rec.Station] = [2]wire.SequenceNumber{rec.Sequence, rec.Sequence}
			continue
		}
		if rec.Sequence < rng[0] {
			rng[0] = rec.Sequence
		}
		if rec.Sequence > rng[1] {
			rng[1] = rec.Sequence
		}
		out[rec.Station] = rng
	}
	return out
}

// Streams returns, for each distinct (station, location, channel, type)
// stream currently held, the observed sequence range.
func (r *Ring) Streams() []StreamInfo {
	r.mu.Lock()
	snapshot := make([]Record, len(r.records))
	copy(snapshot, r.records)
	r.mu.Unlock()

	type key struct {
		station  wire.StationKey
		location string
		channel  string
		kind     byte
	}
	index := make(map[key]*StreamInfo)
	var order []key

	for _, rec := range snapshot {
		loc, chn, qual, err := miniseed.SelectFields(rec.Payload)
		if err != nil {
			continue
		}
		k := key{rec.Station, loc, chn, qual}
		si, ok := index[k]
		if !ok {
			si = &StreamInfo{
				Station: rec.Station, Location: loc, Channel: chn, Type: qual,
				FirstSeq: rec.Sequence, LastSeq: rec.Sequence,
			}
			index[k] = si
			order = append(order, k)
			continue
		}
		if rec.Sequence < si.FirstSeq {
			si.FirstSeq = rec.Sequence
		}
		if rec.Sequence > si.LastSeq {
			si.LastSeq = rec.Sequence
		}
	}

	out := make([]StreamInfo, 0, len(order))
	for _, k := range order {
		out = append(out, *index[k])
	}
	return out
}

// String renders a compact debug dump of the ring's state.
func (r *Ring) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return spew.Sprintf("ring.Ring(cap=%d, len=%d, head=%v, closed=%v)", r.cap, len(r.records), r.head, r.closed)
}
