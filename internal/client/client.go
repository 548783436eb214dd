// Package client implements a SeedLink client connection: HELLO/SLPROTO
// negotiation, station/select/time/resume configuration, and the
// continuous or one-shot streaming read loop.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/seedlink-go/seedlink/internal/codec"
	"github.com/seedlink-go/seedlink/internal/wire"
)

// State is the client connection's position in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateConfigured:
		return "Configured"
	case StateStreaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// ErrInvalidState is returned when an operation is attempted in a state
// that doesn't support it (e.g. Select before Connect).
var ErrInvalidState = errors.New("client: invalid operation for current state")

// Options configures a Client's dial behaviour and protocol preference.
type Options struct {
	Addr           string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	PreferV4       bool
	UserAgent      string
	Logger         *slog.Logger
}

// Record is one decoded data frame delivered to the caller, normalised
// across protocol versions.
type Record struct {
	Station  wire.StationKey
	Sequence wire.SequenceNumber
	Payload  []byte
}

// Client is a single SeedLink connection's state machine. It is not safe
// for concurrent use by multiple goroutines beyond the documented
// read-loop/close split: one goroutine drives NextRecord while another
// may call Close.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	conn  net.Conn
	r     *bufio.Reader
	codec codec.Codec
	state State

	lastSeq map[wire.StationKey]wire.SequenceNumber
}

// New builds a disconnected Client.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:    opts,
		logger:  logger,
		codec:   codec.V3Codec{},
		state:   StateDisconnected,
		lastSeq: make(map[wire.StationKey]wire.SequenceNumber),
	}
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server, performs HELLO, and (if PreferV4 is set and
// the HELLO capabilities line advertises SLPROTO:4.x) negotiates the v4
// wire protocol via SLPROTO, staying on v3 if the server refuses.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return ErrInvalidState
	}

	d := net.Dialer{Timeout: c.opts.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.opts.Addr)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.opts.Addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	c.codec = codec.V3Codec{}
	c.state = StateConnected

	if err := c.sendCommand(wire.Command{Kind: wire.CmdHello}); err != nil {
		return c.failLocked(err)
	}
	var hello wire.HelloResponse
	if hello.SoftwareLine, err = c.readLine(); err != nil {
		return c.failLocked(err)
	}
	if hello.Organization, err = c.readLine(); err != nil {
		return c.failLocked(err)
	}

	if c.opts.PreferV4 && hello.SupportsV4() {
		if err := c.negotiateV4Locked(); err != nil {
			c.logger.Debug("SLPROTO negotiation failed, staying on v3", "err", err)
		}
	}
	if c.opts.UserAgent != "" && c.codec.Version() == wire.V4 {
		if err := c.doCommandLocked(wire.Command{Kind: wire.CmdUserAgent, UserAgent: c.opts.UserAgent}); err != nil {
			c.logger.Debug("USERAGENT rejected", "err", err)
		}
	}
	return nil
}

func (c *Client) negotiateV4Locked() error {
	if err := c.doCommandLocked(wire.Command{Kind: wire.CmdSLProto, ProtoVersion: "4.0"}); err != nil {
		return err
	}
	c.codec = codec.V4Codec{}
	return nil
}

// Select configures the subscription: opens a new STATION, then applies
// any SELECT patterns, an optional TIME window, and an optional resume
// sequence via DATA/FETCH.
type Select struct {
	Station  wire.StationKey
	Patterns []string
	Window   *wire.TimeWindow
	Resume   wire.SequenceNumber // wire.Unset sends no sequence: the server starts from its oldest held record
	OneShot  bool                // true issues FETCH instead of DATA
}

// Configure applies one Select to the connection and, for continuous
// subscriptions, issues END to enter streaming mode. One-shot (FETCH)
// subscriptions enter streaming mode immediately since FETCH both
// configures and starts the transfer.
func (c *Client) Configure(sel Select) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected && c.state != StateConfigured {
		return ErrInvalidState
	}

	if err := c.doCommandLocked(wire.Command{Kind: wire.CmdStation, Station: sel.Station.Station, Network: sel.Station.Network}); err != nil {
		return err
	}
	for _, p := range sel.Patterns {
		if err := c.doCommandLocked(wire.Command{Kind: wire.CmdSelect, Pattern: p}); err != nil {
			return err
		}
	}
	if sel.Window != nil {
		cmd := wire.Command{Kind: wire.CmdTime, TimeStart: formatTimeArg(sel.Window.Start)}
		if !sel.Window.End.IsZero() {
			cmd.TimeEnd = formatTimeArg(sel.Window.End)
		}
		if err := c.doCommandLocked(cmd); err != nil {
			return err
		}
	}

	kind := wire.CmdData
	if sel.OneShot {
		kind = wire.CmdFetch
	}
	cmd := wire.Command{Kind: kind}
	if sel.Resume.IsSet() {
		cmd.Sequence = sel.Resume
		cmd.HasSequence = true
	}
	if err := c.doCommandLocked(cmd); err != nil {
		return err
	}

	c.state = StateConfigured
	if sel.OneShot {
		c.state = StateStreaming
		return nil
	}
	if err := c.sendCommand(wire.Command{Kind: wire.CmdEnd}); err != nil {
		return c.failLocked(err)
	}
	c.state = StateStreaming
	return nil
}

func formatTimeArg(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d,%d,%d,%d,%d,%d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// NextRecord reads one frame from the stream, applying the read timeout
// if configured, and returns it as a normalised Record. It records the
// most recent sequence seen per station, readable via LastSequence; v3
// frames carry no station id and are recorded under the zero StationKey.
func (c *Client) NextRecord(ctx context.Context) (Record, error) {
	c.mu.Lock()
	conn := c.conn
	cdc := c.codec
	timeout := c.opts.ReadTimeout
	state := c.state
	c.mu.Unlock()

	if state != StateStreaming {
		return Record{}, ErrInvalidState
	}
	if conn == nil {
		return Record{}, net.ErrClosed
	}

	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(dl)
	}

	c.mu.Lock()
	f, err := cdc.DecodeFrame(c.r)
	c.mu.Unlock()
	if err != nil {
		return Record{}, err
	}

	station := c.stationOf(f)

	c.mu.Lock()
	c.lastSeq[station] = f.Sequence
	c.mu.Unlock()

	return Record{Station: station, Sequence: f.Sequence, Payload: f.Payload}, nil
}

func (c *Client) stationOf(f wire.Frame) wire.StationKey {
	if f.Version == wire.V4 {
		if key, ok := wire.ParseNetSta(f.StationID); ok {
			return key
		}
	}
	return wire.StationKey{}
}

// LastSequence returns the most recent sequence number observed for station,
// and whether any record has been seen for it yet.
func (c *Client) LastSequence(station wire.StationKey) (wire.SequenceNumber, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq, ok := c.lastSeq[station]
	return seq, ok
}

// Close terminates the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	c.state = StateDisconnected
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) failLocked(err error) error {
	c.closeLocked()
	return err
}

func (c *Client) sendCommand(cmd wire.Command) error {
	return c.codec.EncodeCommand(c.conn, cmd)
}

func (c *Client) readLine() (string, error) {
	return codec.ReadLine(c.r)
}

// doCommandLocked sends cmd and waits for its OK/ERROR response line. The
// caller must already hold c.mu.
func (c *Client) doCommandLocked(cmd wire.Command) error {
	if err := c.sendCommand(cmd); err != nil {
		return c.failLocked(err)
	}
	line, err := c.readLine()
	if err != nil {
		return c.failLocked(err)
	}
	resp, err := c.codec.DecodeResponse(line)
	if err != nil {
		return c.failLocked(err)
	}
	if resp.Kind == wire.RespError {
		return fmt.Errorf("client: %s rejected: %s", cmd.Kind, resp.String())
	}
	return nil
}

// String renders a debug dump of the client's current state.
func (c *Client) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return spew.Sprintf("client.Client(addr=%s, state=%v, protocol=%v)", c.opts.Addr, c.state, c.codec.Version())
}
