package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/seedlink-go/seedlink/internal/codec"
	"github.com/seedlink-go/seedlink/internal/match"
	"github.com/seedlink-go/seedlink/internal/metrics"
	"github.com/seedlink-go/seedlink/internal/ring"
	"github.com/seedlink-go/seedlink/internal/wire"
)

// Handler runs one connection's state machine: parses commands line by
// line until END or FETCH, then streams matching records until the
// subscription is caught up (one-shot) or the connection closes
// (continuous).
type Handler struct {
	conn     net.Conn
	ring     *ring.Ring
	registry *Registry
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	started  time.Time

	entry *ConnectionEntry
	codec codec.Codec

	subs    []*wire.Subscription
	cursors map[*wire.Subscription]wire.SequenceNumber
}

// NewHandler builds a Handler for an accepted connection.
func NewHandler(conn net.Conn, r *ring.Ring, reg *Registry, cfg Config, m *metrics.Metrics, started time.Time, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		conn:     conn,
		ring:     r,
		registry: reg,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		started:  started,
		entry:    NewConnectionEntry(conn.RemoteAddr().String()),
		codec:    codec.V3Codec{},
		cursors:  make(map[*wire.Subscription]wire.SequenceNumber),
	}
}

// Serve runs the handler to completion: command loop, then (if reached)
// the streaming loop. It always unregisters the connection before
// returning, regardless of how the connection ended.
func (h *Handler) Serve(ctx context.Context) {
	h.registry.Add(h.entry)
	if h.metrics != nil {
		h.metrics.ConnectionsActive.Inc()
	}
	defer func() {
		h.registry.Remove(h.entry.ID)
		if h.metrics != nil {
			h.metrics.ConnectionsActive.Dec()
		}
		h.conn.Close()
	}()

	h.logger.Debug("connection accepted", "conn_id", h.entry.ID, "peer", h.entry.PeerAddr)

	mode, err := h.commandLoop(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			h.logger.Debug("connection ended", "conn_id", h.entry.ID, "err", err)
		}
		return
	}
	if mode == modeNone {
		return
	}

	h.entry.SetState(StateStreaming)
	if err := h.streamLoop(ctx, mode); err != nil {
		h.logger.Debug("streaming ended", "conn_id", h.entry.ID, "err", err)
	}
}

type streamMode int

const (
	modeNone streamMode = iota
	modeContinuous
	modeOneShot
)

// commandLoop reads and dispatches commands until END, FETCH, BYE, EOF,
// or a fatal error.
func (h *Handler) commandLoop(ctx context.Context) (streamMode, error) {
	r := bufio.NewReader(h.conn)
	for {
		select {
		case <-ctx.Done():
			return modeNone, ctx.Err()
		default:
		}

		line, err := codec.ReadLine(r)
		if err != nil {
			return modeNone, err
		}
		if line == "" {
			continue
		}

		cmd, err := h.codec.DecodeCommand(line)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownCommand) {
				h.writeError(wire.ErrUnsupported, "unrecognised command")
			} else {
				h.writeError(wire.ErrArguments, err.Error())
			}
			continue
		}
		if !cmd.IsValidFor(h.codec.Version()) {
			h.writeError(wire.ErrUnsupported, fmt.Sprintf("%s not valid for %s", cmd.Kind, h.codec.Version()))
			continue
		}

		h.logger.Debug("command", "conn_id", h.entry.ID, "command", cmd.String())

		switch cmd.Kind {
		case wire.CmdHello:
			h.writeHello()
		case wire.CmdSLProto:
			h.handleSLProto(cmd)
		case wire.CmdUserAgent:
			h.entry.SetUserAgent(cmd.UserAgent)
			h.writeOK()
		case wire.CmdStation:
			h.subs = append(h.subs, wire.NewSubscription(wire.NewStationKey(cmd.Network, cmd.Station)))
			h.entry.SetState(StateConfigured)
			h.writeOK()
		case wire.CmdSelect:
			if err := h.handleSelect(cmd); err != nil {
				h.writeError(wire.ErrArguments, err.Error())
			} else {
				h.writeOK()
			}
		case wire.CmdTime:
			if err := h.handleTime(cmd); err != nil {
				h.writeError(wire.ErrArguments, err.Error())
			} else {
				h.writeOK()
			}
		case wire.CmdData:
			if err := h.handleResume(cmd); err != nil {
				h.writeError(wire.ErrArguments, err.Error())
			} else {
				h.writeOK()
			}
		case wire.CmdFetch:
			if err := h.handleResume(cmd); err != nil {
				h.writeError(wire.ErrArguments, err.Error())
				continue
			}
			h.writeOK()
			return modeOneShot, nil
		case wire.CmdEnd:
			return modeContinuous, nil
		case wire.CmdBatch:
			h.writeOK()
		case wire.CmdInfo:
			h.handleInfo(cmd)
		case wire.CmdBye:
			return modeNone, nil
		case wire.CmdEndFetch:
			return modeNone, nil
		default:
			h.writeError(wire.ErrUnsupported, "")
		}
	}
}

func (h *Handler) handleSLProto(cmd wire.Command) {
	if strings.TrimSpace(cmd.ProtoVersion) != "4.0" {
		h.writeError(wire.ErrUnsupported, "unsupported SLPROTO version")
		return
	}
	h.codec = codec.V4Codec{}
	h.entry.SetProtocol(wire.V4)
	h.writeOK()
}

func (h *Handler) currentSub() (*wire.Subscription, error) {
	if len(h.subs) == 0 {
		return nil, fmt.Errorf("no station selected")
	}
	return h.subs[len(h.subs)-1], nil
}

func (h *Handler) handleSelect(cmd wire.Command) error {
	sub, err := h.currentSub()
	if err != nil {
		return err
	}
	p, err := wire.ParseSelectPattern(cmd.Pattern)
	if err != nil {
		return err
	}
	sub.Patterns = append(sub.Patterns, p)
	return nil
}

func (h *Handler) handleTime(cmd wire.Command) error {
	sub, err := h.currentSub()
	if err != nil {
		return err
	}
	start, err := wire.ParseTimeArg(cmd.TimeStart)
	if err != nil {
		return err
	}
	w := wire.TimeWindow{Start: start}
	if cmd.TimeEnd != "" {
		end, err := wire.ParseTimeArg(cmd.TimeEnd)
		if err != nil {
			return err
		}
		w.End = end
	}
	sub.Window = &w
	return nil
}

func (h *Handler) handleResume(cmd wire.Command) error {
	sub, err := h.currentSub()
	if err != nil {
		return err
	}
	if cmd.HasSequence {
		sub.ResumeFrom = cmd.Sequence
	} else {
		sub.ResumeFrom = wire.Unset
	}
	return nil
}

func (h *Handler) handleInfo(cmd wire.Command) {
	level, err := wire.ParseInfoLevel(cmd.InfoLevel)
	if err != nil {
		h.writeError(wire.ErrUnsupported, "unsupported INFO level")
		return
	}
	xmlBytes, err := h.renderInfo(level)
	if err != nil {
		h.writeError(wire.ErrInternal, err.Error())
		return
	}
	if err := h.writeInfoFrames(xmlBytes); err != nil {
		h.logger.Debug("failed writing INFO frames", "conn_id", h.entry.ID, "err", err)
	}
}

func (h *Handler) renderInfo(level wire.InfoLevel) ([]byte, error) {
	cfg := InfoConfig{Software: h.cfg.Software, Organization: h.cfg.Organization, Started: h.started}
	switch level {
	case wire.InfoID:
		return RenderInfoID(cfg)
	case wire.InfoStations:
		return RenderInfoStations(cfg, h.ring.Stations(), h.cfg.StationNames)
	case wire.InfoStreams:
		return RenderInfoStreams(cfg, h.ring.Stations(), h.ring.Streams(), h.cfg.StationNames)
	case wire.InfoConnections:
		return RenderInfoConnections(cfg, h.registry.List())
	default:
		return nil, wire.ErrBadInfoLevel
	}
}

// writeInfoFrames wraps an INFO XML document in the negotiated version's
// frame format. v4 carries the whole document in a single variable-length
// frame; v3's fixed 512-byte payload requires splitting into zero-padded
// chunks. The sequence field doubles as the chunk marker: 0 for every
// non-final chunk, 0xFFFFFF for the final one. INFO frames are only ever
// read in direct response to an INFO command, so the marker cannot be
// confused with a data frame's sequence.
func (h *Handler) writeInfoFrames(xmlBytes []byte) error {
	if h.codec.Version() == wire.V4 {
		f := wire.Frame{
			Version:   wire.V4,
			Format:    wire.FormatXML,
			Subformat: wire.SubformatInfo,
			Payload:   xmlBytes,
		}
		return h.codec.EncodeFrame(h.conn, f)
	}

	const chunkSize = 512
	total := len(xmlBytes)
	for off := 0; off < total || off == 0; off += chunkSize {
		end := off + chunkSize
		last := end >= total
		if end > total {
			end = total
		}
		chunk := make([]byte, chunkSize)
		copy(chunk, xmlBytes[off:end])

		seq := wire.SequenceNumber(0)
		if last {
			seq = wire.MaxV3Sequence
		}
		if err := h.codec.EncodeFrame(h.conn, wire.V3DataFrame(seq, chunk)); err != nil {
			return err
		}
		if last {
			break
		}
	}
	return nil
}

func (h *Handler) writeHello() {
	hello := wire.HelloResponse{
		SoftwareLine: h.cfg.capabilitiesLine(),
		Organization: h.cfg.Organization,
	}
	io.WriteString(h.conn, hello.SoftwareLine+"\r\n"+hello.Organization+"\r\n")
}

func (h *Handler) writeOK() {
	h.codec.EncodeResponse(h.conn, wire.Response{Kind: wire.RespOK})
}

func (h *Handler) writeError(code wire.ErrorCode, desc string) {
	h.codec.EncodeResponse(h.conn, wire.Response{Kind: wire.RespError, Code: code, Description: desc})
}

// streamLoop delivers matching records from the ring to the client,
// maintaining one delivery cursor per subscription so a record is never
// re-sent to a subscription that has already passed it.
func (h *Handler) streamLoop(ctx context.Context, mode streamMode) error {
	// Input received once streaming has started is discarded; the read
	// ending (EOF or error) means the socket closed, which stops the loop
	// even while it is idle waiting for new records.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		io.Copy(io.Discard, h.conn)
		cancel()
	}()

	for _, sub := range h.subs {
		h.cursors[sub] = initialCursor(sub, h.ring)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		head := h.ring.Head()
		minCursor := h.minCursor()
		candidates := h.ring.ReadSince(minCursor, h.subs)

		sent := 0
		for _, rec := range candidates {
			if !h.deliverable(rec) {
				continue
			}
			frame := h.frameFor(rec)
			if err := h.codec.EncodeFrame(h.conn, frame); err != nil {
				if h.metrics != nil {
					h.metrics.FramesDroppedTotal.Inc()
				}
				return err
			}
			if h.metrics != nil {
				h.metrics.FramesSentTotal.Inc()
			}
			sent++
		}

		if sent == 0 || allCaughtUp(h.cursors, h.ring.Head()) {
			if mode == modeOneShot {
				return nil
			}
			if err := h.ring.WaitForNew(ctx, head); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) minCursor() wire.SequenceNumber {
	min := wire.SequenceNumber(0)
	first := true
	for _, c := range h.cursors {
		if first || c < min {
			min = c
			first = false
		}
	}
	return min
}

// deliverable reports whether rec is still wanted by at least one
// subscription (content match AND cursor not yet past it), and advances
// the cursors of every subscription it satisfies.
func (h *Handler) deliverable(rec ring.Record) bool {
	delivered := false
	for _, sub := range h.subs {
		cursor := h.cursors[sub]
		if rec.Sequence <= cursor {
			continue
		}
		if !match.Record(sub, rec.Station, rec.Payload) {
			continue
		}
		h.cursors[sub] = rec.Sequence
		delivered = true
	}
	return delivered
}

func (h *Handler) frameFor(rec ring.Record) wire.Frame {
	if h.codec.Version() == wire.V4 {
		return wire.V4DataFrame(rec.Station.NetSta(), rec.Sequence, rec.Payload)
	}
	return wire.V3DataFrame(rec.Sequence, rec.Payload)
}

func allCaughtUp(cursors map[*wire.Subscription]wire.SequenceNumber, head wire.SequenceNumber) bool {
	for _, c := range cursors {
		if c < head {
			return false
		}
	}
	return true
}

func initialCursor(sub *wire.Subscription, r *ring.Ring) wire.SequenceNumber {
	if sub.ResumeFrom.IsSet() {
		return sub.ResumeFrom - 1
	}
	// DATA/FETCH with no explicit sequence (or never issued): start from
	// the oldest record still held.
	if oldest, ok := r.Oldest(); ok {
		return oldest - 1
	}
	return 0
}
