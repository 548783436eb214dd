package server

import (
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/xid"

	"github.com/seedlink-go/seedlink/internal/wire"
)

// ConnState is a connection's position in the handler state machine:
// Connected -> Configured -> Streaming.
type ConnState int

const (
	StateConnected ConnState = iota
	StateConfigured
	StateStreaming
)

func (s ConnState) String() string {
	switch s {
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

// ConnectionEntry is the registry's record of one live connection: stable
// identity plus the mutable fields INFO CONNECTIONS reports.
type ConnectionEntry struct {
	ID          string
	PeerAddr    string
	ConnectedAt time.Time

	mu        sync.RWMutex
	protocol  wire.ProtocolVersion
	userAgent string
	state     ConnState
}

// NewConnectionEntry creates an entry with a fresh globally-unique,
// time-sortable id (github.com/rs/xid), in the Connected state.
func NewConnectionEntry(peerAddr string) *ConnectionEntry {
	return &ConnectionEntry{
		ID:          xid.New().String(),
		PeerAddr:    peerAddr,
		ConnectedAt: time.Now(),
		protocol:    wire.V3,
		state:       StateConnected,
	}
}

func (e *ConnectionEntry) Protocol() wire.ProtocolVersion {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.protocol
}

func (e *ConnectionEntry) SetProtocol(v wire.ProtocolVersion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.protocol = v
}

func (e *ConnectionEntry) UserAgent() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userAgent
}

func (e *ConnectionEntry) SetUserAgent(ua string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userAgent = ua
}

func (e *ConnectionEntry) State() ConnState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *ConnectionEntry) SetState(s ConnState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// String renders a debug dump of the entry's current snapshot.
func (e *ConnectionEntry) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return spew.Sprintf(
		"server.ConnectionEntry(id=%s, peer=%s, protocol=%v, state=%v, useragent=%q)",
		e.ID, e.PeerAddr, e.protocol, e.state, e.userAgent,
	)
}
