// Package wire defines the value objects shared by the SeedLink codec,
// server, and client: protocol version, sequence numbers, station keys,
// select patterns, time windows, and the command/response vocabulary.
package wire

// ProtocolVersion identifies which of the two incompatible SeedLink wire
// formats a connection has negotiated. It is immutable for the lifetime of
// a connection once negotiation completes.
type ProtocolVersion int

const (
	V3 ProtocolVersion = iota
	V4
)

func (v ProtocolVersion) String() string {
	switch v {
	case V3:
		return "v3"
	case V4:
		return "v4"
	default:
		return "unknown"
	}
}
