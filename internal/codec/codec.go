// Package codec implements the version-aware SeedLink wire codec: command
// text encoding/decoding, response parsing, and binary frame
// encoding/decoding for both the v3 fixed-frame format and the v4
// variable-length format.
package codec

import (
	"bufio"
	"io"

	"github.com/seedlink-go/seedlink/internal/wire"
)

// Codec encodes and decodes commands, responses, and frames for one
// negotiated protocol version. It is pure and requires no synchronisation;
// callers may share a Codec value across goroutines freely, though in
// practice each connection holds its own (since V3Codec/V4Codec carry no
// mutable state this costs nothing either way).
type Codec interface {
	Version() wire.ProtocolVersion

	// EncodeCommand renders cmd as one `\r\n`-terminated line.
	EncodeCommand(w io.Writer, cmd wire.Command) error
	// DecodeCommand parses one command line (without its terminator).
	DecodeCommand(line string) (wire.Command, error)

	// EncodeResponse renders resp as one `\r\n`-terminated line.
	EncodeResponse(w io.Writer, resp wire.Response) error
	// DecodeResponse parses one response line (without its terminator).
	DecodeResponse(line string) (wire.Response, error)

	// EncodeFrame writes f in this version's binary frame format.
	EncodeFrame(w io.Writer, f wire.Frame) error
	// DecodeFrame reads one frame in this version's binary frame format.
	DecodeFrame(r io.Reader) (wire.Frame, error)
}

// ForVersion returns the Codec implementation for v.
func ForVersion(v wire.ProtocolVersion) Codec {
	switch v {
	case V4:
		return V4Codec{}
	default:
		return V3Codec{}
	}
}

// V3, V4 re-export wire.ProtocolVersion's constants for callers that only
// import codec.
const (
	V3 = wire.V3
	V4 = wire.V4
)

// ReadLine reads one command/response line from r, accepting "\r\n",
// "\r", or "\n" as the terminator: it stops at the first \r or \n byte
// and consumes one immediately following \r or \n byte as part of the
// same terminator (so a "\r\n" pair never yields a spurious empty line;
// a doubled "\n\n" or "\r\r" is likewise read as a single terminator).
func ReadLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return "", err
		}
		if b == '\r' || b == '\n' {
			break
		}
		buf = append(buf, b)
	}
	// Swallow one following \r or \n byte, if present.
	if b, err := r.Peek(1); err == nil && len(b) == 1 && (b[0] == '\r' || b[0] == '\n') {
		r.ReadByte()
	}
	return string(buf), nil
}
