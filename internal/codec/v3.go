package codec

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seedlink-go/seedlink/internal/wire"
)

// V3Codec implements Codec for the v3 wire format: fixed 520-byte frames
// with ASCII hex sequence numbers, and space-separated command text with
// decimal/hex argument rendering as specified per command.
type V3Codec struct{}

func (V3Codec) Version() wire.ProtocolVersion { return wire.V3 }

func (V3Codec) EncodeCommand(w io.Writer, cmd wire.Command) error {
	if !cmd.IsValidFor(wire.V3) {
		return wire.ErrVersionMismatch
	}
	line, err := encodeCommandV3(cmd)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, line+"\r\n")
	return err
}

func encodeCommandV3(cmd wire.Command) (string, error) {
	switch cmd.Kind {
	case wire.CmdHello:
		return "HELLO", nil
	case wire.CmdStation:
		return fmt.Sprintf("STATION %s %s", cmd.Station, cmd.Network), nil
	case wire.CmdSelect:
		return fmt.Sprintf("SELECT %s", cmd.Pattern), nil
	case wire.CmdData:
		if cmd.HasSequence {
			return fmt.Sprintf("DATA %s", cmd.Sequence.HexV3()), nil
		}
		return "DATA", nil
	case wire.CmdFetch:
		if cmd.HasSequence {
			return fmt.Sprintf("FETCH %s", cmd.Sequence.HexV3()), nil
		}
		return "FETCH", nil
	case wire.CmdTime:
		if cmd.TimeEnd != "" {
			return fmt.Sprintf("TIME %s %s", cmd.TimeStart, cmd.TimeEnd), nil
		}
		return fmt.Sprintf("TIME %s", cmd.TimeStart), nil
	case wire.CmdEnd:
		return "END", nil
	case wire.CmdBye:
		return "BYE", nil
	case wire.CmdInfo:
		return fmt.Sprintf("INFO %s", cmd.InfoLevel), nil
	case wire.CmdBatch:
		return "BATCH", nil
	case wire.CmdCat:
		return "CAT", nil
	case wire.CmdSLProto:
		return fmt.Sprintf("SLPROTO %s", cmd.ProtoVersion), nil
	default:
		return "", wire.ErrVersionMismatch
	}
}

func (V3Codec) DecodeCommand(line string) (wire.Command, error) {
	verb, rest := splitVerb(line)
	switch strings.ToUpper(verb) {
	case "HELLO":
		return wire.Command{Kind: wire.CmdHello}, nil
	case "STATION":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return wire.Command{}, wire.ErrMalformedCommand
		}
		return wire.Command{Kind: wire.CmdStation, Station: fields[0], Network: fields[1]}, nil
	case "SELECT":
		return wire.Command{Kind: wire.CmdSelect, Pattern: strings.TrimSpace(rest)}, nil
	case "DATA":
		return decodeSeqCommand(wire.CmdData, rest, parseHexSequence)
	case "FETCH":
		return decodeSeqCommand(wire.CmdFetch, rest, parseHexSequence)
	case "TIME":
		fields := strings.Fields(rest)
		if len(fields) < 1 || len(fields) > 2 {
			return wire.Command{}, wire.ErrMalformedCommand
		}
		cmd := wire.Command{Kind: wire.CmdTime, TimeStart: fields[0]}
		if len(fields) == 2 {
			cmd.TimeEnd = fields[1]
		}
		return cmd, nil
	case "END":
		return wire.Command{Kind: wire.CmdEnd}, nil
	case "BYE":
		return wire.Command{Kind: wire.CmdBye}, nil
	case "INFO":
		return wire.Command{Kind: wire.CmdInfo, InfoLevel: strings.TrimSpace(rest)}, nil
	case "BATCH":
		return wire.Command{Kind: wire.CmdBatch}, nil
	case "CAT":
		return wire.Command{Kind: wire.CmdCat}, nil
	case "SLPROTO":
		return wire.Command{Kind: wire.CmdSLProto, ProtoVersion: strings.TrimSpace(rest)}, nil
	// v4-only verbs still decode here so the dispatch layer can reject
	// them with ERROR UNSUPPORTED rather than a parse failure.
	case "AUTH":
		return wire.Command{Kind: wire.CmdAuth, AuthArgs: strings.Fields(rest)}, nil
	case "USERAGENT":
		return wire.Command{Kind: wire.CmdUserAgent, UserAgent: strings.TrimSpace(rest)}, nil
	case "ENDFETCH":
		return wire.Command{Kind: wire.CmdEndFetch}, nil
	default:
		return wire.Command{}, wire.ErrUnknownCommand
	}
}

func (V3Codec) EncodeResponse(w io.Writer, resp wire.Response) error {
	_, err := io.WriteString(w, resp.String()+"\r\n")
	return err
}

func (V3Codec) DecodeResponse(line string) (wire.Response, error) {
	return decodeResponseLine(line)
}

// v3 frame: "SL" + 6 hex digits + 512-byte payload = 520 bytes.
const v3FrameLen = 520
const v3HeaderLen = 8

func (V3Codec) EncodeFrame(w io.Writer, f wire.Frame) error {
	if len(f.Payload) != 512 {
		return wire.ErrPayloadLengthMismatch
	}
	buf := make([]byte, v3FrameLen)
	buf[0], buf[1] = 'S', 'L'
	copy(buf[2:8], []byte(f.Sequence.HexV3()))
	copy(buf[8:], f.Payload)
	_, err := w.Write(buf)
	return err
}

func (V3Codec) DecodeFrame(r io.Reader) (wire.Frame, error) {
	buf := make([]byte, v3FrameLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return wire.Frame{}, wire.ErrFrameTooShort
		}
		return wire.Frame{}, err
	}
	if buf[0] != 'S' || buf[1] != 'L' {
		return wire.Frame{}, wire.ErrInvalidSignature
	}
	seq, err := parseHexSequenceBytes(buf[2:8])
	if err != nil {
		return wire.Frame{}, wire.ErrInvalidSequence
	}
	payload := make([]byte, 512)
	copy(payload, buf[8:])
	return wire.V3DataFrame(seq, payload), nil
}

func parseHexSequence(s string) (wire.SequenceNumber, error) {
	return parseHexSequenceBytes([]byte(s))
}

func parseHexSequenceBytes(b []byte) (wire.SequenceNumber, error) {
	if len(b) != 6 {
		return 0, wire.ErrInvalidSequence
	}
	for _, c := range b {
		if !isHexUpper(c) {
			return 0, wire.ErrInvalidSequence
		}
	}
	n, err := strconv.ParseUint(string(b), 16, 32)
	if err != nil {
		return 0, wire.ErrInvalidSequence
	}
	return wire.SequenceNumber(n), nil
}

func isHexUpper(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func decodeSeqCommand(kind wire.CommandKind, rest string, parse func(string) (wire.SequenceNumber, error)) (wire.Command, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return wire.Command{Kind: kind}, nil
	}
	seq, err := parse(rest)
	if err != nil {
		return wire.Command{}, err
	}
	return wire.Command{Kind: kind, Sequence: seq, HasSequence: true}, nil
}

func splitVerb(line string) (verb, rest string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

func decodeResponseLine(line string) (wire.Response, error) {
	switch {
	case line == "OK":
		return wire.Response{Kind: wire.RespOK}, nil
	case line == "END":
		return wire.Response{Kind: wire.RespEnd}, nil
	case strings.HasPrefix(line, "ERROR"):
		rest := strings.TrimSpace(strings.TrimPrefix(line, "ERROR"))
		fields := strings.SplitN(rest, " ", 2)
		code := wire.ErrorCode(fields[0])
		if !code.Valid() {
			return wire.Response{}, wire.ErrMalformedCommand
		}
		desc := ""
		if len(fields) == 2 {
			desc = fields[1]
		}
		return wire.Response{Kind: wire.RespError, Code: code, Description: desc}, nil
	default:
		return wire.Response{}, wire.ErrMalformedCommand
	}
}
