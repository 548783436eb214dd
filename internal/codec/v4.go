package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seedlink-go/seedlink/internal/wire"
)

// V4Codec implements Codec for the v4 wire format: variable-length
// binary frames with little-endian fields, and decimal sequence
// rendering in commands.
type V4Codec struct{}

func (V4Codec) Version() wire.ProtocolVersion { return wire.V4 }

func (V4Codec) EncodeCommand(w io.Writer, cmd wire.Command) error {
	if !cmd.IsValidFor(wire.V4) {
		return wire.ErrVersionMismatch
	}
	line, err := encodeCommandV4(cmd)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, line+"\r\n")
	return err
}

func encodeCommandV4(cmd wire.Command) (string, error) {
	switch cmd.Kind {
	case wire.CmdHello:
		return "HELLO", nil
	case wire.CmdStation:
		return fmt.Sprintf("STATION %s_%s", cmd.Network, cmd.Station), nil
	case wire.CmdSelect:
		return fmt.Sprintf("SELECT %s", cmd.Pattern), nil
	case wire.CmdData:
		if cmd.HasSequence {
			if cmd.Sequence == wire.AllData {
				return "DATA ALL", nil
			}
			return fmt.Sprintf("DATA %s", cmd.Sequence.Decimal()), nil
		}
		return "DATA", nil
	case wire.CmdEnd:
		return "END", nil
	case wire.CmdBye:
		return "BYE", nil
	case wire.CmdInfo:
		return fmt.Sprintf("INFO %s", cmd.InfoLevel), nil
	case wire.CmdSLProto:
		return fmt.Sprintf("SLPROTO %s", cmd.ProtoVersion), nil
	case wire.CmdAuth:
		return "AUTH " + strings.Join(cmd.AuthArgs, " "), nil
	case wire.CmdUserAgent:
		return fmt.Sprintf("USERAGENT %s", cmd.UserAgent), nil
	case wire.CmdEndFetch:
		return "ENDFETCH", nil
	default:
		return "", wire.ErrVersionMismatch
	}
}

func (V4Codec) DecodeCommand(line string) (wire.Command, error) {
	verb, rest := splitVerb(line)
	switch strings.ToUpper(verb) {
	case "HELLO":
		return wire.Command{Kind: wire.CmdHello}, nil
	case "STATION":
		key, ok := wire.ParseNetSta(strings.TrimSpace(rest))
		if !ok {
			return wire.Command{}, wire.ErrMalformedCommand
		}
		return wire.Command{Kind: wire.CmdStation, Station: key.Station, Network: key.Network}, nil
	case "SELECT":
		return wire.Command{Kind: wire.CmdSelect, Pattern: strings.TrimSpace(rest)}, nil
	case "DATA":
		return decodeSeqCommand(wire.CmdData, rest, parseDecimalSequence)
	case "END":
		return wire.Command{Kind: wire.CmdEnd}, nil
	case "BYE":
		return wire.Command{Kind: wire.CmdBye}, nil
	case "INFO":
		return wire.Command{Kind: wire.CmdInfo, InfoLevel: strings.TrimSpace(rest)}, nil
	case "SLPROTO":
		return wire.Command{Kind: wire.CmdSLProto, ProtoVersion: strings.TrimSpace(rest)}, nil
	case "AUTH":
		return wire.Command{Kind: wire.CmdAuth, AuthArgs: strings.Fields(rest)}, nil
	case "USERAGENT":
		return wire.Command{Kind: wire.CmdUserAgent, UserAgent: strings.TrimSpace(rest)}, nil
	case "ENDFETCH":
		return wire.Command{Kind: wire.CmdEndFetch}, nil
	// v3-only verbs still decode here so the dispatch layer can reject
	// them with ERROR UNSUPPORTED rather than a parse failure.
	case "FETCH":
		return decodeSeqCommand(wire.CmdFetch, rest, parseDecimalSequence)
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
	case "BATCH":
		return wire.Command{Kind: wire.CmdBatch}, nil
	case "CAT":
		return wire.Command{Kind: wire.CmdCat}, nil
	default:
		return wire.Command{}, wire.ErrUnknownCommand
	}
}

func (V4Codec) EncodeResponse(w io.Writer, resp wire.Response) error {
	_, err := io.WriteString(w, resp.String()+"\r\n")
	return err
}

func (V4Codec) DecodeResponse(line string) (wire.Response, error) {
	return decodeResponseLine(line)
}

const v4HeaderLen = 17 // fixed prefix before the variable-length station id

func (V4Codec) EncodeFrame(w io.Writer, f wire.Frame) error {
	if !f.Format.Valid() || !f.Subformat.Valid() {
		return wire.ErrBadFormat
	}
	if len(f.StationID) > 255 {
		return wire.ErrMalformedCommand
	}
	header := make([]byte, v4HeaderLen+len(f.StationID))
	header[0], header[1] = 'S', 'E'
	header[2] = byte(f.Format)
	header[3] = byte(f.Subformat)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(f.Payload)))
	binary.LittleEndian.PutUint64(header[8:16], uint64(f.Sequence))
	header[16] = byte(len(f.StationID))
	copy(header[17:], f.StationID)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(f.Payload)
	return err
}

func (V4Codec) DecodeFrame(r io.Reader) (wire.Frame, error) {
	fixed := make([]byte, v4HeaderLen)
	if _, err := io.ReadFull(r, fixed); err != nil {
		if err == io.ErrUnexpectedEOF {
			return wire.Frame{}, wire.ErrFrameTooShort
		}
		return wire.Frame{}, err
	}
	if fixed[0] != 'S' || fixed[1] != 'E' {
		return wire.Frame{}, wire.ErrInvalidSignature
	}
	format := wire.PayloadFormat(fixed[2])
	subformat := wire.PayloadSubformat(fixed[3])
	if !format.Valid() || !subformat.Valid() {
		return wire.Frame{}, wire.ErrBadFormat
	}
	payloadLen := binary.LittleEndian.Uint32(fixed[4:8])
	seq := wire.SequenceNumber(binary.LittleEndian.Uint64(fixed[8:16]))
	stationIDLen := int(fixed[16])

	rest := make([]byte, stationIDLen+int(payloadLen))
	if n, err := io.ReadFull(r, rest); err != nil {
		if err == io.ErrUnexpectedEOF {
			if n >= stationIDLen {
				return wire.Frame{}, wire.ErrPayloadLengthMismatch
			}
			return wire.Frame{}, wire.ErrFrameTooShort
		}
		return wire.Frame{}, err
	}
	stationID := string(rest[:stationIDLen])
	payload := rest[stationIDLen:]
	if uint32(len(payload)) != payloadLen {
		return wire.Frame{}, wire.ErrPayloadLengthMismatch
	}

	return wire.Frame{
		Version:   wire.V4,
		Sequence:  seq,
		Payload:   payload,
		Format:    format,
		Subformat: subformat,
		StationID: stationID,
	}, nil
}

func parseDecimalSequence(s string) (wire.SequenceNumber, error) {
	if strings.EqualFold(s, "ALL") {
		return wire.AllData, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, wire.ErrInvalidSequence
	}
	return wire.SequenceNumber(n), nil
}
