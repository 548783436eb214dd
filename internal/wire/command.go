package wire

import "fmt"

// CommandKind enumerates the 15 SeedLink commands.
type CommandKind int

const (
	CmdHello CommandKind = iota
	CmdStation
	CmdSelect
	CmdData
	CmdEnd
	CmdBye
	CmdInfo
	CmdBatch
	CmdFetch
	CmdTime
	CmdCat
	CmdSLProto
	CmdAuth
	CmdUserAgent
	CmdEndFetch
)

func (k CommandKind) String() string {
	switch k {
	case CmdHello:
		return "HELLO"
	case CmdStation:
		return "STATION"
	case CmdSelect:
		return "SELECT"
	case CmdData:
		return "DATA"
	case CmdEnd:
		return "END"
	case CmdBye:
		return "BYE"
	case CmdInfo:
		return "INFO"
	case CmdBatch:
		return "BATCH"
	case CmdFetch:
		return "FETCH"
	case CmdTime:
		return "TIME"
	case CmdCat:
		return "CAT"
	case CmdSLProto:
		return "SLPROTO"
	case CmdAuth:
		return "AUTH"
	case CmdUserAgent:
		return "USERAGENT"
	case CmdEndFetch:
		return "ENDFETCH"
	default:
		return "UNKNOWN"
	}
}

// Command is a discriminated union over the SeedLink command set. Only
// the fields relevant to Kind are populated; see the per-field comments.
type Command struct {
	Kind CommandKind

	// STATION
	Station string
	Network string

	// SELECT: raw pattern token, parsed by the handler via ParseSelectPattern.
	Pattern string

	// DATA, FETCH: optional explicit resume sequence.
	Sequence    SequenceNumber
	HasSequence bool

	// TIME: raw "YYYY,M,D,h,m,s" tokens, parsed by the handler via ParseTimeArg.
	TimeStart string
	TimeEnd   string // empty if omitted

	// INFO: level token, e.g. "ID", "STATIONS", "STREAMS", "CONNECTIONS".
	InfoLevel string

	// SLPROTO: requested version token, e.g. "4.0".
	ProtoVersion string

	// USERAGENT: free-form client-supplied text.
	UserAgent string

	// AUTH: raw credential tokens. Not implemented by this core; carried
	// only so the wire union is complete and version gating can reject it.
	AuthArgs []string
}

// String renders the command roughly as it appears on the wire, for
// logging. The codec owns the exact per-version rendering.
func (c Command) String() string {
	switch c.Kind {
	case CmdStation:
		return fmt.Sprintf("STATION %s %s", c.Station, c.Network)
	case CmdSelect:
		return fmt.Sprintf("SELECT %s", c.Pattern)
	case CmdData:
		if c.HasSequence {
			return fmt.Sprintf("DATA %s", c.Sequence.Decimal())
		}
		return "DATA"
	case CmdFetch:
		if c.HasSequence {
			return fmt.Sprintf("FETCH %s", c.Sequence.Decimal())
		}
		return "FETCH"
	case CmdTime:
		if c.TimeEnd != "" {
			return fmt.Sprintf("TIME %s %s", c.TimeStart, c.TimeEnd)
		}
		return fmt.Sprintf("TIME %s", c.TimeStart)
	case CmdInfo:
		return fmt.Sprintf("INFO %s", c.InfoLevel)
	case CmdSLProto:
		return fmt.Sprintf("SLPROTO %s", c.ProtoVersion)
	case CmdUserAgent:
		return fmt.Sprintf("USERAGENT %s", c.UserAgent)
	default:
		return c.Kind.String()
	}
}

// IsValidFor reports whether this command kind may be used on the given
// negotiated protocol version: BATCH/FETCH/TIME/CAT are v3-only.
// SLPROTO is the upgrade request itself, so it is only valid while the
// connection is still in its initial v3 state; AUTH/USERAGENT/ENDFETCH
// are only meaningful once that upgrade has completed.
func (c Command) IsValidFor(v ProtocolVersion) bool {
	switch c.Kind {
	case CmdBatch, CmdFetch, CmdTime, CmdCat, CmdSLProto:
		return v == V3
	case CmdAuth, CmdUserAgent, CmdEndFetch:
		return v == V4
	default:
		return true
	}
}
