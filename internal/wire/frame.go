package wire

// Frame is the decoded form of a SeedLink data frame, the "OwnedFrame"
// tagged union from the data model: V3 frames carry only a sequence and
// payload; V4 frames additionally carry format/subformat tags and a
// station id.
type Frame struct {
	Version   ProtocolVersion
	Sequence  SequenceNumber
	Payload   []byte
	Format    PayloadFormat    // v4 only
	Subformat PayloadSubformat // v4 only
	StationID string           // v4 only
}

// V3DataFrame builds a v3 frame for the given sequence and payload.
func V3DataFrame(seq SequenceNumber, payload []byte) Frame {
	return Frame{Version: V3, Sequence: seq, Payload: payload}
}

// V4DataFrame builds a v4 miniSEED2/Data frame for the given station,
// sequence, and payload.
func V4DataFrame(station string, seq SequenceNumber, payload []byte) Frame {
	return Frame{
		Version:   V4,
		Sequence:  seq,
		Payload:   payload,
		Format:    FormatMiniSEED2,
		Subformat: SubformatData,
		StationID: station,
	}
}
