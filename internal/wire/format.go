package wire

// PayloadFormat is the v4 frame's byte-2 format tag.
type PayloadFormat byte

const (
	FormatMiniSEED2 PayloadFormat = '2'
	FormatMiniSEED3 PayloadFormat = '3'
	FormatJSON      PayloadFormat = 'J'
	FormatXML       PayloadFormat = 'X'
)

func (f PayloadFormat) Valid() bool {
	switch f {
	case FormatMiniSEED2, FormatMiniSEED3, FormatJSON, FormatXML:
		return true
	default:
		return false
	}
}

// PayloadSubformat is the v4 frame's byte-3 subformat tag.
type PayloadSubformat byte

const (
	SubformatData        PayloadSubformat = 'D'
	SubformatEvent       PayloadSubformat = 'E'
	SubformatCalibration PayloadSubformat = 'C'
	SubformatTiming      PayloadSubformat = 'T'
	SubformatLog         PayloadSubformat = 'L'
	SubformatOpaque      PayloadSubformat = 'O'
	SubformatInfo        PayloadSubformat = 'I'
	SubformatInfoError   PayloadSubformat = 'X'
)

func (s PayloadSubformat) Valid() bool {
	switch s {
	case SubformatData, SubformatEvent, SubformatCalibration, SubformatTiming,
		SubformatLog, SubformatOpaque, SubformatInfo, SubformatInfoError:
		return true
	default:
		return false
	}
}
