// Package miniseed reads the handful of fixed-header byte offsets the
// SeedLink core needs from a miniSEED record: station identity and start
// time. The miniSEED codec itself (blockettes, data encodings, and so on)
// is a separate library elsewhere in the stack. This package only
// understands the fixed 48-byte header prefix common to miniSEED2
// records.
package miniseed

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/seedlink-go/seedlink/internal/wire"
)

// RecordLength is the only payload size the v3 wire format can carry.
const RecordLength = 512

const (
	offStation  = 8
	lenStation  = 5
	offLocation = 13
	lenLocation = 2
	offChannel  = 15
	lenChannel  = 3
	offQuality  = 6
	offNetwork  = 18
	lenNetwork  = 2
	offBTime    = 20
)

// ErrShortRecord means the payload is too small to contain the fixed
// header fields this package reads.
var ErrShortRecord = fmt.Errorf("miniseed: record shorter than fixed header")

// StationKey extracts the (network, station) identity from a record's
// fixed header.
func StationKey(payload []byte) (wire.StationKey, error) {
	if len(payload) < offNetwork+lenNetwork {
		return wire.StationKey{}, ErrShortRecord
	}
	sta := string(payload[offStation : offStation+lenStation])
	net := string(payload[offNetwork : offNetwork+lenNetwork])
	return wire.NewStationKey(net, sta), nil
}

// SelectFields extracts the three bytes the subscription matcher's channel
// pattern test compares against: location, channel, and quality/type.
func SelectFields(payload []byte) (location, channel string, quality byte, err error) {
	if len(payload) < offChannel+lenChannel {
		return "", "", 0, ErrShortRecord
	}
	location = string(payload[offLocation : offLocation+lenLocation])
	channel = string(payload[offChannel : offChannel+lenChannel])
	quality = payload[offQuality]
	return location, channel, quality, nil
}

// BTime is a decoded miniSEED binary timestamp: year, day-of-year
// (1-based), hour, minute, second, and 0.0001s ticks.
type BTime struct {
	Year   uint16
	Day    uint16
	Hour   uint8
	Minute uint8
	Second uint8
	Ticks  uint16
}

// ErrBadBTime means the BTime fields could not be interpreted as a valid
// calendar date/time (out-of-range day-of-year, hour, minute, or second).
var ErrBadBTime = fmt.Errorf("miniseed: invalid BTime")

// StartTime extracts and decodes the record's start time into epoch
// seconds (UTC). It fails closed: any BTime that doesn't decode to a valid
// calendar time is reported as an error, never silently clamped.
func StartTime(payload []byte) (time.Time, error) {
	if len(payload) < offBTime+10 {
		return time.Time{}, ErrShortRecord
	}
	b := BTime{
		Year:   binary.BigEndian.Uint16(payload[offBTime : offBTime+2]),
		Day:    binary.BigEndian.Uint16(payload[offBTime+2 : offBTime+4]),
		Hour:   payload[offBTime+4],
		Minute: payload[offBTime+5],
		Second: payload[offBTime+6],
		// payload[offBTime+7] is unused/alignment padding.
		Ticks: binary.BigEndian.Uint16(payload[offBTime+8 : offBTime+10]),
	}
	return b.Time()
}

// Time converts a decoded BTime into an absolute UTC time, honoring leap
// years via the standard library's calendar arithmetic (Jan 1 of Year,
// plus Day-1 days, plus the intraday offset).
func (b BTime) Time() (time.Time, error) {
	if b.Day < 1 || b.Day > 366 {
		return time.Time{}, ErrBadBTime
	}
	if b.Hour > 23 || b.Minute > 59 || b.Second > 60 {
		return time.Time{}, ErrBadBTime
	}
	base := time.Date(int(b.Year), time.January, 1, 0, 0, 0, 0, time.UTC)
	base = base.AddDate(0, 0, int(b.Day)-1)
	nanos := int(b.Ticks) * 100000
	t := time.Date(
		base.Year(), base.Month(), base.Day(),
		int(b.Hour), int(b.Minute), int(b.Second), nanos,
		time.UTC,
	)
	// Reject day-of-year values that overflowed into the next year (e.g.
	// Day=366 on a non-leap year).
	if base.Year() != int(b.Year) {
		return time.Time{}, ErrBadBTime
	}
	return t, nil
}
