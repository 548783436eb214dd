// Package match implements the subscription matcher: three independent
// tests (station, channel pattern, time window) combined with AND.
package match

import (
	"github.com/seedlink-go/seedlink/internal/miniseed"
	"github.com/seedlink-go/seedlink/internal/wire"
)

// Station reports whether payload's embedded station identity equals sub's.
func Station(sub *wire.Subscription, station wire.StationKey) bool {
	return sub.Station.Equal(station)
}

// Channel reports whether payload's location/channel/quality bytes pass
// any of sub's select patterns. An empty pattern list passes everything.
func Channel(sub *wire.Subscription, payload []byte) bool {
	if len(sub.Patterns) == 0 {
		return true
	}
	location, channel, quality, err := miniseed.SelectFields(payload)
	if err != nil {
		return false
	}
	for _, p := range sub.Patterns {
		if p.Matches(location, channel, quality) {
			return true
		}
	}
	return false
}

// Time reports whether payload's embedded start time passes sub's time
// window. No window passes everything. An unparseable BTime fails closed
// (rejected).
func Time(sub *wire.Subscription, payload []byte) bool {
	if sub.Window == nil {
		return true
	}
	t, err := miniseed.StartTime(payload)
	if err != nil {
		return false
	}
	return sub.Window.Contains(t)
}

// Record reports whether a record (station + payload) passes all three
// tests for sub.
func Record(sub *wire.Subscription, station wire.StationKey, payload []byte) bool {
	return Station(sub, station) && Channel(sub, payload) && Time(sub, payload)
}

// Any reports whether a record passes at least one subscription in subs.
func Any(subs []*wire.Subscription, station wire.StationKey, payload []byte) bool {
	for _, sub := range subs {
		if Record(sub, station, payload) {
			return true
		}
	}
	return false
}
