package wire

import "strings"

// StationKey identifies a seismic observing site by (network, station)
// code. Equality is case-insensitive; codes are always stored trimmed of
// trailing spaces, matching how they are packed into fixed-width miniSEED
// fields.
type StationKey struct {
	Network string
	Station string
}

// NewStationKey builds a StationKey, trimming trailing spaces as miniSEED's
// fixed-width fields require.
func NewStationKey(network, station string) StationKey {
	return StationKey{
		Network: strings.TrimRight(network, " "),
		Station: strings.TrimRight(station, " "),
	}
}

// Equal reports case-insensitive equality.
func (k StationKey) Equal(other StationKey) bool {
	return strings.EqualFold(k.Network, other.Network) &&
		strings.EqualFold(k.Station, other.Station)
}

// NetSta renders the v4 "NET_STA" station-id form.
func (k StationKey) NetSta() string {
	return k.Network + "_" + k.Station
}

// String renders "STATION NETWORK" for logging.
func (k StationKey) String() string {
	return k.Station + " " + k.Network
}

// ParseNetSta splits a v4 "NET_STA" station id into a StationKey.
func ParseNetSta(s string) (StationKey, bool) {
	net, sta, found := strings.Cut(s, "_")
	if !found {
		return StationKey{}, false
	}
	return NewStationKey(net, sta), true
}
