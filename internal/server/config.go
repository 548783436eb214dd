package server

// Config carries the server's identity and sizing parameters: software
// name/version/organization render into HELLO and INFO ID responses;
// RingCapacity bounds the ring store.
type Config struct {
	Software     string
	Version      string
	Organization string
	RingCapacity int

	// StationNames optionally maps "NET_STA" to a human display name for
	// INFO STATIONS/STREAMS, loaded from the optional stations.yaml
	// annotation file. Purely cosmetic; never consulted for matching.
	StationNames map[string]string
}

// capabilitiesLine renders the HELLO response's first line: software,
// version, and advertised SLPROTO capability tokens.
func (c Config) capabilitiesLine() string {
	return c.Software + " v" + c.Version + " :: SLPROTO:4.0 SLPROTO:3.1"
}
