package wire

// Subscription is a per-connection filter: a station plus an optional set
// of channel-select patterns and an optional time window, combined with a
// requested resume sequence. A connection holds an ordered list of these;
// STATION opens a new one, SELECT/TIME/DATA/FETCH attach to the most
// recently opened one.
type Subscription struct {
	Station    StationKey
	Patterns   []SelectPattern
	Window     *TimeWindow
	ResumeFrom SequenceNumber
}

// NewSubscription opens a bare subscription for a station with no filters
// and no resume point yet requested.
func NewSubscription(station StationKey) *Subscription {
	return &Subscription{
		Station:    station,
		ResumeFrom: Unset,
	}
}
