package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	m := New()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"seedlink_ring_depth",
		"seedlink_connections_active",
		"seedlink_frames_sent_total",
		"seedlink_frames_dropped_total",
	} {
		if !names[want] {
			t.Fatalf("missing collector %q in %v", want, names)
		}
	}
}

func TestNew_EachInstanceHasIndependentRegistry(t *testing.T) {
	m1 := New()
	m2 := New()
	m1.RingDepth.Set(3)
	m2.RingDepth.Set(9)

	if got := testutil.ToFloat64(m1.RingDepth); got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
	if got := testutil.ToFloat64(m2.RingDepth); got != 9 {
		t.Fatalf("got %v, want 9", got)
	}
}
