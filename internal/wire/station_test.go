package wire_test

import (
	"testing"

	"github.com/seedlink-go/seedlink/internal/wire"
)

func TestStationKey_Equal(t *testing.T) {
	a := wire.NewStationKey("IU", "ANMO")
	b := wire.NewStationKey("iu", "anmo")
	if !a.Equal(b) {
		t.Fatal("expected case-insensitive equality")
	}
	c := wire.NewStationKey("IU", "COLA")
	if a.Equal(c) {
		t.Fatal("expected different stations to be unequal")
	}
}

func TestStationKey_TrimsTrailingSpace(t *testing.T) {
	k := wire.NewStationKey("IU ", "ANMO ")
	if k.Network != "IU" || k.Station != "ANMO" {
		t.Fatalf("got %+v, want trimmed fields", k)
	}
}

func TestStationKey_NetSta(t *testing.T) {
	k := wire.NewStationKey("IU", "ANMO")
	if got := k.NetSta(); got != "IU_ANMO" {
		t.Fatalf("NetSta() = %q, want %q", got, "IU_ANMO")
	}
}

func TestParseNetSta(t *testing.T) {
	k, ok := wire.ParseNetSta("IU_ANMO")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if !k.Equal(wire.NewStationKey("IU", "ANMO")) {
		t.Fatalf("got %+v", k)
	}
	if _, ok := wire.ParseNetSta("noseparator"); ok {
		t.Fatal("expected parse to fail without separator")
	}
}
