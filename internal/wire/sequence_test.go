package wire_test

import (
	"testing"

	"github.com/seedlink-go/seedlink/internal/wire"
)

func TestSequenceNumber_Next_Wraps(t *testing.T) {
	tests := []struct {
		name string
		in   wire.SequenceNumber
		want wire.SequenceNumber
	}{
		{"from zero", 0, 1},
		{"ordinary increment", 5, 6},
		{"at max wraps to one", wire.MaxV3Sequence, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Next(); got != tt.want {
				t.Fatalf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSequenceNumber_HexV3(t *testing.T) {
	if got := wire.SequenceNumber(1).HexV3(); got != "000001" {
		t.Fatalf("HexV3() = %q, want %q", got, "000001")
	}
	if got := wire.SequenceNumber(0xFFFFFF).HexV3(); got != "FFFFFF" {
		t.Fatalf("HexV3() = %q, want %q", got, "FFFFFF")
	}
}

func TestSequenceNumber_IsSet(t *testing.T) {
	if wire.Unset.IsSet() {
		t.Fatal("Unset.IsSet() = true, want false")
	}
	if wire.AllData.IsSet() {
		t.Fatal("AllData.IsSet() = true, want false")
	}
	if !wire.SequenceNumber(1).IsSet() {
		t.Fatal("SequenceNumber(1).IsSet() = false, want true")
	}
}
