package server

import (
	"strings"
	"testing"
	"time"

	"github.com/seedlink-go/seedlink/internal/ring"
	"github.com/seedlink-go/seedlink/internal/wire"
)

func TestRenderInfoID(t *testing.T) {
	cfg := InfoConfig{Software: "SeedLink-Go", Organization: "Test Org", Started: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	out, err := RenderInfoID(cfg)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, `software="SeedLink-Go"`) {
		t.Fatalf("missing software attr: %s", s)
	}
	if !strings.Contains(s, `organization="Test Org"`) {
		t.Fatalf("missing organization attr: %s", s)
	}
	if !strings.HasPrefix(s, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("missing xml prolog: %s", s)
	}
}

func TestRenderInfoStations(t *testing.T) {
	cfg := InfoConfig{Software: "SeedLink-Go"}
	key := wire.NewStationKey("IU", "ANMO")
	stations := map[wire.StationKey][2]wire.SequenceNumber{
		key: {1, 42},
	}
	out, err := RenderInfoStations(cfg, stations, map[string]string{"IU_ANMO": "Albuquerque"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, `name="Albuquerque"`) {
		t.Fatalf("missing display name: %s", s)
	}
	if !strings.Contains(s, `begin_seq="000001"`) || !strings.Contains(s, `end_seq="00002A"`) {
		t.Fatalf("missing sequence range: %s", s)
	}
}

func TestRenderInfoStreams_NestsUnderStation(t *testing.T) {
	cfg := InfoConfig{Software: "SeedLink-Go"}
	key := wire.NewStationKey("IU", "ANMO")
	stations := map[wire.StationKey][2]wire.SequenceNumber{key: {1, 2}}
	streams := []ring.StreamInfo{
		{Station: key, Location: "00", Channel: "BHZ", Type: 'D', FirstSeq: 1, LastSeq: 2},
	}
	out, err := RenderInfoStreams(cfg, stations, streams, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, `seedname="00BHZ"`) {
		t.Fatalf("missing stream seedname: %s", s)
	}
}

func TestRenderInfoConnections(t *testing.T) {
	cfg := InfoConfig{Software: "SeedLink-Go"}
	e := NewConnectionEntry("127.0.0.1:5555")
	e.SetUserAgent("test-client/1.0")
	out, err := RenderInfoConnections(cfg, []*ConnectionEntry{e})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, `host="127.0.0.1"`) || !strings.Contains(s, `port="5555"`) {
		t.Fatalf("missing host/port: %s", s)
	}
	if !strings.Contains(s, `useragent="test-client/1.0"`) {
		t.Fatalf("missing useragent: %s", s)
	}
}
