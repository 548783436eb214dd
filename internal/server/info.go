package server

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/seedlink-go/seedlink/internal/ring"
	"github.com/seedlink-go/seedlink/internal/wire"
)

const xmlProlog = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// infoDocument is the `<seedlink>` root INFO XML document.
type infoDocument struct {
	XMLName      xml.Name         `xml:"seedlink"`
	Software     string           `xml:"software,attr"`
	Organization string           `xml:"organization,attr"`
	Started      string           `xml:"started,attr"`
	Stations     []infoStationXML `xml:"station,omitempty"`
	Connections  []infoConnXML    `xml:"connection,omitempty"`
}

type infoStationXML struct {
	Name     string          `xml:"name,attr"`
	Network  string          `xml:"net,attr"`
	BeginSeq string          `xml:"begin_seq,attr"`
	EndSeq   string          `xml:"end_seq,attr"`
	Streams  []infoStreamXML `xml:"stream,omitempty"`
}

type infoStreamXML struct {
	Seedname string `xml:"seedname,attr"`
	Location string `xml:"location,attr"`
	Type     string `xml:"type,attr"`
	BeginSeq string `xml:"begin_seq,attr"`
	EndSeq   string `xml:"end_seq,attr"`
}

type infoConnXML struct {
	Host      string `xml:"host,attr"`
	Port      string `xml:"port,attr"`
	CTime     string `xml:"ctime,attr"`
	Proto     string `xml:"proto,attr"`
	UserAgent string `xml:"useragent,attr"`
	State     string `xml:"state,attr"`
}

// InfoConfig supplies the identity fields every INFO level's document
// carries (software/organization/start time).
type InfoConfig struct {
	Software     string
	Organization string
	Started      time.Time
}

func (c InfoConfig) render(doc *infoDocument) {
	doc.Software = c.Software
	doc.Organization = c.Organization
	doc.Started = c.Started.UTC().Format("2006/01/02 15:04:05")
}

// RenderInfoID builds the ID-level INFO XML: identity only, no children.
func RenderInfoID(cfg InfoConfig) ([]byte, error) {
	doc := &infoDocument{}
	cfg.render(doc)
	return marshalInfo(doc)
}

// RenderInfoStations builds the STATIONS-level INFO XML from the ring's
// station sequence ranges, optionally annotated with display names.
func RenderInfoStations(cfg InfoConfig, stations map[wire.StationKey][2]wire.SequenceNumber, names map[string]string) ([]byte, error) {
	doc := &infoDocument{}
	cfg.render(doc)
	for key, rng := range stations {
		doc.Stations = append(doc.Stations, infoStationXML{
			Name:     displayName(names, key, key.Station),
			Network:  key.Network,
			BeginSeq: rng[0].HexV3(),
			EndSeq:   rng[1].HexV3(),
		})
	}
	return marshalInfo(doc)
}

// RenderInfoStreams builds the STREAMS-level INFO XML, nesting <stream>
// elements inside their owning <station>.
func RenderInfoStreams(cfg InfoConfig, stations map[wire.StationKey][2]wire.SequenceNumber, streams []ring.StreamInfo, names map[string]string) ([]byte, error) {
	doc := &infoDocument{}
	cfg.render(doc)

	byStation := make(map[wire.StationKey]int)
	for key, rng := range stations {
		doc.Stations = append(doc.Stations, infoStationXML{
			Name:     displayName(names, key, key.Station),
			Network:  key.Network,
			BeginSeq: rng[0].HexV3(),
			EndSeq:   rng[1].HexV3(),
		})
		byStation[key] = len(doc.Stations) - 1
	}
	for _, si := range streams {
		idx, ok := byStation[si.Station]
		if !ok {
			continue
		}
		s := &doc.Stations[idx]
		s.Streams = append(s.Streams, infoStreamXML{
			Seedname: fmt.Sprintf("%s%s", si.Location, si.Channel),
			Location: si.Location,
			Type:     string(si.Type),
			BeginSeq: si.FirstSeq.HexV3(),
			EndSeq:   si.LastSeq.HexV3(),
		})
	}
	return marshalInfo(doc)
}

// RenderInfoConnections builds the CONNECTIONS-level INFO XML from the
// connection registry.
func RenderInfoConnections(cfg InfoConfig, entries []*ConnectionEntry) ([]byte, error) {
	doc := &infoDocument{}
	cfg.render(doc)
	for _, e := range entries {
		host, port := splitHostPort(e.PeerAddr)
		doc.Connections = append(doc.Connections, infoConnXML{
			Host:      host,
			Port:      port,
			CTime:     e.ConnectedAt.UTC().Format("2006/01/02 15:04:05"),
			Proto:     e.Protocol().String(),
			UserAgent: e.UserAgent(),
			State:     e.State().String(),
		})
	}
	return marshalInfo(doc)
}

func marshalInfo(doc *infoDocument) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xmlProlog)+len(body)+1)
	out = append(out, xmlProlog...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func displayName(names map[string]string, key wire.StationKey, fallback string) string {
	if names == nil {
		return fallback
	}
	if n, ok := names[key.NetSta()]; ok {
		return n
	}
	return fallback
}

func splitHostPort(addr string) (host, port string) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:]
		}
	}
	return addr, ""
}
