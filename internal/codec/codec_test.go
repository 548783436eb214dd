package codec_test

import (
	"bufio"
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/seedlink-go/seedlink/internal/codec"
	"github.com/seedlink-go/seedlink/internal/wire"
)

func TestV3FrameRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 512)
	f := wire.V3DataFrame(1, payload)

	var buf bytes.Buffer
	c := codec.V3Codec{}
	if err := c.EncodeFrame(&buf, f); err != nil {
		t.Fatal(err)
	}

	want := append([]byte("SL000001"), payload...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got %x, want %x", buf.Bytes(), want)
	}

	got, err := c.DecodeFrame(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Sequence != f.Sequence || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}

	// Re-encode and compare byte-for-byte.
	var buf2 bytes.Buffer
	if err := c.EncodeFrame(&buf2, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Fatal("encode(decode(X)) != X")
	}
}

func TestV3Frame_LiteralScenario(t *testing.T) {
	// One record for (IU, ANMO), sequence 1.
	payload := make([]byte, 512)
	f := wire.V3DataFrame(1, payload)
	var buf bytes.Buffer
	if err := (codec.V3Codec{}).EncodeFrame(&buf, f); err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()[:8]
	want := []byte{0x53, 0x4C, 0x30, 0x30, 0x30, 0x30, 0x30, 0x31}
	if !bytes.Equal(got, want) {
		t.Fatalf("header = %x, want %x", got, want)
	}
}

func TestV4Frame_LiteralScenario(t *testing.T) {
	// NET_STA "IU_ANMO", sequence 1, 512-byte payload.
	payload := make([]byte, 512)
	f := wire.V4DataFrame("IU_ANMO", 1, payload)
	var buf bytes.Buffer
	if err := (codec.V4Codec{}).EncodeFrame(&buf, f); err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()[:24]
	want := []byte{
		0x53, 0x45, 0x32, 0x44, 0x00, 0x02, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x07, 0x49, 0x55, 0x5F, 0x41, 0x4E, 0x4D, 0x4F,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("header = %x, want %x", got, want)
	}
}

func TestV4FrameRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x99}, 37)
	f := wire.V4DataFrame("IU_ANMO", 12345, payload)

	var buf bytes.Buffer
	c := codec.V4Codec{}
	if err := c.EncodeFrame(&buf, f); err != nil {
		t.Fatal(err)
	}
	got, err := c.DecodeFrame(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	var buf2 bytes.Buffer
	if err := c.EncodeFrame(&buf2, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Fatal("encode(decode(X)) != X")
	}
}

func TestV4Frame_PayloadLengthMismatch(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01}, 10)
	f := wire.V4DataFrame("IU_ANMO", 1, payload)
	var buf bytes.Buffer
	if err := (codec.V4Codec{}).EncodeFrame(&buf, f); err != nil {
		t.Fatal(err)
	}
	// Truncate the payload so actual bytes available < header's claimed length.
	truncated := buf.Bytes()[:buf.Len()-3]
	if _, err := (codec.V4Codec{}).DecodeFrame(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestV3Frame_InvalidSignature(t *testing.T) {
	buf := make([]byte, 520)
	buf[0], buf[1] = 'X', 'X'
	if _, err := (codec.V3Codec{}).DecodeFrame(bytes.NewReader(buf)); err != wire.ErrInvalidSignature {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestV3Frame_TooShort(t *testing.T) {
	buf := make([]byte, 100)
	if _, err := (codec.V3Codec{}).DecodeFrame(bytes.NewReader(buf)); err != wire.ErrFrameTooShort {
		t.Fatalf("got %v, want ErrFrameTooShort", err)
	}
}

func TestCommandRoundTrip_V3(t *testing.T) {
	cmds := []wire.Command{
		{Kind: wire.CmdHello},
		{Kind: wire.CmdStation, Station: "ANMO", Network: "IU"},
		{Kind: wire.CmdSelect, Pattern: "BHZ"},
		{Kind: wire.CmdData},
		{Kind: wire.CmdData, Sequence: 3, HasSequence: true},
		{Kind: wire.CmdFetch, Sequence: 3, HasSequence: true},
		{Kind: wire.CmdTime, TimeStart: "2024,1,1,0,0,0"},
		{Kind: wire.CmdTime, TimeStart: "2024,1,1,0,0,0", TimeEnd: "2024,1,2,0,0,0"},
		{Kind: wire.CmdEnd},
		{Kind: wire.CmdBye},
		{Kind: wire.CmdInfo, InfoLevel: "STATIONS"},
		{Kind: wire.CmdBatch},
		{Kind: wire.CmdCat},
		{Kind: wire.CmdSLProto, ProtoVersion: "4.0"},
	}
	c := codec.V3Codec{}
	for _, cmd := range cmds {
		var buf bytes.Buffer
		if err := c.EncodeCommand(&buf, cmd); err != nil {
			t.Fatalf("encode %v: %v", cmd.Kind, err)
		}
		line := strings.TrimSuffix(buf.String(), "\r\n")
		got, err := c.DecodeCommand(line)
		if err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if !reflect.DeepEqual(got, cmd) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, cmd)
		}
	}
}

func TestCommandRoundTrip_V4(t *testing.T) {
	cmds := []wire.Command{
		{Kind: wire.CmdHello},
		{Kind: wire.CmdStation, Station: "ANMO", Network: "IU"},
		{Kind: wire.CmdSelect, Pattern: "BHZ"},
		{Kind: wire.CmdData},
		{Kind: wire.CmdData, Sequence: 42, HasSequence: true},
		{Kind: wire.CmdData, Sequence: wire.AllData, HasSequence: true},
		{Kind: wire.CmdEnd},
		{Kind: wire.CmdBye},
		{Kind: wire.CmdInfo, InfoLevel: "CONNECTIONS"},
		{Kind: wire.CmdUserAgent, UserAgent: "seedlink-go/1.0"},
		{Kind: wire.CmdEndFetch},
	}
	c := codec.V4Codec{}
	for _, cmd := range cmds {
		var buf bytes.Buffer
		if err := c.EncodeCommand(&buf, cmd); err != nil {
			t.Fatalf("encode %v: %v", cmd.Kind, err)
		}
		line := strings.TrimSuffix(buf.String(), "\r\n")
		got, err := c.DecodeCommand(line)
		if err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if !reflect.DeepEqual(got, cmd) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, cmd)
		}
	}
}

func TestVersionGating(t *testing.T) {
	v3Only := wire.Command{Kind: wire.CmdBatch}
	if v3Only.IsValidFor(wire.V4) {
		t.Fatal("BATCH should be invalid for v4")
	}
	var buf bytes.Buffer
	if err := (codec.V4Codec{}).EncodeCommand(&buf, v3Only); err != wire.ErrVersionMismatch {
		t.Fatalf("got %v, want ErrVersionMismatch", err)
	}

	v4Only := wire.Command{Kind: wire.CmdUserAgent, UserAgent: "x"}
	if v4Only.IsValidFor(wire.V3) {
		t.Fatal("USERAGENT should be invalid for v3")
	}
	var buf2 bytes.Buffer
	if err := (codec.V3Codec{}).EncodeCommand(&buf2, v4Only); err != wire.ErrVersionMismatch {
		t.Fatalf("got %v, want ErrVersionMismatch", err)
	}

	slproto := wire.Command{Kind: wire.CmdSLProto, ProtoVersion: "4.0"}
	if slproto.IsValidFor(wire.V4) {
		t.Fatal("SLPROTO should be invalid once already negotiated to v4")
	}
	var buf3 bytes.Buffer
	if err := (codec.V4Codec{}).EncodeCommand(&buf3, slproto); err != wire.ErrVersionMismatch {
		t.Fatalf("got %v, want ErrVersionMismatch", err)
	}
}

func TestResponseParsing(t *testing.T) {
	c := codec.V3Codec{}
	ok, err := c.DecodeResponse("OK")
	if err != nil || ok.Kind != wire.RespOK {
		t.Fatalf("got %+v, %v", ok, err)
	}
	end, err := c.DecodeResponse("END")
	if err != nil || end.Kind != wire.RespEnd {
		t.Fatalf("got %+v, %v", end, err)
	}
	errResp, err := c.DecodeResponse("ERROR ARGUMENTS bad pattern")
	if err != nil {
		t.Fatal(err)
	}
	if errResp.Kind != wire.RespError || errResp.Code != wire.ErrArguments || errResp.Description != "bad pattern" {
		t.Fatalf("got %+v", errResp)
	}
}

func TestReadLine_AcceptsAllTerminators(t *testing.T) {
	input := "HELLO\r\nSTATION ANMO IU\nEND\r"
	r := bufio.NewReader(strings.NewReader(input))
	var lines []string
	for {
		line, err := codec.ReadLine(r)
		if err != nil {
			break
		}
		lines = append(lines, line)
	}
	want := []string{"HELLO", "STATION ANMO IU", "END"}
	if len(lines) != len(want) {
		t.Fatalf("got %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}
