package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/seedlink-go/seedlink/internal/codec"
)

func TestSupervisor_PushThenFetchOverRealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	sup := NewSupervisor(Config{Software: "Test", Version: "1.0", RingCapacity: 16}, nil, nil)

	rec := make([]byte, 512)
	copy(rec[8:13], "ANMO ")
	copy(rec[13:15], "00")
	copy(rec[15:18], "BHZ")
	copy(rec[18:20], "IU")
	rec[20], rec[21] = 0x07, 0xE8
	rec[22], rec[23] = 0x00, 0x01
	rec[510] = 0xCD

	seq, err := sup.Push(rec)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan struct{})
	go func() {
		sup.Serve(ctx, ln)
		close(serveDone)
	}()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	br := bufio.NewReader(conn)
	conn.Write([]byte("HELLO\r\n"))
	codec.ReadLine(br) // software line
	codec.ReadLine(br) // organization line

	conn.Write([]byte("STATION ANMO IU\r\n"))
	if got := readRespLine(t, br); got != "OK" {
		t.Fatalf("got %q, want OK", got)
	}
	conn.Write([]byte("SELECT BHZ\r\n"))
	if got := readRespLine(t, br); got != "OK" {
		t.Fatalf("got %q, want OK", got)
	}
	conn.Write([]byte("FETCH\r\n"))
	if got := readRespLine(t, br); got != "OK" {
		t.Fatalf("got %q, want OK", got)
	}

	c := codec.V3Codec{}
	f, err := c.DecodeFrame(br)
	if err != nil {
		t.Fatal(err)
	}
	if f.Sequence != seq {
		t.Fatalf("got sequence %v, want %v", f.Sequence, seq)
	}

	cancel()
	conn.Close()
	<-serveDone
}

func readRespLine(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	line, err := codec.ReadLine(br)
	if err != nil {
		t.Fatal(err)
	}
	return line
}
