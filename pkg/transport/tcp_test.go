package transport

import (
	"errors"
	"net"
	"testing"
	"time"
)

func acceptOne(t *testing.T, srv *Server) (*TCPConn, net.Conn) {
	t.Helper()

	type result struct {
		conn *TCPConn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := srv.Accept(time.Second)
		done <- result{conn, err}
	}()

	peer, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	res := <-done
	if res.err != nil || res.conn == nil {
		t.Fatalf("accept: %v", res.err)
	}
	return res.conn, peer
}

func TestTCPReceiveExact(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	conn, peer := acceptOne(t, srv)
	defer conn.Close()
	defer peer.Close()

	// Split one 6-byte packet across two writes.
	if _, err := peer.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// First poll sees only half the packet and must not deliver it.
	pkt, err := conn.TryReceive(30*time.Millisecond, 6)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if pkt != nil {
		t.Fatalf("partial packet delivered: %v", pkt)
	}

	if _, err := peer.Write([]byte{4, 5, 6}); err != nil {
		t.Fatalf("write: %v", err)
	}
	pkt, err = conn.TryReceive(time.Second, 6)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(pkt) != 6 || pkt[0] != 1 || pkt[5] != 6 {
		t.Fatalf("unexpected packet: %v", pkt)
	}
}

func TestTCPPeerDisconnect(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	conn, peer := acceptOne(t, srv)
	defer conn.Close()

	peer.Close()

	var got error
	for i := 0; i < 20; i++ {
		_, got = conn.TryReceive(50*time.Millisecond, 4)
		if got != nil {
			break
		}
	}
	if !errors.Is(got, ErrPeerDisconnected) {
		t.Fatalf("want ErrPeerDisconnected, got %v", got)
	}
}

func TestTCPAcceptTimeout(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	conn, err := srv.Accept(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if conn != nil {
		t.Fatal("expected timeout, got a connection")
	}
}
