package transport

import (
	"fmt"
	"io"
	"net"
	"time"
)

const tcpSocketBufSize = 256 * 1024

// Server accepts command clients. The gateway serves exactly one client at
// a time; further connection attempts queue in the listen backlog.
type Server struct {
	ln *net.TCPListener
}

func ListenTCP(addr string) (*Server, error) {
	bind, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	ln, err := net.ListenTCP("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", addr, err)
	}
	return &Server{ln: ln}, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Accept blocks up to timeout for the next client and applies low-latency
// tuning to the accepted connection. It returns (nil, nil) on timeout so
// the accept loop can observe cancellation.
func (s *Server) Accept(timeout time.Duration) (*TCPConn, error) {
	if timeout > 0 {
		if err := s.ln.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("accept deadline: %w", err)
		}
	}
	conn, err := s.ln.AcceptTCP()
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, nil
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	tune(conn)
	return &TCPConn{conn: conn}, nil
}

func (s *Server) Close() error {
	return s.ln.Close()
}

// tune disables send coalescing and enlarges the socket buffers. Best
// effort: a failure leaves the defaults in place.
func tune(conn *net.TCPConn) {
	_ = conn.SetNoDelay(true)
	_ = conn.SetReadBuffer(tcpSocketBufSize)
	_ = conn.SetWriteBuffer(tcpSocketBufSize)
}

// TCPConn adapts one accepted stream to the packet Conn contract. Packets
// are fixed-size, so framing is byte counting: a partial read is carried
// over to the next TryReceive instead of being discarded.
type TCPConn struct {
	conn    *net.TCPConn
	pending []byte
}

func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *TCPConn) Send(pkt []byte) error {
	if _, err := c.conn.Write(pkt); err != nil {
		return fmt.Errorf("tcp send: %w", err)
	}
	return nil
}

// TryReceive assembles exactly size bytes from the stream, waiting up to
// timeout. The peer closing mid-stream yields ErrPeerDisconnected.
func (c *TCPConn) TryReceive(timeout time.Duration, size int) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(effectiveTimeout(timeout))); err != nil {
		return nil, fmt.Errorf("tcp set deadline: %w", err)
	}
	if len(c.pending) < size {
		need := size - len(c.pending)
		buf := make([]byte, need)
		n, err := io.ReadFull(c.conn, buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return nil, nil
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrPeerDisconnected
			}
			return nil, fmt.Errorf("tcp receive: %w", err)
		}
	}
	pkt := append([]byte(nil), c.pending[:size]...)
	c.pending = c.pending[size:]
	return pkt, nil
}

func (c *TCPConn) Close() error {
	return c.conn.Close()
}
