package transport

import (
	"fmt"
	"net"
	"time"
)

// receive buffer comfortably above the largest packet; an oversized
// datagram is discarded, not truncated into a valid-looking one.
const udpReadBufSize = 1024

// UDP pairs one socket bound for receive with one socket used only to send
// to a fixed destination.
type UDP struct {
	rx   *net.UDPConn
	tx   *net.UDPConn
	dest *net.UDPAddr
}

// OpenUDP binds rxAddr for inbound commands and prepares an unconnected
// send socket towards txAddr.
func OpenUDP(rxAddr, txAddr string) (*UDP, error) {
	bind, err := net.ResolveUDPAddr("udp", rxAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve rx %q: %w", rxAddr, err)
	}
	rx, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("bind rx %q: %w", rxAddr, err)
	}

	dest, err := net.ResolveUDPAddr("udp", txAddr)
	if err != nil {
		rx.Close()
		return nil, fmt.Errorf("resolve tx %q: %w", txAddr, err)
	}
	tx, err := net.ListenUDP("udp", nil)
	if err != nil {
		rx.Close()
		return nil, fmt.Errorf("open tx socket: %w", err)
	}

	return &UDP{rx: rx, tx: tx, dest: dest}, nil
}

// LocalRxAddr reports the bound receive address (useful with port 0).
func (u *UDP) LocalRxAddr() *net.UDPAddr {
	return u.rx.LocalAddr().(*net.UDPAddr)
}

func (u *UDP) Send(pkt []byte) error {
	if _, err := u.tx.WriteToUDP(pkt, u.dest); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

// TryReceive polls the bound socket. A datagram of any other length than
// size is treated as no packet and silently discarded.
func (u *UDP) TryReceive(timeout time.Duration, size int) ([]byte, error) {
	if err := u.rx.SetReadDeadline(time.Now().Add(effectiveTimeout(timeout))); err != nil {
		return nil, fmt.Errorf("udp set deadline: %w", err)
	}
	buf := make([]byte, udpReadBufSize)
	n, _, err := u.rx.ReadFromUDP(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, nil
		}
		return nil, fmt.Errorf("udp receive: %w", err)
	}
	if n != size {
		return nil, nil
	}
	return buf[:n], nil
}

func (u *UDP) Close() error {
	err := u.rx.Close()
	if terr := u.tx.Close(); err == nil {
		err = terr
	}
	return err
}
