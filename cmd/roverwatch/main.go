// roverwatch is a terminal monitor for a running gateway: it binds the
// state endpoint, decodes the telemetry stream, and renders attitude,
// encoders and battery live. It can also nudge the vehicle with a few
// keys for bench checks.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rovergate/pkg/protocol"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("roverwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	stateAddr := fs.String("state-addr", "127.0.0.1:20001", "UDP address to receive states on")
	cmdAddr := fs.String("cmd-addr", "127.0.0.1:20002", "UDP address to send commands to")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	bind, err := net.ResolveUDPAddr("udp", *stateAddr)
	if err != nil {
		fmt.Fprintln(stderr, "bad state address:", err)
		return 2
	}
	sock, err := net.ListenUDP("udp", bind)
	if err != nil {
		fmt.Fprintln(stderr, "bind failed:", err)
		return 1
	}
	defer sock.Close()

	sender, err := newCmdSender(*cmdAddr)
	if err != nil {
		fmt.Fprintln(stderr, "command endpoint:", err)
		return 1
	}
	defer sender.Close()

	p := tea.NewProgram(newModel(*stateAddr, sender), tea.WithAltScreen())

	go feedStates(p, sock)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(stderr, "tui failed:", err)
		return 1
	}
	return 0
}

// feedStates pumps decoded packets into the program until the socket
// closes under it when the program exits.
func feedStates(p *tea.Program, sock *net.UDPConn) {
	buf := make([]byte, 256)
	for {
		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			return
		}
		st, err := protocol.DecodeState(buf[:n])
		if err != nil {
			continue
		}
		p.Send(stateMsg(st))
	}
}

// cmdSender pushes one-off commands at the gateway with a local
// sequence counter so each keypress is applied exactly once.
type cmdSender struct {
	conn *net.UDPConn
	seq  uint32
}

func newCmdSender(addr string) (*cmdSender, error) {
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, dst)
	if err != nil {
		return nil, err
	}
	return &cmdSender{conn: conn}, nil
}

func (s *cmdSender) send(a protocol.Actions) {
	s.seq++
	a.Seq = s.seq
	_, _ = s.conn.Write(protocol.EncodeActions(a))
}

func (s *cmdSender) Close() error {
	return s.conn.Close()
}

type stateMsg protocol.State

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	addr   string
	sender *cmdSender

	state  protocol.State
	got    bool
	lastRx time.Time
	count  uint64
	now    time.Time
}

func newModel(addr string, sender *cmdSender) model {
	return model{addr: addr, sender: sender, now: time.Now()}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = protocol.State(msg)
		m.got = true
		m.lastRx = time.Now()
		m.count++
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.sender.send(protocol.Neutral())
			return m, tea.Quit
		case " ":
			m.sender.send(protocol.Neutral())
		case "b":
			beep := protocol.Neutral()
			beep.BeepMs = 200
			beep.Flags = protocol.FlagBeepOnce
			m.sender.send(beep)
		case "up":
			m.sender.send(protocol.Actions{Motors: protocol.Motors{M1: 200, M2: 200, M3: 200, M4: 200}})
		case "down":
			m.sender.send(protocol.Actions{Motors: protocol.Motors{M1: -200, M2: -200, M3: -200, M4: -200}})
		}
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "roverwatch  %s\n\n", m.addr)

	if !m.got {
		b.WriteString("  waiting for telemetry...\n")
	} else {
		st := m.state
		age := m.now.Sub(m.lastRx)
		link := "live"
		if age > time.Second {
			link = fmt.Sprintf("stale %.1fs", age.Seconds())
		}

		fmt.Fprintf(&b, "  seq %-10d t %8.2fs   packets %-8d link %s\n\n",
			st.Seq, st.TMono, m.count, link)
		fmt.Fprintf(&b, "  roll  %s %7.2f deg\n", gauge(st.Ang.Roll, 45), st.Ang.Roll)
		fmt.Fprintf(&b, "  pitch %s %7.2f deg\n", gauge(st.Ang.Pitch, 45), st.Ang.Pitch)
		fmt.Fprintf(&b, "  yaw   %s %7.2f deg\n\n", gauge(st.Ang.Yaw, 180), st.Ang.Yaw)
		fmt.Fprintf(&b, "  acc  %7.2f %7.2f %7.2f m/s2\n",
			st.IMU.Acc.X, st.IMU.Acc.Y, st.IMU.Acc.Z)
		fmt.Fprintf(&b, "  gyro %7.2f %7.2f %7.2f deg/s\n",
			st.IMU.Gyro.X, st.IMU.Gyro.Y, st.IMU.Gyro.Z)
		fmt.Fprintf(&b, "  enc  %8d %8d %8d %8d\n\n",
			st.Enc.E1, st.Enc.E2, st.Enc.E3, st.Enc.E4)
		fmt.Fprintf(&b, "  battery %5.2f V\n", st.Battery)
	}

	b.WriteString("\n  [up/down] drive  [space] stop  [b] beep  [q] quit\n")
	return b.String()
}

// gauge renders a signed value as a fixed-width bar centered on zero.
func gauge(v float32, limit float64) string {
	const half = 10
	cells := int(math.Round(float64(v) / limit * half))
	if cells > half {
		cells = half
	}
	if cells < -half {
		cells = -half
	}

	var b strings.Builder
	b.WriteByte('[')
	for i := -half; i <= half; i++ {
		switch {
		case i == 0:
			b.WriteByte('|')
		case cells > 0 && i > 0 && i <= cells:
			b.WriteByte('=')
		case cells < 0 && i < 0 && i >= cells:
			b.WriteByte('=')
		default:
			b.WriteByte(' ')
		}
	}
	b.WriteByte(']')
	return b.String()
}
