// Package ws serves the live telemetry stream to browser and tooling
// clients over WebSocket. Each connected client receives one JSON text
// frame per published state; clients that cannot keep up have frames
// dropped, never the publisher blocked.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rovergate/pkg/hub"
	"rovergate/pkg/protocol"
)

type Config struct {
	Addr    string
	Path    string
	SendBuf int
}

func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:8765",
		Path:    "/telemetry",
		SendBuf: 64,
	}
}

// StateMessage is the wire shape of one telemetry frame.
type StateMessage struct {
	TS      string             `json:"ts"`
	Seq     uint32             `json:"seq"`
	TMono   float64            `json:"t_mono"`
	Acc     [3]float32         `json:"acc"`
	Gyro    [3]float32         `json:"gyro"`
	Mag     [3]float32         `json:"mag"`
	Angles  map[string]float32 `json:"angles"`
	Enc     [4]int32           `json:"enc"`
	Battery float32            `json:"battery"`
}

type Server struct {
	cfg     Config
	hub     *hub.Hub
	log     *zap.SugaredLogger
	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewServer(cfg Config, h *hub.Hub, log *zap.SugaredLogger) *Server {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Run serves until ctx is cancelled. The listener error is returned only
// when the server fails to start or dies outside a shutdown.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)

	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: mux,
	}

	sub := s.hub.Subscribe()
	go s.broadcastLoop(ctx, sub)

	s.log.Infow("websocket bridge listening", "addr", s.cfg.Addr, "path", s.cfg.Path)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, s.cfg.SendBuf),
	}
	s.addClient(c)
	s.log.Infow("telemetry client connected", "peer", conn.RemoteAddr().String())

	go c.writeLoop()
	c.readLoop()

	c.close()
	s.removeClient(c)
	s.log.Infow("telemetry client gone", "peer", conn.RemoteAddr().String())
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan hub.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(sample)
		}
	}
}

func (s *Server) broadcast(sample hub.Sample) {
	payload, err := json.Marshal(messageFromSample(sample))
	if err != nil {
		return
	}
	for _, c := range s.snapshotClients() {
		c.trySend(payload)
	}
}

func messageFromSample(sample hub.Sample) StateMessage {
	st := sample.State
	return StateMessage{
		TS:    sample.Wall.UTC().Format(time.RFC3339Nano),
		Seq:   st.Seq,
		TMono: st.TMono,
		Acc:   vec(st.IMU.Acc),
		Gyro:  vec(st.IMU.Gyro),
		Mag:   vec(st.IMU.Mag),
		Angles: map[string]float32{
			"roll":  st.Ang.Roll,
			"pitch": st.Ang.Pitch,
			"yaw":   st.Ang.Yaw,
		},
		Enc:     [4]int32{st.Enc.E1, st.Enc.E2, st.Enc.E3, st.Enc.E4},
		Battery: st.Battery,
	}
}

func vec(v protocol.Vec3) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

// readLoop drains incoming frames until the peer goes away; the stream
// is one-way, anything the client sends is ignored.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
