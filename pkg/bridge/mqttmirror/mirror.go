// Package mqttmirror republishes the telemetry stream to an MQTT broker
// so fleet tooling can observe the vehicle without speaking the binary
// protocol. Publishing is best effort at a divided rate; a broker outage
// never touches the control loops.
package mqttmirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"rovergate/pkg/hub"
)

const (
	connectTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds, paho convention
)

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Divisor  int
}

func DefaultConfig() Config {
	return Config{
		ClientID: "rovergate-mirror",
		Topic:    "rovergate/state",
		Divisor:  10,
	}
}

// statePayload is the published JSON document.
type statePayload struct {
	TS      string  `json:"ts"`
	Seq     uint32  `json:"seq"`
	TMono   float64 `json:"t_mono"`
	Roll    float32 `json:"roll_deg"`
	Pitch   float32 `json:"pitch_deg"`
	Yaw     float32 `json:"yaw_deg"`
	Battery float32 `json:"battery_v"`
}

type Mirror struct {
	cfg Config
	hub *hub.Hub
	log *zap.SugaredLogger
}

func New(cfg Config, h *hub.Hub, log *zap.SugaredLogger) *Mirror {
	defaults := DefaultConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = defaults.ClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.Divisor <= 0 {
		cfg.Divisor = defaults.Divisor
	}
	return &Mirror{cfg: cfg, hub: h, log: log}
}

// Run connects to the broker and forwards every Divisor-th sample until
// ctx is cancelled. A missing broker address is a configuration error.
func (m *Mirror) Run(ctx context.Context) error {
	if m.cfg.Broker == "" {
		return fmt.Errorf("mqttmirror: broker address not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttmirror: connect %s: %w", m.cfg.Broker, token.Error())
	}
	defer client.Disconnect(disconnectQuiesce)

	m.log.Infow("mqtt mirror connected",
		"broker", m.cfg.Broker, "topic", m.cfg.Topic, "divisor", m.cfg.Divisor)

	sub := m.hub.Subscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case sample, ok := <-sub:
			if !ok {
				return nil
			}
			count++
			if count%m.cfg.Divisor != 0 {
				continue
			}
			m.publish(client, sample)
		}
	}
}

func (m *Mirror) publish(client mqtt.Client, sample hub.Sample) {
	payload, err := json.Marshal(payloadFromSample(sample))
	if err != nil {
		return
	}
	// QoS 0, fire and forget: the next sample supersedes this one anyway.
	token := client.Publish(m.cfg.Topic, 0, false, payload)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		m.log.Warnw("mqtt publish failed", "err", token.Error())
	}
}

func payloadFromSample(sample hub.Sample) statePayload {
	st := sample.State
	return statePayload{
		TS:      sample.Wall.UTC().Format(time.RFC3339Nano),
		Seq:     st.Seq,
		TMono:   st.TMono,
		Roll:    st.Ang.Roll,
		Pitch:   st.Ang.Pitch,
		Yaw:     st.Ang.Yaw,
		Battery: st.Battery,
	}
}
