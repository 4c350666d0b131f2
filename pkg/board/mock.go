package board

import (
	"math"
	"sync"
	"time"

	"rovergate/pkg/protocol"
)

const (
	mockRollAmplitudeDeg  = 35.0
	mockPitchAmplitudeDeg = 25.0
	mockYawAmplitudeDeg   = 40.0

	mockRollFreqHz  = 0.23
	mockPitchFreqHz = 0.31
	mockYawFreqHz   = 0.17

	mockPitchPhaseRad = math.Pi / 3.0
	mockYawPhaseRad   = 2.0 * math.Pi / 3.0

	mockBatteryFullV  = 12.3
	mockBatteryDrainV = 0.001 // volts per second
	mockGravity       = 9.81
)

// Mock simulates a board: attitude follows slow sine waves, encoders
// integrate the applied motor values, and beeps are latched one-shot.
type Mock struct {
	mu        sync.Mutex
	start     time.Time
	lastApply time.Time
	motors    protocol.Motors
	enc       [4]float64
	beeps     int
}

func NewMock() *Mock {
	now := time.Now()
	return &Mock{start: now, lastApply: now}
}

func (m *Mock) ReadState() protocol.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := time.Since(m.start).Seconds()
	m.integrateLocked(time.Now())

	roll := mockRollAmplitudeDeg * math.Sin(2.0*math.Pi*mockRollFreqHz*t)
	pitch := mockPitchAmplitudeDeg * math.Sin(2.0*math.Pi*mockPitchFreqHz*t+mockPitchPhaseRad)
	yaw := mockYawAmplitudeDeg * math.Sin(2.0*math.Pi*mockYawFreqHz*t+mockYawPhaseRad)

	var st protocol.State
	st.Ang = protocol.Angles{Roll: float32(roll), Pitch: float32(pitch), Yaw: float32(yaw)}
	st.IMU.Acc = protocol.Vec3{
		X: float32(mockGravity * math.Sin(pitch*math.Pi/180.0)),
		Y: float32(-mockGravity * math.Sin(roll*math.Pi/180.0)),
		Z: float32(mockGravity * math.Cos(roll*math.Pi/180.0) * math.Cos(pitch*math.Pi/180.0)),
	}
	st.IMU.Gyro = protocol.Vec3{
		X: float32(2.0 * math.Pi * mockRollFreqHz * mockRollAmplitudeDeg * math.Cos(2.0*math.Pi*mockRollFreqHz*t)),
		Y: float32(2.0 * math.Pi * mockPitchFreqHz * mockPitchAmplitudeDeg * math.Cos(2.0*math.Pi*mockPitchFreqHz*t+mockPitchPhaseRad)),
		Z: float32(2.0 * math.Pi * mockYawFreqHz * mockYawAmplitudeDeg * math.Cos(2.0*math.Pi*mockYawFreqHz*t+mockYawPhaseRad)),
	}
	st.IMU.Mag = protocol.Vec3{
		X: float32(33.0 * math.Cos(yaw*math.Pi/180.0)),
		Y: float32(33.0 * math.Sin(yaw*math.Pi/180.0)),
		Z: 48.0,
	}
	st.Enc = protocol.Encoders{
		E1: int32(m.enc[0]),
		E2: int32(m.enc[1]),
		E3: int32(m.enc[2]),
		E4: int32(m.enc[3]),
	}
	st.Battery = float32(mockBatteryFullV - mockBatteryDrainV*t)
	return st
}

func (m *Mock) ApplyActions(a protocol.Actions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.integrateLocked(time.Now())
	m.motors = a.Motors
	if a.Flags&protocol.FlagBeepOnce != 0 && a.BeepMs > 0 {
		m.beeps++
	}
	return nil
}

// Beeps reports how many one-shot beeps have been latched.
func (m *Mock) Beeps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beeps
}

func (m *Mock) Close() error {
	return nil
}

// integrateLocked advances the encoder counts under the current motor
// values; roughly one count per motor unit per 10 ms.
func (m *Mock) integrateLocked(now time.Time) {
	dt := now.Sub(m.lastApply).Seconds()
	m.lastApply = now
	if dt <= 0 {
		return
	}
	for i, v := range []int16{m.motors.M1, m.motors.M2, m.motors.M3, m.motors.M4} {
		m.enc[i] += float64(v) * dt * 100.0
	}
}
