package protocol

// Vec3 is a 3-axis sensor reading.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// IMU groups the inertial sensor triples of one snapshot.
type IMU struct {
	Acc  Vec3 `json:"acc"`
	Gyro Vec3 `json:"gyro"`
	Mag  Vec3 `json:"mag"`
}

// Angles is the fused attitude in degrees.
type Angles struct {
	Roll  float32 `json:"roll"`
	Pitch float32 `json:"pitch"`
	Yaw   float32 `json:"yaw"`
}

// Encoders carries the four wheel encoder counts.
type Encoders struct {
	E1 int32 `json:"e1"`
	E2 int32 `json:"e2"`
	E3 int32 `json:"e3"`
	E4 int32 `json:"e4"`
}

// State is one telemetry snapshot published per tick. The publish loop
// fills it in once; downstream consumers treat it as read-only.
type State struct {
	Seq     uint32   `json:"seq"`
	TMono   float64  `json:"t_mono"`
	IMU     IMU      `json:"imu"`
	Ang     Angles   `json:"ang"`
	Enc     Encoders `json:"enc"`
	Battery float32  `json:"battery"`
}

// Motors holds the four actuator values. The wire carries them as uint16
// bit patterns; the application range is signed.
type Motors struct {
	M1 int16 `json:"m1"`
	M2 int16 `json:"m2"`
	M3 int16 `json:"m3"`
	M4 int16 `json:"m4"`
}

// FlagBeepOnce requests a single beep of BeepMs milliseconds.
const FlagBeepOnce uint8 = 1 << 0

// Actions is one inbound command. The zero value is the neutral/safe
// command applied by the watchdog and on shutdown.
type Actions struct {
	Seq    uint32 `json:"seq"`
	Motors Motors `json:"motors"`
	BeepMs uint16 `json:"beep_ms"`
	Flags  uint8  `json:"flags"`
}

// Neutral returns the safe all-stop command.
func Neutral() Actions {
	return Actions{}
}
