package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rovergate/pkg/protocol"
)

var stateHeader = []string{
	"t_epoch_s", "t_mono_s", "seq",
	"ax", "ay", "az", "gx", "gy", "gz", "mx", "my", "mz",
	"roll_deg", "pitch_deg", "yaw_deg",
	"enc1", "enc2", "enc3", "enc4", "battery",
}

var actionsHeader = []string{
	"t_epoch_s", "t_mono_s", "seq",
	"m1", "m2", "m3", "m4", "beep_ms", "flags",
}

// csvStore is one persisted destination, opened once at worker start and
// flushed per row so every row is complete on disk.
type csvStore struct {
	path string
	file *os.File
	w    *csv.Writer
}

func openCSV(dir, prefix string, header []string) (*csvStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create dir: %w", err)
	}
	stamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, stamp))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create %s: %w", path, err)
	}
	s := &csvStore{path: path, file: file, w: csv.NewWriter(file)}
	if err := s.writeRow(header); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

func (s *csvStore) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("recorder: write %s: %w", s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("recorder: flush %s: %w", s.path, err)
	}
	return nil
}

func (s *csvStore) close() error {
	s.w.Flush()
	return s.file.Close()
}

func fmtF(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func fmtF32(v float32) string { return strconv.FormatFloat(float64(v), 'f', 6, 32) }

func stateRow(e Entry[protocol.State]) []string {
	st := e.Data
	return []string{
		fmtF(float64(e.Wall.UnixNano()) / 1e9),
		fmtF(e.Mono),
		strconv.FormatUint(uint64(st.Seq), 10),
		fmtF32(st.IMU.Acc.X), fmtF32(st.IMU.Acc.Y), fmtF32(st.IMU.Acc.Z),
		fmtF32(st.IMU.Gyro.X), fmtF32(st.IMU.Gyro.Y), fmtF32(st.IMU.Gyro.Z),
		fmtF32(st.IMU.Mag.X), fmtF32(st.IMU.Mag.Y), fmtF32(st.IMU.Mag.Z),
		fmtF32(st.Ang.Roll), fmtF32(st.Ang.Pitch), fmtF32(st.Ang.Yaw),
		strconv.FormatInt(int64(st.Enc.E1), 10),
		strconv.FormatInt(int64(st.Enc.E2), 10),
		strconv.FormatInt(int64(st.Enc.E3), 10),
		strconv.FormatInt(int64(st.Enc.E4), 10),
		fmtF32(st.Battery),
	}
}

func actionsRow(e Entry[protocol.Actions]) []string {
	a := e.Data
	return []string{
		fmtF(float64(e.Wall.UnixNano()) / 1e9),
		fmtF(e.Mono),
		strconv.FormatUint(uint64(a.Seq), 10),
		strconv.FormatInt(int64(a.Motors.M1), 10),
		strconv.FormatInt(int64(a.Motors.M2), 10),
		strconv.FormatInt(int64(a.Motors.M3), 10),
		strconv.FormatInt(int64(a.Motors.M4), 10),
		strconv.FormatUint(uint64(a.BeepMs), 10),
		strconv.FormatUint(uint64(a.Flags), 10),
	}
}
