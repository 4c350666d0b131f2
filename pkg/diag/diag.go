// Package diag is the process-wide diagnostic logging facility. It is
// explicitly constructed and injected so tests can run independent
// instances; there is no package-level logger.
//
// Console output happens synchronously on the caller's path at one
// severity threshold; file output is buffered and flushed by a background
// writer at an independent threshold, with size-based rotation.
package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName   = "rovergate.log"
	flushInterval = 500 * time.Millisecond
	bufferSize    = 64 * 1024
)

// Config mirrors the [log] section of the gateway configuration.
type Config struct {
	Enable       bool
	Dir          string
	MaxSizeMB    int
	MaxBackups   int
	ConsoleLevel string
	FileLevel    string
}

// Service owns the logger cores and the background flush worker.
type Service struct {
	logger *zap.SugaredLogger
	buffer *zapcore.BufferedWriteSyncer
	sink   *lumberjack.Logger
}

// ParseLevel maps a configuration string to a severity. Severities are
// ordered DEBUG < INFO < WARN < ERROR.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("diag: unknown level %q", s)
	}
}

// New builds a Service from cfg. With file logging disabled only the
// console core is installed.
func New(cfg Config) (*Service, error) {
	consoleLevel, err := ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			consoleLevel,
		),
	}

	svc := &Service{}
	if cfg.Enable {
		fileLevel, err := ParseLevel(cfg.FileLevel)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("diag: create log dir: %w", err)
		}
		svc.sink = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, logFileName),
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
		}
		svc.buffer = &zapcore.BufferedWriteSyncer{
			WS:            zapcore.AddSync(svc.sink),
			Size:          bufferSize,
			FlushInterval: flushInterval,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			svc.buffer,
			fileLevel,
		))
	}

	base := zap.New(zapcore.NewTee(cores...))
	svc.logger = base.Sugar()
	return svc, nil
}

// Nop returns a Service that discards everything; used by tests that do
// not care about log output.
func Nop() *Service {
	return &Service{logger: zap.NewNop().Sugar()}
}

// Logger is the root logger of this service.
func (s *Service) Logger() *zap.SugaredLogger {
	return s.logger
}

// Named returns a component-scoped sub-logger.
func (s *Service) Named(name string) *zap.SugaredLogger {
	return s.logger.Named(name)
}

// Close drains buffered records and stops the background flusher. Safe to
// call once at shutdown after every worker has been joined.
func (s *Service) Close() error {
	_ = s.logger.Sync()
	var err error
	if s.buffer != nil {
		err = s.buffer.Stop()
	}
	if s.sink != nil {
		if cerr := s.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
