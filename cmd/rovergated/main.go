package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"rovergate/pkg/board"
	"rovergate/pkg/bridge/mqttmirror"
	"rovergate/pkg/bridge/ws"
	"rovergate/pkg/config"
	"rovergate/pkg/diag"
	"rovergate/pkg/gateway"
	"rovergate/pkg/protocol"
)

const startupBeepMs = 100

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		return runServe([]string{}, stderr)
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:], stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", config.DefaultConfigPath, "TOML configuration file")
	mode := fs.String("mode", "", "transport mode override (udp or tcp)")
	stateHz := fs.Float64("state-hz", 0, "publish rate override")
	duration := fs.Float64("duration", -1, "run duration in seconds (0 = unlimited)")
	mock := fs.Bool("mock", true, "use the simulated board")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	if *mode != "" {
		cfg.Transport.Mode = *mode
	}
	if *stateHz > 0 {
		cfg.Timing.StateHz = *stateHz
	}
	if *duration >= 0 {
		cfg.Timing.DurationS = *duration
	}

	svc, err := diag.New(diag.Config{
		Enable:       cfg.Log.Enable,
		Dir:          cfg.Log.Dir,
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		MaxBackups:   cfg.Log.MaxBackups,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
	})
	if err != nil {
		fmt.Fprintln(stderr, "logging:", err)
		return 1
	}
	defer svc.Close()
	log := svc.Named("main")

	// The physical serial driver is provided by the deployment build;
	// this binary ships with the simulated board.
	if !*mock {
		log.Errorw("hardware driver not linked into this build",
			"serial_port", cfg.Board.SerialPort)
		return 1
	}
	driver := board.NewMock()
	defer driver.Close()

	if cfg.Board.StartupBeep {
		beep := protocol.Neutral()
		beep.BeepMs = startupBeepMs
		beep.Flags = protocol.FlagBeepOnce
		if err := driver.ApplyActions(beep); err != nil {
			log.Warnw("startup beep failed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := gateway.New(cfg, driver, svc)

	if addr := cfg.Bridge.WSAddr; addr != "" {
		srv := ws.NewServer(ws.Config{Addr: addr}, g.Hub(), svc.Named("ws"))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Errorw("websocket bridge failed", "err", err)
			}
		}()
	}
	if broker := cfg.Bridge.MQTTBroker; broker != "" {
		m := mqttmirror.New(mqttmirror.Config{
			Broker:   broker,
			ClientID: cfg.Bridge.MQTTClientID,
			Topic:    cfg.Bridge.MQTTTopic,
			Divisor:  cfg.Bridge.MQTTDivisor,
		}, g.Hub(), svc.Named("mqtt"))
		go func() {
			if err := m.Run(ctx); err != nil {
				log.Errorw("mqtt mirror failed", "err", err)
			}
		}()
	}

	log.Infow("rovergate starting",
		"mode", cfg.Transport.Mode, "state_hz", cfg.Timing.StateHz,
		"cmd_timeout_s", cfg.Timing.CmdTimeoutS)

	if err := g.Run(ctx); err != nil {
		log.Errorw("gateway failed", "err", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rovergated serve [--config rovergate.toml] [--mode udp|tcp] [--state-hz 100] [--duration 0] [--mock]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve   run the gateway")
}
