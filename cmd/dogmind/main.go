// dogmind animates a quadruped robot dog as a conversational agent: a
// realtime speech model on one side, servos, sensors, and a camera on
// the other, and the orchestrator fusing them in between.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pidog/internal/config"
	"github.com/teslashibe/go-pidog/internal/log"
	"github.com/teslashibe/go-pidog/pkg/dashboard"
	"github.com/teslashibe/go-pidog/pkg/orchestrator"
)

func main() {
	cfg := parseFlags()
	log.Init(logLevel())

	app, err := orchestrator.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	if cfg.DashboardEnabled {
		dash := dashboard.NewServer(cfg.DashboardPort, app.States(), app.Bus(), app)
		go func() {
			if err := dash.Start(ctx); err != nil {
				log.Warn("dashboard exited", "error", err)
			}
		}()
	}

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

func parseFlags() config.Config {
	robotIP := flag.String("robot-ip", "", "robot IP address (overrides ROBOT_IP)")
	persona := flag.String("persona", "", "starting persona name (overrides DEFAULT_PERSONA)")
	noDashboard := flag.Bool("no-dashboard", false, "disable the dashboard server")
	flag.Parse()

	cfg := config.LoadEnvConfig()
	if *robotIP != "" {
		cfg.RobotIP = *robotIP
	}
	if *persona != "" {
		cfg.Persona = *persona
	}
	if *noDashboard {
		cfg.DashboardEnabled = false
	}
	return cfg
}

func logLevel() string {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}
