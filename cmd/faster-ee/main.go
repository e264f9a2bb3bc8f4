// Package main is the entry point for the faster-ee broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/equinor/faster-ee/internal/adminhttp"
	"github.com/equinor/faster-ee/internal/audit"
	"github.com/equinor/faster-ee/internal/buildinfo"
	"github.com/equinor/faster-ee/internal/config"
	"github.com/equinor/faster-ee/internal/evaluator"
	"github.com/equinor/faster-ee/internal/opsmqtt"
	"github.com/equinor/faster-ee/internal/reduce"
	"github.com/equinor/faster-ee/internal/snapshot"
	"github.com/equinor/faster-ee/internal/transport"
	"github.com/equinor/faster-ee/internal/transport/wsrouter"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfgPath, err := config.FindConfig(*configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("starting faster-ee",
		"version", buildinfo.Version, "commit", buildinfo.GitCommit,
		"branch", buildinfo.GitBranch, "built", buildinfo.BuildTime,
	)
	logger.Info("config loaded", "path", cfgPath, "address", cfg.Address)

	var curve *transport.KeyPair
	if cfg.ServerCurve.Enabled() {
		kp, err := transport.LoadKeyPair(cfg.ServerCurve.PublicKeyFile, cfg.ServerCurve.PrivateKeyFile)
		if err != nil {
			logger.Error("failed to load server curve keypair", "error", err)
			os.Exit(1)
		}
		curve = &kp
		logger.Info("transport encryption enabled")
	} else {
		logger.Warn("transport encryption disabled (no server_curve configured)")
	}

	sock := wsrouter.New(wsrouter.Config{
		Address: cfg.Address,
		Linger:  cfg.Linger,
		Curve:   curve,
		Logger:  logger,
	})

	// The terminal-outcome archive and ops-telemetry bridge are both
	// best-effort; neither failing to initialize stops the broker.
	var archive *audit.Archive
	if cfg.AuditDBPath != "" {
		archive, err = audit.Open(logger, cfg.AuditDBPath)
		if err != nil {
			logger.Warn("terminal-outcome archive disabled", "error", err)
			archive = nil
		} else {
			defer archive.Close()
			logger.Info("terminal-outcome archive opened", "path", cfg.AuditDBPath)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bridge *opsmqtt.Bridge
	if cfg.MQTTBrokerURL != "" {
		bridge = opsmqtt.New(opsmqtt.Config{BrokerURL: cfg.MQTTBrokerURL}, logger)
		if err := bridge.Start(ctx); err != nil {
			logger.Warn("ops-telemetry bridge disabled", "error", err)
			bridge = nil
		} else {
			logger.Info("ops-telemetry bridge started", "broker", cfg.MQTTBrokerURL)
		}
	}

	observer := combineObservers(archive, bridge)

	ee := evaluator.New(logger, sock, evaluator.Config{
		MaxBatchSize:      cfg.MaxBatchSize,
		BatchingInterval:  cfg.BatchingInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, observer)

	var admin *adminhttp.Server
	if cfg.AdminListen != "" {
		admin = adminhttp.New(logger, cfg.AdminListen, ee)
		admin.Start()
		logger.Info("admin http surface started", "address", cfg.AdminListen)
	}

	if err := ee.Start(); err != nil {
		logger.Error("evaluator failed to start", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	ee.Stop()
	if admin != nil {
		_ = admin.Stop(context.Background())
	}
	if bridge != nil {
		_ = bridge.Stop(context.Background())
	}
	cancel()

	logger.Info("faster-ee stopped")
}

// combineObservers composes whichever of archive and bridge actually
// initialized into a single reduce.TerminalObserver, or nil if
// neither did — reduce treats a nil observer as "no one to notify".
func combineObservers(archive *audit.Archive, bridge *opsmqtt.Bridge) reduce.TerminalObserver {
	var observers []reduce.TerminalObserver
	if archive != nil {
		observers = append(observers, archive)
	}
	if bridge != nil {
		observers = append(observers, bridge)
	}
	if len(observers) == 0 {
		return nil
	}
	return multiObserver(observers)
}

type multiObserver []reduce.TerminalObserver

func (m multiObserver) ObserveTerminal(ensembleID string, final snapshot.EnsembleState, main *snapshot.EnsembleSnapshot) {
	for _, o := range m {
		o.ObserveTerminal(ensembleID, final, main)
	}
}
