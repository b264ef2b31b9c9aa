package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nordvoice/attendant/internal/attendant/app"
	"github.com/nordvoice/attendant/internal/attendant/config"
	"github.com/nordvoice/attendant/internal/banner"
	"github.com/nordvoice/attendant/internal/logger"
)

const version = "0.4.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	rooms := cfg.RoomServiceURL
	if rooms == "" {
		rooms = "in-process simulator"
	}
	webhook := cfg.WebhookURL
	if webhook == "" {
		webhook = "disabled"
	}

	// Print startup banner
	banner.Print("VOICE ATTENDANT", []banner.ConfigLine{
		{Label: "Agent", Value: fmt.Sprintf("%s (%s)", cfg.AgentName, cfg.NodeID)},
		{Label: "Dispatch Hub", Value: cfg.DispatchURL},
		{Label: "Room Service", Value: rooms},
		{Label: "Profiles", Value: cfg.ProfilesPath},
		{Label: "Webhook", Value: webhook},
		{Label: "API Port", Value: fmt.Sprintf("%d", cfg.APIPort)},
		{Label: "Log Level", Value: cfg.LogLevel},
	})

	node, err := app.New(cfg, version)
	if err != nil {
		slog.Error("Failed to create attendant node", "error", err)
		os.Exit(1)
	}
	defer node.Close()

	run(node)
}

func run(node *app.Attendant) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- node.Run(ctx)
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig)
		node.Shutdown()
		if err := <-done; err != nil {
			slog.Error("Attendant node stopped with error", "error", err)
		}
	case err := <-done:
		if err != nil {
			slog.Error("Attendant node stopped with error", "error", err)
			os.Exit(1)
		}
	}
}
