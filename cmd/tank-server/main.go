package main

import (
	"context"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"watertank/internal/config"
	"watertank/internal/metrics"
	httpapi "watertank/internal/microservices/http-api"
	"watertank/internal/microservices/http-api/handler"
	"watertank/internal/microservices/tcp"
	"watertank/internal/microservices/websocket"
	"watertank/internal/simulation"
	"watertank/internal/tank"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// first positional argument overrides the websocket address
	if len(os.Args) > 1 {
		cfg.WSAddr = os.Args[1]
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	metrics.Register()

	initial, err := tank.New(cfg.Tank)
	if err != nil {
		log.Fatalf("Invalid tank: %v", err)
	}

	seed := cfg.RNGSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	state := simulation.NewStateChannel(initial)
	control := simulation.NewControlChannel(cfg.ControlCapacity)

	driverOpts := []simulation.DriverOption{
		simulation.WithTickInterval(cfg.TickInterval),
		simulation.WithLogger(logger),
	}

	// Redis mirror is optional; a dead Redis must not stop the simulation
	var mirror *simulation.RedisMirror
	if cfg.RedisURL != "" {
		mirror, err = simulation.NewRedisMirror(cfg.RedisURL, cfg.RedisKey, cfg.RedisTTL)
		if err != nil {
			logger.Warn("redis_mirror_disabled", "error", err.Error())
		} else {
			driverOpts = append(driverOpts, simulation.WithMirror(mirror))
		}
	}

	driver := simulation.NewDriver(initial, state, control, rng, driverOpts...)

	logger.Info("starting_tank_server",
		"tcp_addr", cfg.TCPAddr,
		"ws_addr", cfg.WSAddr,
		"http_addr", cfg.HTTPAddr,
		"tick_interval", cfg.TickInterval,
		"seed", seed,
		"redis_mirror", mirror != nil,
	)

	tcpServer := tcp.NewServer(cfg.TCPAddr, state, control, tcp.Options{
		ReadTimeout:  cfg.ReadTimeout,
		ControlRate:  rate.Limit(cfg.ControlRate),
		ControlBurst: cfg.ControlBurst,
		Logger:       logger,
	})
	// bind before anything runs: a taken port is fatal at startup
	if err := tcpServer.Listen(); err != nil {
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}

	streamServer := websocket.NewStreamServer(cfg.WSAddr, cfg.StreamInterval, logger)

	var loader handler.MirrorLoader
	if mirror != nil {
		loader = mirror
	}
	httpServer := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(state, loader, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		driver.Run(ctx)
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start servers in goroutines
	errChan := make(chan error, 3)
	go func() {
		if err := tcpServer.Serve(); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := streamServer.Start(); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("received_shutdown_signal", "signal", sig.String())
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	tcpServer.Stop()
	if err := streamServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ws_shutdown_failed", "error", err.Error())
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", "error", err.Error())
	}
	cancel()
	<-driverDone
	mirror.Close()
	logger.Info("server_stopped_gracefully")

	if exitCode != 0 {
		shutdownCancel()
		os.Exit(exitCode)
	}
}
