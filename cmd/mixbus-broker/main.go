// ABOUTME: Entry point for the mixbus event broker
// ABOUTME: Parses CLI flags and runs the publish/subscribe server
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sendspin/mixbus/internal/config"
	"github.com/Sendspin/mixbus/internal/metrics"
	"github.com/Sendspin/mixbus/internal/version"
	"github.com/Sendspin/mixbus/pkg/broker"
)

var (
	configFile = flag.String("config", "", "YAML configuration file")
	port       = flag.Int("port", 0, "WebSocket server port (overrides config)")
	name       = flag.String("name", "", "Broker name for mDNS (overrides config)")
	logFile    = flag.String("log-file", "mixbus-broker.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	mdns       = flag.Bool("mdns", false, "Advertise the broker over mDNS")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Broker.Port = *port
	}
	if *name != "" {
		cfg.Broker.Name = *name
	}
	if *debug {
		cfg.Broker.Debug = true
	}
	if *mdns {
		cfg.Broker.EnableMDNS = true
	}
	if err := cfg.Broker.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting %s broker %q on port %d", version.String(), cfg.Broker.Name, cfg.Broker.Port)
	if cfg.Broker.Secret == "" {
		log.Printf("WARNING: no secret configured (set %s); accepting all clients", config.SecretEnv)
	}
	if cfg.Broker.Debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	reg := metrics.NewRegistry()
	srv := broker.New(broker.Config{
		Port:           cfg.Broker.Port,
		Secret:         cfg.Broker.Secret,
		Name:           cfg.Broker.Name,
		EnableMDNS:     cfg.Broker.EnableMDNS,
		Debug:          cfg.Broker.Debug,
		Metrics:        metrics.NewBroker(reg),
		MetricsHandler: metrics.Handler(reg),
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Broker error: %v", err)
	}

	log.Printf("Broker stopped")
}
