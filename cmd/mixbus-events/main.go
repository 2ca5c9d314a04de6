// ABOUTME: Command-line client for the mixbus event broker
// ABOUTME: Publishes one event or prints events as they arrive
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/mixbus/internal/config"
	"github.com/Sendspin/mixbus/pkg/discovery"
	"github.com/Sendspin/mixbus/pkg/protocol"
)

var (
	serverAddr = flag.String("server", fmt.Sprintf("localhost:%d", protocol.DefaultPort), "Broker address host:port")
	discover   = flag.Bool("discover", false, "Find the broker over mDNS instead of -server")
	name       = flag.String("name", "", "Client name (default: random)")
	timeout    = flag.Duration("timeout", 5*time.Second, "Connect timeout")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] <command> [args]

Commands:
  publish <event> [json]   emit one event (payload defaults to null)
  subscribe <event>...     print events until interrupted

The broker secret is read from %s.

Flags:
`, os.Args[0], config.SecretEnv)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	clientCfg := protocol.Config{
		ServerAddr: *serverAddr,
		Secret:     os.Getenv(config.SecretEnv),
		Name:       *name,
		Debug:      *debug,
	}
	if *discover {
		clientCfg.ServerAddr = ""
		clientCfg.Resolve = discovery.Resolver(*timeout)
	}
	client := protocol.NewClient(clientCfg)
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch args[0] {
	case "publish":
		err = publish(ctx, client, args[1:])
	case "subscribe":
		err = subscribe(ctx, client, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func publish(ctx context.Context, client *protocol.Client, args []string) error {
	payload := json.RawMessage("null")
	if len(args) > 1 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("payload is not valid JSON: %s", args[1])
		}
		payload = json.RawMessage(args[1])
	}

	connectCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return err
	}

	if err := client.Publish(args[0], payload); err != nil {
		return err
	}
	if client.Pending() > 0 {
		return fmt.Errorf("event %s was not delivered", args[0])
	}
	log.Printf("Published %s", args[0])
	return nil
}

func subscribe(ctx context.Context, client *protocol.Client, events []string) error {
	for _, event := range events {
		event := event
		client.Subscribe(event, func(payload json.RawMessage) {
			fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), event, payload)
		})
	}

	err := client.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
