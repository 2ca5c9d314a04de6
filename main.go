// ABOUTME: Entry point for the mixbus daemon
// ABOUTME: Wires mixer, output sink, event bridge, control API and console
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/mixbus/internal/bridge"
	"github.com/Sendspin/mixbus/internal/config"
	"github.com/Sendspin/mixbus/internal/control"
	"github.com/Sendspin/mixbus/internal/metrics"
	"github.com/Sendspin/mixbus/internal/ui"
	"github.com/Sendspin/mixbus/internal/version"
	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/audio/encode"
	"github.com/Sendspin/mixbus/pkg/audio/output"
	"github.com/Sendspin/mixbus/pkg/discovery"
	"github.com/Sendspin/mixbus/pkg/mixer"
	"github.com/Sendspin/mixbus/pkg/protocol"
)

var (
	configFile = flag.String("config", "", "YAML configuration file")
	logFile    = flag.String("log-file", "", "Log file path (overrides config)")
	backend    = flag.String("output", "", "Output backend: oto, null or opus (overrides config)")
	eventsAddr = flag.String("events", "", "Event broker address host:port (overrides config)")
	noEvents   = flag.Bool("no-events", false, "Do not connect to an event broker")
	discover   = flag.Bool("discover", false, "Find the event broker over mDNS")
	httpPort   = flag.Int("http-port", 0, "Control API port (overrides config)")
	play       = flag.String("play", "", "Comma-separated files or URLs to play at startup")
	tone       = flag.Bool("tone", false, "Play a test tone at startup")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())
	log.Printf("Logging to: %s", cfg.Logging.File)

	if err := run(cfg, useTUI); err != nil {
		log.Fatalf("mixbus: %v", err)
	}
	log.Printf("mixbus stopped")
}

func applyFlags(cfg *config.Config) {
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if *backend != "" {
		cfg.Output.Backend = *backend
	}
	if *eventsAddr != "" {
		cfg.Events.ServerAddr = *eventsAddr
	}
	if *noEvents {
		cfg.Events.Enabled = false
	}
	if *discover {
		cfg.Events.Discover = true
	}
	if *httpPort != 0 {
		cfg.HTTP.Port = *httpPort
	}
	if *debug {
		cfg.Logging.Debug = true
	}
}

func run(cfg *config.Config, useTUI bool) (err error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry()
	format := cfg.Mixer.Format()

	sink, closeSink, err := newSink(ctx, cfg, format)
	if err != nil {
		return err
	}

	mix := mixer.New(mixer.Config{
		Format:        format,
		FrameDuration: cfg.Mixer.FrameDuration(),
		MaxBuffer:     cfg.Mixer.MaxBuffer(),
		DefaultFade:   cfg.Mixer.DefaultFade(),
		RemovalGrace:  cfg.Mixer.RemovalGrace(),
		KeepAlive:     cfg.Mixer.KeepAlive,
		Sink:          sink,
		Metrics:       metrics.NewMixer(reg),
		Debug:         cfg.Logging.Debug,
	})
	defer func() {
		err = multierr.Combine(err, mix.Close(), closeSink())
	}()

	if cfg.Mixer.KeepAlive {
		if err := mix.Start(); err != nil {
			return fmt.Errorf("failed to start mixer: %w", err)
		}
	}

	opener := control.DecodeOpener{Format: format}
	startSources(mix, opener)

	var console *ui.Console
	if useTUI {
		console = ui.NewConsole(mix, cfg.Mixer.DefaultFade())
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Events.Enabled {
		client := newEventClient(cfg, console)
		g.Go(func() error {
			err := client.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, protocol.ErrUnauthorized) {
				// Keep mixing without events
				log.Printf("Event broker rejected credentials; events disabled")
				return nil
			}
			return err
		})

		b := bridge.New(bridge.Config{Debug: cfg.Logging.Debug}, mix, client)
		g.Go(func() error {
			return b.Run(gctx)
		})
	}

	if cfg.HTTP.Enabled {
		api := control.NewAPI(mix, opener)
		router := control.SetupRouter(api, metrics.NewHTTP(reg), metrics.Handler(reg))
		srv := control.NewServer(cfg.HTTP.Addr(), router)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if console != nil {
		g.Go(func() error {
			go func() {
				<-gctx.Done()
				console.Stop()
			}()
			return console.Run()
		})
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var quit <-chan struct{}
	if console != nil {
		quit = console.QuitChan()
	}

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Printf("Received %v signal, shutting down gracefully...", sig)
		case <-quit:
			log.Printf("Received quit signal from TUI")
		case <-gctx.Done():
		}
		cancel()
		return nil
	})

	return g.Wait()
}

// newSink builds the output sink named by the configuration
func newSink(ctx context.Context, cfg *config.Config, format audio.Format) (output.Sink, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Output.Backend {
	case "null":
		log.Printf("Output: discarding mixed audio")
		return output.NullSink{}, noClose, nil

	case "opus":
		encoder, err := encode.NewOpus(format, cfg.Output.OpusBitrate)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create opus encoder: %w", err)
		}
		queue := output.NewFrameQueue(cfg.Output.QueueFrames)
		sink, err := output.NewPacketSink(format, encoder, queue.WriteFrame)
		if err != nil {
			encoder.Close()
			return nil, nil, err
		}
		go drainPackets(ctx, queue, cfg.Logging.Debug)
		log.Printf("Output: opus packets at %d bps", cfg.Output.OpusBitrate)
		return sink, func() error {
			return multierr.Combine(sink.Close(), queue.Close())
		}, nil

	default:
		speakers, err := output.NewOto(format)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audio output: %w", err)
		}
		log.Printf("Output: local speakers %dHz %dch", format.SampleRate, format.Channels)
		return speakers, speakers.Close, nil
	}
}

// drainPackets stands in for a voice transport reading encoded packets
func drainPackets(ctx context.Context, queue *output.FrameQueue, debug bool) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var packets, bytes int
	for {
		packet, err := queue.Next(ctx)
		if err != nil {
			return
		}
		packets++
		bytes += len(packet)

		select {
		case <-ticker.C:
			if debug {
				log.Printf("[DEBUG] Output: %d packets (%d bytes), %d dropped", packets, bytes, queue.Dropped())
			}
		default:
		}
	}
}

func newEventClient(cfg *config.Config, console *ui.Console) *protocol.Client {
	clientCfg := protocol.Config{
		ServerAddr:        cfg.Events.ServerAddr,
		Secret:            cfg.Events.Secret,
		Name:              cfg.Events.Name,
		ReconnectInterval: cfg.Events.ReconnectInterval(),
		Debug:             cfg.Logging.Debug,
	}
	if cfg.Events.Discover {
		clientCfg.ServerAddr = ""
		clientCfg.Resolve = discovery.Resolver(5 * time.Second)
	}

	clientCfg.OnConnect = func() {
		log.Printf("Connected to event broker")
		if console != nil {
			console.SetConnected(true, cfg.Events.ServerAddr)
		}
	}
	clientCfg.OnDisconnect = func(err error) {
		log.Printf("Disconnected from event broker: %v", err)
		if console != nil {
			console.SetConnected(false, "")
		}
	}

	return protocol.NewClient(clientCfg)
}

// startSources adds the streams named on the command line
func startSources(mix *mixer.Mixer, opener control.Opener) {
	var requests []control.AddStreamRequest
	if *tone {
		requests = append(requests, control.AddStreamRequest{Source: "tone"})
	}
	for _, ref := range strings.Split(*play, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		source := "file"
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			source = "url"
		}
		requests = append(requests, control.AddStreamRequest{Source: source, URL: ref})
	}

	for _, req := range requests {
		src, metadata, err := opener.Open(req)
		if err != nil {
			log.Printf("Failed to open %s: %v", req.URL, err)
			continue
		}
		id, err := mix.AddStream(src, mixer.StreamOptions{Metadata: metadata, CloseSource: true})
		if err != nil {
			src.Close()
			log.Printf("Failed to add %s: %v", req.URL, err)
			continue
		}
		log.Printf("Playing %s as %s", metadata["title"], id)
	}
}
