// ABOUTME: mDNS advertisement and browsing for the event broker
// ABOUTME: Wraps hashicorp/mdns with a cancellable manager
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service advertised by brokers
const ServiceType = "_mixbus-events._tcp"

// ErrNoBroker is returned when no broker answered in time
var ErrNoBroker = errors.New("no broker found")

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // WebSocket path, advertised as a TXT record
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered broker
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = "/"
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise announces the broker until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for brokers until Stop, reporting them on Servers
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		query(m.ctx, 3*time.Second, func(server *ServerInfo) bool {
			select {
			case m.servers <- server:
				return true
			case <-m.ctx.Done():
				return false
			}
		})
	}
}

// query runs one mDNS lookup, handing each answer to found until it
// returns false
func query(ctx context.Context, timeout time.Duration, found func(*ServerInfo) bool) {
	entries := make(chan *mdns.ServiceEntry, 10)
	done := make(chan struct{})

	go func() {
		defer close(done)
		wanted := true
		for entry := range entries {
			if !wanted || entry.AddrV4 == nil {
				continue
			}
			server := &ServerInfo{
				Name: entry.Name,
				Host: entry.AddrV4.String(),
				Port: entry.Port,
			}
			log.Printf("Discovered broker: %s at %s", server.Name, server.Addr())
			wanted = found(server)
		}
	}()

	params := &mdns.QueryParam{
		Service:             ServiceType,
		Domain:              "local",
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv6:         true,
		WantUnicastResponse: false,
	}
	if err := mdns.QueryContext(ctx, params); err != nil && ctx.Err() == nil {
		log.Printf("mDNS query failed: %v", err)
	}
	close(entries)
	<-done
}

// Find returns the first broker that answers within timeout
func Find(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	var result *ServerInfo
	query(ctx, timeout, func(server *ServerInfo) bool {
		result = server
		return false
	})
	if result == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoBroker
	}
	return result, nil
}

// Resolver adapts Find to the event client's Resolve hook
func Resolver(timeout time.Duration) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		server, err := Find(ctx, timeout)
		if err != nil {
			return "", err
		}
		return server.Addr(), nil
	}
}

// Servers returns the channel of discovered brokers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns non-loopback IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	ips := make([]net.IP, 0)

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
