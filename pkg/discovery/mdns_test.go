// ABOUTME: Tests for mDNS broker discovery
// ABOUTME: Validates Manager configuration, lifecycle and lookups
package discovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	manager := NewManager(Config{ServiceName: "test-broker", Port: 3001})
	defer manager.Stop()

	if manager.config.ServiceName != "test-broker" {
		t.Errorf("Expected ServiceName 'test-broker', got '%s'", manager.config.ServiceName)
	}
	if manager.config.Port != 3001 {
		t.Errorf("Expected Port 3001, got %d", manager.config.Port)
	}
	if manager.config.Path != "/" {
		t.Errorf("Expected default path '/', got '%s'", manager.config.Path)
	}
	if manager.Servers() == nil {
		t.Error("Servers() returned nil channel")
	}
}

func TestManagerStop(t *testing.T) {
	manager := NewManager(Config{ServiceName: "test", Port: 3001})
	manager.Stop()

	select {
	case <-manager.ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("Context should be cancelled after Stop()")
	}
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	if err != nil {
		t.Fatalf("getLocalIPs failed: %v", err)
	}
	if ips == nil {
		t.Error("getLocalIPs returned nil slice")
	}

	for _, ip := range ips {
		if ip.To4() == nil {
			t.Errorf("getLocalIPs returned non-IPv4 address: %v", ip)
		}
		if ip.IsLoopback() {
			t.Errorf("getLocalIPs returned loopback address: %v", ip)
		}
	}
}

func TestServerInfoAddr(t *testing.T) {
	tests := []struct {
		info     ServerInfo
		expected string
	}{
		{ServerInfo{Host: "192.168.1.10", Port: 3001}, "192.168.1.10:3001"},
		{ServerInfo{Host: "10.0.0.2", Port: 80}, "10.0.0.2:80"},
	}

	for _, tt := range tests {
		if got := tt.info.Addr(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

func TestFindHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Find(ctx, time.Second)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNoBroker) {
		t.Errorf("expected cancellation or ErrNoBroker, got %v", err)
	}

	_, err = Resolver(time.Second)(ctx)
	if err == nil {
		t.Error("expected resolver error with cancelled context")
	}
}
