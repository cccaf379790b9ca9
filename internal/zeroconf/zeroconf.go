// Package zeroconf registers the management API as an mDNS/DNS-SD service
// so provisioned devices are discoverable on the LAN.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/netplume/wifimgr-go/internal/models"
)

const serviceType = "_wifimgr._tcp"

// Service manages mDNS service registration. The TXT record carries the
// daemon version and the current connection status.
type Service struct {
	mu     sync.Mutex
	name   string // instance name, e.g. the hostname
	port   int
	status string
	server *zeroconf.Server
}

// New creates a zeroconf Service that will advertise on the given port.
func New(name string, port int) *Service {
	return &Service{
		name:   name,
		port:   port,
		status: models.StatusDisconnected.String(),
	}
}

// Start registers the mDNS service and blocks until ctx is cancelled, at
// which point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	if err := s.register(); err != nil {
		return err
	}

	<-ctx.Done()

	s.mu.Lock()
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.mu.Unlock()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// SetStatus updates the status carried in the TXT record. The underlying
// library has no live TXT update, so the service is re-registered.
func (s *Service) SetStatus(status models.Status) {
	s.mu.Lock()
	changed := s.status != status.String()
	s.status = status.String()
	started := s.server != nil
	s.mu.Unlock()

	if !changed || !started {
		return
	}
	if err := s.register(); err != nil {
		slog.Warn("zeroconf: re-register failed", "err", err)
	}
}

func (s *Service) register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}

	txt := []string{
		"version=" + models.AppVersion,
		"status=" + s.status,
	}
	server, err := zeroconf.Register(
		s.name,      // instance name
		serviceType, // service type
		"local.",    // domain
		s.port,      // port
		txt,         // TXT records
		nil,         // ifaces — nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"type", serviceType,
		"port", s.port,
		"txt", txt,
	)
	return nil
}
