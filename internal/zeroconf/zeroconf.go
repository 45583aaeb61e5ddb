// Package zeroconf registers the dashboard API as an mDNS/DNS-SD service so
// panels and the profile backend can find each other on the LAN.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type hadash advertises.
const ServiceType = "_hadash._tcp"

// Service manages mDNS service registration.
type Service struct {
	name   string // instance name, usually the device label
	port   int
	txt    []string
	server *zeroconf.Server
}

// New creates a new zeroconf Service that will advertise on the given port.
func New(name string, port int, version, userID string) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  TXT(version, userID),
	}
}

// TXT returns the TXT records for a device. An empty userID is omitted.
func TXT(version, userID string) []string {
	txt := []string{"version=" + version}
	if userID != "" {
		txt = append(txt, "user="+userID)
	}
	return txt
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(
		s.name,      // instance name
		ServiceType, // service type
		"local.",    // domain
		s.port,      // port
		s.txt,       // TXT records
		nil,         // ifaces, nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"port", s.port,
		"txt", s.txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
