// Package zeroconf advertises the control API over mDNS/DNS-SD so clients
// such as fmctl can find the daemon on the LAN.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type the daemon registers.
const ServiceType = "_fmsession._tcp"

// Service manages mDNS service registration.
type Service struct {
	name string // instance name, usually the host name
	port int
	txt  []string
}

// New creates a Service that will advertise port under name. txt entries
// are published as TXT records, e.g. "version=0.1.0".
func New(name string, port int, txt ...string) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  txt,
	}
}

// TXT returns the records the service publishes.
func (s *Service) TXT() []string {
	out := make([]string, len(s.txt))
	copy(out, s.txt)
	return out
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
		nil,         // ifaces: nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"type", ServiceType,
		"port", s.port,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// Instance is a daemon found on the LAN.
type Instance struct {
	Name string   `json:"name"`
	Host string   `json:"host"`
	Port int      `json:"port"`
	Addr []string `json:"addrs"`
	TXT  []string `json:"txt,omitempty"`
}

// URL returns the base URL of the instance's control API.
func (i Instance) URL() string {
	host := strings.TrimSuffix(i.Host, ".")
	if len(i.Addr) > 0 {
		host = i.Addr[0]
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(i.Port))
}

// Discover browses for daemons until ctx is done and returns what it found.
func Discover(ctx context.Context) ([]Instance, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("zeroconf resolver: %w", err)
	}
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("zeroconf browse: %w", err)
	}

	var found []Instance
	for {
		select {
		case <-ctx.Done():
			return found, nil
		case e, ok := <-entries:
			if !ok {
				return found, nil
			}
			inst := Instance{Name: e.Instance, Host: e.HostName, Port: e.Port, TXT: e.Text}
			for _, ip := range e.AddrIPv4 {
				inst.Addr = append(inst.Addr, ip.String())
			}
			found = append(found, inst)
		}
	}
}
