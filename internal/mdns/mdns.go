// Package mdns advertises the card-station web UI on the local network via
// Avahi, so operators can find the daemon without knowing its address.
package mdns

import (
	"fmt"
	"os/exec"
)

// Service represents an Avahi service registration
type Service struct {
	Name       string   // Service name (e.g., "UFG Card Station")
	Type       string   // Service type (e.g., "_http._tcp")
	Port       int      // Port number
	Domain     string   // Domain (usually "local")
	Host       string   // Hostname (optional, uses system hostname if empty)
	TXTRecords []string // TXT records (key=value pairs)
}

// Publisher handles Avahi service publication via avahi-publish-service,
// the fallback when the D-Bus API is unavailable.
type Publisher struct {
	cmd *exec.Cmd
}

// NewPublisher creates a new Avahi service publisher
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish registers a service with Avahi using avahi-publish-service
func (p *Publisher) Publish(service *Service) error {
	if _, err := exec.LookPath("avahi-publish-service"); err != nil {
		return fmt.Errorf("avahi-publish-service not found: %w (install avahi-utils)", err)
	}

	args := []string{
		service.Name,
		service.Type,
		fmt.Sprintf("%d", service.Port),
	}
	args = append(args, service.TXTRecords...)

	// avahi-publish-service keeps the registration alive for as long as
	// the process runs.
	p.cmd = exec.Command("avahi-publish-service", args...)
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start avahi-publish-service: %w", err)
	}
	return nil
}

// Stop stops the service publication
func (p *Publisher) Stop() error {
	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		_ = p.cmd.Wait()
	}
	return nil
}

// PublishHTTP is a convenience function to publish an HTTP service
func PublishHTTP(name string, port int, txtRecords ...string) (*Publisher, error) {
	publisher := NewPublisher()
	err := publisher.Publish(&Service{
		Name:       name,
		Type:       "_http._tcp",
		Port:       port,
		TXTRecords: txtRecords,
	})
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

// IsAvahiAvailable checks if the Avahi command-line tools are present
func IsAvahiAvailable() bool {
	_, err := exec.LookPath("avahi-publish-service")
	return err == nil
}
