//go:build linux

package mdns

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// DBusPublisher publishes services through Avahi's D-Bus interface, which
// survives avahi-daemon restarts better than the command-line tool.
type DBusPublisher struct {
	conn           *dbus.Conn
	entryGroupPath dbus.ObjectPath
}

// NewDBusPublisher connects to the system bus.
func NewDBusPublisher() (*DBusPublisher, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &DBusPublisher{conn: conn}, nil
}

// PublishService registers the service in a fresh Avahi entry group.
func (p *DBusPublisher) PublishService(service *Service) error {
	server := p.conn.Object("org.freedesktop.Avahi", "/")

	var entryGroupPath dbus.ObjectPath
	if err := server.Call("org.freedesktop.Avahi.Server.EntryGroupNew", 0).Store(&entryGroupPath); err != nil {
		return fmt.Errorf("failed to create entry group: %w", err)
	}
	p.entryGroupPath = entryGroupPath
	entryGroup := p.conn.Object("org.freedesktop.Avahi", entryGroupPath)

	txtRecords := make([][]byte, len(service.TXTRecords))
	for i, txt := range service.TXTRecords {
		txtRecords[i] = []byte(txt)
	}

	// interface -1 = all, protocol -1 = both IPv4 and IPv6
	err := entryGroup.Call(
		"org.freedesktop.Avahi.EntryGroup.AddService",
		0,
		int32(-1),
		int32(-1),
		uint32(0),
		service.Name,
		service.Type,
		service.Domain,
		service.Host,
		uint16(service.Port),
		txtRecords,
	).Store()
	if err != nil {
		return fmt.Errorf("failed to add service: %w", err)
	}

	if err := entryGroup.Call("org.freedesktop.Avahi.EntryGroup.Commit", 0).Store(); err != nil {
		return fmt.Errorf("failed to commit entry group: %w", err)
	}
	return nil
}

// Stop unpublishes the service and closes the bus connection.
func (p *DBusPublisher) Stop() error {
	if p.entryGroupPath != "" {
		entryGroup := p.conn.Object("org.freedesktop.Avahi", p.entryGroupPath)
		if err := entryGroup.Call("org.freedesktop.Avahi.EntryGroup.Reset", 0).Store(); err != nil {
			return fmt.Errorf("failed to reset entry group: %w", err)
		}
		if err := entryGroup.Call("org.freedesktop.Avahi.EntryGroup.Free", 0).Store(); err != nil {
			return fmt.Errorf("failed to free entry group: %w", err)
		}
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

// PublishHTTPDBus publishes an HTTP service using the D-Bus API.
func PublishHTTPDBus(name string, port int, txtRecords ...string) (*DBusPublisher, error) {
	publisher, err := NewDBusPublisher()
	if err != nil {
		return nil, err
	}
	service := &Service{
		Name:       name,
		Type:       "_http._tcp",
		Port:       port,
		TXTRecords: txtRecords,
	}
	if err := publisher.PublishService(service); err != nil {
		publisher.Stop()
		return nil, err
	}
	return publisher, nil
}

// IsAvahiDBusAvailable checks whether Avahi answers on the system bus.
func IsAvahiDBusAvailable() bool {
	conn, err := dbus.SystemBus()
	if err != nil {
		return false
	}
	defer conn.Close()

	obj := conn.Object("org.freedesktop.Avahi", "/")
	var version string
	return obj.Call("org.freedesktop.Avahi.Server.GetVersionString", 0).Store(&version) == nil
}
