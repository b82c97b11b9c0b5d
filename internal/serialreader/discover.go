package serialreader

import (
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is the subset of a serial port the reader uses.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Opener opens a named port at a baud rate.
type Opener func(name string, baud int) (Port, error)

// Discoverer picks the port to try on the next connection attempt.
type Discoverer func() string

// OpenSerial opens a real serial device, 8N1.
func OpenSerial(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// KeywordDiscoverer enumerates the host's serial ports and returns the first
// whose name or USB product string contains one of keywords, falling back
// to fallback when nothing matches or enumeration fails.
func KeywordDiscoverer(keywords []string, fallback string) Discoverer {
	return func() string {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return fallback
		}
		return matchPort(ports, keywords, fallback)
	}
}

func matchPort(ports []*enumerator.PortDetails, keywords []string, fallback string) string {
	for _, p := range ports {
		desc := strings.ToLower(p.Product + " " + p.Name)
		for _, k := range keywords {
			if k != "" && strings.Contains(desc, strings.ToLower(k)) {
				return p.Name
			}
		}
	}
	return fallback
}
