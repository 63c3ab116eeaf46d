package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gonzalop/miniftp/internal/portarg"
)

// Address is an IPv4 host and TCP port advertised by a client with PORT.
type Address struct {
	Host string
	Port int
}

// ParseAddress decodes the PORT argument format h1,h2,h3,h4,p1,p2 into an
// Address. The host is h1.h2.h3.h4 and the port is p1*256+p2.
//
// Every token must be a decimal integer in the range 0..255. Any other input
// returns an error wrapping ErrAddressFormat.
func ParseAddress(arg string) (Address, error) {
	parts := strings.Split(strings.TrimSpace(arg), ",")
	if len(parts) != 6 {
		return Address{}, fmt.Errorf("%w: expected 6 fields, got %d", ErrAddressFormat, len(parts))
	}

	var b [6]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Address{}, fmt.Errorf("%w: field %d: %q is not a number", ErrAddressFormat, i+1, p)
		}
		if v < 0 || v > 255 {
			return Address{}, fmt.Errorf("%w: field %d: %d out of range", ErrAddressFormat, i+1, v)
		}
		b[i] = v
	}

	return Address{
		Host: fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3]),
		Port: b[4]*256 + b[5],
	}, nil
}

// FormatAddress encodes an IPv4 host and port into the PORT argument format.
// Converts 192.168.1.100 and 50000 to "192,168,1,100,195,80".
func FormatAddress(host string, port int) (string, error) {
	return portarg.Format(host, port)
}

// Encode returns the address in PORT argument format.
func (a Address) Encode() (string, error) {
	return FormatAddress(a.Host, a.Port)
}

// String returns the address as host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// IP returns the parsed host.
func (a Address) IP() net.IP {
	return net.ParseIP(a.Host)
}
