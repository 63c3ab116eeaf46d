// Package portarg encodes addresses in the h1,h2,h3,h4,p1,p2 form carried
// by the PORT command. Both the client and the server use it.
package portarg

import (
	"fmt"
	"net"
)

// Format encodes an IPv4 host and port.
// Converts 192.168.1.100 and 50000 to "192,168,1,100,195,80".
func Format(host string, port int) (string, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}
	ip = ip.To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires IPv4 address")
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("invalid port: %d", port)
	}

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}
