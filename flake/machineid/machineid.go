// Package machineid derives a 16-bit machine ID from the host's network
// addresses.
package machineid

import (
	"errors"
	"net"
)

var (
	ErrNotFound = errors.New("machineid: no non-loopback ipv4 address")
	ErrNotIPv4  = errors.New("machineid: not an ipv4 address")
)

// Resolve walks the host's interface addresses and returns the low 16 bits
// of the first non-loopback IPv4 address.
func Resolve() (uint16, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0, err
	}
	for _, addr := range addrs {
		ipn, ok := addr.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip := ipn.IP.To4(); ip != nil {
			return Lower16(ip)
		}
	}
	return 0, ErrNotFound
}

// Lower16 packs the last two octets of an IPv4 address, e.g. 192.168.1.2
// yields 1<<8 | 2 = 258.
func Lower16(ip net.IP) (uint16, error) {
	ip = ip.To4()
	if ip == nil {
		return 0, ErrNotIPv4
	}
	return uint16(ip[2])<<8 | uint16(ip[3]), nil
}
