package scan

import (
	"net"
	"sort"
	"strings"
)

// interfaceInfo returns the first IP address and MTU of a network
// interface, and whether the interface exists at all.
func interfaceInfo(name string) (string, int, bool) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", 0, false
	}

	var ip string
	if addrs, err := iface.Addrs(); err == nil {
		for _, addr := range addrs {
			var a net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				a = v.IP
			case *net.IPAddr:
				a = v.IP
			}
			if a != nil {
				ip = a.String()
				break
			}
		}
	}
	return ip, iface.MTU, true
}

// upTunInterfaces lists up tun/utun interfaces in stable name order,
// used to attribute an interface to a running OpenVPN daemon.
func upTunInterfaces() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var names []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "tun") || strings.HasPrefix(iface.Name, "utun") || strings.HasPrefix(iface.Name, "tap") {
			names = append(names, iface.Name)
		}
	}
	sort.Strings(names)
	return names
}
