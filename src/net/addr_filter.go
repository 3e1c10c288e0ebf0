package net

import (
	gonet "net"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// privateSubnetBits is the prefix length within which two private addresses
// are assumed to reach each other.
const privateSubnetBits = 16

// FilterReachable returns the addresses of a peer that we can plausibly dial
// from one of our own addresses:
//
//   - loopback addresses are dropped, unless the peer has nothing else;
//   - a private address is kept only if one of ours is private and in the same
//     /16;
//   - public addresses are always kept, as are addresses without an IP
//     component (DNS names, relays).
//
// If we have no non-loopback address ourselves, only loopback filtering is
// applied.
func FilterReachable(addrs []ma.Multiaddr, own []ma.Multiaddr) []ma.Multiaddr {
	nonLoopback := make([]ma.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		if !manet.IsIPLoopback(a) {
			nonLoopback = append(nonLoopback, a)
		}
	}

	if len(nonLoopback) == 0 {
		return addrs
	}

	var ownIPs []gonet.IP
	for _, a := range own {
		if manet.IsIPLoopback(a) {
			continue
		}
		if ip, err := manet.ToIP(a); err == nil && !ip.IsUnspecified() {
			ownIPs = append(ownIPs, ip)
		}
	}

	if len(ownIPs) == 0 {
		return nonLoopback
	}

	filtered := make([]ma.Multiaddr, 0, len(nonLoopback))
	for _, a := range nonLoopback {
		ip, err := manet.ToIP(a)
		if err != nil {
			filtered = append(filtered, a)
			continue
		}

		for _, ownIP := range ownIPs {
			if reachable(ownIP, ip) {
				filtered = append(filtered, a)
				break
			}
		}
	}

	return filtered
}

func reachable(own, remote gonet.IP) bool {
	ownPrivate := isPrivate(own)
	remotePrivate := isPrivate(remote)

	switch {
	case ownPrivate && remotePrivate:
		return sameSubnet(own, remote, privateSubnetBits)
	case !ownPrivate && remotePrivate:
		return false
	default:
		return true
	}
}

func isPrivate(ip gonet.IP) bool {
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

func sameSubnet(a, b gonet.IP, bits int) bool {
	if (a.To4() == nil) != (b.To4() == nil) {
		return false
	}

	size := 8 * gonet.IPv6len
	if a4 := a.To4(); a4 != nil {
		a, b = a4, b.To4()
		size = 8 * gonet.IPv4len
	}

	mask := gonet.CIDRMask(bits, size)
	return a.Mask(mask).Equal(b.Mask(mask))
}
