// Package privacy reduces caller addresses to network prefixes before they
// reach logs.
package privacy

import "net/netip"

// AnonymizeIP keeps the /24 of an IPv4 address and the /48 of an IPv6
// address. IPv4-mapped IPv6 is treated as IPv4. It returns "unknown" for
// empty input and "invalid" when ip does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	return AnonymizeAddr(addr)
}

// AnonymizeAddr is AnonymizeIP for an already parsed address. The zero
// Addr yields "invalid".
func AnonymizeAddr(addr netip.Addr) string {
	if !addr.IsValid() {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
