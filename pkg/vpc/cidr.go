package vpc

import (
	"fmt"
	"net"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// parseCIDR validates an IPv4 CIDR string and returns its network, rejecting
// anything that cannot host a gateway plus one other address (spec.md's
// boundary behavior for /30, /31, /32), generalizing the original CNI
// config parser's subnet validation from one CNI network's subnet to any
// VPC or subnet CIDR.
func parseCIDR(cidr string) (*net.IPNet, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cidr, vpcerr.ErrCidrInvalid)
	}
	if network.IP.To4() == nil {
		return nil, fmt.Errorf("%s: only IPv4 is supported: %w", cidr, vpcerr.ErrCidrInvalid)
	}
	ones, bits := network.Mask.Size()
	if bits-ones < 2 {
		return nil, fmt.Errorf("%s: does not admit a gateway and host address: %w", cidr, vpcerr.ErrCidrInvalid)
	}
	return network, nil
}

func networkAndBroadcast(n *net.IPNet) (net.IP, net.IP) {
	network := n.IP.Mask(n.Mask).To4()
	mask := net.IP(n.Mask).To4()
	broadcast := make(net.IP, len(network))
	for i := range network {
		broadcast[i] = network[i] | ^mask[i]
	}
	return network, broadcast
}

// firstUsable returns the first usable address in the network (network address + 1).
func firstUsable(n *net.IPNet) net.IP {
	network, _ := networkAndBroadcast(n)
	return uintToIPv4(ipv4ToUint(network) + 1)
}

// secondUsable returns the second usable address in the network (network address + 2).
func secondUsable(n *net.IPNet) net.IP {
	network, _ := networkAndBroadcast(n)
	return uintToIPv4(ipv4ToUint(network) + 2)
}

// contains reports whether outer fully contains inner.
func contains(outer, inner *net.IPNet) bool {
	innerNetwork, innerBroadcast := networkAndBroadcast(inner)
	return outer.Contains(innerNetwork) && outer.Contains(innerBroadcast)
}

// overlaps reports whether two CIDRs share any address.
func overlaps(a, b *net.IPNet) bool {
	aNet, aBcast := networkAndBroadcast(a)
	bNet, bBcast := networkAndBroadcast(b)
	return ipv4ToUint(aNet) <= ipv4ToUint(bBcast) && ipv4ToUint(bNet) <= ipv4ToUint(aBcast)
}

func ipv4ToUint(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uintToIPv4(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4()
}
