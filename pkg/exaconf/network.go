package exaconf

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

var nodeIDTemplateRe = regexp.MustCompile(`[xX]+`)

// parseNet parses a network in CIDR notation. A plain address is a host
// network (/32 or /128).
func parseNet(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// NetIsValid reports whether s is a valid IPv4 or IPv6 network or address.
func NetIsValid(s string) bool {
	_, err := parseNet(s)
	return err == nil
}

// IPIsValid reports whether s is a valid IPv4 or IPv6 address.
func IPIsValid(s string) bool {
	_, err := netip.ParseAddr(strings.TrimSpace(s))
	return err == nil
}

// ToNetString replaces every run of 'x' or 'X' in net with the node ID and
// returns the normalized network, e.g. "10.10.10.x/24" for node 11 becomes
// "10.10.10.11/24". The host part is kept.
func ToNetString(net string, nodeID int) (string, error) {
	nodeNet := nodeIDTemplateRe.ReplaceAllString(net, strconv.Itoa(nodeID))
	p, err := parseNet(nodeNet)
	if err != nil {
		return "", configErrorf("string '%s' is not a valid network (valid example: '10.10.10.11/16')", nodeNet)
	}
	return p.String(), nil
}

func netPrefixLen(net string) int {
	p, err := parseNet(net)
	if err != nil {
		return -1
	}
	return p.Bits()
}

func netIP(net string) string {
	ip, _, _ := strings.Cut(net, "/")
	return strings.TrimSpace(ip)
}

func (c *EXAConf) networks() []string {
	g := c.doc.Section("Global")
	if g == nil {
		return nil
	}
	return g.List("Networks", ",")
}

// HasPrivateNet reports whether the private network is enabled.
func (c *EXAConf) HasPrivateNet() bool {
	return contains(c.networks(), "private")
}

// HasPublicNet reports whether the public network is enabled.
func (c *EXAConf) HasPublicNet() bool {
	return contains(c.networks(), "public")
}

// PrivateNetName returns the name of the container network for private
// traffic.
func (c *EXAConf) PrivateNetName() string {
	return c.ClusterName() + "_priv"
}

// PublicNetName returns the name of the container network for public
// traffic.
func (c *EXAConf) PublicNetName() string {
	return c.ClusterName() + "_pub"
}

// PrivateNetwork returns the network of the first node, which contains the
// private IPs of all nodes.
func (c *EXAConf) PrivateNetwork() (string, error) {
	return c.network("PrivateNet")
}

// PublicNetwork returns the network of the first node, which contains the
// public IPs of all nodes.
func (c *EXAConf) PublicNetwork() (string, error) {
	return c.network("PublicNet")
}

func (c *EXAConf) network(key string) (string, error) {
	var network netip.Prefix
	for _, sec := range c.doc.SectionsOfKind(string(KindNode)) {
		nodeNet := strings.TrimSpace(sec.String(key, ""))
		if nodeNet == "" {
			return "", configErrorf("network type '%s' is missing in section '%s'", key, sec.Name())
		}
		ip, err := netip.ParseAddr(netIP(nodeNet))
		if err != nil {
			return "", configErrorf("IP %s in section '%s' is invalid", netIP(nodeNet), sec.Name())
		}
		if !network.IsValid() {
			p, err := parseNet(nodeNet)
			if err != nil {
				return "", configErrorf("network '%s' in section '%s' is invalid", nodeNet, sec.Name())
			}
			network = p.Masked()
		} else if !network.Contains(ip) {
			return "", configErrorf("IP %s is not part of network %s", ip, network)
		}
	}
	if !network.IsValid() {
		return "", nil
	}
	return network.String(), nil
}
