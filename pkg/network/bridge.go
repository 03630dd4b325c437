package network

import (
	"context"
	"fmt"
	"net/netip"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/rs/zerolog"
)

// NetNSDir is where "ip netns" keeps named namespaces.
const NetNSDir = "/var/run/netns"

// Manager creates bridge networks and per-node network namespaces with
// the ip tool.
type Manager struct {
	runner Runner
	logger zerolog.Logger
}

// NewManager creates a network manager. A nil runner runs commands on the
// host.
func NewManager(runner Runner) *Manager {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Manager{
		runner: runner,
		logger: log.WithComponent("network"),
	}
}

// interface names are limited to 15 characters
func hashName(prefix string, parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		d.WriteString(p)
		d.WriteString("\x00")
	}
	return fmt.Sprintf("%s%010x", prefix, d.Sum64()&0xffffffffff)
}

// BridgeName returns the bridge device of a network.
func BridgeName(network string) string {
	return hashName("exb", network)
}

// vethNames returns the host and namespace side of the link of a node
// into a network.
func vethNames(netns, network string) (host, peer string) {
	return hashName("veh", netns, network), hashName("vep", netns, network)
}

// NetNSPath returns the path of a named network namespace.
func NetNSPath(name string) string {
	return filepath.Join(NetNSDir, name)
}

// Gateway returns the first address of the subnet of cidr.
func Gateway(cidr string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid network '%s': %w", cidr, err)
	}
	return netip.PrefixFrom(p.Masked().Addr().Next(), p.Bits()), nil
}

func (m *Manager) linkExists(ctx context.Context, name string) bool {
	_, err := m.runner.Run(ctx, "ip", "link", "show", name)
	return err == nil
}

// CreateNetwork creates a bridge for network with the gateway address of
// subnet. Existing bridges are kept.
func (m *Manager) CreateNetwork(ctx context.Context, network, subnet string) error {
	br := BridgeName(network)
	if m.linkExists(ctx, br) {
		m.logger.Debug().Str("network", network).Str("bridge", br).Msg("Bridge already exists")
		return nil
	}
	gw, err := Gateway(subnet)
	if err != nil {
		return err
	}

	if _, err := m.runner.Run(ctx, "ip", "link", "add", br, "type", "bridge"); err != nil {
		return fmt.Errorf("failed to create bridge for %s: %w", network, err)
	}
	steps := [][]string{
		{"addr", "add", gw.String(), "dev", br},
		{"link", "set", br, "up"},
	}
	for _, args := range steps {
		if _, err := m.runner.Run(ctx, "ip", args...); err != nil {
			m.runner.Run(ctx, "ip", "link", "del", br)
			return fmt.Errorf("failed to configure bridge for %s: %w", network, err)
		}
	}

	m.logger.Info().Str("network", network).Str("bridge", br).Str("gateway", gw.String()).Msg("Created network")
	return nil
}

// DeleteNetwork removes the bridge of network if it exists.
func (m *Manager) DeleteNetwork(ctx context.Context, network string) error {
	br := BridgeName(network)
	if !m.linkExists(ctx, br) {
		return nil
	}
	if _, err := m.runner.Run(ctx, "ip", "link", "del", br); err != nil {
		return fmt.Errorf("failed to delete network %s: %w", network, err)
	}
	return nil
}

// CreateNamespace creates a named network namespace and returns its path.
func (m *Manager) CreateNamespace(ctx context.Context, name string) (string, error) {
	if _, err := m.runner.Run(ctx, "ip", "netns", "add", name); err != nil {
		return "", fmt.Errorf("failed to create network namespace %s: %w", name, err)
	}
	if _, err := m.runner.Run(ctx, "ip", "-n", name, "link", "set", "lo", "up"); err != nil {
		m.runner.Run(ctx, "ip", "netns", "del", name)
		return "", fmt.Errorf("failed to configure network namespace %s: %w", name, err)
	}
	return NetNSPath(name), nil
}

// DeleteNamespace removes a network namespace. The veth pairs inside go
// with it.
func (m *Manager) DeleteNamespace(ctx context.Context, name string) error {
	if _, err := m.runner.Run(ctx, "ip", "netns", "del", name); err != nil {
		return fmt.Errorf("failed to delete network namespace %s: %w", name, err)
	}
	return nil
}

// Attachment connects a namespace to a network.
type Attachment struct {
	Network string
	// Interface is the name inside the namespace, e.g. eth0.
	Interface string
	// Address with prefix length, e.g. 10.10.10.11/24.
	Address string
	// DefaultRoute routes all other traffic through the gateway of the
	// network.
	DefaultRoute bool
}

// Attach creates a veth pair between the bridge of a network and the
// namespace and configures the address.
func (m *Manager) Attach(ctx context.Context, netns string, a Attachment) error {
	addr, err := netip.ParsePrefix(a.Address)
	if err != nil {
		return fmt.Errorf("invalid address '%s': %w", a.Address, err)
	}
	br := BridgeName(a.Network)
	host, peer := vethNames(netns, a.Network)

	if _, err := m.runner.Run(ctx, "ip", "link", "add", host, "type", "veth", "peer", "name", peer); err != nil {
		return fmt.Errorf("failed to create veth for %s: %w", netns, err)
	}
	steps := [][]string{
		{"link", "set", host, "master", br},
		{"link", "set", host, "up"},
		{"link", "set", peer, "netns", netns},
		{"-n", netns, "link", "set", peer, "name", a.Interface},
		{"-n", netns, "addr", "add", addr.String(), "dev", a.Interface},
		{"-n", netns, "link", "set", a.Interface, "up"},
	}
	if a.DefaultRoute {
		gw, err := Gateway(addr.String())
		if err != nil {
			return err
		}
		steps = append(steps, []string{"-n", netns, "route", "add", "default", "via", gw.Addr().String()})
	}
	for _, args := range steps {
		if _, err := m.runner.Run(ctx, "ip", args...); err != nil {
			// deleting one end removes the pair
			m.runner.Run(ctx, "ip", "link", "del", host)
			return fmt.Errorf("failed to attach %s to %s: %w", netns, a.Network, err)
		}
	}

	m.logger.Debug().Str("netns", netns).Str("network", a.Network).Str("address", a.Address).Msg("Attached namespace")
	return nil
}
