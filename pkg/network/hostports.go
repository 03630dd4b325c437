package network

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cuemby/exadt/pkg/log"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// PortMapping publishes a container port on the host.
type PortMapping struct {
	ContainerPort int
	HostPort      int
	// Protocol defaults to tcp.
	Protocol string
}

type published struct {
	containerIP string
	ports       []PortMapping
}

// PortPublisher forwards host ports to container addresses using iptables
type PortPublisher struct {
	runner Runner
	logger zerolog.Logger

	mu        sync.Mutex
	published map[string]published // container -> rules
}

// NewPortPublisher creates a new port publisher. A nil runner runs
// iptables on the host.
func NewPortPublisher(runner Runner) *PortPublisher {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PortPublisher{
		runner:    runner,
		logger:    log.WithComponent("ports"),
		published: make(map[string]published),
	}
}

// PublishPorts sets up iptables rules forwarding the host ports to the
// container. On error all rules of the container are removed again.
func (p *PortPublisher) PublishPorts(ctx context.Context, container, containerIP string, ports []PortMapping) error {
	if len(ports) == 0 {
		return nil
	}

	var done []PortMapping
	for _, port := range ports {
		if err := p.setupPortForwarding(ctx, containerIP, port); err != nil {
			if cerr := p.removeAll(ctx, containerIP, done); cerr != nil {
				p.logger.Warn().Err(cerr).Str("container", container).Msg("Failed to clean up port rules")
			}
			return fmt.Errorf("failed to setup port forwarding for %d:%d: %w",
				port.HostPort, port.ContainerPort, err)
		}
		done = append(done, port)
	}

	p.mu.Lock()
	prev := p.published[container]
	p.published[container] = published{
		containerIP: containerIP,
		ports:       append(prev.ports, ports...),
	}
	p.mu.Unlock()

	p.logger.Debug().Str("container", container).Str("ip", containerIP).Int("ports", len(ports)).Msg("Published ports")
	return nil
}

// Track records rules published by an earlier process, so that
// UnpublishPorts can remove them.
func (p *PortPublisher) Track(container, containerIP string, ports []PortMapping) {
	if len(ports) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[container] = published{containerIP: containerIP, ports: ports}
}

// UnpublishPorts removes the rules of a container
func (p *PortPublisher) UnpublishPorts(ctx context.Context, container string) error {
	p.mu.Lock()
	pub, ok := p.published[container]
	delete(p.published, container)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return p.removeAll(ctx, pub.containerIP, pub.ports)
}

// UnpublishAll removes the rules of all containers
func (p *PortPublisher) UnpublishAll(ctx context.Context) error {
	p.mu.Lock()
	var names []string
	for c := range p.published {
		names = append(names, c)
	}
	p.mu.Unlock()

	var errs error
	for _, c := range names {
		errs = multierr.Append(errs, p.UnpublishPorts(ctx, c))
	}
	return errs
}

// PublishedPorts returns the ports currently published for a container
func (p *PortPublisher) PublishedPorts(container string) []PortMapping {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[container].ports
}

func protocol(port PortMapping) string {
	if port.Protocol == "" {
		return "tcp"
	}
	return strings.ToLower(port.Protocol)
}

// portRules returns the DNAT, MASQUERADE and FORWARD rules of a port,
// without the -A/-D action.
func portRules(containerIP string, port PortMapping) [][]string {
	proto := protocol(port)
	cport := strconv.Itoa(port.ContainerPort)
	return [][]string{
		{"-t", "nat", "PREROUTING", "-p", proto, "--dport", strconv.Itoa(port.HostPort),
			"-j", "DNAT", "--to-destination", containerIP + ":" + cport},
		{"-t", "nat", "POSTROUTING", "-p", proto, "-d", containerIP, "--dport", cport,
			"-j", "MASQUERADE"},
		{"FORWARD", "-p", proto, "-d", containerIP, "--dport", cport, "-j", "ACCEPT"},
	}
}

// withAction inserts the action before the chain name
func withAction(action string, rule []string) []string {
	out := make([]string, 0, len(rule)+1)
	if rule[0] == "-t" {
		out = append(out, rule[0], rule[1], action)
		return append(out, rule[2:]...)
	}
	out = append(out, action)
	return append(out, rule...)
}

// setupPortForwarding creates the rules for one port, removing the ones
// already added if a later one fails
func (p *PortPublisher) setupPortForwarding(ctx context.Context, containerIP string, port PortMapping) error {
	rules := portRules(containerIP, port)
	for i, rule := range rules {
		if _, err := p.runner.Run(ctx, "iptables", withAction("-A", rule)...); err != nil {
			for _, r := range rules[:i] {
				p.runner.Run(ctx, "iptables", withAction("-D", r)...)
			}
			return err
		}
	}
	return nil
}

func (p *PortPublisher) removeAll(ctx context.Context, containerIP string, ports []PortMapping) error {
	var errs error
	for _, port := range ports {
		for _, rule := range portRules(containerIP, port) {
			if _, err := p.runner.Run(ctx, "iptables", withAction("-D", rule)...); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}
