package network

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and fails those containing failOn.
type fakeRunner struct {
	mu     sync.Mutex
	cmds   []string
	failOn string
	links  map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := name + " " + strings.Join(args, " ")
	f.cmds = append(f.cmds, cmd)
	if len(args) == 3 && args[0] == "link" && args[1] == "show" {
		if f.links[args[2]] {
			return "", nil
		}
		return "", errors.New("does not exist")
	}
	if f.failOn != "" && strings.Contains(cmd, f.failOn) {
		return "", errors.New("failed")
	}
	return "", nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

func TestNames(t *testing.T) {
	br := BridgeName("MyCluster_priv")
	assert.LessOrEqual(t, len(br), 15)
	assert.True(t, strings.HasPrefix(br, "exb"))
	assert.Equal(t, br, BridgeName("MyCluster_priv"))
	assert.NotEqual(t, br, BridgeName("MyCluster_pub"))

	host, peer := vethNames("exadt-MyCluster-11", "MyCluster_priv")
	assert.LessOrEqual(t, len(host), 15)
	assert.LessOrEqual(t, len(peer), 15)
	assert.NotEqual(t, host, peer)
	h2, _ := vethNames("exadt-MyCluster-12", "MyCluster_priv")
	assert.NotEqual(t, host, h2)

	assert.Equal(t, "/var/run/netns/exadt-c-11", NetNSPath("exadt-c-11"))
}

func TestGateway(t *testing.T) {
	gw, err := Gateway("10.10.10.11/24")
	require.NoError(t, err)
	assert.Equal(t, "10.10.10.1/24", gw.String())
	assert.Equal(t, "10.10.10.1", gw.Addr().String())

	gw, err = Gateway("192.168.0.0/16")
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.1/16", gw.String())

	_, err = Gateway("10.10.10.11")
	assert.Error(t, err)
}

func TestCreateNetwork(t *testing.T) {
	r := &fakeRunner{}
	m := NewManager(r)
	br := BridgeName("c_priv")

	require.NoError(t, m.CreateNetwork(context.Background(), "c_priv", "10.10.10.0/24"))
	assert.Equal(t, []string{
		"ip link show " + br,
		"ip link add " + br + " type bridge",
		"ip addr add 10.10.10.1/24 dev " + br,
		"ip link set " + br + " up",
	}, r.commands())

	// existing bridges are kept
	r = &fakeRunner{links: map[string]bool{br: true}}
	m = NewManager(r)
	require.NoError(t, m.CreateNetwork(context.Background(), "c_priv", "10.10.10.0/24"))
	assert.Len(t, r.commands(), 1)

	require.NoError(t, m.DeleteNetwork(context.Background(), "c_priv"))
	assert.Contains(t, r.commands(), "ip link del "+br)
}

func TestCreateNetworkFailure(t *testing.T) {
	r := &fakeRunner{failOn: "addr add"}
	m := NewManager(r)
	br := BridgeName("c_priv")

	err := m.CreateNetwork(context.Background(), "c_priv", "10.10.10.0/24")
	require.Error(t, err)
	cmds := r.commands()
	assert.Equal(t, "ip link del "+br, cmds[len(cmds)-1])
}

func TestNamespaceAndAttach(t *testing.T) {
	r := &fakeRunner{}
	m := NewManager(r)
	ctx := context.Background()

	path, err := m.CreateNamespace(ctx, "exadt-c-11")
	require.NoError(t, err)
	assert.Equal(t, NetNSPath("exadt-c-11"), path)

	err = m.Attach(ctx, "exadt-c-11", Attachment{
		Network:      "c_priv",
		Interface:    "eth0",
		Address:      "10.10.10.11/24",
		DefaultRoute: true,
	})
	require.NoError(t, err)

	host, peer := vethNames("exadt-c-11", "c_priv")
	cmds := r.commands()
	assert.Contains(t, cmds, "ip link add "+host+" type veth peer name "+peer)
	assert.Contains(t, cmds, "ip link set "+peer+" netns exadt-c-11")
	assert.Contains(t, cmds, "ip -n exadt-c-11 addr add 10.10.10.11/24 dev eth0")
	assert.Equal(t, "ip -n exadt-c-11 route add default via 10.10.10.1", cmds[len(cmds)-1])

	require.NoError(t, m.DeleteNamespace(ctx, "exadt-c-11"))
	assert.Contains(t, r.commands(), "ip netns del exadt-c-11")

	err = m.Attach(ctx, "exadt-c-11", Attachment{Network: "c_priv", Interface: "eth0", Address: "garbage"})
	assert.Error(t, err)
}

func TestAttachFailureRemovesVeth(t *testing.T) {
	r := &fakeRunner{failOn: "addr add"}
	m := NewManager(r)

	err := m.Attach(context.Background(), "ns", Attachment{Network: "n", Interface: "eth0", Address: "10.0.0.2/24"})
	require.Error(t, err)
	host, _ := vethNames("ns", "n")
	cmds := r.commands()
	assert.Equal(t, "ip link del "+host, cmds[len(cmds)-1])
}

func TestPortPublisher(t *testing.T) {
	r := &fakeRunner{}
	p := NewPortPublisher(r)
	ctx := context.Background()
	ports := []PortMapping{{ContainerPort: 8888, HostPort: 8899}}

	require.NoError(t, p.PublishPorts(ctx, "c_11", "10.10.10.11", ports))
	assert.Equal(t, []string{
		"iptables -t nat -A PREROUTING -p tcp --dport 8899 -j DNAT --to-destination 10.10.10.11:8888",
		"iptables -t nat -A POSTROUTING -p tcp -d 10.10.10.11 --dport 8888 -j MASQUERADE",
		"iptables -A FORWARD -p tcp -d 10.10.10.11 --dport 8888 -j ACCEPT",
	}, r.commands())
	assert.Equal(t, ports, p.PublishedPorts("c_11"))

	require.NoError(t, p.UnpublishPorts(ctx, "c_11"))
	cmds := r.commands()
	assert.Equal(t, []string{
		"iptables -t nat -D PREROUTING -p tcp --dport 8899 -j DNAT --to-destination 10.10.10.11:8888",
		"iptables -t nat -D POSTROUTING -p tcp -d 10.10.10.11 --dport 8888 -j MASQUERADE",
		"iptables -D FORWARD -p tcp -d 10.10.10.11 --dport 8888 -j ACCEPT",
	}, cmds[3:])
	assert.Empty(t, p.PublishedPorts("c_11"))

	// nothing left to remove
	require.NoError(t, p.UnpublishPorts(ctx, "c_11"))
	assert.Len(t, r.commands(), 6)
}

func TestPortPublisherFailure(t *testing.T) {
	r := &fakeRunner{failOn: "--dport 6583 -j ACCEPT"}
	p := NewPortPublisher(r)
	ctx := context.Background()
	ports := []PortMapping{
		{ContainerPort: 8888, HostPort: 8899},
		{ContainerPort: 6583, HostPort: 6594, Protocol: "TCP"},
	}

	err := p.PublishPorts(ctx, "c_11", "10.10.10.11", ports)
	require.Error(t, err)
	assert.Empty(t, p.PublishedPorts("c_11"))

	var added, removed int
	for _, c := range r.commands() {
		if strings.Contains(c, " -A ") {
			added++
		}
		if strings.Contains(c, " -D ") {
			removed++
		}
	}
	// 3 rules of the first port, 2 of the second, the third fails
	assert.Equal(t, 6, added)
	assert.Equal(t, 5, removed)
}

func TestUnpublishAll(t *testing.T) {
	r := &fakeRunner{}
	p := NewPortPublisher(r)
	ctx := context.Background()
	require.NoError(t, p.PublishPorts(ctx, "c_11", "10.10.10.11", []PortMapping{{ContainerPort: 8888, HostPort: 8899}}))
	require.NoError(t, p.PublishPorts(ctx, "c_12", "10.10.10.12", []PortMapping{{ContainerPort: 8888, HostPort: 8900}}))

	r.failOn = "10.10.10.12"
	err := p.UnpublishAll(ctx)
	require.Error(t, err)
	assert.Empty(t, p.PublishedPorts("c_11"))
	assert.Empty(t, p.PublishedPorts("c_12"))
}

func TestTrack(t *testing.T) {
	r := &fakeRunner{}
	p := NewPortPublisher(r)
	p.Track("c_11", "10.10.10.11", []PortMapping{{ContainerPort: 8888, HostPort: 8899}})
	assert.Len(t, p.PublishedPorts("c_11"), 1)
	assert.Empty(t, r.commands())

	require.NoError(t, p.UnpublishPorts(context.Background(), "c_11"))
	assert.Len(t, r.commands(), 3)
	assert.Equal(t, "iptables -D FORWARD -p tcp -d 10.10.10.11 --dport 8888 -j ACCEPT", r.commands()[2])
}
