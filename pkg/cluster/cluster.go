package cluster

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cuemby/exadt/pkg/device"
	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/health"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/cuemby/exadt/pkg/metrics"
	"github.com/cuemby/exadt/pkg/network"
	"github.com/cuemby/exadt/pkg/runtime"
	"github.com/cuemby/exadt/pkg/volume"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DefaultStopTimeout is the time containers get to shut down before they
// are killed.
const DefaultStopTimeout = 30 * time.Second

var (
	ErrClusterStarted = errors.New("cluster has already been started")
	ErrNotEnoughSpace = errors.New("not enough free space for the file devices")
)

// ContainerName returns the name of the container of a node
func ContainerName(cluster string, nodeID int) string {
	return fmt.Sprintf("%s_%d", cluster, nodeID)
}

// NetNSName returns the name of the network namespace of a node
func NetNSName(cluster string, nodeID int) string {
	return fmt.Sprintf("exadt-%s-%d", cluster, nodeID)
}

// Orchestrator starts and stops the node containers of one cluster
type Orchestrator struct {
	conf    *exaconf.EXAConf
	rt      runtime.Runtime
	net     *network.Manager
	ports   *network.PortPublisher
	devices *device.Handler
	logger  zerolog.Logger

	// HealthConfig is used by Start when waiting for the nodes
	HealthConfig health.Config
}

// NewOrchestrator creates an orchestrator for the cluster described by
// conf. A nil runner configures the host network with ip and iptables.
func NewOrchestrator(conf *exaconf.EXAConf, rt runtime.Runtime, runner network.Runner) *Orchestrator {
	return &Orchestrator{
		conf:         conf,
		rt:           rt,
		net:          network.NewManager(runner),
		ports:        network.NewPortPublisher(runner),
		devices:      device.NewHandler(conf),
		logger:       log.WithCluster(conf.ClusterName()).With().Str("component", "orchestrator").Logger(),
		HealthConfig: health.DefaultConfig(),
	}
}

// StartOptions control Start
type StartOptions struct {
	// Cmd replaces the init command of the nodes
	Cmd []string

	// Wait blocks until all nodes accept connections on the cored port
	// and the database daemon answers.
	Wait bool

	// WaitTimeout bounds Wait. Zero waits until ctx is done.
	WaitTimeout time.Duration
}

func (o *Orchestrator) clusterLabels() map[string]string {
	return map[string]string{runtime.LabelClusterName: o.conf.ClusterName()}
}

// Started reports whether any container of the cluster exists
func (o *Orchestrator) Started(ctx context.Context) (bool, error) {
	containers, err := o.rt.ListContainers(ctx, o.clusterLabels())
	if err != nil {
		return false, fmt.Errorf("failed to list containers: %w", err)
	}
	return len(containers) > 0, nil
}

// Containers returns the containers of the cluster
func (o *Orchestrator) Containers(ctx context.Context) ([]runtime.Container, error) {
	return o.rt.ListContainers(ctx, o.clusterLabels())
}

// Start creates the volumes, networks and containers of all nodes and
// starts the containers. If anything fails, the cluster is stopped again.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) error {
	timer := metrics.NewTimer()
	defer timer.ObserveOperation("start_cluster")

	started, err := o.Started(ctx)
	if err != nil {
		return err
	}
	if started {
		return fmt.Errorf("%w: %s", ErrClusterStarted, o.conf.ClusterName())
	}

	if o.conf.DeviceType() == "file" {
		shortages, err := o.devices.CheckFreeSpace()
		if err != nil {
			return fmt.Errorf("failed to check free space: %w", err)
		}
		if len(shortages) > 0 {
			return fmt.Errorf("%w on %d mount point(s)", ErrNotEnoughSpace, len(shortages))
		}
	}

	root, err := o.conf.DockerRootDir()
	if err != nil {
		return err
	}
	driver, err := volume.NewLocalDriver(root)
	if err != nil {
		return err
	}
	vols, err := driver.CreateNodeVolumes(o.conf)
	if err != nil {
		return err
	}
	if err := driver.CopyConf(o.conf, vols); err != nil {
		return err
	}
	o.logger.Info().Int("volumes", len(vols)).Msg("Copied EXAConf to all node volumes")

	if err := o.start(ctx, opts); err != nil {
		o.logger.Error().Err(err).Msg("Starting the cluster failed, stopping it")
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*DefaultStopTimeout)
		defer cancel()
		if serr := o.Stop(cleanupCtx, DefaultStopTimeout); serr != nil {
			o.logger.Warn().Err(serr).Msg("Failed to clean up the cluster")
		}
		return err
	}
	return nil
}

func (o *Orchestrator) hostNetwork(dc exaconf.DockerConfig) bool {
	return dc.NetworkMode == "host"
}

func (o *Orchestrator) start(ctx context.Context, opts StartOptions) error {
	dc, err := o.conf.DockerConf()
	if err != nil {
		return err
	}
	nodes, err := o.conf.Nodes()
	if err != nil {
		return err
	}
	bfs, err := o.conf.BucketFS()
	if err != nil {
		return err
	}

	if !o.hostNetwork(dc) {
		if err := o.createNetworks(ctx); err != nil {
			return err
		}
	}

	if err := o.rt.PullImage(ctx, dc.Image); err != nil {
		return err
	}

	ids := make([]string, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		spec, err := o.containerSpec(dc, node, bfs, opts.Cmd)
		if err != nil {
			return err
		}
		if !o.hostNetwork(dc) {
			spec.NetNSPath, err = o.setupNodeNetwork(ctx, node)
			if err != nil {
				return err
			}
		}
		id, err := o.rt.CreateContainer(ctx, spec)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		o.logger.Info().Str("container", id).Int("node_id", node.ID).Msg("Created container")

		if !o.hostNetwork(dc) {
			if err := o.ports.PublishPorts(ctx, id, node.PrivateIP, portMappings(node)); err != nil {
				return err
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return o.rt.StartContainer(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	o.logger.Info().Int("containers", len(ids)).Msg("Started all containers")

	if opts.Wait {
		return o.wait(ctx, nodes, bfs, opts.WaitTimeout)
	}
	return nil
}

func (o *Orchestrator) createNetworks(ctx context.Context) error {
	subnet, err := o.conf.PrivateNetwork()
	if err != nil {
		return err
	}
	if err := o.net.CreateNetwork(ctx, o.conf.PrivateNetName(), subnet); err != nil {
		return err
	}
	if !o.conf.HasPublicNet() {
		return nil
	}
	subnet, err = o.conf.PublicNetwork()
	if err != nil {
		return err
	}
	return o.net.CreateNetwork(ctx, o.conf.PublicNetName(), subnet)
}

// setupNodeNetwork creates the namespace of a node and attaches it to the
// cluster networks. The public network gets the default route if present.
func (o *Orchestrator) setupNodeNetwork(ctx context.Context, node *exaconf.NodeConfig) (string, error) {
	ns := NetNSName(o.conf.ClusterName(), node.ID)
	nsPath, err := o.net.CreateNamespace(ctx, ns)
	if err != nil {
		return "", err
	}
	hasPublic := o.conf.HasPublicNet() && node.PublicNet != ""
	err = o.net.Attach(ctx, ns, network.Attachment{
		Network:      o.conf.PrivateNetName(),
		Interface:    "eth0",
		Address:      node.PrivateNet,
		DefaultRoute: !hasPublic,
	})
	if err != nil {
		return "", err
	}
	if hasPublic {
		err = o.net.Attach(ctx, ns, network.Attachment{
			Network:      o.conf.PublicNetName(),
			Interface:    "eth1",
			Address:      node.PublicNet,
			DefaultRoute: true,
		})
		if err != nil {
			return "", err
		}
	}
	return nsPath, nil
}

func portMappings(node *exaconf.NodeConfig) []network.PortMapping {
	ports := make([]network.PortMapping, 0, len(node.ExposedPorts))
	for _, p := range node.ExposedPorts {
		ports = append(ports, network.PortMapping{ContainerPort: p.Container, HostPort: p.Host})
	}
	return ports
}

// containerSpec builds the container of a node: the node volume at /exa,
// the device files, the BucketFS directories and the configured volumes.
func (o *Orchestrator) containerSpec(dc exaconf.DockerConfig, node *exaconf.NodeConfig, bfs []exaconf.BucketFSConfig, cmd []string) (*runtime.ContainerSpec, error) {
	spec := &runtime.ContainerSpec{
		Name:     ContainerName(o.conf.ClusterName(), node.ID),
		Image:    dc.Image,
		Hostname: node.Name,
		Env:      []string{"EXA_NODE_ID=" + strconv.Itoa(node.ID)},
		Labels: map[string]string{
			runtime.LabelClusterName: o.conf.ClusterName(),
			runtime.LabelNodeID:      strconv.Itoa(node.ID),
			runtime.LabelHostname:    node.Name,
		},
		Privileged:  dc.Privileged,
		CapAdd:      dc.CapAdd,
		CapDrop:     dc.CapDrop,
		HostNetwork: o.hostNetwork(dc),
		HostIPC:     dc.IpcMode == "host",
		Args:        cmd,
	}
	if len(spec.Args) == 0 {
		bin, args := o.conf.InitCommand()
		spec.Args = append([]string{bin}, args...)
	}

	spec.Mounts = append(spec.Mounts, runtime.BindMount(node.DockerVolume, exaconf.ContainerRoot, false))
	storage := path.Join(exaconf.ContainerRoot, exaconf.StorageDir)
	switch o.conf.DeviceType() {
	case "file":
		for _, disk := range node.Disks {
			for _, md := range disk.MappedDevices {
				spec.Mounts = append(spec.Mounts, runtime.BindMount(md.HostPath, md.ContainerPath, false))
			}
		}
	case "block":
		for _, disk := range node.Disks {
			for _, dev := range disk.Devices {
				for _, suffix := range []string{exaconf.DataSuffix, exaconf.MetaSuffix} {
					spec.Devices = append(spec.Devices, runtime.Device{
						HostPath:      filepath.Join(node.DockerVolume, exaconf.StorageDir, dev+suffix),
						ContainerPath: path.Join(storage, dev+suffix),
					})
				}
			}
		}
	}
	for _, fs := range bfs {
		if fs.Path == "" {
			continue
		}
		spec.Mounts = append(spec.Mounts, runtime.BindMount(
			filepath.Join(fs.Path, node.Name, fs.Name),
			path.Join(exaconf.ContainerRoot, exaconf.BucketFSDir, fs.Name),
			false))
	}
	for _, v := range append(append([]string(nil), dc.DefaultVolumes...), dc.AdditionalVolumes...) {
		m, err := runtime.ParseVolume(v)
		if err != nil {
			return nil, err
		}
		spec.Mounts = append(spec.Mounts, m)
	}
	return spec, nil
}

// wait checks the cored port of every node, then the database daemon and
// the BucketFS services through the first node.
func (o *Orchestrator) wait(ctx context.Context, nodes []exaconf.NodeConfig, bfs []exaconf.BucketFSConfig, timeout time.Duration) error {
	if len(nodes) == 0 {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	o.logger.Info().Msg("Waiting for the nodes to come up")

	g, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		node := node
		checker := health.NewTCPChecker(node.PrivateIP, o.conf.CoredPort())
		g.Go(func() error {
			if err := health.WaitHealthy(gctx, checker, o.HealthConfig); err != nil {
				return fmt.Errorf("node %d: %w", node.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	first := nodes[0]
	checkers := []health.Checker{
		health.NewExecChecker(o.rt, ContainerName(o.conf.ClusterName(), first.ID), []string{"dwad_client", "shortlist"}),
	}
	for _, fs := range bfs {
		if fs.HTTPPort > 0 {
			checkers = append(checkers, health.NewBucketFSChecker(first.PrivateIP, fs.HTTPPort))
		}
	}
	for _, c := range checkers {
		if err := health.WaitHealthy(ctx, c, o.HealthConfig); err != nil {
			return err
		}
	}
	o.logger.Info().Msg("All nodes are up")
	return nil
}

// Stop stops and removes all containers of the cluster, then removes the
// port rules, the namespaces and the networks.
func (o *Orchestrator) Stop(ctx context.Context, timeout time.Duration) error {
	timer := metrics.NewTimer()
	defer timer.ObserveOperation("stop_cluster")

	containers, err := o.Containers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range containers {
		c := c
		g.Go(func() error {
			if c.State == runtime.StateRunning {
				if err := o.rt.StopContainer(gctx, c.ID, timeout); err != nil {
					return err
				}
				o.logger.Info().Str("container", c.ID).Msg("Stopped container")
			}
			if err := o.rt.DeleteContainer(gctx, c.ID); err != nil {
				return err
			}
			o.logger.Info().Str("container", c.ID).Msg("Removed container")
			return nil
		})
	}
	errs := g.Wait()

	dc, err := o.conf.DockerConf()
	if err != nil {
		return multierr.Append(errs, err)
	}
	if o.hostNetwork(dc) {
		return errs
	}
	return multierr.Append(errs, o.cleanupNetwork(ctx))
}

// cleanupNetwork removes what Start set up on the host network, also when
// a different process started the cluster.
func (o *Orchestrator) cleanupNetwork(ctx context.Context) error {
	nodes, err := o.conf.Nodes()
	if err != nil {
		return err
	}
	for i := range nodes {
		node := &nodes[i]
		name := ContainerName(o.conf.ClusterName(), node.ID)
		if len(o.ports.PublishedPorts(name)) == 0 {
			o.ports.Track(name, node.PrivateIP, portMappings(node))
		}
	}
	if err := o.ports.UnpublishAll(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to remove some port rules")
	}
	for _, node := range nodes {
		ns := NetNSName(o.conf.ClusterName(), node.ID)
		if err := o.net.DeleteNamespace(ctx, ns); err != nil {
			o.logger.Debug().Err(err).Str("netns", ns).Msg("Network namespace not removed")
		}
	}

	var errs error
	errs = multierr.Append(errs, o.net.DeleteNetwork(ctx, o.conf.PrivateNetName()))
	if o.conf.HasPublicNet() {
		errs = multierr.Append(errs, o.net.DeleteNetwork(ctx, o.conf.PublicNetName()))
	}
	return errs
}
