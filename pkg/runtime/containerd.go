package runtime

import (
	"bytes"
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/cuemby/exadt/pkg/metrics"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/rs/zerolog"
)

const (
	// DefaultNamespace is the containerd namespace of all cluster containers
	DefaultNamespace = "exadt"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime implements Runtime using containerd
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	logger    zerolog.Logger
}

var _ Runtime = (*ContainerdRuntime)(nil)

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
		logger:    log.WithComponent("runtime"),
	}, nil
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PullImage pulls an image unless it is present already
func (r *ContainerdRuntime) PullImage(ctx context.Context, ref string) (err error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	defer func() { metrics.RecordContainerOp("pull", err) }()

	if _, err := r.client.GetImage(ctx, ref); err == nil {
		return nil
	}
	r.logger.Info().Str("image", ref).Msg("Pulling image")
	if _, err := r.client.Pull(ctx, ref, containerd.WithPullUnpack); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// CreateContainer creates a container from spec and returns its ID
func (r *ContainerdRuntime) CreateContainer(ctx context.Context, spec *ContainerSpec) (id string, err error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	defer func() { metrics.RecordContainerOp("create", err) }()

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		return "", fmt.Errorf("failed to get image %s: %w", spec.Image, err)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithMounts(spec.Mounts),
	}
	if spec.Hostname != "" {
		opts = append(opts, oci.WithHostname(spec.Hostname))
	}
	if len(spec.Args) > 0 {
		opts = append(opts, oci.WithProcessArgs(spec.Args...))
	}
	if spec.Privileged {
		opts = append(opts, oci.WithPrivileged, oci.WithAllDevicesAllowed, oci.WithHostDevices)
	}
	if caps := Capabilities(spec.CapAdd); len(caps) > 0 {
		opts = append(opts, oci.WithAddedCapabilities(caps))
	}
	if caps := Capabilities(spec.CapDrop); len(caps) > 0 {
		opts = append(opts, oci.WithDroppedCapabilities(caps))
	}
	if spec.NetNSPath != "" {
		opts = append(opts, oci.WithLinuxNamespace(specs.LinuxNamespace{
			Type: specs.NetworkNamespace,
			Path: spec.NetNSPath,
		}))
	}
	for _, d := range spec.Devices {
		opts = append(opts, oci.WithDevices(d.HostPath, d.ContainerPath, "rwm"))
	}
	if spec.HostNetwork {
		opts = append(opts, oci.WithHostNamespace(specs.NetworkNamespace), oci.WithHostHostsFile, oci.WithHostResolvconf)
	}
	if spec.HostIPC {
		opts = append(opts, oci.WithHostNamespace(specs.IPCNamespace))
	}

	container, err := r.client.NewContainer(
		ctx,
		spec.Name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.Name+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithContainerLabels(spec.Labels),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", spec.Name, err)
	}

	return container.ID(), nil
}

// StartContainer starts the task of a created container
func (r *ContainerdRuntime) StartContainer(ctx context.Context, id string) (err error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	defer func() { metrics.RecordContainerOp("start", err) }()

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", id, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		if _, derr := task.Delete(ctx); derr != nil {
			r.logger.Warn().Err(derr).Str("container", id).Msg("Failed to delete task after failed start")
		}
		return fmt.Errorf("failed to start task: %w", err)
	}

	return nil
}

// StopContainer sends SIGTERM and SIGKILL after timeout, then deletes the
// task. Containers without a task are left alone.
func (r *ContainerdRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) (err error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	defer func() { metrics.RecordContainerOp("stop", err) }()

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", id, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get task of %s: %w", id, err)
	}

	// register the wait before signalling so the exit is not missed
	statusC, err := task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for task: %w", err)
	}

	if err := task.Kill(ctx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to kill task: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-statusC:
	case <-timer.C:
		r.logger.Warn().Str("container", id).Dur("timeout", timeout).Msg("Container did not stop, killing it")
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("failed to force kill task: %w", err)
		}
		<-statusC
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// DeleteContainer stops a container and removes it and its snapshot
func (r *ContainerdRuntime) DeleteContainer(ctx context.Context, id string) (err error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to load container %s: %w", id, err)
	}
	defer func() { metrics.RecordContainerOp("delete", err) }()

	if err := r.StopContainer(ctx, id, 10*time.Second); err != nil {
		r.logger.Warn().Err(err).Str("container", id).Msg("Failed to stop container before delete")
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container %s: %w", id, err)
	}

	return nil
}

// ContainerState returns the state of a container
func (r *ContainerdRuntime) ContainerState(ctx context.Context, id string) (State, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to load container %s: %w", id, err)
	}
	return r.state(ctx, container)
}

func (r *ContainerdRuntime) state(ctx context.Context, container containerd.Container) (State, error) {
	task, err := container.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StateCreated, nil
		}
		return StateUnknown, err
	}

	status, err := task.Status(ctx)
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to get task status: %w", err)
	}

	switch status.Status {
	case containerd.Running, containerd.Paused, containerd.Pausing:
		return StateRunning, nil
	case containerd.Stopped:
		return StateStopped, nil
	case containerd.Created:
		return StateCreated, nil
	default:
		return StateUnknown, nil
	}
}

// ListContainers returns the containers carrying all given labels
func (r *ContainerdRuntime) ListContainers(ctx context.Context, labels map[string]string) ([]Container, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	var filters []string
	if len(labels) > 0 {
		filters = append(filters, labelFilters(labels))
	}
	containers, err := r.client.Containers(ctx, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	out := make([]Container, 0, len(containers))
	for _, c := range containers {
		l, err := c.Labels(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get labels of %s: %w", c.ID(), err)
		}
		state, err := r.state(ctx, c)
		if err != nil {
			state = StateUnknown
		}
		out = append(out, Container{ID: c.ID(), Labels: l, State: state})
	}

	return out, nil
}

// Exec runs a command in a running container and waits for it
func (r *ContainerdRuntime) Exec(ctx context.Context, id string, args []string) (res *ExecResult, err error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	defer func() { metrics.RecordContainerOp("exec", err) }()

	container, err := r.client.LoadContainer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load container %s: %w", id, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("container %s is not running: %w", id, err)
	}
	spec, err := container.Spec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get spec of %s: %w", id, err)
	}

	pspec := *spec.Process
	pspec.Args = args
	pspec.Terminal = false

	var stdout, stderr bytes.Buffer
	execID := "exec-" + uuid.NewString()[:8]
	process, err := task.Exec(ctx, execID, &pspec, cio.NewCreator(cio.WithStreams(nil, &stdout, &stderr)))
	if err != nil {
		return nil, fmt.Errorf("failed to exec in %s: %w", id, err)
	}
	defer func() {
		if _, derr := process.Delete(ctx); derr != nil {
			r.logger.Debug().Err(derr).Str("exec_id", execID).Msg("Failed to delete exec process")
		}
	}()

	statusC, err := process.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for exec: %w", err)
	}
	if err := process.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start exec: %w", err)
	}

	var status containerd.ExitStatus
	select {
	case status = <-statusC:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	code, _, err := status.Result()
	if err != nil {
		return nil, fmt.Errorf("exec in %s failed: %w", id, err)
	}
	// the IO copy finishes after the process exit
	process.IO().Wait()

	return &ExecResult{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
