package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Labels set on every cluster container.
const (
	LabelClusterName = "ClusterName"
	LabelNodeID      = "NodeID"
	LabelHostname    = "Hostname"
)

// State is the coarse state of a container.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateUnknown State = "unknown"
)

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name     string
	Image    string
	Hostname string
	Env      []string
	Labels   map[string]string
	Mounts   []specs.Mount
	// Devices are host device nodes made available in the container.
	// Privileged containers see all host devices anyway.
	Devices []Device

	Privileged bool
	CapAdd     []string
	CapDrop    []string

	// NetNSPath joins an existing network namespace, e.g. one created
	// with "ip netns add". Empty keeps a private namespace.
	NetNSPath   string
	HostNetwork bool
	HostIPC     bool

	// Args replaces the image command.
	Args []string
}

// Device maps a host device node into a container.
type Device struct {
	HostPath      string
	ContainerPath string
}

// Container is a container found by ListContainers.
type Container struct {
	ID     string
	Labels map[string]string
	State  State
}

// ExecResult is the outcome of a command run in a container.
type ExecResult struct {
	ExitCode uint32
	Stdout   string
	Stderr   string
}

// Execer runs a command inside a container.
type Execer interface {
	Exec(ctx context.Context, id string, args []string) (*ExecResult, error)
}

// Runtime is the container runtime used by the cluster orchestrator.
type Runtime interface {
	Execer

	PullImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, spec *ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	DeleteContainer(ctx context.Context, id string) error
	ContainerState(ctx context.Context, id string) (State, error)
	ListContainers(ctx context.Context, labels map[string]string) ([]Container, error)
	Close() error
}

// BindMount returns a recursive bind mount of a host path.
func BindMount(source, destination string, readOnly bool) specs.Mount {
	mode := "rw"
	if readOnly {
		mode = "ro"
	}
	return specs.Mount{
		Source:      source,
		Destination: destination,
		Type:        "bind",
		Options:     []string{"rbind", mode},
	}
}

// ParseVolume parses a "host:container[:ro|rw]" volume string.
func ParseVolume(v string) (specs.Mount, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return specs.Mount{}, fmt.Errorf("invalid volume '%s', expected host:container[:mode]", v)
	}
	readOnly := false
	if len(parts) == 3 {
		switch strings.ToLower(parts[2]) {
		case "ro":
			readOnly = true
		case "rw":
		default:
			return specs.Mount{}, fmt.Errorf("invalid mode '%s' in volume '%s'", parts[2], v)
		}
	}
	return BindMount(parts[0], parts[1], readOnly), nil
}

// Capabilities normalizes capability names to the "CAP_" form.
func Capabilities(caps []string) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if !strings.HasPrefix(c, "CAP_") {
			c = "CAP_" + c
		}
		out = append(out, c)
	}
	return out
}

// labelFilters builds containerd list filters matching all labels.
func labelFilters(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("labels.%q==%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}
