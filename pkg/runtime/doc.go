/*
Package runtime runs the cluster node containers on containerd.

All containers live in the containerd namespace "exadt" and carry the labels
ClusterName, NodeID and Hostname, which is how a cluster finds its containers
again. The Runtime interface is what the cluster orchestrator depends on;
ContainerdRuntime is its only production implementation.

# Container Lifecycle

	PullImage ──► CreateContainer ──► StartContainer ──► Exec (dwad_client)
	                     │                                  │
	                     │        StopContainer ◄───────────┘
	                     │        (SIGTERM, SIGKILL after timeout)
	                     ▼                │
	              DeleteContainer ◄───────┘
	              (snapshot cleanup)

CreateContainer turns a ContainerSpec into an OCI spec: bind mounts for the
node volume and mapped devices, hostname, environment, privileged mode or
explicit capabilities, and an existing network namespace created by the
network package.

# Usage

	rt, err := runtime.NewContainerdRuntime("")
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.CreateContainer(ctx, &runtime.ContainerSpec{
		Name:     "MyCluster_11",
		Image:    "exasol/docker-db:latest",
		Hostname: "n11",
		Mounts:   []specs.Mount{runtime.BindMount("/srv/MyCluster/n11", "/exa", false)},
	})

Every operation is counted in exadt_container_operations_total.
*/
package runtime
