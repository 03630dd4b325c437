package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EXAConf metrics
	ExaconfCommits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exadt_exaconf_commits_total",
			Help: "Total number of EXAConf commits written to disk",
		},
	)

	ExaconfRevision = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exadt_exaconf_revision",
			Help: "Revision of the last committed EXAConf by cluster",
		},
		[]string{"cluster"},
	)

	ExaconfIntegrityFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exadt_exaconf_integrity_failures_total",
			Help: "Total number of EXAConf checksum mismatches",
		},
	)

	ExaconfMerges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadt_exaconf_merges_total",
			Help: "Total number of EXAConf merges by result",
		},
		[]string{"result"},
	)

	ExaconfMigrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadt_exaconf_migrations_total",
			Help: "Total number of applied EXAConf migration steps by target version",
		},
		[]string{"version"},
	)

	// Device metrics
	DevicesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exadt_devices_created_total",
			Help: "Total number of file devices created",
		},
	)

	DeviceBytesAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exadt_device_bytes_allocated_total",
			Help: "Total virtual size in bytes of created file devices",
		},
	)

	// Container metrics
	ContainerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exadt_container_operations_total",
			Help: "Total number of container operations by operation and status",
		},
		[]string{"op", "status"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exadt_operation_duration_seconds",
			Help:    "Duration of exadt operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(ExaconfCommits)
	prometheus.MustRegister(ExaconfRevision)
	prometheus.MustRegister(ExaconfIntegrityFailures)
	prometheus.MustRegister(ExaconfMerges)
	prometheus.MustRegister(ExaconfMigrations)
	prometheus.MustRegister(DevicesCreated)
	prometheus.MustRegister(DeviceBytesAllocated)
	prometheus.MustRegister(ContainerOperations)
	prometheus.MustRegister(OperationDuration)
}

// RecordContainerOp counts a container operation, labelling it "error" if
// err is non-nil.
func RecordContainerOp(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ContainerOperations.WithLabelValues(op, status).Inc()
}

// WriteTextfile writes all registered metrics in the Prometheus text format
// to path, e.g. for the node exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
