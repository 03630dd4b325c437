/*
Package metrics defines the Prometheus metrics exported by exadt.

All metrics are registered with the default registry at package init. exadt
is a short-lived CLI, so instead of serving /metrics it writes the registry
to a text file on exit (see WriteTextfile), which the node exporter's
textfile collector picks up.

# Metrics

EXAConf:
  - exadt_exaconf_commits_total: commits written to disk
  - exadt_exaconf_revision{cluster}: revision after the last commit
  - exadt_exaconf_integrity_failures_total: checksum mismatches on load
  - exadt_exaconf_merges_total{result}: merges by result (ok, conflict)
  - exadt_exaconf_migrations_total{version}: applied migration steps

Devices and containers:
  - exadt_devices_created_total: sparse file devices created
  - exadt_device_bytes_allocated_total: virtual bytes of created devices
  - exadt_container_operations_total{op,status}: runtime calls
  - exadt_operation_duration_seconds{op}: CLI operation latency

# Usage

	timer := metrics.NewTimer()
	err := orch.Start(ctx, opts)
	timer.ObserveOperation("start-cluster")

	if path != "" {
		_ = metrics.WriteTextfile(path)
	}
*/
package metrics
