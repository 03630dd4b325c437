/*
Package log provides structured logging for exadt using zerolog.

A single global Logger is configured once by the CLI through Init. Packages
derive child loggers that carry a component field so that output from the
configuration core, the device handler and the container glue can be told
apart:

	logger := log.WithComponent("device")
	logger.Info().
		Str("node", "11").
		Str("file", devFile).
		Msg("Created sparse device file")

# Configuration

	log.Init(log.Config{
		Level:      log.ParseLevel("debug"),
		JSONOutput: false,
		Output:     os.Stderr,
	})

Console output uses RFC3339 timestamps. JSON output is intended for
collection by a log shipper when exadt runs unattended (for example from a
systemd unit that starts a cluster at boot).

# Levels

  - debug: every section written, every container spec built
  - info: lifecycle steps (cluster started, devices created, DB stopped)
  - warn: degraded but non-fatal conditions (checksum protection disabled,
    unparseable version numbers, foreign files kept)
  - error: failures surfaced to the user

Logs go to stderr by default so that command output on stdout (cluster
lists, info dumps, dwad_client output) stays machine readable.
*/
package log
