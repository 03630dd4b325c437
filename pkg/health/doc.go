/*
Package health checks whether the services of started cluster nodes are up.

Three checkers implement Checker:

  - TCPChecker dials a node port, e.g. the cored port on the private address.
  - HTTPChecker requests a URL. NewBucketFSChecker targets a BucketFS HTTP port.
  - ExecChecker runs a command in a node container through an Execer,
    e.g. "dwad_client shortlist" in the first node.

WaitHealthy repeats a check every Config.Interval until it succeeds:

	err := health.WaitHealthy(ctx, health.NewTCPChecker("10.10.10.11", 10001), health.DefaultConfig())

Failures within Config.StartPeriod do not count. After that, Config.Retries
consecutive failures end the wait with an error.
*/
package health
