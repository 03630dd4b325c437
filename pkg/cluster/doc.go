// Package cluster runs the nodes of an EXAConf cluster as local containers.
//
// Start creates one container per node, named "<cluster>_<id>" and labelled
// with the cluster name, the node ID and the hostname. The node volume is
// mounted at /exa, and the file devices and BucketFS directories are mounted
// below it. Each container joins its own network namespace attached to the
// cluster networks. Stop removes all of it again.
package cluster
