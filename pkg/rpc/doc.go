// Package rpc starts, stops and lists the databases of a running cluster.
package rpc
