/*
Package storage is the cluster registry of a host.

Each cluster created with exadt is registered under its name together with
the root directory of its EXAConf. The registry is a BoltDB file, by default
~/.exadt/registry.db, with one bucket:

	clusters: name -> {"name", "root", "created_at"} (JSON)

Names and root directories are unique.
*/
package storage
