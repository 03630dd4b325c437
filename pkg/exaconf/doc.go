/*
Package exaconf provides typed access to EXAConf, the single configuration
file describing an EXASOL cluster: its nodes, storage volumes, databases,
BucketFS services, users and groups.

The file is a hierarchical INI document (see package configobj). This
package layers a schema on top of it: entity sections are named
"<Kind> : <ID>", lists are comma separated, sizes are written with binary
units and ownership is stored as "uid : gid".

# Architecture

	┌──────────────────────── EXAConf ───────────────────────────┐
	│                                                             │
	│  Open(root) ──► configobj.Document ──► CheckIntegrity       │
	│                        │                    │               │
	│                        │               Validate             │
	│                        ▼                                    │
	│   Getters (Nodes, Volumes, Databases, BucketFS, Users...)   │
	│                                                             │
	│   Update(func(*Tx) error)                                   │
	│     ├─ Add, Remove and Set*Conf on *Tx (in memory)          │
	│     ├─ error  ──► Revert (re-read file)                     │
	│     └─ ok     ──► Commit                                    │
	│                    ├─ checksum (MD5, Revision/Checksum      │
	│                    │   replaced by PLACEHOLDER)             │
	│                    ├─ Revision + 1 if the checksum changed  │
	│                    └─ atomic write, mode 0600, reload       │
	└─────────────────────────────────────────────────────────────┘

# Integrity

Global.Checksum holds the MD5 digest of the file content. Three sentinels
change the behavior of the check:

  - NONE (or a missing key): no check.
  - DISABLED: no check, every commit increases the revision.
  - COMMIT: the file is committed on the next load, which stores a real
    digest.

A mismatch is reported as *IntegrityError, which unwraps to *ConfigError.

# Transactions

All mutations happen inside Update. A Tx exposes the mutating operations;
they validate references (owners must exist, names must be unique, entities
must not be in use) before touching the document. The first failing
operation aborts the transaction and the document is re-read from disk, so
a failed update never leaves partial changes behind.

	err := conf.Update(func(tx *exaconf.Tx) error {
		if err := tx.AddNode(exaconf.NodeSpec{PrivateNet: "10.10.10.x/24"}); err != nil {
			return err
		}
		return tx.SetDatabaseConf("DB1", exaconf.DatabaseUpdate{Nodes: []int{11, 12, 13, 14}})
	})

Set*Conf operations take update structs whose nil fields are left alone.
The ID "_all" (or "all") applies the update to every entity of the kind.

# Versions and Merging

UpdateSelf migrates files written by older versions step by step. Merge
reconciles copies of the file (e.g. the one on the host and the ones inside
the node containers): the copy with the highest revision wins and node
UUIDs marked IMPORT are filled in from the other copies.
*/
package exaconf
