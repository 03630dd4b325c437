/*
Package volume manages the node volumes of a cluster on the local host.

Every node has one volume, a directory below the Docker root directory of
the EXAConf (the DockerVolume of the node). It is mounted to /exa in the
node container and holds the node's copy of the EXAConf, its storage and
BucketFS directories, logs and temporary data:

	<RootDir>/
	├── EXAConf
	├── n11/
	│   ├── etc/EXAConf
	│   ├── data/storage/
	│   ├── data/bucketfs/
	│   ├── metadata/
	│   ├── logs/
	│   ├── tmp/
	│   └── spool/
	└── n12/
	    └── ...

# Usage

	driver, err := volume.NewLocalDriver(rootDir)
	if err != nil {
		return err
	}
	vols, err := driver.CreateNodeVolumes(conf)
	if err != nil {
		return err
	}
	// every node container sees the current EXAConf under /exa/etc
	if err := driver.CopyConf(conf, vols); err != nil {
		return err
	}

DeleteNodeVolumes removes the volumes of all nodes and collects the
errors of the single removals.

LocalDriver implements VolumeDriver for plain host directories.
*/
package volume
