package exaconf

// Version is the EXAConf format version written by this package.
const Version = "6.1.8"

// DefaultFilename is the name of the config file inside a root directory.
const DefaultFilename = "EXAConf"

const (
	// MaxReservedNodeID is the highest node ID that can't be used.
	MaxReservedNodeID = 10
	// RemoteVolumeIDOffset is the lowest valid remote volume ID.
	RemoteVolumeIDOffset = 10000

	ContainerRoot    = "/exa"
	StorageDir       = "data/storage"
	BucketFSDir      = "data/bucketfs"
	EtcDir           = "etc"
	RemoteVolumesDir = "etc/remote_volumes/"
	DevicePrefix     = "dev."
	DataSuffix       = ".data"
	MetaSuffix       = ".meta"
	StorageComponent = "exastorage"
	guiSubdir        = "share/exagui/"
)

// Defaults written by Initialize and used when optional keys are missing.
const (
	DefaultCoredPort          = 10001
	DefaultSSHPort            = 22
	DefaultXMLRPCPort         = 443
	DefaultDBPort             = 8888
	DefaultBucketFSHTTPPort   = 6583
	DefaultBucketFSHTTPSPort  = 0
	DefaultBucketFS           = "bfsdefault"
	DefaultBucket             = "default"
	DefaultSyncPeriod         = "30000"
	DefaultTimezone           = "Europe/Berlin"
	DefaultHugepages          = "0"
	DefaultDeviceType         = "block"
	DefaultSpaceWarnThreshold = 90
	DefaultBgRecLimit1GB      = 75
	DefaultJDBCDir            = "drivers/jdbc"
	DefaultOracleDir          = "drivers/oracle"
	DefaultGroupsStartID      = 1000

	DefaultDockerPrivileged  = true
	DefaultDockerNetworkMode = "bridge"
	DefaultDockerIpcMode     = "private"

	DefaultVolumeBlockSize   = 4096
	DefaultVolumeStripeSize  = 262144
	DefaultVolumePermissions = "rwx"
	DefaultVolumePriority    = 10
	ArchiveVolumeBlockSize   = 65536
	ArchiveVolumeStripeSize  = 65536
)

// Checksum sentinels.
const (
	checksumNone     = "NONE"
	checksumDisabled = "DISABLED"
	checksumCommit   = "COMMIT"
	placeholder      = "PLACEHOLDER"
)

// ImportUUID marks a node UUID that is taken over from the running node.
const ImportUUID = "IMPORT"

// Wildcard IDs accepted by the Set*Conf operations.
const (
	WildcardAll    = "_all"
	wildcardAllAlt = "all"
)

// Volume types.
const (
	VolumeTypeData    = "data"
	VolumeTypeArchive = "archive"
	VolumeTypeRemote  = "remote"
)

var (
	validPlatforms         = []string{"docker", "vm", "aws", "azure"}
	validVolumeTypes       = []string{VolumeTypeData, VolumeTypeArchive, VolumeTypeRemote}
	validRemoteVolumeTypes = []string{"smb", "ftp", "s3", "file"}

	// mounted into every container if "DefaultVolumes" is absent
	lvmVolumes = []string{
		"/run/udev:/run/udev:rw",
		"/run/lvm:/run/lvm:rw",
		"/lib/modules:/lib/modules:ro",
	}

	reservedUsers  = map[string]int{"exameta": 55555, "_owner": -1, "_self": -1}
	reservedGroups = map[string]int{"exameta": 55555, "exahugepages": 55554}
)

func isWildcard(id string) bool {
	return id == WildcardAll || id == wildcardAllAlt
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
