package exaconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
)

// ChecksumMode describes the state of the Global.Checksum key.
type ChecksumMode int

const (
	// ChecksumValue means a concrete MD5 digest is stored.
	ChecksumValue ChecksumMode = iota
	// ChecksumNone means the key is missing or "NONE".
	ChecksumNone
	// ChecksumDisabled turns integrity protection off.
	ChecksumDisabled
	// ChecksumCommit requests a commit on the next load.
	ChecksumCommit
)

func (m ChecksumMode) String() string {
	switch m {
	case ChecksumNone:
		return checksumNone
	case ChecksumDisabled:
		return checksumDisabled
	case ChecksumCommit:
		return checksumCommit
	default:
		return "VALUE"
	}
}

func parseChecksumMode(raw string) ChecksumMode {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case checksumNone:
		return ChecksumNone
	case checksumDisabled:
		return ChecksumDisabled
	case checksumCommit:
		return ChecksumCommit
	}
	return ChecksumValue
}

// NodeUUID is the persistent identity of a node.
type NodeUUID string

// IsImport reports whether the UUID is the IMPORT sentinel.
func (u NodeUUID) IsImport() bool {
	return string(u) == ImportUUID
}

// EntityKind is the part of a section name before the ':'.
type EntityKind string

const (
	KindNode         EntityKind = "Node"
	KindDisk         EntityKind = "Disk"
	KindEXAVolume    EntityKind = "EXAVolume"
	KindRemoteVolume EntityKind = "RemoteVolume"
	KindDB           EntityKind = "DB"
	KindBackup       EntityKind = "Backup"
	KindBucketFS     EntityKind = "BucketFS"
	KindBucket       EntityKind = "Bucket"
)

// Section returns the section name of the entity with the given ID.
func (k EntityKind) Section(id string) string {
	return configobj.JoinName(string(k), id)
}

// Owner is a UID/GID pair. It's stored as "uid : gid".
type Owner struct {
	UID int `yaml:"uid"`
	GID int `yaml:"gid"`
}

func (o Owner) String() string {
	return fmt.Sprintf("%d : %d", o.UID, o.GID)
}

// compact form used by BucketFS sections
func (o Owner) short() string {
	return fmt.Sprintf("%d:%d", o.UID, o.GID)
}

// ParseOwner parses "uid:gid" with optional whitespace.
func ParseOwner(s string) (Owner, error) {
	parts := configobj.SplitList(s, ":")
	if len(parts) != 2 {
		return Owner{}, configErrorf("invalid owner '%s'", s)
	}
	uid, err := strconv.Atoi(parts[0])
	if err != nil {
		return Owner{}, configErrorf("invalid UID in owner '%s'", s)
	}
	gid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Owner{}, configErrorf("invalid GID in owner '%s'", s)
	}
	return Owner{UID: uid, GID: gid}, nil
}

// PortMapping maps a container port to a host port.
type PortMapping struct {
	Container int `yaml:"container"`
	Host      int `yaml:"host"`
}

// DeviceMapping maps a device name to the host directory containing it.
type DeviceMapping struct {
	Device string `yaml:"device"`
	Path   string `yaml:"path"`
}

// MappedDevice is a device file on the host and its path in the container.
type MappedDevice struct {
	HostPath      string
	ContainerPath string
}

// NodeConfig describes one cluster node.
type NodeConfig struct {
	ID               int
	Name             string
	UUID             NodeUUID
	PrivateNet       string
	PrivateIP        string
	PublicNet        string
	PublicIP         string
	DockerVolume     string
	ExposedPorts     []PortMapping
	PrivateInterface string
	PublicInterface  string
	Disks            []DiskConfig
}

// Disk returns the disk called name or nil.
func (n *NodeConfig) Disk(name string) *DiskConfig {
	for i := range n.Disks {
		if n.Disks[i].Name == name {
			return &n.Disks[i]
		}
	}
	return nil
}

// Devices returns the devices of all disks.
func (n *NodeConfig) Devices() []string {
	var out []string
	for _, d := range n.Disks {
		out = append(out, d.Devices...)
	}
	return out
}

// DiskConfig describes a storage disk of a node.
type DiskConfig struct {
	Name          string
	Component     string
	Devices       []string
	Drives        []string
	Mapping       []DeviceMapping
	MappedDevices []MappedDevice
	DirectIO      bool
}

// VolumeConfig describes an EXAStorage volume.
type VolumeConfig struct {
	Name           string
	Type           string
	Size           int64
	Disk           string
	Redundancy     int
	Nodes          []int
	NumMasterNodes int
	Owner          Owner
	Permissions    string
	BlockSize      int64
	StripeSize     int64
	Shared         bool
	Priority       int
	Labels         []string
}

// RemoteVolumeConfig describes a remote (archive) volume.
type RemoteVolumeConfig struct {
	Name     string
	Type     string
	ID       int
	URL      string
	Username string
	Passwd   string
	Owner    Owner
	Labels   []string
	Options  string
}

// DriverConfig locates JDBC or Oracle drivers in BucketFS.
type DriverConfig struct {
	BucketFS string `yaml:"bucketfs"`
	Bucket   string `yaml:"bucket"`
	Dir      string `yaml:"dir"`
}

// BackupConfig is a backup schedule of a database.
type BackupConfig struct {
	Name    string
	Enabled bool
	Volume  string
	Level   int
	Expire  int64
	Minute  string
	Hour    string
	Day     string
	Month   string
	Weekday string
}

// DatabaseConfig describes a database. MemSize is in MiB.
type DatabaseConfig struct {
	Name            string
	Version         string
	MemSize         int64
	Port            int
	Owner           Owner
	Nodes           []int
	NumActiveNodes  int
	DataVolume      string
	Params          string
	LdapServers     []string
	EnableAuditing  *bool
	Interfaces      []string
	VolumeQuota     int64
	VolumeMoveDelay string
	JDBC            DriverConfig
	Oracle          DriverConfig
	Backups         []BackupConfig
}

// BucketFSConfig describes a bucket filesystem and its buckets.
type BucketFSConfig struct {
	Name       string
	Owner      Owner
	HTTPPort   int
	HTTPSPort  int
	SyncKey    string
	SyncPeriod string
	Path       string
	Buckets    []BucketConfig
}

// BucketConfig describes a bucket.
type BucketConfig struct {
	Name            string
	Public          bool
	ReadPasswd      string
	WritePasswd     string
	AdditionalFiles []string
}

// UserConfig describes an OS user of the cluster.
type UserConfig struct {
	Name             string
	ID               int
	Group            string
	LoginEnabled     bool
	Passwd           string
	AdditionalGroups []string
	AuthorizedKeys   []string
}

// GroupConfig describes an OS group of the cluster.
type GroupConfig struct {
	Name string
	ID   int
}

// DockerConfig holds the container settings of a Docker cluster.
type DockerConfig struct {
	RootDir           string
	Image             string
	DeviceType        string
	Privileged        bool
	CapAdd            []string
	CapDrop           []string
	NetworkMode       string
	IpcMode           string
	DefaultVolumes    []string
	AdditionalVolumes []string
}

// StorageConfig holds the optional EXAStorage settings.
type StorageConfig struct {
	BgRecEnabled       *bool `yaml:"bg_rec_enabled,omitempty"`
	BgRecLimit         *int  `yaml:"bg_rec_limit,omitempty"`
	SpaceWarnThreshold *int  `yaml:"space_warn_threshold,omitempty"`
}

// SSLConfig holds the certificate paths.
type SSLConfig struct {
	Cert     string
	CertKey  string
	CertAuth string
}

// Usage lists the volumes and databases referencing an entity.
type Usage struct {
	Volumes   []string
	Databases []string
}

// Empty reports whether nothing references the entity.
func (u Usage) Empty() bool {
	return len(u.Volumes) == 0 && len(u.Databases) == 0
}

// Filter returns the records for which keep returns true.
func Filter[T any](records []T, keep func(T) bool) []T {
	var out []T
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// AsBool parses the boolean spellings accepted in EXAConf files.
func AsBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, configErrorf("value '%s' is not a boolean", s)
}

func boolStr(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func joinInts(ids []int, sep string) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, sep)
}

func parseInts(v string) ([]int, error) {
	var out []int
	for _, e := range configobj.SplitList(v, ",") {
		n, err := strconv.Atoi(e)
		if err != nil {
			return nil, configErrorf("'%s' is not a number", e)
		}
		out = append(out, n)
	}
	return out, nil
}
