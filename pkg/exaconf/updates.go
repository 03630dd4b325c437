package exaconf

// Specs describe new entities. Updates describe partial changes: nil
// pointers and nil slices leave the stored value alone. Updates are also
// used to create a missing entity, in which case the fields required by
// the matching Add operation must be set.

// NodeSpec describes a node to add. ID 0 picks the next free ID.
type NodeSpec struct {
	ID           int
	Name         string
	PrivateNet   string
	PublicNet    string
	TemplateMode bool
}

// NodeUpdate changes a node. Disks are merged by name.
type NodeUpdate struct {
	Name         *string       `yaml:"name,omitempty"`
	UUID         *string       `yaml:"uuid,omitempty"`
	PrivateNet   *string       `yaml:"private_net,omitempty"`
	PublicNet    *string       `yaml:"public_net,omitempty"`
	PrivateIP    *string       `yaml:"private_ip,omitempty"`
	PublicIP     *string       `yaml:"public_ip,omitempty"`
	DockerVolume *string       `yaml:"docker_volume,omitempty"`
	ExposedPorts []PortMapping `yaml:"exposed_ports,omitempty"`
	Disks        []DiskUpdate  `yaml:"disks,omitempty"`
}

// DiskUpdate changes or creates the disk called Name.
type DiskUpdate struct {
	Name      string          `yaml:"name"`
	Component *string         `yaml:"component,omitempty"`
	Devices   []string        `yaml:"devices,omitempty"`
	Drives    []string        `yaml:"drives,omitempty"`
	Mapping   []DeviceMapping `yaml:"mapping,omitempty"`
	DirectIO  *bool           `yaml:"direct_io,omitempty"`
}

// VolumeSpec describes an EXAStorage volume to add. Zero values select
// the defaults of the volume type.
type VolumeSpec struct {
	Name           string
	Type           string
	Size           int64
	Disk           string
	Redundancy     int
	Nodes          []int
	Owner          Owner
	NumMasterNodes int
	Permissions    string
	Labels         []string
	BlockSize      int64
	StripeSize     int64
	Shared         *bool
}

// VolumeUpdate changes a volume. Sizes accept units, e.g. "4 GiB".
type VolumeUpdate struct {
	Type           *string  `yaml:"type,omitempty"`
	Size           *string  `yaml:"size,omitempty"`
	Disk           *string  `yaml:"disk,omitempty"`
	Redundancy     *int     `yaml:"redundancy,omitempty"`
	Owner          *Owner   `yaml:"owner,omitempty"`
	Permissions    *string  `yaml:"permissions,omitempty"`
	Nodes          []int    `yaml:"nodes,omitempty"`
	NumMasterNodes *int     `yaml:"num_master_nodes,omitempty"`
	Priority       *int     `yaml:"priority,omitempty"`
	Shared         *bool    `yaml:"shared,omitempty"`
	Labels         []string `yaml:"labels,omitempty"`
	BlockSize      *string  `yaml:"block_size,omitempty"`
	StripeSize     *string  `yaml:"stripe_size,omitempty"`
}

// RemoteVolumeSpec describes a remote volume to add. ID 0 picks the next
// free ID, an empty name is derived from the ID.
type RemoteVolumeSpec struct {
	Name     string
	ID       int
	Type     string
	URL      string
	Owner    Owner
	Username string
	Passwd   string
	Labels   []string
	Options  string
}

// RemoteVolumeUpdate changes a remote volume.
type RemoteVolumeUpdate struct {
	ID       *int     `yaml:"id,omitempty"`
	Type     *string  `yaml:"type,omitempty"`
	URL      *string  `yaml:"url,omitempty"`
	Username *string  `yaml:"username,omitempty"`
	Passwd   *string  `yaml:"passwd,omitempty"`
	Owner    *Owner   `yaml:"owner,omitempty"`
	Labels   []string `yaml:"labels,omitempty"`
	Options  *string  `yaml:"options,omitempty"`
}

// DatabaseSpec describes a database to add. MemSize is in MiB.
type DatabaseSpec struct {
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
	EnableAuditing  bool
	Interfaces      []string
	VolumeQuota     int64
	VolumeMoveDelay string
}

// DriverUpdate changes a JDBC or Oracle driver location.
type DriverUpdate struct {
	BucketFS *string `yaml:"bucketfs,omitempty"`
	Bucket   *string `yaml:"bucket,omitempty"`
	Dir      *string `yaml:"dir,omitempty"`
}

// DatabaseUpdate changes a database. MemSize is in MiB, VolumeQuota in
// bytes.
type DatabaseUpdate struct {
	Version         *string       `yaml:"version,omitempty"`
	MemSize         *int64        `yaml:"mem_size,omitempty"`
	Port            *int          `yaml:"port,omitempty"`
	Owner           *Owner        `yaml:"owner,omitempty"`
	Nodes           []int         `yaml:"nodes,omitempty"`
	NumActiveNodes  *int          `yaml:"num_active_nodes,omitempty"`
	DataVolume      *string       `yaml:"data_volume,omitempty"`
	Params          *string       `yaml:"params,omitempty"`
	LdapServers     []string      `yaml:"ldap_servers,omitempty"`
	EnableAuditing  *bool         `yaml:"enable_auditing,omitempty"`
	Interfaces      []string      `yaml:"interfaces,omitempty"`
	VolumeQuota     *int64        `yaml:"volume_quota,omitempty"`
	VolumeMoveDelay *string       `yaml:"volume_move_delay,omitempty"`
	JDBC            *DriverUpdate `yaml:"jdbc,omitempty"`
	Oracle          *DriverUpdate `yaml:"oracle,omitempty"`
}

// BackupSpec describes a backup schedule to add. Enabled defaults to true
// and Expire to "0".
type BackupSpec struct {
	Name    string
	Volume  string
	Level   int
	Minute  string
	Hour    string
	Day     string
	Month   string
	Weekday string
	Expire  string
	Enabled *bool
}

// BackupUpdate changes a backup schedule.
type BackupUpdate struct {
	Enabled *bool   `yaml:"enabled,omitempty"`
	Volume  *string `yaml:"volume,omitempty"`
	Level   *int    `yaml:"level,omitempty"`
	Minute  *string `yaml:"minute,omitempty"`
	Hour    *string `yaml:"hour,omitempty"`
	Day     *string `yaml:"day,omitempty"`
	Month   *string `yaml:"month,omitempty"`
	Weekday *string `yaml:"weekday,omitempty"`
	Expire  *string `yaml:"expire,omitempty"`
}

// BucketFSSpec describes a BucketFS to add. An empty sync key is
// generated.
type BucketFSSpec struct {
	Name       string
	Owner      Owner
	HTTPPort   int
	HTTPSPort  int
	SyncKey    string
	SyncPeriod string
	Path       string
}

// BucketFSUpdate changes a BucketFS.
type BucketFSUpdate struct {
	Owner      *Owner  `yaml:"owner,omitempty"`
	HTTPPort   *int    `yaml:"http_port,omitempty"`
	HTTPSPort  *int    `yaml:"https_port,omitempty"`
	SyncKey    *string `yaml:"sync_key,omitempty"`
	SyncPeriod *string `yaml:"sync_period,omitempty"`
	Path       *string `yaml:"path,omitempty"`
}

// BucketSpec describes a bucket to add. Empty passwords are generated.
type BucketSpec struct {
	Name            string
	Public          bool
	ReadPasswd      string
	WritePasswd     string
	AdditionalFiles []string
}

// BucketUpdate changes a bucket.
type BucketUpdate struct {
	Public          *bool    `yaml:"public,omitempty"`
	ReadPasswd      *string  `yaml:"read_passwd,omitempty"`
	WritePasswd     *string  `yaml:"write_passwd,omitempty"`
	AdditionalFiles []string `yaml:"additional_files,omitempty"`
}

// UserSpec describes a user to add. Group may be a name or a GID. The
// password is shadow-encoded if EncodePasswd is set or it isn't encoded
// yet.
type UserSpec struct {
	Name             string
	ID               int
	Group            string
	LoginEnabled     bool
	Passwd           *string
	EncodePasswd     bool
	AdditionalGroups []string
	AuthorizedKeys   []string
}

// UserUpdate changes a user. The name can't be changed.
type UserUpdate struct {
	ID               *int     `yaml:"id,omitempty"`
	Group            *string  `yaml:"group,omitempty"`
	LoginEnabled     *bool    `yaml:"login_enabled,omitempty"`
	Passwd           *string  `yaml:"passwd,omitempty"`
	AdditionalGroups []string `yaml:"additional_groups,omitempty"`
	AuthorizedKeys   []string `yaml:"authorized_keys,omitempty"`
}

// UserUpdateOptions control SetUserConf.
type UserUpdateOptions struct {
	// EncodePasswd always shadow-encodes the given password.
	EncodePasswd bool
	// ExtendGroups adds the given groups to the existing ones.
	ExtendGroups bool
	// ExtendKeys adds the given keys to the existing ones.
	ExtendKeys bool
}

// GroupUpdate changes a group.
type GroupUpdate struct {
	ID *int `yaml:"id,omitempty"`
}
