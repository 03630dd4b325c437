package exaconf

import (
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/passwd"
)

// InitOptions configure Initialize.
type InitOptions struct {
	ClusterName string
	Platform    string
	// Image and DeviceType are only used on the Docker platform.
	Image      string
	DeviceType string
	NumNodes   int
	// License is the path of the license file, made absolute.
	License          string
	AddArchiveVolume bool
	// Force re-initializes an initialized file.
	Force bool

	DBVersion    string
	OSVersion    string
	REVersion    string
	ImageVersion string

	// DefaultOwner owns the default volumes, database and BucketFS. Nil
	// selects the effective UID and GID of the process.
	DefaultOwner *Owner
	// TemplateMode adds a disk with one device to every node and assigns
	// it to the default volumes.
	TemplateMode bool
}

// title returns s with the first letter upper case and the rest lower case.
func title(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Initialize creates a new cluster configuration and commits it. An
// initialized file is only replaced with Force.
func (c *EXAConf) Initialize(opts InitOptions) error {
	if c.Initialized() && !opts.Force {
		return configErrorf("EXAConf file '%s' is already initialized", c.confPath)
	}
	if !PlatformValid(opts.Platform) {
		return configErrorf("platform '%s' is not valid", opts.Platform)
	}
	if opts.NumNodes < 1 {
		return configErrorf("a cluster needs at least one node")
	}
	if c.Initialized() {
		c.doc.Reset()
		c.vers = defaultVersions()
	}

	if err := c.initialize(opts); err != nil {
		if rerr := c.Revert(); rerr != nil {
			c.logger.Error().Err(rerr).Msg("Failed to revert after failed initialization")
		}
		return err
	}
	if err := c.Commit(); err != nil {
		return err
	}
	c.logger.Info().
		Str("cluster", opts.ClusterName).
		Int("nodes", opts.NumNodes).
		Str("platform", c.Platform()).
		Msg("Initialized EXAConf")
	return nil
}

func (c *EXAConf) initialize(opts InitOptions) error {
	for dst, v := range map[*string]string{
		&c.vers.db: opts.DBVersion, &c.vers.os: opts.OSVersion,
		&c.vers.re: opts.REVersion, &c.vers.img: opts.ImageVersion,
	} {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	owner := Owner{UID: os.Geteuid(), GID: os.Getegid()}
	if opts.DefaultOwner != nil {
		owner = *opts.DefaultOwner
	}
	license := ""
	if opts.License != "" {
		abs, err := filepath.Abs(opts.License)
		if err != nil {
			return configErrorf("invalid license path '%s': %v", opts.License, err)
		}
		license = abs
	}

	g := c.doc.EnsureSection("Global")
	g.Set("Revision", "0")
	g.Set("Checksum", checksumCommit)
	g.Set("ClusterName", opts.ClusterName)
	g.Set("Platform", title(opts.Platform))
	g.Set("LicenseFile", license)
	g.Set("CoredPort", strconv.Itoa(DefaultCoredPort))
	g.Set("SSHPort", strconv.Itoa(DefaultSSHPort))
	g.Set("XMLRPCPort", strconv.Itoa(DefaultXMLRPCPort))
	g.Set("Networks", "private")
	g.SetComments("Networks", "List of networks for this cluster: 'private' is mandatory, 'public' is optional.")
	g.Set("NameServers", "")
	g.SetComments("NameServers", "Comma-separated list of nameservers for this cluster.")
	g.Set("Timezone", DefaultTimezone)
	g.Set("Hugepages", DefaultHugepages)
	g.SetComments("Hugepages", "Nr. of hugepages ('0' = disabled, 'host' = manually configured on the host, 'auto' = set automatically based on DB config)")
	g.Set("ConfVersion", Version)
	g.Set("OSVersion", c.vers.os)
	g.Set("REVersion", c.vers.re)
	g.Set("DBVersion", c.vers.db)
	g.Set("ImageVersion", c.vers.img)

	ssl := c.doc.EnsureSection("SSL")
	ssl.Set("Cert", "/path/to/ssl.crt")
	ssl.SetComments("Cert", "The SSL certificate, private key and CA for all EXASOL services")
	ssl.Set("CertKey", "/path/to/ssl.key")
	ssl.Set("CertAuth", "/path/to/ssl.ca")
	c.doc.SetComments("SSL", "", "SSL options")

	if c.PlatformIs("Docker") {
		deviceType := opts.DeviceType
		if deviceType == "" {
			deviceType = DefaultDeviceType
		}
		d := c.doc.EnsureSection("Docker")
		d.Set("RootDir", c.root)
		d.SetComments("RootDir", "The directory that contains all data related to this docker cluster", "(except for mapped devices)")
		d.Set("Image", opts.Image)
		d.SetComments("Image", "The EXASOL docker image used for all containers of this cluster")
		d.Set("DeviceType", deviceType)
		d.SetComments("DeviceType", "The type of storage devices for this cluster: 'block' or 'file'")
		d.Set("AdditionalVolumes", "")
		d.SetComments("AdditionalVolumes",
			"Comma-separated list of volumes to be mounted in all containers (e. g. '/mnt/my_data:/exa/my_data:rw' )",
			"These user-defined volumes are mounted additionally to the internal ones (like the node root volume)")
		c.doc.SetComments("Docker", "", "Docker related options")
	}

	tx := &Tx{c: c}
	if err := tx.addDefaultGroups(owner.GID); err != nil {
		return err
	}
	if err := tx.addDefaultUsers(owner.UID, owner.GID); err != nil {
		return err
	}

	var nodes []int
	for i := 1; i <= opts.NumNodes; i++ {
		id := MaxReservedNodeID + i
		if err := tx.AddNode(NodeSpec{
			ID:           id,
			PrivateNet:   "10.10.10." + strconv.Itoa(id) + "/24",
			TemplateMode: opts.TemplateMode,
		}); err != nil {
			return err
		}
		nodes = append(nodes, id)
	}

	st := c.doc.EnsureSection("EXAStorage")
	st.Set("BgRecEnabled", boolStr(true))
	st.SetComments("BgRecEnabled", "Enable or disable background recovery / data restoration (does not affect on-demand recovery)")
	st.Set("BgRecLimit", "")
	st.SetComments("BgRecLimit", "Max. throughput for background recovery / data restoration (in MiB/s)")
	st.Set("SpaceWarnThreshold", strconv.Itoa(DefaultSpaceWarnThreshold))
	st.SetComments("SpaceWarnThreshold", "Space usage threshold (in percent, per node) for sending a warning")
	c.doc.SetComments("EXAStorage", "", "Global EXAStorage options")

	disk := ""
	if opts.TemplateMode {
		disk = "disk1"
	}
	if err := tx.AddVolume(VolumeSpec{
		Name:       "DataVolume1",
		Type:       VolumeTypeData,
		Disk:       disk,
		Redundancy: 1,
		Nodes:      nodes,
		Owner:      owner,
	}); err != nil {
		return err
	}
	if opts.AddArchiveVolume {
		shared := true
		if err := tx.AddVolume(VolumeSpec{
			Name:       "ArchiveVolume1",
			Type:       VolumeTypeArchive,
			Disk:       disk,
			Redundancy: 1,
			Nodes:      nodes,
			Owner:      owner,
			Shared:     &shared,
		}); err != nil {
			return err
		}
	}

	// 2 GiB per node
	if err := tx.AddDatabase(DatabaseSpec{
		Name:           "DB1",
		Version:        c.vers.db,
		MemSize:        int64(len(nodes)) * 2 * 1024,
		Port:           DefaultDBPort,
		Owner:          owner,
		Nodes:          nodes,
		NumActiveNodes: len(nodes),
		DataVolume:     "DataVolume1",
	}); err != nil {
		return err
	}

	if err := tx.AddBucketFS(BucketFSSpec{
		Name:      DefaultBucketFS,
		Owner:     owner,
		HTTPPort:  DefaultBucketFSHTTPPort,
		HTTPSPort: DefaultBucketFSHTTPSPort,
	}); err != nil {
		return err
	}
	if err := tx.AddBucket(DefaultBucketFS, BucketSpec{
		Name:        DefaultBucket,
		Public:      true,
		ReadPasswd:  passwd.GenerateBase64(22),
		WritePasswd: passwd.GenerateBase64(22),
		AdditionalFiles: []string{
			"EXAClusterOS:" + path.Join(c.OSDir(), "var/clients/packages/ScriptLanguages-*"),
			"EXASolution-" + c.vers.db + ":" + path.Join(c.DBDir(""), "bin/udf/*"),
		},
	}); err != nil {
		return err
	}
	c.bucketFSSection(DefaultBucketFS).SetComments(KindBucket.Section(DefaultBucket), "The default bucket (auto-generated)")
	return nil
}
