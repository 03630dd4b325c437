package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/cuemby/exadt/pkg/metrics"
	gounits "github.com/docker/go-units"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	gib = int64(1024 * 1024 * 1024)

	// MinAutoFreeSpace is the free space required for automatic device
	// creation on the host.
	MinAutoFreeSpace = 10 * gib
	// MaxAutoUsedSpace caps the space used by automatic device creation.
	MaxAutoUsedSpace = 5 * MinAutoFreeSpace
	// MaxAutoInternalUsedSpace caps automatic creation inside a container.
	MaxAutoInternalUsedSpace = 6 * gib
	// AutoReservedPerNode is kept free per node for the container runtime
	// and BucketFS files.
	AutoReservedPerNode = 3 * gib
	// AutoInternalReserved is kept free inside a container.
	AutoInternalReserved = 1 * gib

	DefaultDisk     = "disk1"
	AutoMinVolSize  = 4 * gib
	VolResizeStep   = 4 * gib
	autoVolumeShare = 0.666
)

var (
	// ErrWrongDeviceType is returned for clusters that don't use file
	// devices.
	ErrWrongDeviceType = errors.New("file devices can only be used with device type 'file'")
	// ErrDisksExist is returned by AutoCreateFileDevices if a node already
	// has disks.
	ErrDisksExist = errors.New("devices can't be auto-generated because the cluster already has disks")
)

// Shortage describes a filesystem without enough free space for the
// sparse device files on it.
type Shortage struct {
	MountPoint   string
	Free         int64
	VirtualSize  int64
	PhysicalSize int64
}

// Handler creates and removes file devices of a cluster and keeps EXAConf
// in sync.
type Handler struct {
	conf   *exaconf.EXAConf
	logger zerolog.Logger

	// freeSpace is FreeSpace unless replaced in tests
	freeSpace func(mountPoint string) (int64, error)
}

// NewHandler creates a device handler for conf.
func NewHandler(conf *exaconf.EXAConf) *Handler {
	return &Handler{
		conf:      conf,
		logger:    log.WithCluster(conf.ClusterName()).With().Str("component", "device").Logger(),
		freeSpace: FreeSpace,
	}
}

// MountPoint returns the mount point of the filesystem containing path.
func MountPoint(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if p, err = filepath.EvalSymlinks(p); err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	for p != string(filepath.Separator) {
		ok, err := isMount(p)
		if err != nil {
			return "", err
		}
		if ok {
			return p, nil
		}
		p = filepath.Dir(p)
	}
	return p, nil
}

func isMount(p string) (bool, error) {
	var st, parent unix.Stat_t
	if err := unix.Lstat(p, &st); err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return false, nil
	}
	if err := unix.Lstat(filepath.Join(p, ".."), &parent); err != nil {
		return false, fmt.Errorf("failed to stat parent of %s: %w", p, err)
	}
	if st.Dev != parent.Dev {
		return true, nil
	}
	return st.Ino == parent.Ino, nil
}

// FreeSpace returns the free bytes of the filesystem mounted at
// mountPoint, including the blocks reserved for root.
func FreeSpace(mountPoint string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mountPoint, &st); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem %s: %w", mountPoint, err)
	}
	return int64(st.Bfree) * int64(st.Bsize), nil
}

// ShortName strips the ".data" or ".meta" suffix of old two-file devices.
func ShortName(dev string) string {
	if s, ok := strings.CutSuffix(dev, exaconf.DataSuffix); ok {
		return s
	}
	if s, ok := strings.CutSuffix(dev, exaconf.MetaSuffix); ok {
		return s
	}
	return dev
}

// IsDeviceFile reports whether name looks like a storage device file.
func IsDeviceFile(name string) bool {
	return strings.Contains(name, exaconf.DevicePrefix)
}

// IsMappedDevice reports whether dev is mapped to a host directory by
// the disk.
func IsMappedDevice(dev string, disk *exaconf.DiskConfig) bool {
	dev = ShortName(filepath.Base(dev))
	for _, m := range disk.Mapping {
		if ShortName(m.Device) == dev {
			return true
		}
	}
	return false
}

func (h *Handler) checkDeviceType() error {
	if dt := h.conf.DeviceType(); dt != "file" {
		return fmt.Errorf("%w (cluster has '%s')", ErrWrongDeviceType, dt)
	}
	return nil
}

// deviceFiles returns the host files of all file devices of the cluster.
func (h *Handler) deviceFiles() ([]string, error) {
	nodes, err := h.conf.Nodes()
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	seen := make(map[string]bool)
	var files []string
	add := func(dev string) error {
		compat, err := exaconf.CheckFixLocalDevPath(dev)
		if err != nil {
			return err
		}
		for _, f := range compat {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
		return nil
	}
	for _, n := range nodes {
		for i := range n.Disks {
			disk := &n.Disks[i]
			for _, md := range disk.MappedDevices {
				if err := add(md.HostPath); err != nil {
					return nil, err
				}
			}
			for _, dev := range disk.Devices {
				if IsMappedDevice(dev, disk) {
					continue
				}
				if err := add(filepath.Join(n.DockerVolume, exaconf.StorageDir, dev)); err != nil {
					return nil, err
				}
			}
		}
	}
	return files, nil
}

// CheckFreeSpace compares the unallocated size of all sparse device files
// with the free space of the filesystem they live on. It returns the
// filesystems that can't hold their devices once they are fully written.
func (h *Handler) CheckFreeSpace() ([]Shortage, error) {
	if err := h.checkDeviceType(); err != nil {
		return nil, err
	}
	files, err := h.deviceFiles()
	if err != nil {
		return nil, err
	}

	byMount := make(map[string]*Shortage)
	var mounts []string
	for _, f := range files {
		rp, err := filepath.EvalSymlinks(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve device %s: %w", f, err)
		}
		mp, err := MountPoint(rp)
		if err != nil {
			return nil, err
		}
		var st unix.Stat_t
		if err := unix.Stat(rp, &st); err != nil {
			return nil, fmt.Errorf("failed to stat device %s: %w", rp, err)
		}
		s, ok := byMount[mp]
		if !ok {
			s = &Shortage{MountPoint: mp}
			byMount[mp] = s
			mounts = append(mounts, mp)
		}
		s.VirtualSize += st.Size
		s.PhysicalSize += int64(st.Blocks) * 512
	}

	var out []Shortage
	for _, mp := range mounts {
		s := byMount[mp]
		free, err := h.freeSpace(mp)
		if err != nil {
			return nil, err
		}
		s.Free = free
		if free < s.VirtualSize-s.PhysicalSize {
			h.logger.Warn().
				Str("mount_point", mp).
				Str("free", gounits.BytesSize(float64(free))).
				Str("devices", gounits.BytesSize(float64(s.VirtualSize))).
				Msg("Not enough free space for sparse file devices")
			out = append(out, *s)
		}
	}
	return out, nil
}

// FileName returns the path of the next device file in storageDir. The
// number follows the highest device number of the node, since devices of
// one node may live in several directories. With checkForeign, files in
// storageDir that are not devices are an error.
func (h *Handler) FileName(storageDir string, node *exaconf.NodeConfig, checkForeign bool) (string, error) {
	if checkForeign {
		names, err := godirwalk.ReadDirnames(storageDir, nil)
		if err != nil {
			return "", fmt.Errorf("failed to read directory %s: %w", storageDir, err)
		}
		var foreign []string
		for _, n := range names {
			if !IsDeviceFile(n) {
				foreign = append(foreign, n)
			}
		}
		if len(foreign) > 0 {
			sort.Strings(foreign)
			return "", fmt.Errorf("found foreign files in %s that need to be removed first: %s",
				storageDir, strings.Join(foreign, ", "))
		}
	}

	next := 1
	for _, dev := range node.Devices() {
		parts := strings.Split(dev, ".")
		if len(parts) < 2 {
			return "", fmt.Errorf("invalid device name '%s' on node %d", dev, node.ID)
		}
		num, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", fmt.Errorf("invalid device name '%s' on node %d", dev, node.ID)
		}
		if num+1 > next {
			next = num + 1
		}
	}
	return filepath.Join(storageDir, exaconf.DevicePrefix+strconv.Itoa(next)), nil
}

// RemoveFileDevices deletes all files in the storage directory of the node
// and in the directories of mapped devices, then removes all disks of the
// node. Directories are kept. It returns the short names of the deleted
// files.
func (h *Handler) RemoveFileDevices(node *exaconf.NodeConfig) ([]string, error) {
	var dirs []string
	for _, disk := range node.Disks {
		for _, m := range disk.Mapping {
			p, err := filepath.EvalSymlinks(m.Path)
			if err != nil {
				p = m.Path
			}
			if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
				p = filepath.Dir(p)
			}
			dirs = append(dirs, p)
		}
	}
	dirs = append(dirs, filepath.Join(node.DockerVolume, exaconf.StorageDir))

	deleted := make(map[string]bool)
	for _, dir := range dirs {
		// all files, since old devices have separate meta files
		ents, err := godirwalk.ReadDirents(dir, nil)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, de := range ents {
			if !de.IsRegular() {
				continue
			}
			fpath := filepath.Join(dir, de.Name())
			if err := os.Remove(fpath); err != nil {
				h.logger.Error().Err(err).Str("file", fpath).Msg("Failed to delete device file")
				continue
			}
			deleted[ShortName(fpath)] = true
		}
	}

	if err := h.conf.Update(func(tx *exaconf.Tx) error {
		return tx.RemoveNodeDisk(node.ID, "_all")
	}); err != nil {
		return nil, fmt.Errorf("failed to remove disks of node %d: %w", node.ID, err)
	}

	out := make([]string, 0, len(deleted))
	for d := range deleted {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// CreateNodeFileDevices creates num sparse files of the given size for one
// node and adds them to disk, creating the disk if needed. If path is not
// empty the files are created there and mapped into the container,
// otherwise they go to the storage directory of the node volume. With
// replace all existing devices of the node are deleted first.
func (h *Handler) CreateNodeFileDevices(nodeID int, disk string, num int, size int64, path string, replace bool) (created, deleted []string, err error) {
	if err := h.checkDeviceType(); err != nil {
		return nil, nil, err
	}
	disk = strings.TrimSpace(disk)
	path = strings.TrimSpace(path)

	node, err := h.conf.Node(nodeID)
	if err != nil {
		return nil, nil, err
	}
	destDir := path
	if destDir == "" {
		destDir = filepath.Join(node.DockerVolume, exaconf.StorageDir)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	if replace {
		if deleted, err = h.RemoveFileDevices(&node); err != nil {
			return nil, nil, err
		}
	}

	err = h.conf.Update(func(tx *exaconf.Tx) error {
		n, err := tx.Conf().Node(nodeID)
		if err != nil {
			return err
		}
		if n.Disk(disk) == nil {
			if err := tx.AddNodeDisk(nodeID, disk, exaconf.StorageComponent, nil, nil, false); err != nil {
				return err
			}
		}
		for i := 0; i < num; i++ {
			devFile, err := h.FileName(destDir, &n, false)
			if err != nil {
				return err
			}
			// happens with external mappings
			if _, err := os.Stat(devFile); err == nil && !replace {
				return fmt.Errorf("file %s already exists, please remove it", devFile)
			}
			if err := createSparse(devFile, size); err != nil {
				return err
			}
			created = append(created, devFile)
			if err := tx.AddNodeDevice(nodeID, disk, filepath.Base(devFile), path); err != nil {
				return err
			}
			// refresh to get the next device number
			if n, err = tx.Conf().Node(nodeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, f := range created {
			os.Remove(f)
		}
		return nil, deleted, fmt.Errorf("failed to create devices for node %d: %w", nodeID, err)
	}

	metrics.DevicesCreated.Add(float64(len(created)))
	metrics.DeviceBytesAllocated.Add(float64(int64(len(created)) * size))
	h.logger.Info().
		Int("node_id", nodeID).
		Str("disk", disk).
		Int("devices", len(created)).
		Str("size", gounits.BytesSize(float64(size))).
		Msg("Created file devices")
	return created, deleted, nil
}

func createSparse(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create device file: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return fmt.Errorf("failed to resize device file: %w", err)
	}
	return f.Close()
}

// CreateFileDevices creates devices for every node. A non-empty path must
// exist and gets one sub-directory per node, named after the node.
func (h *Handler) CreateFileDevices(disk string, num int, size int64, path string, replace bool) (created, deleted map[int][]string, err error) {
	nodes, err := h.conf.Nodes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	path = strings.TrimSpace(path)
	if path != "" {
		if path, err = filepath.Abs(path); err != nil {
			return nil, nil, err
		}
		if path, err = filepath.EvalSymlinks(path); err != nil {
			return nil, nil, fmt.Errorf("%s does not exist: %w", path, err)
		}
	}

	created = make(map[int][]string)
	deleted = make(map[int][]string)
	for _, n := range nodes {
		nodePath := ""
		if path != "" {
			nodePath = filepath.Join(path, n.Name)
			if err := os.MkdirAll(nodePath, 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create directory %s: %w", nodePath, err)
			}
		}
		c, d, err := h.CreateNodeFileDevices(n.ID, disk, num, size, nodePath, replace)
		if err != nil {
			return nil, nil, err
		}
		created[n.ID] = c
		if len(d) > 0 {
			deleted[n.ID] = d
		}
	}
	return created, deleted, nil
}

// AutoCreateFileDevices creates one device per node on disk "disk1", sized
// from the free space below the cluster root, and assigns the disk to all
// volumes without one. internal is set when running inside a container,
// where only the first node gets a device below /exa. maxSpace <= 0
// selects the default limit.
func (h *Handler) AutoCreateFileDevices(internal bool, maxSpace int64) error {
	if maxSpace <= 0 {
		maxSpace = MaxAutoUsedSpace
		if internal {
			maxSpace = MaxAutoInternalUsedSpace
		}
	}
	mp, err := MountPoint(h.conf.Root())
	if err != nil {
		return err
	}
	free, err := h.freeSpace(mp)
	if err != nil {
		return err
	}

	numNodes := int64(h.conf.NumNodes())
	if numNodes == 0 {
		return fmt.Errorf("cluster has no nodes")
	}
	var usable int64
	if internal {
		usable = min(free-AutoInternalReserved, maxSpace)
	} else {
		if free < MinAutoFreeSpace {
			return fmt.Errorf("free space on %s is only %s but %s are required for automatic file device creation",
				h.conf.Root(), gounits.BytesSize(float64(free)), gounits.BytesSize(float64(MinAutoFreeSpace)))
		}
		usable = min(free-numNodes*AutoReservedPerNode, maxSpace)
	}
	if usable <= 0 {
		return fmt.Errorf("not enough free space on %s (%s)", h.conf.Root(), gounits.BytesSize(float64(free)))
	}

	nodes, err := h.conf.Nodes()
	if err != nil {
		return fmt.Errorf("failed to read nodes: %w", err)
	}
	for _, n := range nodes {
		if len(n.Disks) > 0 {
			return ErrDisksExist
		}
	}

	bytesPerNode := usable / numNodes
	h.logger.Info().
		Str("free", gounits.BytesSize(float64(free))).
		Str("per_node", gounits.BytesSize(float64(bytesPerNode))).
		Bool("internal", internal).
		Msg("Creating file devices")

	if internal {
		dest := filepath.Join(exaconf.ContainerRoot, exaconf.StorageDir)
		if _, _, err := h.CreateNodeFileDevices(nodes[0].ID, DefaultDisk, 1, bytesPerNode, dest, false); err != nil {
			return err
		}
	} else if _, _, err := h.CreateFileDevices(DefaultDisk, 1, bytesPerNode, "", false); err != nil {
		return err
	}

	// leave room for the temporary volume
	volBytes := int64(float64(bytesPerNode) * autoVolumeShare)
	if err := h.conf.Update(func(tx *exaconf.Tx) error {
		return tx.UseDiskForVolumes(DefaultDisk, volBytes, "", AutoMinVolSize, VolResizeStep)
	}); err != nil {
		return fmt.Errorf("failed to use new disk for the existing volumes: %w", err)
	}
	return nil
}
