package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// NodeDirs are created inside every node volume. The volume is mounted to
// /exa in the node container.
var NodeDirs = []string{
	exaconf.EtcDir,
	exaconf.StorageDir,
	exaconf.BucketFSDir,
	"metadata",
	"logs",
	"tmp",
	"spool",
}

// NodeVolume is the root volume of a node on the host.
type NodeVolume struct {
	NodeID int
	Path   string
}

// VolumeDriver defines the interface for node volume drivers
type VolumeDriver interface {
	// Create creates the volume and its directory layout
	Create(vol *NodeVolume) error

	// Delete removes the volume and everything in it
	Delete(vol *NodeVolume) error

	// Mount returns the host path for mounting to containers
	Mount(vol *NodeVolume) (string, error)
}

// LocalDriver keeps node volumes as plain directories below the cluster
// root directory.
type LocalDriver struct {
	basePath string
	logger   zerolog.Logger
}

var _ VolumeDriver = (*LocalDriver)(nil)

// NewLocalDriver creates a driver for volumes below basePath, which must
// exist.
func NewLocalDriver(basePath string) (*LocalDriver, error) {
	fi, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to access volume base directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("volume base path %s is not a directory", basePath)
	}
	return &LocalDriver{
		basePath: basePath,
		logger:   log.WithComponent("volume"),
	}, nil
}

// Create creates the volume directory and the node directory layout
func (d *LocalDriver) Create(vol *NodeVolume) error {
	path := d.GetPath(vol)
	for _, dir := range NodeDirs {
		if err := os.MkdirAll(filepath.Join(path, dir), 0755); err != nil {
			return fmt.Errorf("failed to create volume directory: %w", err)
		}
	}
	vol.Path = path
	d.logger.Debug().Int("node_id", vol.NodeID).Str("path", path).Msg("Created node volume")
	return nil
}

// Delete removes a volume directory
func (d *LocalDriver) Delete(vol *NodeVolume) error {
	path := d.GetPath(vol)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete volume directory: %w", err)
	}
	return nil
}

// Mount returns the host path for bind mounting to containers
func (d *LocalDriver) Mount(vol *NodeVolume) (string, error) {
	path := d.GetPath(vol)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("volume directory does not exist: %s", path)
	}
	return path, nil
}

// GetPath returns the host path for a volume. Relative paths are placed
// below the base path.
func (d *LocalDriver) GetPath(vol *NodeVolume) string {
	if filepath.IsAbs(vol.Path) {
		return vol.Path
	}
	return filepath.Join(d.basePath, vol.Path)
}

// NodeVolumes returns the volumes of all nodes in the configuration,
// sorted by node ID.
func NodeVolumes(conf *exaconf.EXAConf) ([]*NodeVolume, error) {
	paths, err := conf.DockerNodeVolumes()
	if err != nil {
		return nil, err
	}
	vols := make([]*NodeVolume, 0, len(paths))
	for id, p := range paths {
		vols = append(vols, &NodeVolume{NodeID: id, Path: p})
	}
	sort.Slice(vols, func(i, j int) bool { return vols[i].NodeID < vols[j].NodeID })
	return vols, nil
}

// CreateNodeVolumes creates the volume of every node.
func (d *LocalDriver) CreateNodeVolumes(conf *exaconf.EXAConf) ([]*NodeVolume, error) {
	vols, err := NodeVolumes(conf)
	if err != nil {
		return nil, err
	}
	for _, v := range vols {
		if err := d.Create(v); err != nil {
			return nil, fmt.Errorf("node %d: %w", v.NodeID, err)
		}
	}
	return vols, nil
}

// DeleteNodeVolumes removes the volumes of all nodes, continuing after
// errors.
func (d *LocalDriver) DeleteNodeVolumes(conf *exaconf.EXAConf) error {
	vols, err := NodeVolumes(conf)
	if err != nil {
		return err
	}
	var errs error
	for _, v := range vols {
		if err := d.Delete(v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("node %d: %w", v.NodeID, err))
		}
	}
	return errs
}

// CopyConf writes the current EXAConf into the etc directory of every
// volume.
func (d *LocalDriver) CopyConf(conf *exaconf.EXAConf, vols []*NodeVolume) error {
	for _, v := range vols {
		dst := filepath.Join(d.GetPath(v), exaconf.EtcDir, exaconf.DefaultFilename)
		if err := conf.WriteCopy(dst); err != nil {
			return fmt.Errorf("node %d: %w", v.NodeID, err)
		}
	}
	return nil
}
