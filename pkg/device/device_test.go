package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConf(t *testing.T, nodes int, deviceType string) *exaconf.EXAConf {
	t.Helper()
	conf, err := exaconf.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := conf.Initialize(exaconf.InitOptions{
		ClusterName:  "dev",
		Platform:     "docker",
		Image:        "exasol/docker-db:latest",
		DeviceType:   deviceType,
		NumNodes:     nodes,
		DefaultOwner: &exaconf.Owner{UID: 1000, GID: 1000},
	}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return conf
}

func fixedFree(n int64) func(string) (int64, error) {
	return func(string) (int64, error) { return n, nil }
}

func TestMountPoint(t *testing.T) {
	mp, err := MountPoint("/")
	require.NoError(t, err)
	assert.Equal(t, "/", mp)

	dir := t.TempDir()
	f := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
	realDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	mp, err = MountPoint(f)
	require.NoError(t, err)
	rel, err := filepath.Rel(mp, realDir)
	require.NoError(t, err)
	assert.NotContains(t, rel, "..", "mount point %s must contain %s", mp, realDir)

	_, err = MountPoint(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)

	_, err = FreeSpace(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsMappedDevice(t *testing.T) {
	disk := &exaconf.DiskConfig{
		Name:    "disk1",
		Devices: []string{"dev.1", "dev.2"},
		Mapping: []exaconf.DeviceMapping{{Device: "dev.1.data", Path: "/ext"}},
	}
	assert.True(t, IsMappedDevice("dev.1", disk))
	assert.True(t, IsMappedDevice("/ext/dev.1.meta", disk))
	assert.False(t, IsMappedDevice("dev.2", disk))
	assert.False(t, IsMappedDevice("dev.1", &exaconf.DiskConfig{}))

	assert.Equal(t, "dev.3", ShortName("dev.3.data"))
	assert.Equal(t, "dev.3", ShortName("dev.3"))
	assert.True(t, IsDeviceFile("dev.7"))
	assert.False(t, IsDeviceFile("lost+found"))
}

func TestFileName(t *testing.T) {
	conf := newConf(t, 1, "file")
	h := NewHandler(conf)
	dir := t.TempDir()

	node := &exaconf.NodeConfig{ID: 11}
	name, err := h.FileName(dir, node, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dev.1"), name)

	node.Disks = []exaconf.DiskConfig{
		{Name: "d1", Devices: []string{"dev.1", "dev.3"}},
		{Name: "d2", Devices: []string{"dev.2"}},
	}
	name, err = h.FileName(dir, node, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dev.4"), name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dev.1"), nil, 0644))
	_, err = h.FileName(dir, node, true)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))
	_, err = h.FileName(dir, node, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.txt")

	node.Disks = []exaconf.DiskConfig{{Name: "d1", Devices: []string{"sda"}}}
	_, err = h.FileName(dir, node, false)
	assert.Error(t, err)
}

func TestCreateNodeFileDevices(t *testing.T) {
	conf := newConf(t, 2, "file")
	h := NewHandler(conf)

	created, deleted, err := h.CreateNodeFileDevices(11, "disk1", 2, 1<<20, "", false)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	require.Len(t, created, 2)

	storage := filepath.Join(conf.Root(), "n11", exaconf.StorageDir)
	assert.Equal(t, filepath.Join(storage, "dev.1"), created[0])
	assert.Equal(t, filepath.Join(storage, "dev.2"), created[1])
	for _, f := range created {
		fi, err := os.Stat(f)
		require.NoError(t, err)
		assert.Equal(t, int64(1<<20), fi.Size())
	}

	n, err := conf.Node(11)
	require.NoError(t, err)
	disk := n.Disk("disk1")
	require.NotNil(t, disk)
	assert.Equal(t, []string{"dev.1", "dev.2"}, disk.Devices)
	assert.Equal(t, exaconf.StorageComponent, disk.Component)
	assert.Empty(t, disk.Mapping)

	// more devices continue the numbering
	created, _, err = h.CreateNodeFileDevices(11, "disk1", 1, 1<<20, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(storage, "dev.3")}, created)

	// replace deletes the old devices first
	created, deleted, err = h.CreateNodeFileDevices(11, "disk1", 1, 2<<20, "", true)
	require.NoError(t, err)
	assert.Len(t, deleted, 3)
	assert.Equal(t, []string{filepath.Join(storage, "dev.1")}, created)
	n, err = conf.Node(11)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev.1"}, n.Devices())
	_, err = os.Stat(filepath.Join(storage, "dev.2"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateNodeFileDevicesExistingFile(t *testing.T) {
	conf := newConf(t, 1, "file")
	h := NewHandler(conf)
	ext := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ext, "dev.1"), []byte("data"), 0644))
	rev := conf.Revision()

	_, _, err := h.CreateNodeFileDevices(11, "disk1", 1, 1<<20, ext, false)
	require.Error(t, err)
	assert.Equal(t, rev, conf.Revision())
	n, err := conf.Node(11)
	require.NoError(t, err)
	assert.Empty(t, n.Disks)
	b, err := os.ReadFile(filepath.Join(ext, "dev.1"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
}

func TestCreateFileDevicesWrongType(t *testing.T) {
	conf := newConf(t, 1, "block")
	h := NewHandler(conf)

	_, _, err := h.CreateFileDevices("disk1", 1, 1<<20, "", false)
	assert.True(t, errors.Is(err, ErrWrongDeviceType))
	_, err = h.CheckFreeSpace()
	assert.True(t, errors.Is(err, ErrWrongDeviceType))
}

func TestCreateFileDevicesMapped(t *testing.T) {
	conf := newConf(t, 2, "file")
	h := NewHandler(conf)
	ext := t.TempDir()

	created, deleted, err := h.CreateFileDevices("disk1", 1, 1<<20, ext, false)
	require.NoError(t, err)
	assert.Empty(t, deleted)
	require.Len(t, created, 2)

	realDir, err := filepath.EvalSymlinks(ext)
	require.NoError(t, err)
	for _, id := range []int{11, 12} {
		n, err := conf.Node(id)
		require.NoError(t, err)
		nodeDir := filepath.Join(realDir, n.Name)
		assert.Equal(t, []string{filepath.Join(nodeDir, "dev.1")}, created[id])

		disk := n.Disk("disk1")
		require.NotNil(t, disk)
		require.Len(t, disk.MappedDevices, 1)
		assert.Equal(t, filepath.Join(nodeDir, "dev.1"), disk.MappedDevices[0].HostPath)
		assert.Equal(t, "/exa/data/storage/dev.1", disk.MappedDevices[0].ContainerPath)
	}

	shortages, err := h.CheckFreeSpace()
	require.NoError(t, err)
	assert.Empty(t, shortages)

	h.freeSpace = fixedFree(0)
	shortages, err = h.CheckFreeSpace()
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, int64(2<<20), shortages[0].VirtualSize)

	n, err := conf.Node(11)
	require.NoError(t, err)
	deletedDevs, err := h.RemoveFileDevices(&n)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(realDir, "n11", "dev.1")}, deletedDevs)
	n, err = conf.Node(11)
	require.NoError(t, err)
	assert.Empty(t, n.Disks)
	fi, err := os.Stat(filepath.Join(realDir, "n11"))
	require.NoError(t, err, "directories are kept")
	assert.True(t, fi.IsDir())

	_, _, err = h.CreateFileDevices("disk1", 1, 1<<20, filepath.Join(ext, "missing"), false)
	assert.Error(t, err)
}

func TestAutoCreateFileDevices(t *testing.T) {
	conf := newConf(t, 2, "file")
	h := NewHandler(conf)
	h.freeSpace = fixedFree(20 * gib)

	require.NoError(t, h.AutoCreateFileDevices(false, 0))

	// (20 GiB - 2 * 3 GiB) / 2 nodes
	want := int64(7 * gib)
	for _, id := range []int{11, 12} {
		n, err := conf.Node(id)
		require.NoError(t, err)
		disk := n.Disk(DefaultDisk)
		require.NotNil(t, disk)
		assert.Equal(t, []string{"dev.1"}, disk.Devices)
		fi, err := os.Stat(filepath.Join(n.DockerVolume, exaconf.StorageDir, "dev.1"))
		require.NoError(t, err)
		assert.Equal(t, want, fi.Size())
	}

	vol, err := conf.Volume("DataVolume1")
	require.NoError(t, err)
	assert.Equal(t, DefaultDisk, vol.Disk)
	assert.Equal(t, AutoMinVolSize, vol.Size)

	err = h.AutoCreateFileDevices(false, 0)
	assert.True(t, errors.Is(err, ErrDisksExist))
}

func TestAutoCreateFileDevicesLimits(t *testing.T) {
	conf := newConf(t, 1, "file")
	h := NewHandler(conf)

	h.freeSpace = fixedFree(5 * gib)
	err := h.AutoCreateFileDevices(false, 0)
	require.Error(t, err)
	n, err := conf.Node(11)
	require.NoError(t, err)
	assert.Empty(t, n.Disks)

	// the explicit limit wins over the free space
	h.freeSpace = fixedFree(100 * gib)
	require.NoError(t, h.AutoCreateFileDevices(false, 8*gib))
	n, err = conf.Node(11)
	require.NoError(t, err)
	fi, err := os.Stat(filepath.Join(n.DockerVolume, exaconf.StorageDir, "dev.1"))
	require.NoError(t, err)
	assert.Equal(t, 8*gib, fi.Size())
}
