package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/exadt/pkg/exaconf"
)

func newConf(t *testing.T, nodes int) *exaconf.EXAConf {
	t.Helper()
	conf, err := exaconf.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := conf.Initialize(exaconf.InitOptions{
		ClusterName:  "vol",
		Platform:     "docker",
		Image:        "exasol/docker-db:latest",
		DeviceType:   "file",
		NumNodes:     nodes,
		DefaultOwner: &exaconf.Owner{UID: 1000, GID: 1000},
	}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return conf
}

func TestNewLocalDriver(t *testing.T) {
	tmpDir := t.TempDir()

	driver, err := NewLocalDriver(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalDriver() error = %v", err)
	}
	if driver.basePath != tmpDir {
		t.Errorf("basePath = %v, want %v", driver.basePath, tmpDir)
	}

	if _, err := NewLocalDriver(filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("NewLocalDriver() on a missing directory should fail")
	}
}

func TestLocalDriver_Create(t *testing.T) {
	tmpDir := t.TempDir()
	driver, _ := NewLocalDriver(tmpDir)

	vol := &NodeVolume{NodeID: 11, Path: "n11"}
	if err := driver.Create(vol); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := filepath.Join(tmpDir, "n11")
	if vol.Path != want {
		t.Errorf("Path = %v, want %v", vol.Path, want)
	}
	for _, dir := range NodeDirs {
		if fi, err := os.Stat(filepath.Join(want, dir)); err != nil || !fi.IsDir() {
			t.Errorf("directory %s was not created", dir)
		}
	}

	// creating twice is fine
	if err := driver.Create(vol); err != nil {
		t.Errorf("second Create() error = %v", err)
	}
}

func TestLocalDriver_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	driver, _ := NewLocalDriver(tmpDir)

	vol := &NodeVolume{NodeID: 11, Path: "n11"}
	if err := driver.Create(vol); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(vol.Path, "logs", "x.log"), []byte("test"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := driver.Delete(vol); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(vol.Path); !os.IsNotExist(err) {
		t.Error("Volume directory still exists after delete")
	}

	// deleting a missing volume is not an error
	if err := driver.Delete(vol); err != nil {
		t.Errorf("Delete() on non-existent volume error = %v, want nil", err)
	}
}

func TestLocalDriver_Mount(t *testing.T) {
	tmpDir := t.TempDir()
	driver, _ := NewLocalDriver(tmpDir)

	vol := &NodeVolume{NodeID: 12, Path: "n12"}
	if _, err := driver.Mount(vol); err == nil {
		t.Error("Mount() on non-existent volume should fail")
	}
	if err := driver.Create(vol); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	path, err := driver.Mount(vol)
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if path != filepath.Join(tmpDir, "n12") {
		t.Errorf("Mount() = %v", path)
	}
}

func TestNodeVolumes(t *testing.T) {
	conf := newConf(t, 3)
	driver, err := NewLocalDriver(conf.Root())
	if err != nil {
		t.Fatalf("NewLocalDriver() error = %v", err)
	}

	vols, err := driver.CreateNodeVolumes(conf)
	if err != nil {
		t.Fatalf("CreateNodeVolumes() error = %v", err)
	}
	if len(vols) != 3 {
		t.Fatalf("got %d volumes, want 3", len(vols))
	}
	for i, v := range vols {
		if v.NodeID != 11+i {
			t.Errorf("vols[%d].NodeID = %d", i, v.NodeID)
		}
	}

	if err := driver.CopyConf(conf, vols); err != nil {
		t.Fatalf("CopyConf() error = %v", err)
	}
	for _, v := range vols {
		cp, err := exaconf.Open(filepath.Join(v.Path, exaconf.EtcDir))
		if err != nil {
			t.Fatalf("Open(copy) error = %v", err)
		}
		if cp.Revision() != conf.Revision() {
			t.Errorf("copy revision = %d, want %d", cp.Revision(), conf.Revision())
		}
	}

	if err := driver.DeleteNodeVolumes(conf); err != nil {
		t.Fatalf("DeleteNodeVolumes() error = %v", err)
	}
	for _, v := range vols {
		if _, err := os.Stat(v.Path); !os.IsNotExist(err) {
			t.Errorf("volume %s still exists", v.Path)
		}
	}
}
