package exaconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oldConf = `[Global]
    ClusterName = Legacy
    Platform = VM
    Networks = private
    ConfVersion = 6.0.0
    OSVersion = 6.0.0
    DBVersion = 6.0.0
[Node : 11]
    PrivateNet = 10.10.10.11/24
    Hostname = n11
[EXAVolume : DataVolume1]
    Type = data
    Nodes = 11
    Owner = 500 : 500
[DB : DB1]
    Version = 6.0.0
    MemSize = 2 GiB
    Port = 8888
    Owner = 500 : 500
    Nodes = 11
    NumMasterNodes = 1
    DataVolume = DataVolume1
[BucketFS]
    ServiceOwner = 500:500
[BucketFS : bfsdefault]
    HttpPort = 6583
    HttpsPort = 0
    SyncKey = c2VjcmV0
    SyncPeriod = 30000
`

func writeConf(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte(content), 0600))
	return dir
}

func TestUpdateSelf(t *testing.T) {
	dir := writeConf(t, oldConf)
	c, err := Open(dir)
	require.NoError(t, err, "files needing a migration are not validated on open")
	assert.Equal(t, "6.0.0", c.FileVersion())

	require.NoError(t, c.UpdateSelf())
	assert.Equal(t, Version, c.FileVersion())
	assert.Equal(t, 2, c.Revision())

	n, err := c.Node(11)
	require.NoError(t, err)
	assert.Equal(t, "n11", n.Name)
	assert.True(t, n.UUID.IsImport())

	db, err := c.Database("DB1")
	require.NoError(t, err)
	assert.Equal(t, 1, db.NumActiveNodes)
	sec := c.Document().Section("DB : DB1")
	assert.True(t, sec.Has("NumActiveNodes"))
	assert.False(t, sec.Has("NumMasterNodes"))

	assert.Nil(t, c.Document().Section("BucketFS"))
	bfs, err := c.BucketFS()
	require.NoError(t, err)
	require.Len(t, bfs, 1)
	assert.Equal(t, Owner{UID: 500, GID: 500}, bfs[0].Owner)

	uid, err := c.ToUID("exadefusr")
	require.NoError(t, err)
	assert.Equal(t, 500, uid)
	assert.True(t, c.GroupExists("exausers"))
	assert.Equal(t, DefaultTimezone, c.Timezone())
	assert.Equal(t, DefaultHugepages, c.Hugepages())

	// the stored checksum is real now
	reopened, err := Open(dir)
	require.NoError(t, err)
	mode, _ := reopened.Checksum()
	assert.Equal(t, ChecksumValue, mode)
	assert.Equal(t, 2, reopened.Revision())
	require.NoError(t, reopened.UpdateSelf())
	assert.Equal(t, 2, reopened.Revision())
}

func TestUpdateSelfNewerFile(t *testing.T) {
	dir := writeConf(t, `[Global]
    ClusterName = Future
    Platform = VM
    Networks = private
    ConfVersion = 99.0.0
`)
	c, err := Open(dir)
	require.NoError(t, err)

	err = c.UpdateSelf()
	var merr *MigrationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "99.0.0", merr.FileVersion)
	assert.Equal(t, Version, merr.ModuleVersion)
}

func TestUpdateSelfCurrent(t *testing.T) {
	c := newTestConf(t, 1)
	before := readFile(t, c.Path())
	require.NoError(t, c.UpdateSelf())
	assert.Equal(t, before, readFile(t, c.Path()))
}
