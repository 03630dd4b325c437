package exaconf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyOf writes c to a new directory and opens the copy.
func copyOf(t *testing.T, c *EXAConf) *EXAConf {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, c.WriteCopy(filepath.Join(dir, DefaultFilename)))
	cp, err := Open(dir)
	require.NoError(t, err)
	return cp
}

func setUUID(t *testing.T, c *EXAConf, node, uuid string) {
	t.Helper()
	require.NoError(t, c.Update(func(tx *Tx) error {
		return tx.SetNodeConf(node, NodeUpdate{UUID: ptr(uuid)}, false)
	}))
}

func TestMergeImportsUUID(t *testing.T) {
	a := newTestConf(t, 2)
	b := copyOf(t, a)
	want := b.Document().Section("Node : 11").String("UUID", "")

	setUUID(t, a, "11", ImportUUID)
	require.Equal(t, 2, a.Revision())

	require.NoError(t, a.Merge([]*EXAConf{b}, true, false))
	n, err := a.Node(11)
	require.NoError(t, err)
	assert.Equal(t, NodeUUID(want), n.UUID)
	assert.Equal(t, 3, a.Revision())

	reopened, err := Open(a.Root())
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Revision())
}

func TestMergeTakesNewerCopy(t *testing.T) {
	a := newTestConf(t, 1)
	b := copyOf(t, a)
	require.NoError(t, b.Update(func(tx *Tx) error { return tx.SetTimezone("UTC") }))
	require.Equal(t, 2, b.Revision())

	require.NoError(t, a.Merge([]*EXAConf{b}, false, false))
	assert.Equal(t, "UTC", a.Timezone())
	assert.Equal(t, 2, a.Revision())
	mode, sum := a.Checksum()
	assert.Equal(t, ChecksumValue, mode)
	assert.Equal(t, a.ComputeChecksum(), sum)
}

func TestMergeConflict(t *testing.T) {
	a := newTestConf(t, 2)
	b := copyOf(t, a)
	setUUID(t, a, "11", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	setUUID(t, b, "11", "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	before := readFile(t, a.Path())

	err := a.Merge([]*EXAConf{b}, true, false)
	var merr *MergeConflictError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 11, merr.NodeID)
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", merr.Local)
	assert.Equal(t, "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", merr.Other)
	assert.Equal(t, before, readFile(t, a.Path()))
	assert.Equal(t, 2, a.Revision())
}

func TestMergeWithoutReference(t *testing.T) {
	a := newTestConf(t, 1)
	b := copyOf(t, a)
	require.NoError(t, a.Update(func(tx *Tx) error { return tx.SetTimezone("UTC") }))

	err := a.Merge([]*EXAConf{b}, false, false)
	var merr *MergeConflictError
	require.ErrorAs(t, err, &merr)
	assert.NotEmpty(t, merr.Msg)
	assert.Equal(t, "UTC", a.Timezone())

	// force picks the older copy
	require.NoError(t, a.Merge([]*EXAConf{b}, false, true))
	assert.Equal(t, DefaultTimezone, a.Timezone())
	assert.Equal(t, 1, a.Revision())
}
