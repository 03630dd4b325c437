package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, registry string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--registry", registry, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestClusterLifecycle(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "registry.db")
	root := filepath.Join(dir, "c1")

	out, err := execute(t, registry, "create-cluster", "c1", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Cluster 'c1' created")

	_, err = execute(t, registry, "create-cluster", "c1", root)
	assert.Error(t, err)

	_, err = execute(t, registry, "info", "c1")
	assert.Error(t, err, "info before init-cluster")

	out, err = execute(t, registry, "init-cluster", "c1",
		"--owner", "1000:1000", "--image", "exasol/docker-db:test", "--device-type", "file", "--num-nodes", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized with 2 node(s)")
	_, err = os.Stat(filepath.Join(root, exaconf.DefaultFilename))
	require.NoError(t, err)

	out, err = execute(t, registry, "list-clusters")
	require.NoError(t, err)
	assert.Contains(t, out, "c1")
	assert.Contains(t, out, "yes")

	update := filepath.Join(dir, "db.yaml")
	require.NoError(t, os.WriteFile(update, []byte("mem_size: 4096\nport: 9563\n"), 0600))
	out, err = execute(t, registry, "configure", "c1", "--kind", "database", "--id", "DB1", "-f", update)
	require.NoError(t, err)
	assert.Contains(t, out, "database 'DB1' updated")

	conf, err := exaconf.Open(root, exaconf.RequireInitialized())
	require.NoError(t, err)
	db, err := conf.Database("DB1")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), db.MemSize)
	assert.Equal(t, 9563, db.Port)

	out, err = execute(t, registry, "info", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "name: c1")
	assert.Contains(t, out, "port: 9563")
	assert.Contains(t, out, "device_type: file")

	out, err = execute(t, registry, "check", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = execute(t, registry, "remove", "c1", "--kind", "database", "--id", "DB1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
	conf, err = exaconf.Open(root, exaconf.RequireInitialized())
	require.NoError(t, err)
	_, err = conf.Database("DB1")
	assert.Error(t, err)

	_, err = execute(t, registry, "delete-cluster", "c1")
	require.NoError(t, err)
	_, err = execute(t, registry, "info", "c1")
	assert.Error(t, err)
}

func TestConfigureErrors(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "registry.db")
	root := filepath.Join(dir, "c1")
	_, err := execute(t, registry, "create-cluster", "c1", root)
	require.NoError(t, err)
	_, err = execute(t, registry, "init-cluster", "c1", "--owner", "1000:1000", "--image", "x")
	require.NoError(t, err)

	update := filepath.Join(dir, "u.yaml")
	require.NoError(t, os.WriteFile(update, []byte("no_such_key: 1\n"), 0600))

	_, err = execute(t, registry, "configure", "c1", "--kind", "database", "--id", "DB1", "-f", update)
	assert.ErrorContains(t, err, "failed to parse update")

	_, err = execute(t, registry, "configure", "c1", "--kind", "toaster", "--id", "x", "-f", update)
	assert.ErrorContains(t, err, "unknown kind 'toaster'")

	_, err = execute(t, registry, "remove", "c1", "--kind", "backup", "--id", "weekly")
	assert.ErrorContains(t, err, "PARENT/NAME")
}

func TestSplitID(t *testing.T) {
	parent, child, err := splitID("DB1/weekly")
	require.NoError(t, err)
	assert.Equal(t, "DB1", parent)
	assert.Equal(t, "weekly", child)

	for _, id := range []string{"DB1", "/weekly", "DB1/"} {
		_, _, err := splitID(id)
		assert.Error(t, err, id)
	}
}

func TestDescribe(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, describe(plain))

	err := describe(&exaconf.MigrationError{Path: "EXAConf", FileVersion: "9.0.0", ModuleVersion: exaconf.Version})
	assert.Contains(t, err.Error(), "can't be migrated")
	var migration *exaconf.MigrationError
	assert.True(t, errors.As(err, &migration))
}
