package rpc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	calls []string
	res   *runtime.ExecResult
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, id string, args []string) (*runtime.ExecResult, error) {
	f.calls = append(f.calls, id+": "+strings.Join(args, " "))
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &runtime.ExecResult{}, nil
}

func newConf(t *testing.T) *exaconf.EXAConf {
	t.Helper()
	conf, err := exaconf.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, conf.Initialize(exaconf.InitOptions{
		ClusterName:  "c",
		Platform:     "docker",
		Image:        "exasol/docker-db:latest",
		DeviceType:   "file",
		NumNodes:     2,
		DefaultOwner: &exaconf.Owner{UID: 1000, GID: 1000},
	}))
	return conf
}

func TestDatabaseCommands(t *testing.T) {
	conf := newConf(t)
	ex := &fakeExecer{}
	h := NewHandler(conf, ex)
	ctx := context.Background()

	ok, err := h.StartDatabase(ctx, "DB1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.StopDatabase(ctx, AllDatabases)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.KillDatabase(ctx, "DB1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{
		"c_11: dwad_client start-wait DB1",
		"c_11: dwad_client stop-wait DB1",
		"c_11: dwad_client stop-force DB1",
	}, ex.calls)
}

func TestUnknownDatabase(t *testing.T) {
	ex := &fakeExecer{}
	h := NewHandler(newConf(t), ex)

	ok, err := h.StartDatabase(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, ex.calls)
}

func TestListDatabases(t *testing.T) {
	ex := &fakeExecer{res: &runtime.ExecResult{Stdout: "DB1\n"}}
	h := NewHandler(newConf(t), ex)

	out, err := h.ListDatabases(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "DB1\n", out)
	_, err = h.ListDatabases(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"c_11: dwad_client shortlist", "c_11: dwad_client list"}, ex.calls)
}

func TestCommandErrors(t *testing.T) {
	ex := &fakeExecer{res: &runtime.ExecResult{ExitCode: 2, Stderr: "database DB1 is not running\n"}}
	h := NewHandler(newConf(t), ex)

	ok, err := h.StopDatabase(context.Background(), "DB1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "exited with 2: database DB1 is not running")

	ex = &fakeExecer{err: errors.New("container not found")}
	h = NewHandler(newConf(t), ex)
	_, err = h.ListDatabases(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container not found")
}
