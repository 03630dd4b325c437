package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "sub", "registry.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClusters(t *testing.T) {
	s := newStore(t)
	root := t.TempDir()

	c, err := s.CreateCluster("MyCluster", root)
	require.NoError(t, err)
	assert.Equal(t, root, c.Root)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetCluster("MyCluster")
	require.NoError(t, err)
	assert.Equal(t, c.Root, got.Root)

	_, err = s.CreateCluster("MyCluster", t.TempDir())
	assert.True(t, errors.Is(err, ErrExists))
	_, err = s.CreateCluster("Other", root)
	assert.ErrorContains(t, err, "already used by cluster 'MyCluster'")

	_, err = s.CreateCluster("Another", t.TempDir())
	require.NoError(t, err)
	list, err := s.ListClusters()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Another", list[0].Name)
	assert.Equal(t, "MyCluster", list[1].Name)

	require.NoError(t, s.DeleteCluster("MyCluster"))
	_, err = s.GetCluster("MyCluster")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteCluster("MyCluster"), ErrNotFound)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)
	_, err = s.CreateCluster("c", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetCluster("c")
	require.NoError(t, err)
}
