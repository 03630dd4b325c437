package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cluster not found")
	ErrExists   = errors.New("cluster already exists")
)

// Cluster is a registered cluster: a name bound to the root directory of
// its EXAConf.
type Cluster struct {
	Name      string    `json:"name"`
	Root      string    `json:"root"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps the registered clusters of a host
type Store interface {
	CreateCluster(name, root string) (*Cluster, error)
	GetCluster(name string) (*Cluster, error)
	ListClusters() ([]*Cluster, error)
	DeleteCluster(name string) error

	Close() error
}
