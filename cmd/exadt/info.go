package main

import (
	"fmt"
	"sort"

	"github.com/cuemby/exadt/pkg/exaconf"
	gounits "github.com/docker/go-units"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type clusterInfo struct {
	Name       string         `yaml:"name"`
	Path       string         `yaml:"path"`
	Revision   int            `yaml:"revision"`
	Platform   string         `yaml:"platform"`
	Versions   versionInfo    `yaml:"versions"`
	Docker     *dockerInfo    `yaml:"docker,omitempty"`
	Nodes      []nodeInfo     `yaml:"nodes"`
	Volumes    []volumeInfo   `yaml:"volumes,omitempty"`
	Databases  []databaseInfo `yaml:"databases,omitempty"`
	BucketFS   []bucketFSInfo `yaml:"bucketfs,omitempty"`
	Users      []string       `yaml:"users,omitempty"`
	Timezone   string         `yaml:"timezone"`
	CoredPort  int            `yaml:"cored_port"`
	SSHPort    int            `yaml:"ssh_port"`
	XMLRPCPort int            `yaml:"xmlrpc_port"`
}

type versionInfo struct {
	File  string `yaml:"file"`
	OS    string `yaml:"os"`
	DB    string `yaml:"db"`
	RE    string `yaml:"re"`
	Image string `yaml:"image"`
}

type dockerInfo struct {
	RootDir    string `yaml:"root_dir"`
	Image      string `yaml:"image"`
	DeviceType string `yaml:"device_type"`
	Privileged bool   `yaml:"privileged"`
}

type nodeInfo struct {
	ID        int                   `yaml:"id"`
	Name      string                `yaml:"name"`
	UUID      string                `yaml:"uuid"`
	PrivateIP string                `yaml:"private_ip"`
	PublicIP  string                `yaml:"public_ip,omitempty"`
	Volume    string                `yaml:"volume,omitempty"`
	Ports     []exaconf.PortMapping `yaml:"exposed_ports,omitempty"`
	Disks     map[string][]string   `yaml:"disks,omitempty"`
}

type volumeInfo struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Size       string `yaml:"size"`
	Disk       string `yaml:"disk,omitempty"`
	Redundancy int    `yaml:"redundancy"`
	Nodes      []int  `yaml:"nodes"`
}

type databaseInfo struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	Port       int    `yaml:"port"`
	MemSize    string `yaml:"mem_size"`
	DataVolume string `yaml:"data_volume"`
	Nodes      []int  `yaml:"nodes"`
}

type bucketFSInfo struct {
	Name     string   `yaml:"name"`
	HTTPPort int      `yaml:"http_port"`
	Buckets  []string `yaml:"buckets"`
}

func collectInfo(conf *exaconf.EXAConf) (*clusterInfo, error) {
	info := &clusterInfo{
		Name:     conf.ClusterName(),
		Path:     conf.Path(),
		Revision: conf.Revision(),
		Platform: conf.Platform(),
		Versions: versionInfo{
			File:  conf.FileVersion(),
			OS:    conf.OSVersion(),
			DB:    conf.DBVersion(),
			RE:    conf.REVersion(),
			Image: conf.ImageVersion(),
		},
		Timezone:   conf.Timezone(),
		CoredPort:  conf.CoredPort(),
		SSHPort:    conf.SSHPort(),
		XMLRPCPort: conf.XMLRPCPort(),
	}

	if conf.PlatformIs("Docker") {
		dc, err := conf.DockerConf()
		if err != nil {
			return nil, err
		}
		info.Docker = &dockerInfo{RootDir: dc.RootDir, Image: dc.Image, DeviceType: conf.DeviceType(), Privileged: dc.Privileged}
	}

	nodes, err := conf.Nodes()
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		ni := nodeInfo{ID: n.ID, Name: n.Name, UUID: string(n.UUID), PrivateIP: n.PrivateIP, PublicIP: n.PublicIP,
			Volume: n.DockerVolume, Ports: n.ExposedPorts}
		if len(n.Disks) > 0 {
			ni.Disks = make(map[string][]string)
			for _, d := range n.Disks {
				ni.Disks[d.Name] = d.Devices
			}
		}
		info.Nodes = append(info.Nodes, ni)
	}

	vols, err := conf.Volumes()
	if err != nil {
		return nil, err
	}
	for _, v := range vols {
		info.Volumes = append(info.Volumes, volumeInfo{Name: v.Name, Type: v.Type, Size: gounits.BytesSize(float64(v.Size)),
			Disk: v.Disk, Redundancy: v.Redundancy, Nodes: v.Nodes})
	}

	dbs, err := conf.Databases()
	if err != nil {
		return nil, err
	}
	for _, db := range dbs {
		info.Databases = append(info.Databases, databaseInfo{Name: db.Name, Version: db.Version, Port: db.Port,
			MemSize: gounits.BytesSize(float64(db.MemSize) * gounits.MiB), DataVolume: db.DataVolume, Nodes: db.Nodes})
	}

	bfs, err := conf.BucketFS()
	if err != nil {
		return nil, err
	}
	for _, fs := range bfs {
		bi := bucketFSInfo{Name: fs.Name, HTTPPort: fs.HTTPPort}
		for _, b := range fs.Buckets {
			bi.Buckets = append(bi.Buckets, b.Name)
		}
		info.BucketFS = append(info.BucketFS, bi)
	}

	users, err := conf.Users()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		info.Users = append(info.Users, u.Name)
	}
	sort.Strings(info.Users)
	return info, nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Show the configuration of a cluster as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			info, err := collectInfo(conf)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(info); err != nil {
				return fmt.Errorf("failed to encode info: %w", err)
			}
			return enc.Close()
		},
	}
}
