package exaconf

import (
	"path/filepath"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
)

func (c *EXAConf) dockerSection() (*configobj.Section, error) {
	if !c.PlatformIs("Docker") {
		return nil, configErrorf("platform is '%s', not Docker", c.Platform())
	}
	sec := c.doc.Section("Docker")
	if sec == nil {
		return nil, configErrorf("Docker platform is specified but 'Docker' section is missing")
	}
	return sec, nil
}

// DockerConf returns the container settings. Only valid for the Docker
// platform.
func (c *EXAConf) DockerConf() (DockerConfig, error) {
	sec, err := c.dockerSection()
	if err != nil {
		return DockerConfig{}, err
	}
	conf := DockerConfig{
		RootDir:           sec.String("RootDir", ""),
		Image:             sec.String("Image", ""),
		DeviceType:        sec.String("DeviceType", DefaultDeviceType),
		Privileged:        DefaultDockerPrivileged,
		CapAdd:            sec.List("CapAdd", ","),
		CapDrop:           sec.List("CapDrop", ","),
		NetworkMode:       sec.String("NetworkMode", DefaultDockerNetworkMode),
		IpcMode:           sec.String("IpcMode", DefaultDockerIpcMode),
		AdditionalVolumes: sec.List("AdditionalVolumes", ","),
	}
	if v, ok := sec.Get("Privileged"); ok {
		if conf.Privileged, err = AsBool(v); err != nil {
			return conf, err
		}
	}
	// present but empty disables the default volumes
	if sec.Has("DefaultVolumes") {
		conf.DefaultVolumes = sec.List("DefaultVolumes", ",")
	} else {
		conf.DefaultVolumes = append([]string(nil), lvmVolumes...)
	}
	return conf, nil
}

// DeviceType returns the storage device type: the Docker setting or
// "block" on other platforms.
func (c *EXAConf) DeviceType() string {
	if sec, err := c.dockerSection(); err == nil {
		return strings.ToLower(strings.TrimSpace(sec.String("DeviceType", DefaultDeviceType)))
	}
	return DefaultDeviceType
}

// DockerRootDir returns the directory containing all cluster data.
func (c *EXAConf) DockerRootDir() (string, error) {
	sec, err := c.dockerSection()
	if err != nil {
		return "", err
	}
	return sec.String("RootDir", ""), nil
}

// DockerImage returns the image used for all containers.
func (c *EXAConf) DockerImage() (string, error) {
	sec, err := c.dockerSection()
	if err != nil {
		return "", err
	}
	return sec.String("Image", ""), nil
}

// DockerNodeVolumes returns the root volume directory of every node, keyed
// by node ID. Relative volumes are placed in the directory of the file.
func (c *EXAConf) DockerNodeVolumes() (map[int]string, error) {
	if _, err := c.dockerSection(); err != nil {
		return nil, err
	}
	out := make(map[int]string)
	for _, id := range c.NodeIDs() {
		vol := strings.TrimSpace(c.nodeSection(id).String("DockerVolume", ""))
		if vol == "" {
			return nil, configErrorf("Docker volume is missing for node %d", id)
		}
		if !filepath.IsAbs(vol) {
			vol = filepath.Join(c.root, vol)
		}
		out[id] = vol
	}
	return out, nil
}

// UpdateDockerImage replaces the image of all containers.
func (tx *Tx) UpdateDockerImage(image string) error {
	sec, err := tx.c.dockerSection()
	if err != nil {
		return err
	}
	sec.Set("Image", strings.TrimSpace(image))
	return nil
}

// SetDockerPrivileged switches privileged mode. Unprivileged containers
// need file devices.
func (tx *Tx) SetDockerPrivileged(privileged bool) error {
	sec, err := tx.c.dockerSection()
	if err != nil {
		return err
	}
	if !privileged && tx.c.DeviceType() != "file" {
		return configErrorf("containers can only run unprivileged with device type 'file'")
	}
	sec.Set("Privileged", boolStr(privileged))
	return nil
}
