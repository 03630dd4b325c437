package exaconf

import (
	"sort"
	"strings"
)

// Validate checks the document for missing mandatory values, invalid
// networks and duplicates.
func (c *EXAConf) Validate() error {
	if !c.Initialized() {
		return configErrorf("configuration is not initialized, use 'init-cluster' in order to initialize it")
	}

	havePriv := c.HasPrivateNet()
	havePub := c.HasPublicNet()
	if !havePriv {
		return configErrorf("the private network is disabled, please enable it and specify a private IP for each node")
	}

	haveDocker := c.PlatformIs("Docker")
	if haveDocker && c.doc.Section("Docker") == nil {
		return configErrorf("Docker platform is specified but 'Docker' section is missing")
	}

	var names, dockerVolumes, privNets, pubNets []string
	for _, sec := range c.doc.SectionsOfKind(string(KindNode)) {
		name := strings.TrimSpace(sec.String("Name", ""))
		if name == "" {
			return configErrorf("Name is missing in section '%s'", sec.Name())
		}
		names = append(names, name)

		if haveDocker {
			vol := strings.TrimSpace(sec.String("DockerVolume", ""))
			if vol == "" {
				return configErrorf("Docker volume is missing in section '%s'", sec.Name())
			}
			dockerVolumes = append(dockerVolumes, vol)
		}

		if net := strings.TrimSpace(sec.String("PrivateNet", "")); net != "" {
			if !NetIsValid(net) {
				return configErrorf("private network '%s' in section '%s' is invalid", net, sec.Name())
			}
			privNets = append(privNets, net)
		} else if havePriv {
			return configErrorf("private network is enabled but network is missing in section '%s'", sec.Name())
		}

		if net := strings.TrimSpace(sec.String("PublicNet", "")); net != "" {
			if !NetIsValid(net) {
				return configErrorf("public network '%s' in section '%s' is invalid", net, sec.Name())
			}
			pubNets = append(pubNets, net)
		} else if havePub {
			return configErrorf("public network is enabled but network is missing in section '%s'", sec.Name())
		}

		var devices []string
		for _, disk := range sec.SectionsOfKind(string(KindDisk)) {
			devices = append(devices, disk.List("Devices", ",")...)
		}
		if dup := duplicates(devices); len(dup) > 0 {
			return configErrorf("detected duplicate devices in section '%s': %s", sec.Name(), strings.Join(dup, ", "))
		}
	}

	if dup := duplicates(names); len(dup) > 0 {
		return configErrorf("detected duplicate node names: %s", strings.Join(dup, ", "))
	}
	if dup := duplicates(dockerVolumes); len(dup) > 0 {
		return configErrorf("detected duplicate docker volumes: %s", strings.Join(dup, ", "))
	}
	if dup := duplicates(privNets); len(dup) > 0 {
		return configErrorf("detected duplicate private networks: %s", strings.Join(dup, ", "))
	}
	if dup := duplicates(pubNets); len(dup) > 0 {
		return configErrorf("detected duplicate public networks: %s", strings.Join(dup, ", "))
	}

	// all addresses of an enabled network lie in the network of the first node
	if _, err := c.PrivateNetwork(); err != nil {
		return err
	}
	if havePub {
		if _, err := c.PublicNetwork(); err != nil {
			return err
		}
	}
	return nil
}

// duplicates returns the sorted values occurring more than once.
func duplicates(values []string) []string {
	seen := make(map[string]int, len(values))
	for _, v := range values {
		seen[v]++
	}
	var out []string
	for v, n := range seen {
		if n > 1 {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
