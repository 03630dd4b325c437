package exaconf

import (
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
)

// ClusterName returns the name of the cluster or "" if not initialized.
func (c *EXAConf) ClusterName() string {
	return c.globalValue("ClusterName", "")
}

// Platform returns the platform as stored, e.g. "Docker".
func (c *EXAConf) Platform() string {
	return c.globalValue("Platform", "")
}

// PlatformIs compares the platform case-insensitively.
func (c *EXAConf) PlatformIs(platform string) bool {
	return strings.EqualFold(c.Platform(), platform)
}

// PlatformValid reports whether platform is supported.
func PlatformValid(platform string) bool {
	return contains(validPlatforms, strings.ToLower(platform))
}

// Timezone returns the system timezone.
func (c *EXAConf) Timezone() string {
	return c.globalValue("Timezone", DefaultTimezone)
}

// Hugepages returns "0", "host", "auto" or a number of pages.
func (c *EXAConf) Hugepages() string {
	return strings.ToLower(strings.TrimSpace(c.globalValue("Hugepages", DefaultHugepages)))
}

func (c *EXAConf) globalInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.globalValue(key, strconv.Itoa(def))))
	if err != nil {
		return def
	}
	return n
}

// CoredPort returns the port of the cored daemon.
func (c *EXAConf) CoredPort() int { return c.globalInt("CoredPort", DefaultCoredPort) }

// SSHPort returns the port of the SSH daemon.
func (c *EXAConf) SSHPort() int { return c.globalInt("SSHPort", DefaultSSHPort) }

// XMLRPCPort returns the port of the XMLRPC API.
func (c *EXAConf) XMLRPCPort() int { return c.globalInt("XMLRPCPort", DefaultXMLRPCPort) }

// LicenseFile returns the path of the license file.
func (c *EXAConf) LicenseFile() string {
	return c.globalValue("LicenseFile", "")
}

// NameServers returns the configured nameservers.
func (c *EXAConf) NameServers() []string {
	return configobj.SplitList(c.globalValue("NameServers", ""), ",")
}

// SSLConf returns the certificate settings.
func (c *EXAConf) SSLConf() (SSLConfig, error) {
	sec := c.doc.Section("SSL")
	if sec == nil {
		return SSLConfig{}, configErrorf("section 'SSL' does not exist in '%s'", c.confPath)
	}
	return SSLConfig{
		Cert:     sec.String("Cert", ""),
		CertKey:  sec.String("CertKey", ""),
		CertAuth: sec.String("CertAuth", ""),
	}, nil
}

// StorageConf returns the optional EXAStorage settings. Empty values are
// left nil.
func (c *EXAConf) StorageConf() (StorageConfig, error) {
	var conf StorageConfig
	sec := c.doc.Section("EXAStorage")
	if sec == nil {
		return conf, configErrorf("section 'EXAStorage' does not exist in '%s'", c.confPath)
	}
	if v := strings.TrimSpace(sec.String("BgRecEnabled", "")); v != "" {
		b, err := AsBool(v)
		if err != nil {
			return conf, err
		}
		conf.BgRecEnabled = &b
	}
	if v := strings.TrimSpace(sec.String("BgRecLimit", "")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return conf, configErrorf("invalid BgRecLimit '%s'", v)
		}
		conf.BgRecLimit = &n
	}
	if v := strings.TrimSpace(sec.String("SpaceWarnThreshold", "")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return conf, configErrorf("invalid SpaceWarnThreshold '%s'", v)
		}
		conf.SpaceWarnThreshold = &n
	}
	return conf, nil
}

// DefaultBgRecLimit returns the background recovery limit in MiB/s for a
// 1 GBit network.
func DefaultBgRecLimit() int {
	return DefaultBgRecLimit1GB
}

// SetTimezone sets the system timezone. Databases can override it with
// "-sysTZ" in their Params.
func (tx *Tx) SetTimezone(tz string) error {
	g, err := tx.c.global()
	if err != nil {
		return err
	}
	g.Set("Timezone", strings.TrimSpace(tz))
	return nil
}

// SetHugepages accepts "0", "host", "auto" or a positive number of pages.
func (tx *Tx) SetHugepages(hugepages string) error {
	g, err := tx.c.global()
	if err != nil {
		return err
	}
	hp := strings.ToLower(strings.TrimSpace(hugepages))
	if hp != "host" && hp != "auto" {
		if n, err := strconv.Atoi(hp); err != nil || n < 0 {
			return configErrorf("hugepages must be '0', 'host', 'auto' or a positive number of hugepages to allocate")
		}
	}
	g.Set("Hugepages", hp)
	return nil
}

// SetNameServers replaces the list of nameservers.
func (tx *Tx) SetNameServers(servers []string) error {
	g, err := tx.c.global()
	if err != nil {
		return err
	}
	g.SetList("NameServers", servers, ",")
	return nil
}

// SetNetworks enables the given networks. "private" is mandatory.
func (tx *Tx) SetNetworks(networks []string) error {
	g, err := tx.c.global()
	if err != nil {
		return err
	}
	for _, n := range networks {
		if n != "private" && n != "public" {
			return configErrorf("unknown network '%s'", n)
		}
	}
	if !contains(networks, "private") {
		return configErrorf("the private network can't be disabled")
	}
	g.SetList("Networks", networks, ", ")
	return nil
}

// SetStorageConf sets the given EXAStorage options. BgRecLimit must be
// positive and SpaceWarnThreshold a percentage.
func (tx *Tx) SetStorageConf(conf StorageConfig) error {
	if conf.BgRecLimit != nil && *conf.BgRecLimit <= 0 {
		return configErrorf("got invalid bg_rec_limit '%d' (must be > 0)", *conf.BgRecLimit)
	}
	if conf.SpaceWarnThreshold != nil && (*conf.SpaceWarnThreshold < 0 || *conf.SpaceWarnThreshold > 100) {
		return configErrorf("got invalid space_warn_threshold '%d' (must be between 0 and 100 percent)", *conf.SpaceWarnThreshold)
	}
	sec := tx.c.doc.EnsureSection("EXAStorage")
	if conf.BgRecEnabled != nil {
		sec.Set("BgRecEnabled", boolStr(*conf.BgRecEnabled))
	}
	if conf.BgRecLimit != nil {
		sec.Set("BgRecLimit", strconv.Itoa(*conf.BgRecLimit))
	}
	if conf.SpaceWarnThreshold != nil {
		sec.Set("SpaceWarnThreshold", strconv.Itoa(*conf.SpaceWarnThreshold))
	}
	return nil
}
