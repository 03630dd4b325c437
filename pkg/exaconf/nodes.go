package exaconf

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
)

func (c *EXAConf) nodeSection(id int) *configobj.Section {
	return c.doc.Section(KindNode.Section(strconv.Itoa(id)))
}

// NodeExists reports whether a node with the ID exists.
func (c *EXAConf) NodeExists(id int) bool {
	return c.nodeSection(id) != nil
}

// NodeIDs returns the IDs of all nodes in file order.
func (c *EXAConf) NodeIDs() []int {
	var ids []int
	for _, sec := range c.doc.SectionsOfKind(string(KindNode)) {
		if id, err := strconv.Atoi(sec.ID()); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// NumNodes returns the number of nodes.
func (c *EXAConf) NumNodes() int {
	return len(c.doc.SectionsOfKind(string(KindNode)))
}

// MaxNodeID returns the highest node ID, at least MaxReservedNodeID.
func (c *EXAConf) MaxNodeID() int {
	max := MaxReservedNodeID
	for _, id := range c.NodeIDs() {
		if id > max {
			max = id
		}
	}
	return max
}

// Nodes returns all nodes in file order.
func (c *EXAConf) Nodes() ([]NodeConfig, error) {
	var out []NodeConfig
	for _, sec := range c.doc.SectionsOfKind(string(KindNode)) {
		n, err := c.nodeConfig(sec)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Node returns the node with the given ID.
func (c *EXAConf) Node(id int) (NodeConfig, error) {
	sec := c.nodeSection(id)
	if sec == nil {
		return NodeConfig{}, configErrorf("node %d does not exist in '%s'", id, c.confPath)
	}
	return c.nodeConfig(sec)
}

func (c *EXAConf) nodeConfig(sec *configobj.Section) (NodeConfig, error) {
	id, err := strconv.Atoi(sec.ID())
	if err != nil {
		return NodeConfig{}, configErrorf("invalid node ID in section '%s'", sec.Name())
	}
	n := NodeConfig{
		ID:               id,
		Name:             sec.String("Name", ""),
		UUID:             NodeUUID(sec.String("UUID", "")),
		PrivateInterface: sec.String("PrivateInterface", ""),
		PublicInterface:  sec.String("PublicInterface", ""),
	}
	if v := strings.TrimSpace(sec.String("PrivateNet", "")); v != "" {
		if n.PrivateNet, err = ToNetString(v, id); err != nil {
			return n, err
		}
		n.PrivateIP = netIP(n.PrivateNet)
	}
	if v := strings.TrimSpace(sec.String("PublicNet", "")); v != "" {
		if n.PublicNet, err = ToNetString(v, id); err != nil {
			return n, err
		}
		n.PublicIP = netIP(n.PublicNet)
	}

	for _, dsec := range sec.SectionsOfKind(string(KindDisk)) {
		d, err := diskConfig(dsec)
		if err != nil {
			return n, err
		}
		n.Disks = append(n.Disks, d)
	}

	if v, ok := sec.Get("DockerVolume"); ok {
		root := ""
		if dsec := c.doc.Section("Docker"); dsec != nil {
			root = dsec.String("RootDir", "")
		}
		n.DockerVolume = filepath.Join(root, v)
	}
	if v, ok := sec.Get("ExposedPorts"); ok {
		if n.ExposedPorts, err = parsePorts(v); err != nil {
			return n, configErrorf("invalid exposed ports in section '%s': %v", sec.Name(), err)
		}
	}
	return n, nil
}

func diskConfig(sec *configobj.Section) (DiskConfig, error) {
	d := DiskConfig{
		Name:      sec.ID(),
		Component: sec.String("Component", StorageComponent),
		Devices:   sec.List("Devices", ","),
		Drives:    sec.List("Drives", ","),
		DirectIO:  true,
	}
	for _, m := range sec.List("Mapping", ",") {
		dev, dir, ok := strings.Cut(m, ":")
		if !ok {
			return d, configErrorf("invalid device mapping '%s' in disk '%s'", m, d.Name)
		}
		dm := DeviceMapping{Device: strings.TrimSpace(dev), Path: strings.TrimSpace(dir)}
		d.Mapping = append(d.Mapping, dm)
		d.MappedDevices = append(d.MappedDevices, MappedDevice{
			HostPath:      filepath.Join(dm.Path, dm.Device),
			ContainerPath: path.Join(ContainerRoot, StorageDir, dm.Device),
		})
	}
	if v, ok := sec.Get("DirectIO"); ok {
		b, err := AsBool(v)
		if err != nil {
			return d, err
		}
		d.DirectIO = b
	}
	return d, nil
}

func parsePorts(v string) ([]PortMapping, error) {
	var out []PortMapping
	for _, p := range configobj.SplitList(v, ",") {
		cs, hs, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("'%s' is not a container:host pair", p)
		}
		cp, err := strconv.Atoi(strings.TrimSpace(cs))
		if err != nil {
			return nil, err
		}
		hp, err := strconv.Atoi(strings.TrimSpace(hs))
		if err != nil {
			return nil, err
		}
		out = append(out, PortMapping{Container: cp, Host: hp})
	}
	return out, nil
}

func formatPorts(ports []PortMapping) string {
	s := make([]string, len(ports))
	for i, p := range ports {
		s[i] = fmt.Sprintf("%d:%d", p.Container, p.Host)
	}
	return strings.Join(s, ", ")
}

// NodeDevices returns the devices of all disks of a node.
func (c *EXAConf) NodeDevices(id int) ([]string, error) {
	n, err := c.Node(id)
	if err != nil {
		return nil, err
	}
	return n.Devices(), nil
}

// NodeUsage returns the volumes and databases the node belongs to.
func (c *EXAConf) NodeUsage(id int) (Usage, error) {
	var u Usage
	for _, kind := range []EntityKind{KindEXAVolume, KindDB} {
		for _, sec := range c.doc.SectionsOfKind(string(kind)) {
			nodes, err := parseInts(sec.String("Nodes", ""))
			if err != nil {
				return u, err
			}
			for _, n := range nodes {
				if n != id {
					continue
				}
				if kind == KindDB {
					u.Databases = append(u.Databases, sec.ID())
				} else {
					u.Volumes = append(u.Volumes, sec.ID())
				}
				break
			}
		}
	}
	return u, nil
}

// AddNode adds a node. The private network is mandatory and may contain
// 'x' placeholders for the node ID.
func (tx *Tx) AddNode(spec NodeSpec) error {
	c := tx.c
	id := spec.ID
	if id == 0 {
		id = c.MaxNodeID() + 1
	}
	if id <= MaxReservedNodeID {
		return configErrorf("node IDs must be > %d", MaxReservedNodeID)
	}
	if c.NodeExists(id) {
		return configErrorf("node with ID %d already exists", id)
	}
	if spec.PrivateNet == "" {
		return configErrorf("the private network has to be specified when adding a node")
	}
	privNet, err := ToNetString(spec.PrivateNet, id)
	if err != nil {
		return err
	}
	pubNet := ""
	if spec.PublicNet != "" {
		if pubNet, err = ToNetString(spec.PublicNet, id); err != nil {
			return err
		}
	}
	name := spec.Name
	if name == "" {
		name = "n" + strconv.Itoa(id)
	}
	for _, other := range c.doc.SectionsOfKind(string(KindNode)) {
		if strings.TrimSpace(other.String("Name", "")) == name {
			return configErrorf("node name '%s' is already used in section '%s'", name, other.Name())
		}
	}

	secName := KindNode.Section(strconv.Itoa(id))
	sec, err := c.doc.AddSection(secName)
	if err != nil {
		return configErrorf("can't add node %d: %v", id, err)
	}
	sec.Set("PrivateNet", privNet)
	sec.Set("PublicNet", pubNet)
	sec.Set("Name", name)
	sec.Set("UUID", string(GenNodeUUID()))
	if spec.TemplateMode {
		disk, _ := sec.AddSection(KindDisk.Section("disk1"))
		disk.Set("Devices", DevicePrefix+"1")
		disk.SetInlineComment("Devices", fmt.Sprintf("'%s1' must be located in '%s'", DevicePrefix, path.Join(ContainerRoot, StorageDir)))
	}
	if c.PlatformIs("Docker") {
		sec.Set("DockerVolume", "n"+strconv.Itoa(id))
		ports := []PortMapping{{DefaultDBPort, DefaultDBPort + id}}
		if DefaultBucketFSHTTPPort > 0 {
			ports = append(ports, PortMapping{DefaultBucketFSHTTPPort, DefaultBucketFSHTTPPort + id})
		}
		if DefaultBucketFSHTTPSPort > 0 {
			ports = append(ports, PortMapping{DefaultBucketFSHTTPSPort, DefaultBucketFSHTTPSPort + id})
		}
		sec.Set("ExposedPorts", formatPorts(ports))
		sec.SetComments("ExposedPorts", "Ports to be exposed (container : host)")
	} else if c.PlatformIs("VM") {
		sec.Set("PrivateInterface", "eth0")
		sec.Set("PublicInterface", "eth1")
	}
	c.doc.SetComments(secName, "")
	return nil
}

// RemoveNode removes a node unless it's part of a volume or database.
// With force the usage check is skipped.
func (tx *Tx) RemoveNode(id int, force bool) error {
	c := tx.c
	if !c.NodeExists(id) {
		return configErrorf("node '%d' can't be removed because it does not exist", id)
	}
	if !force {
		u, err := c.NodeUsage(id)
		if err != nil {
			return err
		}
		if !u.Empty() {
			return configErrorf("node '%d' can't be removed because it's in use (volumes: %v, databases: %v)", id, u.Volumes, u.Databases)
		}
	}
	c.doc.DeleteSection(KindNode.Section(strconv.Itoa(id)))
	return nil
}

// SetNodeConf changes the given node (or all nodes with the wildcard). A
// missing node is added, which requires PrivateNet. With removeDisks all
// disks not named in the update are deleted.
func (tx *Tx) SetNodeConf(id string, upd NodeUpdate, removeDisks bool) error {
	c := tx.c
	if !isWildcard(id) {
		nid, err := strconv.Atoi(id)
		if err != nil {
			return configErrorf("invalid node ID '%s'", id)
		}
		if !c.NodeExists(nid) {
			if upd.PrivateNet == nil {
				return configErrorf("node %d does not exist and can't be created without a private network", nid)
			}
			spec := NodeSpec{ID: nid, PrivateNet: *upd.PrivateNet}
			if upd.Name != nil {
				spec.Name = *upd.Name
			}
			if upd.PublicNet != nil {
				spec.PublicNet = *upd.PublicNet
			}
			return tx.AddNode(spec)
		}
	}

	for _, sec := range c.doc.SectionsOfKind(string(KindNode)) {
		if !isWildcard(id) && sec.ID() != id {
			continue
		}
		nid, err := strconv.Atoi(sec.ID())
		if err != nil {
			return configErrorf("invalid node ID in section '%s'", sec.Name())
		}
		if err := applyNodeUpdate(sec, nid, upd, removeDisks); err != nil {
			return err
		}
	}
	return nil
}

func applyNodeUpdate(sec *configobj.Section, nid int, upd NodeUpdate, removeDisks bool) error {
	if upd.Name != nil {
		sec.Set("Name", *upd.Name)
	}
	if upd.UUID != nil {
		sec.Set("UUID", *upd.UUID)
	}
	if upd.PrivateNet != nil {
		net, err := ToNetString(*upd.PrivateNet, nid)
		if err != nil {
			return err
		}
		sec.Set("PrivateNet", net)
	}
	if upd.PublicNet != nil {
		net, err := ToNetString(*upd.PublicNet, nid)
		if err != nil {
			return err
		}
		sec.Set("PublicNet", net)
	}
	if upd.PrivateIP != nil {
		cur := strings.TrimSpace(sec.String("PrivateNet", ""))
		if cur == "" {
			return configErrorf("private IP '%s' given for node %d but it has no private network", *upd.PrivateIP, nid)
		}
		if !IPIsValid(*upd.PrivateIP) {
			return configErrorf("private IP '%s' of node %d is invalid", *upd.PrivateIP, nid)
		}
		sec.Set("PrivateNet", *upd.PrivateIP+"/"+strconv.Itoa(netPrefixLen(cur)))
	}
	if upd.PublicIP != nil {
		cur := strings.TrimSpace(sec.String("PublicNet", ""))
		if cur == "" {
			return configErrorf("public IP '%s' given for node %d but it has no public network", *upd.PublicIP, nid)
		}
		if !IPIsValid(*upd.PublicIP) {
			return configErrorf("public IP '%s' of node %d is invalid", *upd.PublicIP, nid)
		}
		sec.Set("PublicNet", *upd.PublicIP+"/"+strconv.Itoa(netPrefixLen(cur)))
	}
	if upd.DockerVolume != nil {
		sec.Set("DockerVolume", filepath.Base(*upd.DockerVolume))
	}
	if upd.ExposedPorts != nil {
		sec.Set("ExposedPorts", formatPorts(upd.ExposedPorts))
	}

	if removeDisks {
		keep := make(map[string]bool, len(upd.Disks))
		for _, d := range upd.Disks {
			keep[d.Name] = true
		}
		for _, dsec := range sec.SectionsOfKind(string(KindDisk)) {
			if !keep[dsec.ID()] {
				sec.DeleteSection(dsec.Name())
			}
		}
	}
	for _, d := range upd.Disks {
		if d.Name == "" {
			return configErrorf("disk without name given for node %d", nid)
		}
		applyDiskUpdate(sec.EnsureSection(KindDisk.Section(d.Name)), d)
	}
	return nil
}

func applyDiskUpdate(sec *configobj.Section, d DiskUpdate) {
	if d.Component != nil {
		sec.Set("Component", *d.Component)
	}
	if d.Devices != nil {
		setListOrDelete(sec, "Devices", d.Devices)
	}
	if d.Drives != nil {
		setListOrDelete(sec, "Drives", d.Drives)
	}
	if d.Mapping != nil {
		m := make([]string, len(d.Mapping))
		for i, dm := range d.Mapping {
			m[i] = dm.Device + ":" + dm.Path
		}
		setListOrDelete(sec, "Mapping", m)
	}
	if d.DirectIO != nil {
		// true is the default and isn't written
		if *d.DirectIO {
			sec.Delete("DirectIO")
		} else {
			sec.Set("DirectIO", boolStr(false))
		}
	}
}

func setListOrDelete(sec *configobj.Section, key string, vals []string) {
	if len(vals) == 0 {
		sec.Delete(key)
		return
	}
	sec.SetList(key, vals, ", ")
}

func (c *EXAConf) mustNodeSection(id int) (*configobj.Section, error) {
	sec := c.nodeSection(id)
	if sec == nil {
		return nil, configErrorf("node %d does not exist in '%s'", id, c.confPath)
	}
	return sec, nil
}

// AddNodeDisk adds a disk to a node. An existing disk with the same name
// is only replaced with overwrite.
func (tx *Tx) AddNodeDisk(nodeID int, disk string, component string, devices, drives []string, overwrite bool) error {
	sec, err := tx.c.mustNodeSection(nodeID)
	if err != nil {
		return err
	}
	name := KindDisk.Section(disk)
	if sec.Section(name) != nil {
		if !overwrite {
			return configErrorf("node %d already contains disk '%s'", nodeID, disk)
		}
		sec.Section(name).Clear()
	}
	upd := DiskUpdate{Name: disk, Devices: devices, Drives: drives}
	if component != "" {
		upd.Component = &component
	}
	applyDiskUpdate(sec.EnsureSection(name), upd)
	return nil
}

// RemoveNodeDisk removes a disk, or all disks with the wildcard.
func (tx *Tx) RemoveNodeDisk(nodeID int, disk string) error {
	sec, err := tx.c.mustNodeSection(nodeID)
	if err != nil {
		return err
	}
	for _, dsec := range sec.SectionsOfKind(string(KindDisk)) {
		if isWildcard(disk) || dsec.ID() == disk {
			sec.DeleteSection(dsec.Name())
		}
	}
	return nil
}

// AddNodeDevice adds a device to an existing disk. A non-empty path adds
// a mapping of the device to that host directory.
func (tx *Tx) AddNodeDevice(nodeID int, disk, device, hostPath string) error {
	sec, err := tx.c.mustNodeSection(nodeID)
	if err != nil {
		return err
	}
	dsec := sec.Section(KindDisk.Section(disk))
	if dsec == nil {
		return configErrorf("node %d does not have a disk named '%s'", nodeID, disk)
	}
	devices := dsec.List("Devices", ",")
	if contains(devices, device) {
		return configErrorf("disk '%s' of node %d already contains device '%s'", disk, nodeID, device)
	}
	dsec.SetList("Devices", append(devices, device), ", ")
	if hostPath != "" {
		dsec.SetList("Mapping", append(dsec.List("Mapping", ","), device+":"+hostPath), ", ")
	}
	return nil
}

// RemoveNodeDevice removes a device and its mapping from a disk. If the
// disk has no devices left and removeEmptyDisk is set, the disk is removed
// too.
func (tx *Tx) RemoveNodeDevice(nodeID int, disk, device string, removeEmptyDisk bool) error {
	sec, err := tx.c.mustNodeSection(nodeID)
	if err != nil {
		return err
	}
	dsec := sec.Section(KindDisk.Section(disk))
	if dsec == nil {
		return configErrorf("node %d does not have a disk named '%s'", nodeID, disk)
	}
	if !dsec.Has("Devices") {
		return configErrorf("disk '%s' of node %d does not have any devices", disk, nodeID)
	}

	var devices, mapping []string
	for _, d := range dsec.List("Devices", ",") {
		if d != device {
			devices = append(devices, d)
		}
	}
	for _, m := range dsec.List("Mapping", ",") {
		dev, _, _ := strings.Cut(m, ":")
		if strings.TrimSpace(dev) != device {
			mapping = append(mapping, m)
		}
	}
	setListOrDelete(dsec, "Devices", devices)
	if dsec.Has("Mapping") {
		setListOrDelete(dsec, "Mapping", mapping)
	}
	if removeEmptyDisk && len(devices) == 0 {
		sec.DeleteSection(dsec.Name())
	}
	return nil
}

// RemoveNodeDrives removes the given drives from a disk.
func (tx *Tx) RemoveNodeDrives(nodeID int, disk string, drives []string) error {
	sec, err := tx.c.mustNodeSection(nodeID)
	if err != nil {
		return err
	}
	dsec := sec.Section(KindDisk.Section(disk))
	if dsec == nil {
		return configErrorf("node %d does not have disk '%s'", nodeID, disk)
	}
	var keep []string
	for _, d := range dsec.List("Drives", ",") {
		if !contains(drives, d) {
			keep = append(keep, d)
		}
	}
	setListOrDelete(dsec, "Drives", keep)
	return nil
}

// SetNodeNetwork replaces the private and/or public network of a node.
// Empty values are ignored.
func (tx *Tx) SetNodeNetwork(nodeID int, private, public string) error {
	if !tx.c.NodeExists(nodeID) {
		return configErrorf("node %d does not exist in '%s'", nodeID, tx.c.confPath)
	}
	var upd NodeUpdate
	if private != "" {
		upd.PrivateNet = &private
	}
	if public != "" {
		upd.PublicNet = &public
	}
	return tx.SetNodeConf(strconv.Itoa(nodeID), upd, false)
}

// CheckFixLocalDevPath returns the files backing a local device: the file
// itself if it exists, or its ".data" and ".meta" files for the old
// two-file format.
func CheckFixLocalDevPath(devFile string) ([]string, error) {
	if _, err := os.Stat(devFile); err == nil {
		return []string{devFile}, nil
	} else if !os.IsNotExist(err) {
		return nil, configErrorf("failed to check device file '%s': %v", devFile, err)
	}
	dataFile := devFile + DataSuffix
	if _, err := os.Stat(dataFile); err == nil {
		return []string{dataFile, devFile + MetaSuffix}, nil
	}
	return nil, configErrorf("could not find device file '%s'", devFile)
}
