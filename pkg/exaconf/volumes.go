package exaconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/units"
)

// Volumes returns all EXAStorage volumes. Missing optional keys are filled
// with the defaults of the volume type.
func (c *EXAConf) Volumes() ([]VolumeConfig, error) {
	var out []VolumeConfig
	for _, sec := range c.doc.SectionsOfKind(string(KindEXAVolume)) {
		v, err := volumeConfig(sec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Volume returns the EXAStorage volume called name.
func (c *EXAConf) Volume(name string) (VolumeConfig, error) {
	sec := c.doc.Section(KindEXAVolume.Section(name))
	if sec == nil {
		return VolumeConfig{}, configErrorf("volume '%s' does not exist", name)
	}
	return volumeConfig(sec)
}

func volumeConfig(sec *configobj.Section) (VolumeConfig, error) {
	v := VolumeConfig{
		Name:        sec.ID(),
		Type:        strings.ToLower(sec.String("Type", VolumeTypeData)),
		Disk:        sec.String("Disk", ""),
		Permissions: sec.String("Permissions", DefaultVolumePermissions),
		Labels:      sec.List("Labels", ","),
	}
	bad := func(key string, err error) (VolumeConfig, error) {
		return v, configErrorf("invalid %s in volume '%s': %v", key, v.Name, err)
	}

	var err error
	if s := strings.TrimSpace(sec.String("Size", "")); s != "" {
		if v.Size, err = units.ToBytes(s); err != nil {
			return bad("Size", err)
		}
	}
	if v.Redundancy, err = strconv.Atoi(strings.TrimSpace(sec.String("Redundancy", "1"))); err != nil {
		return bad("Redundancy", err)
	}
	if v.Nodes, err = parseInts(sec.String("Nodes", "")); err != nil {
		return bad("Nodes", err)
	}
	v.NumMasterNodes = len(v.Nodes)
	if s, ok := sec.Get("NumMasterNodes"); ok {
		if v.NumMasterNodes, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return bad("NumMasterNodes", err)
		}
	}
	if v.Owner, err = ParseOwner(sec.String("Owner", "")); err != nil {
		return bad("Owner", err)
	}

	blockSize, stripeSize, shared := int64(DefaultVolumeBlockSize), int64(DefaultVolumeStripeSize), false
	if v.Type == VolumeTypeArchive {
		blockSize, stripeSize, shared = ArchiveVolumeBlockSize, ArchiveVolumeStripeSize, true
	}
	if s := strings.TrimSpace(sec.String("BlockSize", "")); s != "" {
		if blockSize, err = units.ToBytes(s); err != nil {
			return bad("BlockSize", err)
		}
	}
	if s := strings.TrimSpace(sec.String("StripeSize", "")); s != "" {
		if stripeSize, err = units.ToBytes(s); err != nil {
			return bad("StripeSize", err)
		}
	}
	if s, ok := sec.Get("Shared"); ok {
		if shared, err = AsBool(s); err != nil {
			return bad("Shared", err)
		}
	}
	v.BlockSize, v.StripeSize, v.Shared = blockSize, stripeSize, shared

	v.Priority = DefaultVolumePriority
	if s, ok := sec.Get("Priority"); ok {
		if v.Priority, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return bad("Priority", err)
		}
	}
	return v, nil
}

// VolumeUsage returns the databases using the volume as data volume.
func (c *EXAConf) VolumeUsage(name string) Usage {
	var u Usage
	for _, sec := range c.doc.SectionsOfKind(string(KindDB)) {
		if strings.TrimSpace(sec.String("DataVolume", "")) == name {
			u.Databases = append(u.Databases, sec.ID())
		}
	}
	return u
}

func (c *EXAConf) volumeNameUsed(name string) bool {
	return c.doc.Section(KindEXAVolume.Section(name)) != nil ||
		c.doc.Section(KindRemoteVolume.Section(name)) != nil
}

func formatSize(n int64) string {
	if n == 0 {
		return ""
	}
	return units.FromBytes(n)
}

// AddVolume adds an EXAStorage volume.
func (tx *Tx) AddVolume(spec VolumeSpec) error {
	c := tx.c
	typ := strings.ToLower(spec.Type)
	if typ == "" {
		typ = VolumeTypeData
	}
	if typ != VolumeTypeData && typ != VolumeTypeArchive {
		return configErrorf("volume type '%s' is not supported (use %s or %s)", spec.Type, VolumeTypeData, VolumeTypeArchive)
	}
	if spec.Name == "" {
		return configErrorf("volume name must not be empty")
	}
	if c.volumeNameUsed(spec.Name) {
		return configErrorf("volume '%s' already exists", spec.Name)
	}
	if err := c.checkOwner("volume", spec.Name, spec.Owner); err != nil {
		return err
	}
	for _, n := range spec.Nodes {
		if !c.NodeExists(n) {
			return configErrorf("node %d of volume '%s' does not exist", n, spec.Name)
		}
	}

	numMaster := spec.NumMasterNodes
	if numMaster == 0 {
		numMaster = len(spec.Nodes)
	}
	redundancy := spec.Redundancy
	if redundancy == 0 {
		redundancy = 1
	}
	perms := spec.Permissions
	if perms == "" {
		perms = DefaultVolumePermissions
	}
	blockSize, stripeSize, shared := spec.BlockSize, spec.StripeSize, typ == VolumeTypeArchive
	if blockSize == 0 {
		blockSize = DefaultVolumeBlockSize
		if typ == VolumeTypeArchive {
			blockSize = ArchiveVolumeBlockSize
		}
	}
	if stripeSize == 0 {
		stripeSize = DefaultVolumeStripeSize
		if typ == VolumeTypeArchive {
			stripeSize = ArchiveVolumeStripeSize
		}
	}
	if spec.Shared != nil {
		shared = *spec.Shared
	}

	name := KindEXAVolume.Section(spec.Name)
	sec, err := c.doc.AddSection(name)
	if err != nil {
		return configErrorf("can't add volume '%s': %v", spec.Name, err)
	}
	sec.Set("Type", typ)
	sec.SetComments("Type", "Type of volume: 'data' | 'archive'")
	sec.Set("Size", formatSize(spec.Size))
	sec.SetComments("Size", "Volume size (e. g. '1 TiB')")
	sec.Set("Disk", spec.Disk)
	sec.SetComments("Disk", "Name of the disk to be used for this volume.", "This disk must exist on all volume nodes.")
	sec.Set("Nodes", joinInts(spec.Nodes, ", "))
	sec.SetComments("Nodes", "Comma-separated list of node IDs for this volume (put dedicated redundancy nodes at the end, if any)")
	sec.Set("NumMasterNodes", strconv.Itoa(numMaster))
	sec.SetComments("NumMasterNodes", "OPTIONAL: Nr. of master nodes for this volume. Remaining nodes will be used for redundancy only.")
	sec.Set("Redundancy", strconv.Itoa(redundancy))
	sec.SetComments("Redundancy", "Desired redundancy for this volume")
	sec.Set("Owner", spec.Owner.String())
	sec.SetComments("Owner", "User and group IDs that own this volume (e. g. '1000:1005')")
	sec.Set("Permissions", perms)
	sec.Set("BlockSize", units.FromBytes(blockSize))
	sec.Set("StripeSize", units.FromBytes(stripeSize))
	if len(spec.Labels) > 0 {
		sec.SetList("Labels", spec.Labels, ", ")
		sec.SetComments("Labels", "OPTIONAL: a comma-separated list of labels for this volume")
	}
	sec.Set("Shared", boolStr(shared))
	sec.SetComments("Shared", "OPTIONAL: shared volumes can be opened (for writing) by multiple clients simultaneously")
	sec.Set("Priority", strconv.Itoa(DefaultVolumePriority))
	sec.SetComments("Priority", "OPTIONAL: I/O priority (0 = highest, 20 = lowest)")
	c.doc.SetComments(name, "", "An EXAStorage volume")
	return nil
}

// RemoveVolume removes a volume. Without force it fails if a database
// uses it.
func (tx *Tx) RemoveVolume(name string, force bool) error {
	c := tx.c
	if c.doc.Section(KindEXAVolume.Section(name)) == nil {
		return configErrorf("volume '%s' can't be removed because it does not exist", name)
	}
	if !force {
		if u := c.VolumeUsage(name); !u.Empty() {
			return configErrorf("volume '%s' can't be removed because it's used by databases %v", name, u.Databases)
		}
	}
	c.doc.DeleteSection(KindEXAVolume.Section(name))
	return nil
}

// SetVolumeConf changes the given volume or all volumes with the wildcard.
// A missing volume is added, which requires the update to carry the
// mandatory values.
func (tx *Tx) SetVolumeConf(name string, upd VolumeUpdate) error {
	c := tx.c
	if !isWildcard(name) && c.doc.Section(KindEXAVolume.Section(name)) == nil {
		spec, err := volumeSpecFromUpdate(name, upd)
		if err != nil {
			return err
		}
		return tx.AddVolume(spec)
	}
	for _, sec := range c.doc.SectionsOfKind(string(KindEXAVolume)) {
		if !isWildcard(name) && sec.ID() != name {
			continue
		}
		if err := c.applyVolumeUpdate(sec, upd); err != nil {
			return err
		}
	}
	return nil
}

func volumeSpecFromUpdate(name string, upd VolumeUpdate) (VolumeSpec, error) {
	if upd.Owner == nil || upd.Nodes == nil {
		return VolumeSpec{}, configErrorf("volume '%s' does not exist and can't be created without owner and nodes", name)
	}
	spec := VolumeSpec{Name: name, Owner: *upd.Owner, Nodes: upd.Nodes, Labels: upd.Labels, Shared: upd.Shared}
	if upd.Type != nil {
		spec.Type = *upd.Type
	}
	if upd.Size != nil {
		size, err := units.ToBytes(*upd.Size)
		if err != nil {
			return spec, configErrorf("invalid size '%s': %v", *upd.Size, err)
		}
		spec.Size = size
	}
	if upd.Disk != nil {
		spec.Disk = *upd.Disk
	}
	if upd.Redundancy != nil {
		spec.Redundancy = *upd.Redundancy
	}
	if upd.NumMasterNodes != nil {
		spec.NumMasterNodes = *upd.NumMasterNodes
	}
	if upd.Permissions != nil {
		spec.Permissions = *upd.Permissions
	}
	return spec, nil
}

func (c *EXAConf) applyVolumeUpdate(sec *configobj.Section, upd VolumeUpdate) error {
	if upd.Type != nil {
		typ := strings.ToLower(*upd.Type)
		if typ != VolumeTypeData && typ != VolumeTypeArchive {
			return configErrorf("volume type '%s' is not supported", *upd.Type)
		}
		sec.Set("Type", typ)
	}
	if upd.Size != nil {
		size, err := units.ToBytes(*upd.Size)
		if err != nil {
			return configErrorf("invalid size '%s' for volume '%s': %v", *upd.Size, sec.ID(), err)
		}
		sec.Set("Size", formatSize(size))
	}
	for _, kv := range []struct {
		key string
		val *string
	}{{"BlockSize", upd.BlockSize}, {"StripeSize", upd.StripeSize}} {
		key, val := kv.key, kv.val
		if val == nil {
			continue
		}
		n, err := units.ToBytes(*val)
		if err != nil {
			return configErrorf("invalid %s '%s' for volume '%s': %v", key, *val, sec.ID(), err)
		}
		sec.Set(key, units.FromBytes(n))
	}
	if upd.Disk != nil {
		sec.Set("Disk", *upd.Disk)
	}
	if upd.Redundancy != nil {
		sec.Set("Redundancy", strconv.Itoa(*upd.Redundancy))
	}
	if upd.Owner != nil {
		if err := c.checkOwner("volume", sec.ID(), *upd.Owner); err != nil {
			return err
		}
		sec.Set("Owner", upd.Owner.String())
	}
	if upd.Permissions != nil {
		sec.Set("Permissions", *upd.Permissions)
	}
	if upd.Nodes != nil {
		sec.Set("Nodes", joinInts(upd.Nodes, ", "))
	}
	if upd.NumMasterNodes != nil {
		sec.Set("NumMasterNodes", strconv.Itoa(*upd.NumMasterNodes))
	}
	if upd.Priority != nil {
		if *upd.Priority < 0 || *upd.Priority > 20 {
			return configErrorf("priority %d of volume '%s' is out of range (0-20)", *upd.Priority, sec.ID())
		}
		sec.Set("Priority", strconv.Itoa(*upd.Priority))
	}
	if upd.Shared != nil {
		sec.Set("Shared", boolStr(*upd.Shared))
	}
	if upd.Labels != nil {
		setListOrDelete(sec, "Labels", upd.Labels)
	}
	return nil
}

// UseDiskForVolumes assigns disk to all volumes without a disk (limited to
// volType if given) and sizes them so that bytesPerNode is split evenly.
// With a step the size is rounded down to a multiple of it. Volumes that
// would end up below minSize are an error.
func (tx *Tx) UseDiskForVolumes(disk string, bytesPerNode int64, volType string, minSize, step int64) error {
	c := tx.c
	var targets []*configobj.Section
	for _, sec := range c.doc.SectionsOfKind(string(KindEXAVolume)) {
		if strings.TrimSpace(sec.String("Disk", "")) != "" {
			continue
		}
		if volType != "" && !strings.EqualFold(sec.String("Type", ""), volType) {
			continue
		}
		targets = append(targets, sec)
	}
	if len(targets) == 0 {
		return nil
	}

	bytesPerVolume := bytesPerNode / int64(len(targets))
	for _, sec := range targets {
		redundancy, err := strconv.Atoi(strings.TrimSpace(sec.String("Redundancy", "1")))
		if err != nil || redundancy < 1 {
			return configErrorf("invalid redundancy in volume '%s'", sec.ID())
		}
		var size int64
		if step > 0 {
			size = step * (bytesPerVolume / step) / int64(redundancy)
			if size < step {
				size = step
			}
		} else {
			size = bytesPerVolume / int64(redundancy)
		}
		if size < minSize {
			return configErrorf("volume '%s' would be %s but the minimum size is %s",
				sec.ID(), units.FromBytes(size), units.FromBytes(minSize))
		}
		sec.Set("Disk", disk)
		sec.Set("Size", units.FromBytes(size))
	}
	return nil
}

// RemoteVolumes returns all remote volumes.
func (c *EXAConf) RemoteVolumes() ([]RemoteVolumeConfig, error) {
	var out []RemoteVolumeConfig
	for _, sec := range c.doc.SectionsOfKind(string(KindRemoteVolume)) {
		v, err := remoteVolumeConfig(sec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func remoteVolumeConfig(sec *configobj.Section) (RemoteVolumeConfig, error) {
	v := RemoteVolumeConfig{
		Name:     sec.ID(),
		Type:     sec.String("Type", ""),
		URL:      sec.String("URL", ""),
		Username: sec.String("Username", ""),
		Passwd:   sec.String("Passwd", ""),
		Labels:   sec.List("Labels", ","),
		Options:  sec.String("Options", ""),
	}
	var err error
	if v.ID, err = strconv.Atoi(strings.TrimSpace(sec.String("ID", ""))); err != nil {
		return v, configErrorf("invalid ID in remote volume '%s'", v.Name)
	}
	if v.Owner, err = ParseOwner(sec.String("Owner", "")); err != nil {
		return v, err
	}
	return v, nil
}

// MaxRemoteVolumeID returns the highest remote volume ID, at least
// RemoteVolumeIDOffset.
func (c *EXAConf) MaxRemoteVolumeID() int {
	max := RemoteVolumeIDOffset
	for _, sec := range c.doc.SectionsOfKind(string(KindRemoteVolume)) {
		if id, err := strconv.Atoi(strings.TrimSpace(sec.String("ID", ""))); err == nil && id > max {
			max = id
		}
	}
	return max
}

func (c *EXAConf) remoteVolumeByNameOrID(nameOrID string) *configobj.Section {
	if sec := c.doc.Section(KindRemoteVolume.Section(nameOrID)); sec != nil {
		return sec
	}
	for _, sec := range c.doc.SectionsOfKind(string(KindRemoteVolume)) {
		if strings.TrimSpace(sec.String("ID", "")) == nameOrID {
			return sec
		}
	}
	return nil
}

// AddRemoteVolume adds a remote volume.
func (tx *Tx) AddRemoteVolume(spec RemoteVolumeSpec) error {
	c := tx.c
	typ := strings.ToLower(spec.Type)
	if !contains(validRemoteVolumeTypes, typ) {
		return configErrorf("remote volume type '%s' is not supported (use one of %s)", spec.Type, strings.Join(validRemoteVolumeTypes, ", "))
	}
	id := spec.ID
	if id == 0 {
		id = c.MaxRemoteVolumeID() + 1
	}
	if id < RemoteVolumeIDOffset {
		return configErrorf("remote volume IDs must be >= %d", RemoteVolumeIDOffset)
	}
	if c.remoteVolumeByNameOrID(strconv.Itoa(id)) != nil {
		return configErrorf("remote volume with ID %d already exists", id)
	}
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("r%04d", id-RemoteVolumeIDOffset)
	}
	if c.volumeNameUsed(name) {
		return configErrorf("volume '%s' already exists", name)
	}
	if err := c.checkOwner("remote volume", name, spec.Owner); err != nil {
		return err
	}
	username := spec.Username
	if username == "" {
		username = "anonymous"
	}

	sec, err := c.doc.AddSection(KindRemoteVolume.Section(name))
	if err != nil {
		return configErrorf("can't add remote volume '%s': %v", name, err)
	}
	sec.Set("Type", typ)
	sec.Set("ID", strconv.Itoa(id))
	sec.Set("URL", spec.URL)
	sec.Set("Username", username)
	sec.Set("Passwd", spec.Passwd)
	sec.Set("Owner", spec.Owner.String())
	if len(spec.Labels) > 0 {
		sec.SetList("Labels", spec.Labels, ", ")
	}
	if spec.Options != "" {
		sec.Set("Options", spec.Options)
	}
	return nil
}

// RemoveRemoteVolume removes a remote volume given by name or ID.
func (tx *Tx) RemoveRemoteVolume(nameOrID string) error {
	sec := tx.c.remoteVolumeByNameOrID(nameOrID)
	if sec == nil {
		return configErrorf("remote volume '%s' can't be removed because it does not exist", nameOrID)
	}
	tx.c.doc.DeleteSection(sec.Name())
	return nil
}

// SetRemoteVolumeConf changes the given remote volume (by name or ID) or
// all remote volumes with the wildcard. A missing volume is added if the
// update carries type, URL and owner.
func (tx *Tx) SetRemoteVolumeConf(nameOrID string, upd RemoteVolumeUpdate) error {
	c := tx.c
	var targets []*configobj.Section
	if isWildcard(nameOrID) {
		targets = c.doc.SectionsOfKind(string(KindRemoteVolume))
	} else if sec := c.remoteVolumeByNameOrID(nameOrID); sec != nil {
		targets = []*configobj.Section{sec}
	} else {
		if upd.Type == nil || upd.URL == nil || upd.Owner == nil {
			return configErrorf("remote volume '%s' does not exist and can't be created without type, URL and owner", nameOrID)
		}
		spec := RemoteVolumeSpec{Name: nameOrID, Type: *upd.Type, URL: *upd.URL, Owner: *upd.Owner, Labels: upd.Labels}
		if upd.ID != nil {
			spec.ID = *upd.ID
		}
		if upd.Username != nil {
			spec.Username = *upd.Username
		}
		if upd.Passwd != nil {
			spec.Passwd = *upd.Passwd
		}
		if upd.Options != nil {
			spec.Options = *upd.Options
		}
		return tx.AddRemoteVolume(spec)
	}

	for _, sec := range targets {
		if upd.Type != nil {
			typ := strings.ToLower(*upd.Type)
			if !contains(validRemoteVolumeTypes, typ) {
				return configErrorf("remote volume type '%s' is not supported", *upd.Type)
			}
			sec.Set("Type", typ)
		}
		if upd.URL != nil {
			sec.Set("URL", *upd.URL)
		}
		if upd.Username != nil {
			sec.Set("Username", *upd.Username)
		}
		if upd.Passwd != nil {
			sec.Set("Passwd", *upd.Passwd)
		}
		if upd.Owner != nil {
			if err := c.checkOwner("remote volume", sec.ID(), *upd.Owner); err != nil {
				return err
			}
			sec.Set("Owner", upd.Owner.String())
		}
		if upd.Labels != nil {
			setListOrDelete(sec, "Labels", upd.Labels)
		}
		if upd.Options != nil {
			sec.Set("Options", *upd.Options)
		}
	}
	return nil
}
