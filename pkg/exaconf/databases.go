package exaconf

import (
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/units"
)

const mib = 1048576

var (
	defaultJDBC   = DriverConfig{BucketFS: DefaultBucketFS, Bucket: DefaultBucket, Dir: DefaultJDBCDir}
	defaultOracle = DriverConfig{BucketFS: DefaultBucketFS, Bucket: DefaultBucket, Dir: DefaultOracleDir}
)

func (c *EXAConf) dbSection(name string) *configobj.Section {
	return c.doc.Section(KindDB.Section(name))
}

// Databases returns all databases including their backup schedules.
func (c *EXAConf) Databases() ([]DatabaseConfig, error) {
	var out []DatabaseConfig
	for _, sec := range c.doc.SectionsOfKind(string(KindDB)) {
		db, err := databaseConfig(sec)
		if err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	return out, nil
}

// Database returns the database called name.
func (c *EXAConf) Database(name string) (DatabaseConfig, error) {
	sec := c.dbSection(name)
	if sec == nil {
		return DatabaseConfig{}, configErrorf("database '%s' does not exist", name)
	}
	return databaseConfig(sec)
}

func databaseConfig(sec *configobj.Section) (DatabaseConfig, error) {
	db := DatabaseConfig{
		Name:            sec.ID(),
		Version:         sec.String("Version", ""),
		DataVolume:      sec.String("DataVolume", ""),
		Params:          sec.String("Params", ""),
		LdapServers:     sec.List("LdapServers", ","),
		Interfaces:      sec.List("Interfaces", ","),
		VolumeMoveDelay: sec.String("VolumeMoveDelay", ""),
		JDBC:            driverConfig(sec.Section("JDBC"), defaultJDBC),
		Oracle:          driverConfig(sec.Section("Oracle"), defaultOracle),
	}
	bad := func(key string, err error) (DatabaseConfig, error) {
		return db, configErrorf("invalid %s in database '%s': %v", key, db.Name, err)
	}

	memSize, err := units.ToBytes(sec.String("MemSize", "0"))
	if err != nil {
		return bad("MemSize", err)
	}
	db.MemSize = memSize / mib
	if db.Port, err = strconv.Atoi(strings.TrimSpace(sec.String("Port", ""))); err != nil {
		return bad("Port", err)
	}
	if db.Owner, err = ParseOwner(sec.String("Owner", "")); err != nil {
		return bad("Owner", err)
	}
	if db.Nodes, err = parseInts(sec.String("Nodes", "")); err != nil {
		return bad("Nodes", err)
	}
	active, ok := sec.Get("NumActiveNodes")
	if !ok {
		// files older than 6.1.5
		active, ok = sec.Get("NumMasterNodes")
	}
	if ok {
		if db.NumActiveNodes, err = strconv.Atoi(strings.TrimSpace(active)); err != nil {
			return bad("NumActiveNodes", err)
		}
	} else {
		db.NumActiveNodes = len(db.Nodes)
	}
	if v, ok := sec.Get("EnableAuditing"); ok {
		b, err := AsBool(v)
		if err != nil {
			return bad("EnableAuditing", err)
		}
		db.EnableAuditing = &b
	}
	if v := strings.TrimSpace(sec.String("VolumeQuota", "")); v != "" {
		if db.VolumeQuota, err = units.ToBytes(v); err != nil {
			return bad("VolumeQuota", err)
		}
	}

	for _, bsec := range sec.SectionsOfKind(string(KindBackup)) {
		b, err := backupConfig(bsec)
		if err != nil {
			return bad("backup schedule", err)
		}
		db.Backups = append(db.Backups, b)
	}
	return db, nil
}

func driverConfig(sec *configobj.Section, def DriverConfig) DriverConfig {
	if sec == nil {
		return def
	}
	return DriverConfig{
		BucketFS: sec.String("BucketFS", def.BucketFS),
		Bucket:   sec.String("Bucket", def.Bucket),
		Dir:      sec.String("Dir", def.Dir),
	}
}

func backupConfig(sec *configobj.Section) (BackupConfig, error) {
	b := BackupConfig{
		Name:    sec.ID(),
		Volume:  sec.String("Volume", ""),
		Minute:  sec.String("Minute", ""),
		Hour:    sec.String("Hour", ""),
		Day:     sec.String("Day", ""),
		Month:   sec.String("Month", ""),
		Weekday: sec.String("Weekday", ""),
		Expire:  units.ToSeconds(sec.String("Expire", "0")),
	}
	var err error
	if b.Enabled, err = AsBool(sec.String("Enabled", "True")); err != nil {
		return b, err
	}
	if b.Level, err = strconv.Atoi(strings.TrimSpace(sec.String("Level", "0"))); err != nil {
		return b, configErrorf("invalid level in backup schedule '%s'", b.Name)
	}
	return b, nil
}

// AddDatabase adds a database with JDBC and Oracle driver sections.
func (tx *Tx) AddDatabase(spec DatabaseSpec) error {
	c := tx.c
	if spec.Name == "" {
		return configErrorf("database name must not be empty")
	}
	if c.dbSection(spec.Name) != nil {
		return configErrorf("database '%s' already exists", spec.Name)
	}
	if err := c.checkOwner("database", spec.Name, spec.Owner); err != nil {
		return err
	}
	port := spec.Port
	if port == 0 {
		port = DefaultDBPort
	}
	active := spec.NumActiveNodes
	if active == 0 {
		active = len(spec.Nodes)
	}
	version := spec.Version
	if version == "" {
		version = c.DBVersion()
	}

	name := KindDB.Section(spec.Name)
	sec, err := c.doc.AddSection(name)
	if err != nil {
		return configErrorf("can't add database '%s': %v", spec.Name, err)
	}
	sec.Set("Version", version)
	sec.SetComments("Version", "Version nr. of this database.")
	sec.Set("MemSize", units.FromBytes(spec.MemSize*mib))
	sec.SetComments("MemSize", "Memory size over all nodes (e. g. '1 TiB').")
	sec.Set("Port", strconv.Itoa(port))
	sec.Set("Owner", spec.Owner.String())
	sec.SetComments("Owner", "User and group IDs that own this database (e. g. '1000:1005').")
	sec.Set("Nodes", joinInts(spec.Nodes, ", "))
	sec.SetComments("Nodes", "Comma-separated list of node IDs for this DB (put reserve nodes at the end, if any).")
	sec.Set("NumActiveNodes", strconv.Itoa(active))
	sec.SetComments("NumActiveNodes", "Nr. of initially active nodes for this DB. The remaining nodes will be reserve nodes.")
	sec.Set("DataVolume", spec.DataVolume)
	sec.SetComments("DataVolume", "Name of the data volume to be used by this database.")
	if spec.Params != "" {
		sec.Set("Params", spec.Params)
		sec.SetComments("Params", "OPTIONAL: DB parameters")
	}
	if len(spec.LdapServers) > 0 {
		sec.SetList("LdapServers", spec.LdapServers, ", ")
	}
	if spec.EnableAuditing {
		sec.Set("EnableAuditing", boolStr(true))
	}
	if len(spec.Interfaces) > 0 {
		sec.SetList("Interfaces", spec.Interfaces, ", ")
	}
	if spec.VolumeQuota > 0 {
		sec.Set("VolumeQuota", units.FromBytes(spec.VolumeQuota))
	}
	if spec.VolumeMoveDelay != "" {
		sec.Set("VolumeMoveDelay", spec.VolumeMoveDelay)
	}

	jdbc, _ := sec.AddSection("JDBC")
	jdbc.Set("BucketFS", DefaultBucketFS)
	jdbc.SetComments("BucketFS", "BucketFS that contains the JDBC driver")
	jdbc.Set("Bucket", DefaultBucket)
	jdbc.SetComments("Bucket", "Bucket that contains the JDBC driver")
	jdbc.Set("Dir", DefaultJDBCDir)
	jdbc.SetComments("Dir", "Directory within the bucket that contains the drivers")
	sec.SetComments("JDBC", "JDBC driver configuration")

	oracle, _ := sec.AddSection("Oracle")
	oracle.Set("BucketFS", DefaultBucketFS)
	oracle.SetComments("BucketFS", "BucketFS that contains the JDBC drivers")
	oracle.Set("Bucket", DefaultBucket)
	oracle.SetComments("Bucket", "Bucket that contains the JDBC drivers")
	oracle.Set("Dir", DefaultOracleDir)
	oracle.SetComments("Dir", "Directory within the bucket that contains the drivers")
	sec.SetComments("Oracle", "Oracle driver configuration")

	c.doc.SetComments(name, "", "An EXASOL database")
	return nil
}

// RemoveDatabase removes a database and its backup schedules.
func (tx *Tx) RemoveDatabase(name string) error {
	if tx.c.dbSection(name) == nil {
		return configErrorf("database '%s' can't be removed because it does not exist", name)
	}
	tx.c.doc.DeleteSection(KindDB.Section(name))
	return nil
}

// SetDatabaseConf changes the given database or all databases with the
// wildcard. A missing database is added if the update carries an owner
// and nodes.
func (tx *Tx) SetDatabaseConf(name string, upd DatabaseUpdate) error {
	c := tx.c
	if !isWildcard(name) && c.dbSection(name) == nil {
		if upd.Owner == nil || upd.Nodes == nil {
			return configErrorf("database '%s' does not exist and can't be created without owner and nodes", name)
		}
		spec := DatabaseSpec{Name: name, Owner: *upd.Owner, Nodes: upd.Nodes, LdapServers: upd.LdapServers, Interfaces: upd.Interfaces}
		if upd.Version != nil {
			spec.Version = *upd.Version
		}
		if upd.MemSize != nil {
			spec.MemSize = *upd.MemSize
		}
		if upd.Port != nil {
			spec.Port = *upd.Port
		}
		if upd.NumActiveNodes != nil {
			spec.NumActiveNodes = *upd.NumActiveNodes
		}
		if upd.DataVolume != nil {
			spec.DataVolume = *upd.DataVolume
		}
		if upd.Params != nil {
			spec.Params = *upd.Params
		}
		if err := tx.AddDatabase(spec); err != nil {
			return err
		}
		// remaining fields (drivers, quota, ...) go through the regular update
		upd.Owner, upd.Nodes = nil, nil
	}

	for _, sec := range c.doc.SectionsOfKind(string(KindDB)) {
		if !isWildcard(name) && sec.ID() != name {
			continue
		}
		if err := c.applyDatabaseUpdate(sec, upd); err != nil {
			return err
		}
	}
	return nil
}

func (c *EXAConf) applyDatabaseUpdate(sec *configobj.Section, upd DatabaseUpdate) error {
	if upd.Version != nil {
		sec.Set("Version", *upd.Version)
	}
	if upd.MemSize != nil {
		sec.Set("MemSize", units.FromBytes(*upd.MemSize*mib))
	}
	if upd.Port != nil {
		sec.Set("Port", strconv.Itoa(*upd.Port))
	}
	if upd.Owner != nil {
		if err := c.checkOwner("database", sec.ID(), *upd.Owner); err != nil {
			return err
		}
		sec.Set("Owner", upd.Owner.String())
	}
	if upd.Nodes != nil {
		sec.Set("Nodes", joinInts(upd.Nodes, ", "))
	}
	if upd.NumActiveNodes != nil {
		sec.Set("NumActiveNodes", strconv.Itoa(*upd.NumActiveNodes))
	}
	if upd.DataVolume != nil {
		sec.Set("DataVolume", *upd.DataVolume)
	}
	if upd.Params != nil {
		sec.Set("Params", *upd.Params)
	}
	if upd.LdapServers != nil {
		setListOrDelete(sec, "LdapServers", upd.LdapServers)
	}
	if upd.EnableAuditing != nil {
		sec.Set("EnableAuditing", boolStr(*upd.EnableAuditing))
	}
	if upd.Interfaces != nil {
		setListOrDelete(sec, "Interfaces", upd.Interfaces)
	}
	if upd.VolumeQuota != nil {
		if *upd.VolumeQuota > 0 {
			sec.Set("VolumeQuota", units.FromBytes(*upd.VolumeQuota))
		} else {
			sec.Delete("VolumeQuota")
		}
	}
	if upd.VolumeMoveDelay != nil {
		sec.Set("VolumeMoveDelay", *upd.VolumeMoveDelay)
	}
	applyDriverUpdate(sec, "JDBC", upd.JDBC)
	applyDriverUpdate(sec, "Oracle", upd.Oracle)
	return nil
}

func applyDriverUpdate(db *configobj.Section, name string, upd *DriverUpdate) {
	if upd == nil {
		return
	}
	sec := db.EnsureSection(name)
	if upd.BucketFS != nil {
		sec.Set("BucketFS", *upd.BucketFS)
	}
	if upd.Bucket != nil {
		sec.Set("Bucket", *upd.Bucket)
	}
	if upd.Dir != nil {
		sec.Set("Dir", *upd.Dir)
	}
}

// AddBackupSchedule adds a backup schedule to a database.
func (tx *Tx) AddBackupSchedule(db string, spec BackupSpec) error {
	dsec := tx.c.dbSection(db)
	if dsec == nil {
		return configErrorf("database '%s' does not exist", db)
	}
	if spec.Name == "" {
		return configErrorf("backup schedule name must not be empty")
	}
	if dsec.Section(KindBackup.Section(spec.Name)) != nil {
		return configErrorf("backup schedule '%s' already exists in database '%s'", spec.Name, db)
	}
	if spec.Volume == "" {
		return configErrorf("backup schedule '%s' needs a volume", spec.Name)
	}
	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}
	expire := spec.Expire
	if expire == "" {
		expire = "0"
	}
	if units.ToSeconds(expire) < 0 {
		return configErrorf("invalid expiration time '%s' for backup schedule '%s'", expire, spec.Name)
	}

	sec, err := dsec.AddSection(KindBackup.Section(spec.Name))
	if err != nil {
		return configErrorf("can't add backup schedule '%s': %v", spec.Name, err)
	}
	sec.Set("Enabled", boolStr(enabled))
	sec.Set("Volume", spec.Volume)
	sec.Set("Level", strconv.Itoa(spec.Level))
	sec.Set("Minute", spec.Minute)
	sec.Set("Hour", spec.Hour)
	sec.Set("Day", spec.Day)
	sec.Set("Month", spec.Month)
	sec.Set("Weekday", spec.Weekday)
	sec.Set("Expire", expire)
	return nil
}

// RemoveBackupSchedule removes a backup schedule of a database.
func (tx *Tx) RemoveBackupSchedule(db, name string) error {
	dsec := tx.c.dbSection(db)
	if dsec == nil {
		return configErrorf("database '%s' does not exist", db)
	}
	if !dsec.DeleteSection(KindBackup.Section(name)) {
		return configErrorf("backup schedule '%s' does not exist in database '%s'", name, db)
	}
	return nil
}

// SetBackupScheduleConf changes a backup schedule or, with the wildcard,
// all schedules of the database. A missing schedule is added if the
// update carries a volume.
func (tx *Tx) SetBackupScheduleConf(db, name string, upd BackupUpdate) error {
	dsec := tx.c.dbSection(db)
	if dsec == nil {
		return configErrorf("database '%s' does not exist", db)
	}
	if !isWildcard(name) && dsec.Section(KindBackup.Section(name)) == nil {
		if upd.Volume == nil {
			return configErrorf("backup schedule '%s' does not exist and can't be created without a volume", name)
		}
		spec := BackupSpec{Name: name, Volume: *upd.Volume, Enabled: upd.Enabled}
		for dst, src := range map[*string]*string{
			&spec.Minute: upd.Minute, &spec.Hour: upd.Hour, &spec.Day: upd.Day,
			&spec.Month: upd.Month, &spec.Weekday: upd.Weekday, &spec.Expire: upd.Expire,
		} {
			if src != nil {
				*dst = *src
			}
		}
		if upd.Level != nil {
			spec.Level = *upd.Level
		}
		return tx.AddBackupSchedule(db, spec)
	}

	for _, sec := range dsec.SectionsOfKind(string(KindBackup)) {
		if !isWildcard(name) && sec.ID() != name {
			continue
		}
		if upd.Enabled != nil {
			sec.Set("Enabled", boolStr(*upd.Enabled))
		}
		if upd.Level != nil {
			sec.Set("Level", strconv.Itoa(*upd.Level))
		}
		if upd.Expire != nil {
			if units.ToSeconds(*upd.Expire) < 0 {
				return configErrorf("invalid expiration time '%s' for backup schedule '%s'", *upd.Expire, sec.ID())
			}
			sec.Set("Expire", *upd.Expire)
		}
		for _, kv := range []struct {
			key string
			val *string
		}{
			{"Volume", upd.Volume}, {"Minute", upd.Minute}, {"Hour", upd.Hour},
			{"Day", upd.Day}, {"Month", upd.Month}, {"Weekday", upd.Weekday},
		} {
			if kv.val != nil {
				sec.Set(kv.key, *kv.val)
			}
		}
	}
	return nil
}
