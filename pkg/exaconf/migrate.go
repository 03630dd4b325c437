package exaconf

import (
	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/metrics"
)

// migration upgrades files older than version.
type migration struct {
	version string
	apply   func(tx *Tx, g *configobj.Section) error
}

var migrations = []migration{
	{"6.0.1", func(tx *Tx, _ *configobj.Section) error {
		for _, sec := range tx.c.doc.SectionsOfKind(string(KindNode)) {
			sec.Rename("Hostname", "Name")
		}
		return nil
	}},
	{"6.0.4", func(_ *Tx, g *configobj.Section) error {
		if !g.Has("Revision") {
			g.Set("Revision", "1")
		}
		return nil
	}},
	// Existing nodes already have a UUID, it's imported on the next boot.
	{"6.0.7", func(tx *Tx, g *configobj.Section) error {
		for _, sec := range tx.c.doc.SectionsOfKind(string(KindNode)) {
			sec.Set("UUID", ImportUUID)
		}
		if !g.Has("Checksum") {
			g.Set("Checksum", checksumCommit)
		}
		return nil
	}},
	{"6.1.1", func(_ *Tx, g *configobj.Section) error {
		if !g.Has("Timezone") {
			g.Set("Timezone", DefaultTimezone)
		}
		return nil
	}},
	{"6.1.2", func(tx *Tx, _ *configobj.Section) error {
		return tx.AddMissingUsersAndGroups()
	}},
	{"6.1.3", func(tx *Tx, g *configobj.Section) error {
		if !g.Has("REVersion") {
			g.Set("REVersion", tx.c.vers.re)
		}
		if !g.Has("Hugepages") {
			g.Set("Hugepages", DefaultHugepages)
		}
		return nil
	}},
	// The global BucketFS section is replaced by an owner per BucketFS.
	{"6.1.4", func(tx *Tx, _ *configobj.Section) error {
		old := tx.c.doc.Section("BucketFS")
		if old == nil {
			return nil
		}
		owner := old.String("ServiceOwner", "")
		for _, sec := range tx.c.doc.SectionsOfKind(string(KindBucketFS)) {
			sec.Set("Owner", owner)
		}
		tx.c.doc.DeleteSection("BucketFS")
		return nil
	}},
	{"6.1.5", func(tx *Tx, _ *configobj.Section) error {
		for _, sec := range tx.c.doc.SectionsOfKind(string(KindDB)) {
			sec.Rename("NumMasterNodes", "NumActiveNodes")
		}
		return nil
	}},
}

// UpdateSelf migrates a file written by an older version and commits it.
// Files written by a newer version cause a MigrationError.
func (c *EXAConf) UpdateSelf() error {
	g, err := c.global()
	if err != nil {
		return err
	}
	fileVersion := c.FileVersion()
	switch CompareVersions(Version, fileVersion) {
	case 0:
		return nil
	case -1:
		return &MigrationError{Path: c.confPath, FileVersion: fileVersion, ModuleVersion: Version}
	}

	c.logger.Info().Str("from", fileVersion).Str("to", Version).Msg("Updating EXAConf")
	tx := &Tx{c: c}
	for _, m := range migrations {
		if CompareVersions(m.version, fileVersion) != 1 {
			continue
		}
		if err := m.apply(tx, g); err != nil {
			if rerr := c.Revert(); rerr != nil {
				c.logger.Error().Err(rerr).Msg("Failed to revert after failed migration")
			}
			return err
		}
		metrics.ExaconfMigrations.WithLabelValues(m.version).Inc()
		c.logger.Debug().Str("version", m.version).Msg("Applied migration")
	}
	g.Set("ConfVersion", Version)
	if err := c.Commit(); err != nil {
		return err
	}
	return c.Validate()
}
