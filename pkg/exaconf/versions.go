package exaconf

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/log"
)

// versions of the installation the file describes
type versions struct {
	os  string
	db  string
	re  string
	img string
}

func defaultVersions() versions {
	return versions{os: Version, db: Version, re: Version, img: Version}
}

func (c *EXAConf) loadVersions() {
	g := c.doc.Section("Global")
	if g == nil {
		return
	}
	if v, ok := g.Get("OSVersion"); ok {
		c.vers.os = strings.TrimSpace(v)
	}
	if v, ok := g.Get("DBVersion"); ok {
		c.vers.db = strings.TrimSpace(v)
	}
	if v, ok := g.Get("REVersion"); ok {
		c.vers.re = strings.TrimSpace(v)
	}
	if v, ok := g.Get("ImageVersion"); ok {
		c.vers.img = strings.TrimSpace(v)
	}
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(strings.TrimSpace(v), ".")
	return strings.TrimSpace(major)
}

func suiteDir(v string) string {
	return "/usr/opt/EXASuite-" + majorVersion(v)
}

// CompareVersions compares "X.Y.Z" version strings and returns -1, 0 or 1.
// A "-suffix" is ignored and only the common number of segments is
// compared. Non-numeric segments are logged and compare equal.
func CompareVersions(first, second string) int {
	first, _, _ = strings.Cut(strings.TrimSpace(first), "-")
	second, _, _ = strings.Cut(strings.TrimSpace(second), "-")
	fs := strings.Split(first, ".")
	ss := strings.Split(second, ".")
	for i := 0; i < len(fs) && i < len(ss); i++ {
		f, ferr := strconv.Atoi(strings.TrimSpace(fs[i]))
		s, serr := strconv.Atoi(strings.TrimSpace(ss[i]))
		if ferr != nil || serr != nil {
			log.Logger.Warn().
				Str("first", first).
				Str("second", second).
				Msg("Detected invalid (non-numerical) version number, updating EXAConf is not possible with this version")
			return 0
		}
		if f < s {
			return -1
		}
		if f > s {
			return 1
		}
	}
	return 0
}

// OSVersion returns the EXAClusterOS version.
func (c *EXAConf) OSVersion() string { return c.vers.os }

// DBVersion returns the EXASolution version.
func (c *EXAConf) DBVersion() string { return c.vers.db }

// REVersion returns the EXARuntime version.
func (c *EXAConf) REVersion() string { return c.vers.re }

// ImageVersion returns the version of the image the cluster was created with.
func (c *EXAConf) ImageVersion() string { return c.vers.img }

// FileVersion returns the format version of the file, or Version if it
// isn't initialized yet.
func (c *EXAConf) FileVersion() string {
	return c.globalValue("ConfVersion", Version)
}

// OSDir returns the installation directory of EXAClusterOS.
func (c *EXAConf) OSDir() string {
	return suiteDir(c.vers.os) + "/EXAClusterOS-" + c.vers.os
}

// DBDir returns the installation directory of EXASolution. A non-empty
// version returns the directory of that version instead.
func (c *EXAConf) DBDir(version string) string {
	if version == "" {
		version = c.vers.db
	}
	return suiteDir(version) + "/EXASolution-" + version
}

// REDir returns the installation directory of EXARuntime.
func (c *EXAConf) REDir() string {
	return suiteDir(c.vers.re) + "/EXARuntime-" + c.vers.re
}

// GUIDir returns the web root of the GUI.
func (c *EXAConf) GUIDir() string {
	return path.Join(c.OSDir(), guiSubdir) + "/"
}

// InitCommand returns the binary and the arguments that start the node
// init process inside a container.
func (c *EXAConf) InitCommand() (string, []string) {
	return path.Join(c.REDir(), "bin/numactl"),
		[]string{"--interleave=all", path.Join(c.OSDir(), "libexec/exainit.py")}
}

// CheckImageCompat reports whether the image version stored in the file
// equals Version. Both versions are returned.
func (c *EXAConf) CheckImageCompat() (bool, string, string) {
	img := c.ImageVersion()
	return CompareVersions(Version, img) == 0, Version, img
}

// CheckUpdateNeeded compares the stored versions with the given ones (empty
// ones are skipped) and the file format version with Version. The report
// has one "- <what> version: <stored> vs. <given>" line per difference.
func (c *EXAConf) CheckUpdateNeeded(dbVersion, osVersion, reVersion, imgVersion string) (bool, string) {
	var b strings.Builder
	check := func(what, stored, given string) {
		if given != "" && CompareVersions(stored, given) != 0 {
			fmt.Fprintf(&b, "- %s version: %s vs. %s\n", what, stored, given)
		}
	}
	check("image", c.ImageVersion(), imgVersion)
	check("db", c.DBVersion(), dbVersion)
	check("os", c.OSVersion(), osVersion)
	check("re", c.REVersion(), reVersion)
	if fv := c.FileVersion(); CompareVersions(Version, fv) != 0 {
		fmt.Fprintf(&b, "- EXAConf version: %s vs. %s\n", fv, Version)
	}
	return b.Len() > 0, b.String()
}

// replaceInBuckets rewrites the AdditionalFiles of all buckets.
func (c *EXAConf) replaceInBuckets(pairs ...string) {
	for _, bfs := range c.doc.SectionsOfKind(string(KindBucketFS)) {
		for _, b := range bfs.SectionsOfKind(string(KindBucket)) {
			v, ok := b.Get("AdditionalFiles")
			if !ok {
				continue
			}
			// pairwise and in order, so that the suite/version combo wins
			for i := 0; i+1 < len(pairs); i += 2 {
				v = strings.ReplaceAll(v, pairs[i], pairs[i+1])
			}
			b.Set("AdditionalFiles", v)
		}
	}
}

// UpdateDBVersion moves all databases running the current version, the
// bucket file paths and the global DB version to version.
func (tx *Tx) UpdateDBVersion(version string) error {
	c := tx.c
	g, err := c.global()
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	cur := c.vers.db
	for _, db := range c.doc.SectionsOfKind(string(KindDB)) {
		if strings.TrimSpace(db.String("Version", "")) == cur {
			db.Set("Version", version)
		}
	}
	curSuite := "EXASuite-" + majorVersion(cur)
	curDB := "EXASolution-" + cur
	newSuite := "EXASuite-" + majorVersion(version)
	newDB := "EXASolution-" + version
	c.replaceInBuckets(curSuite+"/"+curDB, newSuite+"/"+newDB, curDB, newDB)

	g.Set("DBVersion", version)
	c.vers.db = version
	return nil
}

// UpdateOSVersion rewrites the bucket file paths and the global OS version.
func (tx *Tx) UpdateOSVersion(version string) error {
	c := tx.c
	g, err := c.global()
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	curSuite := "EXASuite-" + majorVersion(c.vers.db)
	curOS := "EXAClusterOS-" + c.vers.os
	newSuite := "EXASuite-" + majorVersion(version)
	newOS := "EXAClusterOS-" + version
	c.replaceInBuckets(curSuite+"/"+curOS, newSuite+"/"+newOS, curOS, newOS)

	g.Set("OSVersion", version)
	c.vers.os = version
	return nil
}

// UpdateREVersion sets the global runtime version.
func (tx *Tx) UpdateREVersion(version string) error {
	g, err := tx.c.global()
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	g.Set("REVersion", version)
	tx.c.vers.re = version
	return nil
}

// UpdateImageVersion sets the image version.
func (tx *Tx) UpdateImageVersion(version string) error {
	g, err := tx.c.global()
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	g.Set("ImageVersion", version)
	tx.c.vers.img = version
	return nil
}
