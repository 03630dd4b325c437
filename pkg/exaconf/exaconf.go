package exaconf

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/cuemby/exadt/pkg/metrics"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// EXAConf gives typed access to an EXAConf file. A value must not be used
// from multiple goroutines.
type EXAConf struct {
	root     string
	confPath string
	doc      *configobj.Document
	vers     versions
	logger   zerolog.Logger
}

type options struct {
	filename           string
	requireInitialized bool
}

// Option configures Open.
type Option func(*options)

// WithFilename reads the given file inside the root directory instead of
// "EXAConf".
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// RequireInitialized makes Open fail if the file doesn't exist.
func RequireInitialized() Option {
	return func(o *options) { o.requireInitialized = true }
}

// Open reads the EXAConf file in root. An initialized file has its
// integrity checked and is validated unless it needs a migration.
func Open(root string, opts ...Option) (*EXAConf, error) {
	o := options{filename: DefaultFilename}
	for _, opt := range opts {
		opt(&o)
	}

	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, configErrorf("root directory '%s' does not exist (or is a file)", root)
	}
	confPath := filepath.Join(root, o.filename)
	if o.requireInitialized {
		if _, err := os.Stat(confPath); err != nil {
			return nil, configErrorf("EXAConf file '%s' does not exist, has the cluster been initialized?", confPath)
		}
	}

	doc, err := configobj.ReadFile(confPath)
	if err != nil {
		return nil, configErrorf("failed to read '%s': %v", confPath, err)
	}

	c := &EXAConf{
		root:     root,
		confPath: confPath,
		doc:      doc,
		vers:     defaultVersions(),
		logger:   log.WithComponent("exaconf").With().Str("path", confPath).Logger(),
	}

	if c.Initialized() {
		if err := c.CheckIntegrity(); err != nil {
			return nil, err
		}
		if c.current() {
			if err := c.Validate(); err != nil {
				return nil, err
			}
		}
		c.loadVersions()
	}
	return c, nil
}

// Root returns the directory containing the file.
func (c *EXAConf) Root() string { return c.root }

// Path returns the path of the file.
func (c *EXAConf) Path() string { return c.confPath }

// Document exposes the underlying document for read-only inspection.
func (c *EXAConf) Document() *configobj.Document { return c.doc }

// Initialized reports whether the document has a Global section.
func (c *EXAConf) Initialized() bool {
	return c.doc.Section("Global") != nil
}

func (c *EXAConf) global() (*configobj.Section, error) {
	g := c.doc.Section("Global")
	if g == nil {
		return nil, configErrorf("configuration is not initialized, use 'init-cluster' in order to initialize it")
	}
	return g, nil
}

// globalValue returns a Global key or def if the key or section is missing.
func (c *EXAConf) globalValue(key, def string) string {
	if g := c.doc.Section("Global"); g != nil {
		return g.String(key, def)
	}
	return def
}

// Revision returns the stored revision or 0.
func (c *EXAConf) Revision() int {
	rev, err := strconv.Atoi(strings.TrimSpace(c.globalValue("Revision", "0")))
	if err != nil {
		return 0
	}
	return rev
}

// Checksum returns the mode and the raw stored checksum ("NONE" if the key
// is missing).
func (c *EXAConf) Checksum() (ChecksumMode, string) {
	raw := c.globalValue("Checksum", checksumNone)
	return parseChecksumMode(raw), raw
}

// ComputeChecksum returns the MD5 digest of the serialized document with
// Revision and Checksum replaced by a placeholder. Nothing is stored.
func (c *EXAConf) ComputeChecksum() string {
	tmp := c.doc.Clone()
	g := tmp.EnsureSection("Global")
	g.Set("Revision", placeholder)
	g.Set("Checksum", placeholder)
	sum := md5.Sum(tmp.Bytes())
	return hex.EncodeToString(sum[:])
}

// CheckIntegrity compares the stored checksum with the content. "NONE" is
// ignored, "DISABLED" only logs a warning and "COMMIT" commits the current
// content.
func (c *EXAConf) CheckIntegrity() error {
	mode, stored := c.Checksum()
	switch mode {
	case ChecksumNone:
		return nil
	case ChecksumDisabled:
		c.logger.Warn().Msg("Integrity check is disabled")
		return nil
	case ChecksumCommit:
		return c.Commit()
	}
	if computed := c.ComputeChecksum(); computed != stored {
		metrics.ExaconfIntegrityFailures.Inc()
		return newIntegrityError(stored, computed)
	}
	return nil
}

// Commit updates checksum and revision, writes the file with mode 0600 and
// reloads it. The revision only changes if the content did, except with a
// disabled checksum where every commit counts.
func (c *EXAConf) Commit() error {
	g, err := c.global()
	if err != nil {
		return err
	}

	if err := c.doc.Check(); err != nil {
		return configErrorf("can't write '%s': %v", c.confPath, err)
	}

	mode, stored := c.Checksum()
	if mode == ChecksumDisabled {
		g.Set("Revision", strconv.Itoa(c.Revision()+1))
	} else if sum := c.ComputeChecksum(); stored != sum {
		g.Set("Revision", strconv.Itoa(c.Revision()+1))
		g.Set("Checksum", sum)
	}

	if err := c.doc.WriteFile(c.confPath, 0600); err != nil {
		return configErrorf("failed to write '%s': %v", c.confPath, err)
	}
	if err := c.doc.Reload(); err != nil {
		return configErrorf("failed to reload '%s': %v", c.confPath, err)
	}

	metrics.ExaconfCommits.Inc()
	metrics.ExaconfRevision.WithLabelValues(c.ClusterName()).Set(float64(c.Revision()))
	c.logger.Debug().Int("revision", c.Revision()).Msg("Committed EXAConf")
	return nil
}

// Revert drops all uncommitted changes by reading the file again.
func (c *EXAConf) Revert() error {
	doc, err := configobj.ReadFile(c.confPath)
	if err != nil {
		return configErrorf("failed to read '%s': %v", c.confPath, err)
	}
	c.doc = doc
	c.vers = defaultVersions()
	if c.Initialized() {
		c.loadVersions()
	}
	return nil
}

// Clear drops all content and writes the empty file.
func (c *EXAConf) Clear() error {
	c.doc.Reset()
	if err := c.doc.WriteFile(c.confPath, 0600); err != nil {
		return configErrorf("failed to write '%s': %v", c.confPath, err)
	}
	c.vers = defaultVersions()
	c.logger.Info().Msg("Cleared configuration")
	return nil
}

// WriteCopy writes the current content to path without touching checksum
// or revision.
func (c *EXAConf) WriteCopy(path string) error {
	if err := c.doc.WriteFile(path, 0600); err != nil {
		return fmt.Errorf("failed to write copy of EXAConf: %w", err)
	}
	return nil
}

// Tx groups mutations that are committed together.
type Tx struct {
	c *EXAConf
}

// Conf returns the EXAConf the transaction works on, for reads that must
// see uncommitted changes.
func (tx *Tx) Conf() *EXAConf { return tx.c }

// Update runs fn and commits once if it succeeds. If fn fails, the
// in-memory document is reverted from disk and nothing is written.
func (c *EXAConf) Update(fn func(*Tx) error) error {
	if _, err := c.global(); err != nil {
		return err
	}
	err := fn(&Tx{c: c})
	if err == nil && c.current() {
		err = c.Validate()
	}
	if err == nil {
		if cerr := c.doc.Check(); cerr != nil {
			err = configErrorf("%v", cerr)
		}
	}
	if err != nil {
		if rerr := c.Revert(); rerr != nil {
			return multierr.Append(err, rerr)
		}
		return err
	}
	return c.Commit()
}

// current reports whether the file has the format of this version. Older
// files are validated after UpdateSelf.
func (c *EXAConf) current() bool {
	return CompareVersions(Version, c.FileVersion()) <= 0
}
