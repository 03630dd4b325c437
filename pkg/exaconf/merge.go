package exaconf

import (
	"strconv"

	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/metrics"
)

// Merge replaces the content with the copy that has the highest revision
// and merges the node UUIDs of all others into it, then commits.
//
// With allowSelf this copy can be the reference if no other has a higher
// revision. Without it another copy with an equal or higher revision is
// required. force ignores the own revision, so some other copy is always
// picked. A UUID conflict aborts the merge before anything is changed.
func (c *EXAConf) Merge(others []*EXAConf, allowSelf, force bool) error {
	if _, err := c.global(); err != nil {
		return err
	}

	var ref *EXAConf
	if allowSelf {
		ref = c
	}
	maxRev := c.Revision()
	if force {
		maxRev = 0
	}
	for _, o := range others {
		rev := o.Revision()
		if (allowSelf && rev > maxRev) || (!allowSelf && rev >= maxRev) {
			maxRev = rev
			ref = o
		}
	}
	if ref == nil {
		metrics.ExaconfMerges.WithLabelValues("conflict").Inc()
		return &MergeConflictError{Msg: "failed to select a reference (no copy has a revision >= " +
			strconv.Itoa(c.Revision()) + "), this has to be fixed manually"}
	}

	doc := ref.doc.Clone()
	if err := mergeNodeUUIDs(doc, others); err != nil {
		metrics.ExaconfMerges.WithLabelValues("conflict").Inc()
		return err
	}

	if ref != c {
		c.logger.Info().Str("reference", ref.confPath).Int("revision", maxRev).Msg("Merging EXAConf")
	}
	c.doc = doc
	c.vers = defaultVersions()
	c.loadVersions()
	if err := c.Commit(); err != nil {
		metrics.ExaconfMerges.WithLabelValues("error").Inc()
		return err
	}
	metrics.ExaconfMerges.WithLabelValues("ok").Inc()
	return nil
}

// mergeNodeUUIDs replaces IMPORT UUIDs in doc with the concrete UUID of the
// same node in another copy. Two different concrete UUIDs are a conflict.
func mergeNodeUUIDs(doc *configobj.Document, others []*EXAConf) error {
	for _, sec := range doc.SectionsOfKind(string(KindNode)) {
		for _, o := range others {
			osec := o.doc.Section(sec.Name())
			if osec == nil {
				continue
			}
			local := NodeUUID(sec.String("UUID", ""))
			other := NodeUUID(osec.String("UUID", ""))
			if other.IsImport() {
				continue
			}
			if local.IsImport() {
				sec.Set("UUID", string(other))
			} else if local != other {
				id, _ := strconv.Atoi(sec.ID())
				return &MergeConflictError{NodeID: id, Local: string(local), Other: string(other)}
			}
		}
	}
	return nil
}
