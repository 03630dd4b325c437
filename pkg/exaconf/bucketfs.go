package exaconf

import (
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/configobj"
	"github.com/cuemby/exadt/pkg/passwd"
)

func (c *EXAConf) bucketFSSection(name string) *configobj.Section {
	return c.doc.Section(KindBucketFS.Section(name))
}

// BucketFS returns all bucket filesystems with their buckets.
func (c *EXAConf) BucketFS() ([]BucketFSConfig, error) {
	var out []BucketFSConfig
	for _, sec := range c.doc.SectionsOfKind(string(KindBucketFS)) {
		bfs := BucketFSConfig{
			Name:       sec.ID(),
			SyncKey:    sec.String("SyncKey", ""),
			SyncPeriod: sec.String("SyncPeriod", DefaultSyncPeriod),
			Path:       sec.String("Path", ""),
		}
		var err error
		if bfs.Owner, err = ParseOwner(sec.String("Owner", "")); err != nil {
			return nil, err
		}
		if bfs.HTTPPort, err = strconv.Atoi(strings.TrimSpace(sec.String("HttpPort", "0"))); err != nil {
			return nil, configErrorf("invalid HttpPort in BucketFS '%s'", bfs.Name)
		}
		if bfs.HTTPSPort, err = strconv.Atoi(strings.TrimSpace(sec.String("HttpsPort", "0"))); err != nil {
			return nil, configErrorf("invalid HttpsPort in BucketFS '%s'", bfs.Name)
		}
		for _, bsec := range sec.SectionsOfKind(string(KindBucket)) {
			b := BucketConfig{
				Name:            bsec.ID(),
				ReadPasswd:      bsec.String("ReadPasswd", ""),
				WritePasswd:     bsec.String("WritePasswd", ""),
				AdditionalFiles: bsec.List("AdditionalFiles", ","),
			}
			if b.Public, err = AsBool(bsec.String("Public", "False")); err != nil {
				return nil, err
			}
			bfs.Buckets = append(bfs.Buckets, b)
		}
		out = append(out, bfs)
	}
	return out, nil
}

// AddBucketFS adds a bucket filesystem. An empty sync key is generated.
func (tx *Tx) AddBucketFS(spec BucketFSSpec) error {
	c := tx.c
	if spec.Name == "" {
		return configErrorf("BucketFS name must not be empty")
	}
	if c.bucketFSSection(spec.Name) != nil {
		return configErrorf("BucketFS '%s' already exists", spec.Name)
	}
	if err := c.checkOwner("BucketFS", spec.Name, spec.Owner); err != nil {
		return err
	}
	syncKey := spec.SyncKey
	if syncKey == "" {
		syncKey = passwd.GenerateBase64(32)
	}
	syncPeriod := spec.SyncPeriod
	if syncPeriod == "" {
		syncPeriod = DefaultSyncPeriod
	}

	name := KindBucketFS.Section(spec.Name)
	sec, err := c.doc.AddSection(name)
	if err != nil {
		return configErrorf("can't add BucketFS '%s': %v", spec.Name, err)
	}
	sec.Set("Owner", spec.Owner.short())
	sec.Set("HttpPort", strconv.Itoa(spec.HTTPPort))
	sec.SetComments("HttpPort", "HTTP port number (0 = disabled)")
	sec.Set("HttpsPort", strconv.Itoa(spec.HTTPSPort))
	sec.SetComments("HttpsPort", "HTTPS port number (0 = disabled)")
	sec.Set("SyncKey", syncKey)
	sec.Set("SyncPeriod", syncPeriod)
	if spec.Path != "" {
		sec.Set("Path", spec.Path)
		sec.SetComments("Path", "OPTIONAL: path to this BucketFS (default: /exa/data/bucketfs)")
	}
	if spec.Name == DefaultBucketFS {
		c.doc.SetComments(name, "", "The default BucketFS (auto-generated)")
	} else {
		c.doc.SetComments(name, "")
	}
	return nil
}

// RemoveBucketFS removes a bucket filesystem and its buckets.
func (tx *Tx) RemoveBucketFS(name string) error {
	if !tx.c.doc.DeleteSection(KindBucketFS.Section(name)) {
		return configErrorf("BucketFS '%s' can't be removed because it does not exist", name)
	}
	return nil
}

// SetBucketFSConf changes a bucket filesystem or all of them with the
// wildcard. A missing one is added if the update carries an owner.
func (tx *Tx) SetBucketFSConf(name string, upd BucketFSUpdate) error {
	c := tx.c
	if !isWildcard(name) && c.bucketFSSection(name) == nil {
		if upd.Owner == nil {
			return configErrorf("BucketFS '%s' does not exist and can't be created without an owner", name)
		}
		spec := BucketFSSpec{Name: name, Owner: *upd.Owner}
		if upd.HTTPPort != nil {
			spec.HTTPPort = *upd.HTTPPort
		}
		if upd.HTTPSPort != nil {
			spec.HTTPSPort = *upd.HTTPSPort
		}
		if upd.SyncKey != nil {
			spec.SyncKey = *upd.SyncKey
		}
		if upd.SyncPeriod != nil {
			spec.SyncPeriod = *upd.SyncPeriod
		}
		if upd.Path != nil {
			spec.Path = *upd.Path
		}
		return tx.AddBucketFS(spec)
	}

	for _, sec := range c.doc.SectionsOfKind(string(KindBucketFS)) {
		if !isWildcard(name) && sec.ID() != name {
			continue
		}
		if upd.Owner != nil {
			if err := c.checkOwner("BucketFS", sec.ID(), *upd.Owner); err != nil {
				return err
			}
			sec.Set("Owner", upd.Owner.short())
		}
		if upd.HTTPPort != nil {
			sec.Set("HttpPort", strconv.Itoa(*upd.HTTPPort))
		}
		if upd.HTTPSPort != nil {
			sec.Set("HttpsPort", strconv.Itoa(*upd.HTTPSPort))
		}
		if upd.SyncKey != nil {
			sec.Set("SyncKey", *upd.SyncKey)
		}
		if upd.SyncPeriod != nil {
			sec.Set("SyncPeriod", *upd.SyncPeriod)
		}
		if upd.Path != nil {
			sec.Set("Path", *upd.Path)
		}
	}
	return nil
}

func (c *EXAConf) mustBucketFSSection(bfs string) (*configobj.Section, error) {
	sec := c.bucketFSSection(bfs)
	if sec == nil {
		return nil, configErrorf("BucketFS '%s' does not exist", bfs)
	}
	return sec, nil
}

// AddBucket adds a bucket to a bucket filesystem. Empty passwords are
// generated.
func (tx *Tx) AddBucket(bfs string, spec BucketSpec) error {
	bsec, err := tx.c.mustBucketFSSection(bfs)
	if err != nil {
		return err
	}
	if spec.Name == "" {
		return configErrorf("bucket name must not be empty")
	}
	name := KindBucket.Section(spec.Name)
	if bsec.Section(name) != nil {
		return configErrorf("bucket '%s' already exists in BucketFS '%s'", spec.Name, bfs)
	}
	readPw, writePw := spec.ReadPasswd, spec.WritePasswd
	if readPw == "" {
		readPw = passwd.GenerateBase64(32)
	}
	if writePw == "" {
		writePw = passwd.GenerateBase64(32)
	}

	sec, err := bsec.AddSection(name)
	if err != nil {
		return configErrorf("can't add bucket '%s': %v", spec.Name, err)
	}
	sec.Set("ReadPasswd", readPw)
	sec.Set("WritePasswd", writePw)
	sec.Set("Public", boolStr(spec.Public))
	if len(spec.AdditionalFiles) > 0 {
		sec.SetList("AdditionalFiles", spec.AdditionalFiles, ", ")
	}
	return nil
}

// RemoveBucket removes a bucket from a bucket filesystem.
func (tx *Tx) RemoveBucket(bfs, bucket string) error {
	bsec, err := tx.c.mustBucketFSSection(bfs)
	if err != nil {
		return err
	}
	if !bsec.DeleteSection(KindBucket.Section(bucket)) {
		return configErrorf("bucket '%s' does not exist in BucketFS '%s'", bucket, bfs)
	}
	return nil
}

// SetBucketConf changes a bucket or all buckets of the bucket filesystem
// with the wildcard. A missing bucket is added.
func (tx *Tx) SetBucketConf(bfs, bucket string, upd BucketUpdate) error {
	bsec, err := tx.c.mustBucketFSSection(bfs)
	if err != nil {
		return err
	}
	if !isWildcard(bucket) && bsec.Section(KindBucket.Section(bucket)) == nil {
		spec := BucketSpec{Name: bucket, AdditionalFiles: upd.AdditionalFiles}
		if upd.Public != nil {
			spec.Public = *upd.Public
		}
		if upd.ReadPasswd != nil {
			spec.ReadPasswd = *upd.ReadPasswd
		}
		if upd.WritePasswd != nil {
			spec.WritePasswd = *upd.WritePasswd
		}
		return tx.AddBucket(bfs, spec)
	}

	for _, sec := range bsec.SectionsOfKind(string(KindBucket)) {
		if !isWildcard(bucket) && sec.ID() != bucket {
			continue
		}
		if upd.Public != nil {
			sec.Set("Public", boolStr(*upd.Public))
		}
		if upd.ReadPasswd != nil {
			sec.Set("ReadPasswd", *upd.ReadPasswd)
		}
		if upd.WritePasswd != nil {
			sec.Set("WritePasswd", *upd.WritePasswd)
		}
		if upd.AdditionalFiles != nil {
			setListOrDelete(sec, "AdditionalFiles", upd.AdditionalFiles)
		}
	}
	return nil
}
