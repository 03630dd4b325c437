package configobj

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# cluster configuration
[Global]
    ClusterName = test
    Revision = 3
    # Comma-separated list of nameservers for this cluster.
    NameServers =

# An EXAStorage volume
[EXAVolume : DataVolume1]
    Type = data
    Size = 4 GiB
[Node : 11]
    PrivateNet = 10.10.10.11/24
    [[Disk : disk1]]
        Devices = dev.1 # must be located in /exa/data/storage
        Mapping = "dev.1:/tmp/a#b"
    [[Disk : disk2]]
        Devices = dev.2
[Users]
    [[root]]
        ID = 0
# end
`

func TestParse(t *testing.T) {
	doc, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	glob := doc.Section("Global")
	require.NotNil(t, glob)
	assert.Equal(t, []string{"ClusterName", "Revision", "NameServers"}, glob.Keys())
	assert.Equal(t, "test", glob.String("ClusterName", ""))
	v, ok := glob.Get("NameServers")
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, []string{"# Comma-separated list of nameservers for this cluster."}, glob.Comments("NameServers"))
	assert.Equal(t, []string{"# cluster configuration"}, doc.Comments("Global"))
	assert.Equal(t, []string{"", "# An EXAStorage volume"}, doc.Comments("EXAVolume : DataVolume1"))

	disk := doc.Lookup("Node : 11", "Disk : disk1")
	require.NotNil(t, disk)
	assert.Equal(t, "Disk", disk.Kind())
	assert.Equal(t, "disk1", disk.ID())
	assert.Equal(t, 2, disk.Depth())
	assert.Equal(t, "dev.1", disk.String("Devices", ""))
	assert.Equal(t, "# must be located in /exa/data/storage", disk.InlineComment("Devices"))
	assert.Equal(t, "dev.1:/tmp/a#b", disk.String("Mapping", ""))

	node := doc.Section("Node : 11")
	assert.Len(t, node.SectionsOfKind("Disk"), 2)
	assert.Len(t, doc.SectionsOfKind("Node"), 1)
	assert.Nil(t, doc.Lookup("Node : 12", "Disk : disk1"))
	assert.Equal(t, []string{"# end"}, doc.FinalComment)

	root := doc.Lookup("Users", "root")
	require.NotNil(t, root)
	assert.Equal(t, "root", root.Kind())
	assert.Equal(t, "", root.ID())
}

func TestRoundTripIsFixedPoint(t *testing.T) {
	doc, err := ParseBytes([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, sample, string(doc.Bytes()))

	doc.Section("Global").Set("Note", "  padded # value ")
	doc.Section("Global").SetComments("Note", "", "added later")
	sub, err := doc.Section("Node : 11").AddSection("Disk : disk3")
	require.NoError(t, err)
	sub.SetList("Devices", []string{"dev.3", "dev.4"}, ", ")

	once := doc.Bytes()
	reparsed, err := ParseBytes(once)
	require.NoError(t, err)
	twice := reparsed.Bytes()
	assert.Equal(t, string(once), string(twice))

	again, err := ParseBytes(twice)
	require.NoError(t, err)
	assert.Equal(t, string(twice), string(again.Bytes()))
	assert.Equal(t, "  padded # value ", again.Section("Global").String("Note", ""))
	assert.Equal(t, []string{"dev.3", "dev.4"}, again.Lookup("Node : 11", "Disk : disk3").List("Devices", ","))
}

func TestScalarsPrecedeSubsections(t *testing.T) {
	doc := New()
	node := doc.EnsureSection("Node : 11")
	disk := node.EnsureSection("Disk : disk1")
	disk.Set("Devices", "dev.1")
	node.Set("Name", "n11")

	want := "[Node : 11]\n    Name = n11\n    [[Disk : disk1]]\n        Devices = dev.1\n"
	assert.Equal(t, want, string(doc.Bytes()))
}

func TestSectionEditing(t *testing.T) {
	doc := New()
	s, err := doc.AddSection("Global")
	require.NoError(t, err)
	_, err = doc.AddSection("Global")
	assert.Error(t, err)
	_, err = doc.AddSection("  ")
	assert.Error(t, err)

	s.Set("A", "1")
	s.Set("B", "2")
	s.Set("A", "3")
	assert.Equal(t, []string{"A", "B"}, s.Keys())
	assert.Equal(t, "3", s.String("A", ""))
	assert.Equal(t, "x", s.String("C", "x"))

	assert.True(t, s.Rename("A", "C"))
	assert.Equal(t, []string{"C", "B"}, s.Keys())
	assert.False(t, s.Rename("missing", "D"))

	assert.True(t, s.Delete("C"))
	assert.False(t, s.Delete("C"))
	assert.Equal(t, []string{"B"}, s.Keys())

	assert.True(t, doc.DeleteSection("Global"))
	assert.False(t, doc.DeleteSection("Global"))
	assert.True(t, doc.Empty())
}

func TestCloneIsIndependent(t *testing.T) {
	doc, err := ParseBytes([]byte(sample))
	require.NoError(t, err)
	c := doc.Clone()
	c.Section("Global").Set("Revision", "99")
	c.Lookup("Node : 11", "Disk : disk1").Set("Devices", "dev.9")

	assert.Equal(t, "3", doc.Section("Global").String("Revision", ""))
	assert.Equal(t, "dev.1", doc.Lookup("Node : 11", "Disk : disk1").String("Devices", ""))
	assert.Same(t, c.Section("Node : 11"), c.Lookup("Node : 11", "Disk : disk1").Parent())
}

func TestReloadNormalizesValues(t *testing.T) {
	doc := New()
	s := doc.EnsureSection("Node : 11")
	s.Set("Devices", "dev.1 #'dev.1' must be located in '/exa/data/storage'")
	s.Set("Multi", "a\nb")
	require.NoError(t, doc.Reload())

	s = doc.Section("Node : 11")
	assert.Equal(t, "dev.1 #'dev.1' must be located in '/exa/data/storage'", s.String("Devices", ""))
	assert.Equal(t, "a b", s.String("Multi", ""))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"unbalanced", "[Global]]\n", 1},
		{"too deep", "[Global]\n[[[Deep]]]\n", 2},
		{"duplicate section", "[A]\n[A]\n", 2},
		{"duplicate key", "[A]\nk = 1\nk = 2\n", 3},
		{"garbage", "[A]\nnot a key value\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "EXAConf")

	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !doc.Empty() {
		t.Fatalf("ReadFile() of missing file returned content")
	}

	doc.EnsureSection("Global").Set("ClusterName", "test")
	if err := doc.WriteFile(path, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the config file, found %d entries", len(entries))
	}

	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := loaded.Section("Global").String("ClusterName", ""); got != "test" {
		t.Errorf("ClusterName = %q, want %q", got, "test")
	}
}

func TestRoundTripQuotedValues(t *testing.T) {
	values := []string{
		`a"b'c#d`,
		`"a'b`,
		`'a"b`,
		`a'b"c # d`,
		`"quoted"`,
		`'''`,
		`x"""y'z#`,
		` "pad' `,
	}
	doc := New()
	s := doc.EnsureSection("Global")
	for i, v := range values {
		s.Set(fmt.Sprintf("V%d", i), v)
	}
	s.SetInlineComment("V0", "# inline")
	require.NoError(t, doc.Check())

	once := doc.Bytes()
	reparsed, err := ParseBytes(once)
	require.NoError(t, err)
	for i, v := range values {
		assert.Equal(t, v, reparsed.Section("Global").String(fmt.Sprintf("V%d", i), ""), "value %q", v)
	}
	assert.Equal(t, "# inline", reparsed.Section("Global").InlineComment("V0"))
	assert.Equal(t, string(once), string(reparsed.Bytes()))
}

func TestCheckRejectsAmbiguousValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EXAConf")

	doc := New()
	doc.EnsureSection("Global").Set("Passwd", `"""'''#"`)
	assert.Error(t, doc.Check())
	assert.Error(t, doc.Reload())
	assert.Error(t, doc.WriteFile(path, 0600))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
