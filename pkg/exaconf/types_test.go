package exaconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		first, second string
		want          int
	}{
		{"6.1.8", "6.1.8", 0},
		{"6.1.8", "6.1.10", -1},
		{"6.2.0", "6.1.10", 1},
		{"6.1.8-d1", "6.1.8", 0},
		{"6.1", "6.1.8", 0},
		{"6.x.1", "6.1.1", 0},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.first, tt.second); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.first, tt.second, got, tt.want)
		}
	}
}

func TestToNetString(t *testing.T) {
	tests := []struct {
		net     string
		id      int
		want    string
		wantErr bool
	}{
		{"10.10.10.x/24", 11, "10.10.10.11/24", false},
		{"10.10.xx.1/16", 42, "10.10.42.1/16", false},
		{"192.168.0.X/16", 13, "192.168.0.13/16", false},
		{"10.10.10.11/24", 12, "10.10.10.11/24", false},
		{"fd00::x/64", 11, "fd00::11/64", false},
		{"10.10.x/24", 11, "", true},
		{"10.10.10.x/33", 11, "", true},
	}
	for _, tt := range tests {
		got, err := ToNetString(tt.net, tt.id)
		if tt.wantErr {
			assert.Error(t, err, tt.net)
			continue
		}
		assert.NoError(t, err, tt.net)
		assert.Equal(t, tt.want, got, tt.net)
	}
}

func TestParseOwner(t *testing.T) {
	o, err := ParseOwner(" 1000 : 1005 ")
	assert.NoError(t, err)
	assert.Equal(t, Owner{UID: 1000, GID: 1005}, o)
	assert.Equal(t, "1000 : 1005", o.String())
	assert.Equal(t, "1000:1005", o.short())

	for _, s := range []string{"", "1000", "a:1", "1:b", "1:2:3"} {
		_, err := ParseOwner(s)
		assert.Error(t, err, s)
	}
}

func TestAsBool(t *testing.T) {
	for _, s := range []string{"True", "yes", " 1 ", "ON"} {
		b, err := AsBool(s)
		assert.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"False", "no", "0", "off"} {
		b, err := AsBool(s)
		assert.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := AsBool("maybe")
	assert.Error(t, err)
}

func TestEntityKindSection(t *testing.T) {
	assert.Equal(t, "Node : 11", KindNode.Section("11"))
	assert.Equal(t, "EXAVolume : DataVolume1", KindEXAVolume.Section("DataVolume1"))
}

func TestNetworkHelpers(t *testing.T) {
	assert.True(t, NetIsValid("10.0.0.0/8"))
	assert.True(t, NetIsValid("10.0.0.1"))
	assert.False(t, NetIsValid("10.0.0/8"))
	assert.True(t, IPIsValid("fd00::1"))
	assert.False(t, IPIsValid("10.0.0.1/24"))
	assert.Equal(t, 24, netPrefixLen("10.10.10.11/24"))
	assert.Equal(t, -1, netPrefixLen("garbage"))
}

func TestGenNodeUUID(t *testing.T) {
	a, b := GenNodeUUID(), GenNodeUUID()
	assert.Len(t, string(a), 40)
	assert.Regexp(t, "^[0-9A-F]{40}$", string(a))
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsImport())
}
