package passwd

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	p := Generate(32)
	assert.Len(t, p, 32)
	for _, c := range p {
		assert.True(t, strings.ContainsRune(alnum, c), "unexpected rune %q", c)
	}
	assert.NotEqual(t, p, Generate(32))
	assert.Equal(t, "", Generate(0))
}

func TestGenerateBase64(t *testing.T) {
	enc := GenerateBase64(22)
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	assert.Len(t, raw, 22)
}

func TestCryptKnownVectors(t *testing.T) {
	tests := []struct {
		key     string
		setting string
		want    string
	}{
		{
			key:     "Hello world!",
			setting: "$6$saltstring",
			want:    "$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1",
		},
		{
			key:     "Hello world!",
			setting: "$6$rounds=10000$saltstringsaltstring",
			want:    "$6$rounds=10000$saltstringsaltst$OW1/O6BYHV6BcXZu8QVeXbDWra3Oeqh0sbHbbMCVNSnCM/UrjmM0Dp8vOuZeHBy/YTBmSK6H9qs/y3RnOaw5v.",
		},
	}

	for _, tt := range tests {
		got, err := Crypt(tt.key, tt.setting)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCryptUnsupported(t *testing.T) {
	_, err := Crypt("secret", "$1$abc$")
	assert.Error(t, err)
}

func TestEncodeShadow(t *testing.T) {
	hash := EncodeShadow("exasol")
	assert.True(t, strings.HasPrefix(hash, "$6$"))
	assert.True(t, IsShadowEncoded(hash))

	parts := strings.Split(hash, "$")
	require.Len(t, parts, 4)
	again, err := Crypt("exasol", "$6$"+parts[2]+"$")
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.NotEqual(t, hash, EncodeShadow("exasol"))
}

func TestIsShadowEncoded(t *testing.T) {
	assert.True(t, IsShadowEncoded("$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1"))
	assert.True(t, IsShadowEncoded("$1$abcdefgh$HrC3hzEv7vqOrxHyKZEAB/"))
	assert.False(t, IsShadowEncoded("exasol"))
	assert.False(t, IsShadowEncoded("$2$abc$def"))
	assert.False(t, IsShadowEncoded(""))
}

func TestLookupNumeric(t *testing.T) {
	uid, err := LookupUID("1000")
	require.NoError(t, err)
	assert.Equal(t, 1000, uid)

	gid, err := LookupGID("0")
	require.NoError(t, err)
	assert.Equal(t, 0, gid)
}
