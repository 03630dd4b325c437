package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "4096", want: 4096},
		{in: "4 GiB", want: 4 * 1024 * 1024 * 1024},
		{in: "4GiB", want: 4 * 1024 * 1024 * 1024},
		{in: "  256 KiB ", want: 256 * 1024},
		{in: "1.5 KiB", want: 1536},
		{in: "10k", want: 10000},
		{in: "2 TB", want: 2 * 1000 * 1000 * 1000 * 1000},
		{in: "64 MiB", want: 64 * 1024 * 1024},
		{in: "7 B", want: 7},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "-4 GiB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToBytes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{4096, "4 KiB"},
		{262144, "256 KiB"},
		{4 * 1024 * 1024 * 1024, "4 GiB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3 TiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FromBytes(tt.in), "FromBytes(%d)", tt.in)
	}
}

func TestFromBytesParsesBack(t *testing.T) {
	for _, n := range []int64{4096, 65536, 262144, 6 * 1024 * 1024 * 1024} {
		got, err := ToBytes(FromBytes(n))
		assert.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestToSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"30", 30},
		{"5s", 5},
		{"2m", 120},
		{"1w 2d 3h 4m 5s", 7*86400 + 2*86400 + 3*3600 + 4*60 + 5},
		{"1d 10", 86410},
		{"3h", 10800},
		{"1x", -1},
		{"d1", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToSeconds(tt.in), "ToSeconds(%q)", tt.in)
	}
}

func TestFromSeconds(t *testing.T) {
	assert.Equal(t, "0", FromSeconds(0))
	assert.Equal(t, "1d 2h 3m 4s", FromSeconds(93784))
	assert.Equal(t, "1w", FromSeconds(604800))
	assert.Equal(t, int64(93784), ToSeconds(FromSeconds(93784)))
}
