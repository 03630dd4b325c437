// Package units converts between human readable size and duration strings
// and plain numbers, in the notation used by EXAConf files.
package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	sizeRe = regexp.MustCompile(`^\s*([0-9]+)(?:[.]([0-9]+))?\s*(?:([KkMmGgTtPpEeZzYy])(i)?)?[Bb]?\s*$`)

	// exponent per unit prefix
	prefixExp = map[string]int{"": 0, "k": 1, "m": 2, "g": 3, "t": 4, "p": 5, "e": 6, "z": 7, "y": 8}

	binarySuffixes = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
)

// ToBytes parses a size such as "4 GiB", "1.5TB", "4096" or "10k" into a
// byte count. Prefixes followed by "i" are binary (1024^n), plain prefixes
// are decimal (1000^n).
func ToBytes(s string) (int64, error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("could not parse %q as number with units", s)
	}
	base := 1000.0
	if m[4] != "" {
		base = 1024.0
	}
	mult := math.Pow(base, float64(prefixExp[strings.ToLower(m[3])]))

	if m[2] == "" {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse %q as number with units: %w", s, err)
		}
		return int64(float64(n) * mult), nil
	}
	f, err := strconv.ParseFloat(m[1]+"."+m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %q as number with units: %w", s, err)
	}
	return int64(f * mult), nil
}

// MustToBytes is like ToBytes but returns 0 for unparseable input.
func MustToBytes(s string) int64 {
	n, err := ToBytes(s)
	if err != nil {
		return 0
	}
	return n
}

// FromBytes formats a byte count with binary units, e.g. 4294967296 becomes
// "4 GiB" and 1536 becomes "1.5 KiB". The output parses back with ToBytes.
func FromBytes(n int64) string {
	num := float64(n)
	for _, suffix := range binarySuffixes {
		if num < 1024.0 {
			return trimFloat(fmt.Sprintf("%3.4f", num)) + " " + suffix
		}
		num /= 1024.0
	}
	return trimFloat(fmt.Sprintf("%-3.8f", num)) + " YiB"
}

func trimFloat(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

var (
	timeScales = []struct {
		suffix  string
		seconds int64
	}{
		{"w", 7 * 24 * 60 * 60},
		{"d", 24 * 60 * 60},
		{"h", 60 * 60},
		{"m", 60},
		{"s", 1},
	}
	timeScaleRe = func() []*regexp.Regexp {
		res := make([]*regexp.Regexp, len(timeScales))
		for i, ts := range timeScales {
			res[i] = regexp.MustCompile(`^(([0-9]+)` + ts.suffix + `\s*)`)
		}
		return res
	}()
)

// ToSeconds converts "<n>w <n>d <n>h <n>m <n>s" (each part optional, in that
// order) or a bare number of seconds into seconds. It returns -1 if the
// string cannot be parsed completely.
func ToSeconds(s string) int64 {
	intervals := make([]int64, len(timeScales))
	for i, re := range timeScaleRe {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return -1
		}
		intervals[i] = n
		s = s[len(m[1]):]
	}
	if len(s) > 0 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return -1
		}
		intervals[len(intervals)-1] = n
	}
	var total int64
	for i, ts := range timeScales {
		total += ts.seconds * intervals[i]
	}
	return total
}

// FromSeconds is the inverse of ToSeconds, e.g. 93784 becomes "1d 2h 3m 4s".
func FromSeconds(sec int64) string {
	if sec <= 0 {
		return "0"
	}
	var parts []string
	for _, ts := range timeScales {
		if n := sec / ts.seconds; n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+ts.suffix)
			sec -= n * ts.seconds
		}
	}
	return strings.Join(parts, " ")
}
