// Package passwd generates passwords and keys for EXAConf entities and
// encodes login passwords for /etc/shadow.
package passwd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"os/user"
	"regexp"
	"strconv"
)

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var shadowRe = regexp.MustCompile(`^\$(1|5|6)\$(rounds=[0-9]+\$)?[^$]+\$[./0-9A-Za-z]+$`)

// Generate returns a random alphanumeric password of the given length.
func Generate(length int) string {
	return randomString(alnum, length)
}

// GenerateBase64 returns the base64 encoding of a random alphanumeric
// password of the given length. Bucket passwords and BucketFS sync keys are
// stored this way.
func GenerateBase64(length int) string {
	return base64.StdEncoding.EncodeToString([]byte(Generate(length)))
}

// IsShadowEncoded reports whether s already looks like a crypt(3) hash
// (MD5, SHA-256 or SHA-512 variant).
func IsShadowEncoded(s string) bool {
	return shadowRe.MatchString(s)
}

// LookupUID resolves a user name or a numeric string to a UID.
func LookupUID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up user %q: %w", name, err)
	}
	return strconv.Atoi(u.Uid)
}

// LookupGID resolves a group name or a numeric string to a GID.
func LookupGID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("failed to look up group %q: %w", name, err)
	}
	return strconv.Atoi(g.Gid)
}

func randomString(charset string, length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}
