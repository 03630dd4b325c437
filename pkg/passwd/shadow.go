package passwd

import (
	"crypto/sha512"
	"fmt"
	"strconv"
	"strings"
)

const (
	cryptAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	sha512Prefix  = "$6$"
	roundsPrefix  = "rounds="

	defaultRounds = 5000
	minRounds     = 1000
	maxRounds     = 999999999
	maxSaltLen    = 16
)

// EncodeShadow hashes passwd with SHA-512 crypt and a random salt. The result
// can be written to /etc/shadow as is.
func EncodeShadow(passwd string) string {
	hash, _ := Crypt(passwd, sha512Prefix+randomString(cryptAlphabet, maxSaltLen)+"$")
	return hash
}

// Crypt computes the SHA-512 crypt(3) hash of key using the given setting
// ("$6$salt$" or "$6$rounds=N$salt$").
func Crypt(key, setting string) (string, error) {
	if !strings.HasPrefix(setting, sha512Prefix) {
		return "", fmt.Errorf("unsupported crypt setting %q", setting)
	}
	rest := setting[len(sha512Prefix):]

	rounds := defaultRounds
	customRounds := false
	if strings.HasPrefix(rest, roundsPrefix) {
		end := strings.IndexByte(rest, '$')
		if end < 0 {
			return "", fmt.Errorf("invalid crypt setting %q", setting)
		}
		n, err := strconv.Atoi(rest[len(roundsPrefix):end])
		if err != nil {
			return "", fmt.Errorf("invalid rounds in crypt setting %q: %w", setting, err)
		}
		rounds = min(max(n, minRounds), maxRounds)
		customRounds = true
		rest = rest[end+1:]
	}

	salt := rest
	if i := strings.IndexByte(salt, '$'); i >= 0 {
		salt = salt[:i]
	}
	if len(salt) > maxSaltLen {
		salt = salt[:maxSaltLen]
	}

	sum := sha512Crypt([]byte(key), []byte(salt), rounds)

	var b strings.Builder
	b.WriteString(sha512Prefix)
	if customRounds {
		b.WriteString(roundsPrefix + strconv.Itoa(rounds) + "$")
	}
	b.WriteString(salt)
	b.WriteByte('$')
	b.WriteString(encodeSHA512(sum))
	return b.String(), nil
}

func sha512Crypt(key, salt []byte, rounds int) []byte {
	alt := sha512.New()
	alt.Write(key)
	alt.Write(salt)
	alt.Write(key)
	altSum := alt.Sum(nil)

	a := sha512.New()
	a.Write(key)
	a.Write(salt)
	n := len(key)
	for ; n > 64; n -= 64 {
		a.Write(altSum)
	}
	a.Write(altSum[:n])
	for n = len(key); n > 0; n >>= 1 {
		if n&1 != 0 {
			a.Write(altSum)
		} else {
			a.Write(key)
		}
	}
	aSum := a.Sum(nil)

	dp := sha512.New()
	for range key {
		dp.Write(key)
	}
	pSeq := repeatTo(dp.Sum(nil), len(key))

	ds := sha512.New()
	for i := 0; i < 16+int(aSum[0]); i++ {
		ds.Write(salt)
	}
	sSeq := repeatTo(ds.Sum(nil), len(salt))

	c := aSum
	for i := 0; i < rounds; i++ {
		h := sha512.New()
		if i&1 != 0 {
			h.Write(pSeq)
		} else {
			h.Write(c)
		}
		if i%3 != 0 {
			h.Write(sSeq)
		}
		if i%7 != 0 {
			h.Write(pSeq)
		}
		if i&1 != 0 {
			h.Write(c)
		} else {
			h.Write(pSeq)
		}
		c = h.Sum(nil)
	}
	return c
}

func repeatTo(digest []byte, length int) []byte {
	out := make([]byte, 0, length)
	for len(out)+len(digest) <= length {
		out = append(out, digest...)
	}
	return append(out, digest[:length-len(out)]...)
}

// byte triplets in the order crypt(3) emits them for SHA-512
var sha512Order = [21][3]int{
	{0, 21, 42}, {22, 43, 1}, {44, 2, 23}, {3, 24, 45}, {25, 46, 4},
	{47, 5, 26}, {6, 27, 48}, {28, 49, 7}, {50, 8, 29}, {9, 30, 51},
	{31, 52, 10}, {53, 11, 32}, {12, 33, 54}, {34, 55, 13}, {56, 14, 35},
	{15, 36, 57}, {37, 58, 16}, {59, 17, 38}, {18, 39, 60}, {40, 61, 19},
	{62, 20, 41},
}

func encodeSHA512(sum []byte) string {
	var b strings.Builder
	put := func(b2, b1, b0 byte, n int) {
		w := uint(b2)<<16 | uint(b1)<<8 | uint(b0)
		for ; n > 0; n-- {
			b.WriteByte(cryptAlphabet[w&0x3f])
			w >>= 6
		}
	}
	for _, o := range sha512Order {
		put(sum[o[0]], sum[o[1]], sum[o[2]], 4)
	}
	put(0, 0, sum[63], 2)
	return b.String()
}
