// Package util provides shared utility functions.
package util

import (
	"crypto/rand"
	"math/big"
)

// tokenAlphabet omits characters that are easy to confuse when read aloud or
// retyped (0/O, 1/I).
const tokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomToken returns a random string of the given length drawn from
// tokenAlphabet. Used for peer ids, invite ids, room codes and secrets.
func RandomToken(length int) string {
	out := make([]byte, length)
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out)
}
