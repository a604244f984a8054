// Package random produces identifiers that do not need to be unguessable.
package random

import (
	"math/rand"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// String returns length characters drawn from [0-9A-Za-z]. The global
// source is seeded randomly at startup.
func String(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
