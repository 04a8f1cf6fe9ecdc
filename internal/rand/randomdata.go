// Package rand provides test helpers to generate random slide content.
package rand

import (
	"math/rand"
	"sync"
	"time"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	mx  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	mx.Lock()
	defer mx.Unlock()

	b := make([]byte, n)
	_, _ = rnd.Read(b)
	return b
}

// String returns a random string
func String(n int) string {
	return string(Bytes(n))
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func LetterBytes(n int) []byte {
	mx.Lock()
	defer mx.Unlock()

	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rnd.Intn(len(letterBytes))]
	}
	return b
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	return string(LetterBytes(n))
}
