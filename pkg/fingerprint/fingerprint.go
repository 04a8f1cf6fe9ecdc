// Package fingerprint computes blake2b-256 digests identifying slide
// payloads. Slides hashing to the same fingerprint are the same slide,
// wherever they appear.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"io"

	units "github.com/docker/go-units"
	blake2b "github.com/minio/blake2b-simd"
)

const (
	// KeySize for blake2b-256 digests
	KeySize = 32

	// KeySizeHex for the hex representation of a key
	KeySizeHex = 2 * KeySize
)

// Key identifies a blob by the digest of its payload
type Key [KeySize]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the key is the zero digest
func (k Key) IsZero() bool {
	return k == Key{}
}

// NewKey creates a new key from raw digest bytes
func NewKey(data []byte) (Key, error) {
	var k Key
	if len(data) != KeySize {
		return Key{}, &BadKeySize{Key: data}
	}
	copy(k[:], data)
	return k, nil
}

// MustNewKey creates a new key from raw digest bytes but panics if there is an error
func MustNewKey(data []byte) Key {
	k, e := NewKey(data)
	if e != nil {
		panic(e.Error())
	}
	return k
}

// KeyFromString parses a hex encoded key
func KeyFromString(s string) (Key, error) {
	if len(s) != KeySizeHex {
		return Key{}, &BadKeySize{Key: []byte(s)}
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %v", s, err)
	}
	return NewKey(data)
}

// BadKeySize is an error that's returned when the key to create has an invalid size.
type BadKeySize struct {
	Key []byte
}

func (b *BadKeySize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Key, len(b.Key), KeySize)
}

// Option to tune the fingerprint maker
type Option func(*Maker)

// BufferSize sets the copy buffer size used while hashing streams
func BufferSize(sz int64) Option {
	return func(m *Maker) {
		if sz > 0 {
			m.bufferSize = sz
		}
	}
}

// New builds a fingerprint maker
func New(opts ...Option) *Maker {
	m := &Maker{
		bufferSize: int64(units.MB),
	}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Maker computes fingerprints of blob payloads
type Maker struct {
	bufferSize int64
}

// Process consumes the reader and returns the fingerprint of its payload
func (m *Maker) Process(r io.Reader) (Key, error) {
	hasher := blake2b.New256()
	buffer := make([]byte, m.bufferSize)
	if _, err := io.CopyBuffer(hasher, r, buffer); err != nil {
		return Key{}, err
	}
	return NewKey(hasher.Sum(nil))
}

// Sum computes the fingerprint of an in-memory payload
func Sum(data []byte) Key {
	return blake2b.Sum256(data)
}
