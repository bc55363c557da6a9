package crypt

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// IVSource produces 16-byte initialization vectors.
type IVSource interface {
	NextIV() ([]byte, error)
}

type readerIVSource struct {
	r io.Reader
}

// RandomIVSource returns an IVSource backed by crypto/rand.
func RandomIVSource() IVSource {
	return readerIVSource{r: rand.Reader}
}

// ReaderIVSource returns an IVSource that reads each IV from r. It is meant
// for deterministic tests and for callers with their own entropy source.
func ReaderIVSource(r io.Reader) IVSource {
	return readerIVSource{r: r}
}

func (s readerIVSource) NextIV() ([]byte, error) {
	iv := make([]byte, BlockSize)
	if _, err := io.ReadFull(s.r, iv); err != nil {
		return nil, fmt.Errorf("crypt: reading IV: %w", err)
	}
	return iv, nil
}

// ivCounter is shared by every CounterIVSource in the process.
var ivCounter atomic.Uint64

// CounterIVSource derives IVs by hashing the wall clock, the process id, a
// per-source seed and a process-wide counter. Consecutive IVs are distinct
// but predictable: it is NOT a cryptographically secure source and must not
// be used where IV unpredictability matters.
type CounterIVSource struct {
	seed maphash.Seed
}

// NewCounterIVSource returns a CounterIVSource with a fresh seed.
func NewCounterIVSource() *CounterIVSource {
	return &CounterIVSource{seed: maphash.MakeSeed()}
}

// NextIV never fails.
func (s *CounterIVSource) NextIV() ([]byte, error) {
	var h maphash.Hash
	h.SetSeed(s.seed)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(os.Getpid()))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], ivCounter.Add(1))
	h.Write(buf[:])

	return expandSeed(h.Sum64()), nil
}

// expandSeed spreads a 64-bit seed over 16 bytes. Every seed bit lands in at
// least one output byte, so distinct seeds give distinct IVs.
func expandSeed(seed uint64) []byte {
	iv := make([]byte, BlockSize)
	for i := range iv {
		iv[i] = byte(seed>>(4*i)) ^ byte(i)
	}
	return iv
}
