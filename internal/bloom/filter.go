// Package bloom builds per-column membership filters over dictionary
// surrogate keys. A segment reader can test a key against the filter and
// skip the segment entirely when the filter rules the key out; a positive
// answer may still be wrong, a negative answer never is.
package bloom

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter is a bloom filter keyed by uint32 surrogate keys.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with the given number of bits and hash functions.
// Non-positive arguments fall back to 1024 bits and 7 hashes.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to whole 64-bit words.
	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates sizes a filter for the expected number of distinct
// keys and a target false positive rate.
func NewWithEstimates(expectedKeys int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedKeys, targetFPR)
	return New(numBits, numHashes)
}

// OptimalParameters computes filter sizing for an expected key count and
// target false positive rate:
//
//	m = -n * ln(p) / (ln(2)^2)  bits
//	k = (m/n) * ln(2)           hash functions
func OptimalParameters(expectedKeys int, targetFPR float64) (numBits, numHashes int) {
	if expectedKeys <= 0 {
		expectedKeys = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedKeys)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add records a surrogate key in the filter.
func (f *Filter) Add(key uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h1, h2 := hashKey(key)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// MightContain reports whether key may have been added. False means the
// key was definitely never added.
func (f *Filter) MightContain(key uint32) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h1, h2 := hashKey(key)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// hashKey computes the murmur3 128-bit hash of a key's 4-byte encoding.
func hashKey(key uint32) (uint64, uint64) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)
	h := murmur3.New128()
	h.Write(buf[:])
	return h.Sum128()
}

// NumBits returns the number of bits in the filter.
func (f *Filter) NumBits() int {
	return int(f.numBits)
}

// NumHashes returns the number of hash functions used.
func (f *Filter) NumHashes() int {
	return int(f.numHashes)
}

// Count returns the number of keys added.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// FalsePositiveRate estimates the current false positive rate from the
// fill level: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}
