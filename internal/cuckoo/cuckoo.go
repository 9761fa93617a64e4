package cuckoo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/optable/silentot/internal/block"
	"github.com/optable/silentot/internal/crypto"
	"github.com/optable/silentot/internal/hash"
)

const (
	// HashNum is the number of hash functions of the cuckoo table.
	HashNum = 3
	// TrialNum is the total eviction budget across one table before
	// insertion is declared failed.
	TrialNum = 200
	// Factor is the capacity overhead of the table, bins per item,
	// keeping the failure probability negligible at our loads.
	Factor = 1.5
)

var (
	ErrInsertionFailed = errors.New("cuckoo insertion exhausted the eviction budget")
	ErrTableFull       = errors.New("cuckoo table already holds its declared item count")
)

// Hasher derives the candidate bins of sparse indices. Both parties
// of a multi point OT build identical Hashers from the shared hash
// seed, so position to bin mappings agree without communication.
type Hasher struct {
	binCount uint64
	hashers  [HashNum]hash.Hasher
}

// NewHasher builds the three seeded hash functions for a table of
// size items, deriving their salts deterministically from seed.
func NewHasher(size uint64, seed block.Block) (*Hasher, error) {
	prg := crypto.NewPRG(seed)
	salts := make([]byte, HashNum*hash.SaltLength)
	if _, err := prg.Read(salts); err != nil {
		return nil, err
	}

	types := [HashNum]int{hash.Murmur3, hash.Highway, hash.Murmur3}
	h := &Hasher{binCount: binCount(size)}
	for i := range h.hashers {
		var err error
		h.hashers[i], err = hash.New(types[i], salts[i*hash.SaltLength:(i+1)*hash.SaltLength])
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// BinCount returns the number of bins of a table built from this
// Hasher.
func (h *Hasher) BinCount() uint64 {
	return h.binCount
}

// BinIndices returns the candidate bins of one sparse index.
func (h *Hasher) BinIndices(item uint64) (idxs [HashNum]uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], item)
	for i := range idxs {
		idxs[i] = h.hashers[i].Hash64(buf[:]) % h.binCount
	}
	return idxs
}

// Cuckoo places sparse indices into bins so that every index ends up
// in exactly one bin reachable by one of its hash functions. Bin
// occupants are tracked through a lookup of item slots; slot 0 is a
// keeper marking an empty bin, so stored slots are offset by one.
type Cuckoo struct {
	items       []uint64
	inserted    uint64
	hashIndices []uint8
	binLookup   []uint64
	evictions   int
	prng        *rand.Rand
	*Hasher
}

// NewCuckoo builds a table for size items hashed by seed. Eviction
// choices are drawn from a generator seeded by the same seed, so a
// table built twice from the same inputs is identical.
func NewCuckoo(size uint64, seed block.Block) (*Cuckoo, error) {
	hasher, err := NewHasher(size, seed)
	if err != nil {
		return nil, err
	}
	return &Cuckoo{
		items:       make([]uint64, size+1),
		hashIndices: make([]uint8, size+1),
		binLookup:   make([]uint64, hasher.binCount),
		prng:        rand.New(rand.NewSource(int64(seed.Lo ^ seed.Hi))),
		Hasher:      hasher,
	}, nil
}

// Insert places item into one of its candidate bins, evicting and
// relocating occupants within the table wide eviction budget.
func (c *Cuckoo) Insert(item uint64) error {
	if int(c.inserted) == len(c.items)-1 {
		return ErrTableFull
	}
	slot := c.inserted + 1
	c.items[slot] = item
	binIndices := c.BinIndices(item)

	if c.tryAdd(slot, binIndices, false, 0) {
		c.inserted++
		return nil
	}

	if c.tryGreedyAdd(slot, binIndices) {
		c.inserted++
		return nil
	}
	return fmt.Errorf("inserting index %d: %w", item, ErrInsertionFailed)
}

// Occupant returns the item stored in bin bIdx along with the index
// of the hash function that placed it there.
func (c *Cuckoo) Occupant(bIdx uint64) (item uint64, hIdx uint8, ok bool) {
	slot := c.binLookup[bIdx]
	if slot == 0 {
		return 0, 0, false
	}
	return c.items[slot], c.hashIndices[slot], true
}

// LoadFactor returns the ratio of occupied bins to total bins.
func (c *Cuckoo) LoadFactor() float64 {
	occupied := 0
	for _, slot := range c.binLookup {
		if slot != 0 {
			occupied++
		}
	}
	return float64(occupied) / float64(c.binCount)
}

// tryAdd stores slot in the first free candidate bin. With ignore
// set, exceptBIdx is skipped; it was just taken by the evictor.
func (c *Cuckoo) tryAdd(slot uint64, binIndices [HashNum]uint64, ignore bool, exceptBIdx uint64) bool {
	for hIdx, bIdx := range binIndices {
		if ignore && exceptBIdx == bIdx {
			continue
		}
		if c.binLookup[bIdx] == 0 {
			c.binLookup[bIdx] = slot
			c.hashIndices[slot] = uint8(hIdx)
			return true
		}
	}
	return false
}

// tryGreedyAdd evicts a pseudorandom occupant of one of the slot's
// candidate bins, takes its place and relocates the evictee, until
// the table wide eviction budget runs out.
func (c *Cuckoo) tryGreedyAdd(slot uint64, binIndices [HashNum]uint64) bool {
	for ; c.evictions < TrialNum; c.evictions++ {
		evictedHIdx := c.prng.Intn(HashNum)
		evictedBIdx := binIndices[evictedHIdx]
		evictedSlot := c.binLookup[evictedBIdx]

		c.binLookup[evictedBIdx] = slot
		c.hashIndices[slot] = uint8(evictedHIdx)

		evictedBinIndices := c.BinIndices(c.items[evictedSlot])
		if c.tryAdd(evictedSlot, evictedBinIndices, true, evictedBIdx) {
			return true
		}

		slot = evictedSlot
		binIndices = evictedBinIndices
	}
	return false
}

func binCount(size uint64) uint64 {
	n := uint64(Factor * float64(size))
	if n < 1 {
		return 1
	}
	return n
}

// FixedBucket is one range of a regular partition of [0, n), padded
// to a power of two domain so a single GGM tree can cover it.
type FixedBucket struct {
	From  uint64
	To    uint64
	Depth int
}

// Domain returns the padded bucket domain size, 1 << Depth.
func (b FixedBucket) Domain() uint64 {
	return 1 << b.Depth
}

// FixedBuckets partitions [0, n) into t contiguous ranges of near
// equal length, each padded to the next power of two.
func FixedBuckets(n, t uint64) ([]FixedBucket, error) {
	if t == 0 || t > n {
		return nil, fmt.Errorf("cannot split %d positions into %d buckets", n, t)
	}

	out := make([]FixedBucket, t)
	width := (n + t - 1) / t
	for i := uint64(0); i < t; i++ {
		from := i * width
		to := from + width
		if to > n {
			to = n
		}
		out[i] = FixedBucket{From: from, To: to, Depth: log2Ceil(to - from)}
	}
	return out, nil
}

// log2Ceil returns the smallest d with 1<<d >= n; a single element
// range still gets a depth 1 tree.
func log2Ceil(n uint64) int {
	if n <= 2 {
		return 1
	}
	return 64 - bits.LeadingZeros64(n-1)
}
