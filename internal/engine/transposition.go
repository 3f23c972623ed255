package engine

import (
	"sync/atomic"

	"github.com/tantabus/tantabus/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // exact score (PV node)
	TTLowerBound               // failed high (beta cutoff)
	TTUpperBound               // failed low
)

// TTEntry is the decoded, user-facing view of a transposition table slot.
type TTEntry struct {
	BestMove board.Move
	Score    int16
	Depth    int8
	Flag     TTFlag
	Age      uint8
}

// packedData bit layout (50 of 64 bits used):
//
//	bits  0-15  best move
//	bits 16-31  score (as uint16, two's complement)
//	bits 32-39  depth
//	bits 40-41  bound
//	bits 42-49  age
func packData(e TTEntry) uint64 {
	d := uint64(e.BestMove)
	d |= uint64(uint16(e.Score)) << 16
	d |= uint64(uint8(e.Depth)) << 32
	d |= uint64(e.Flag) << 40
	d |= uint64(e.Age) << 42
	return d
}

func unpackData(d uint64) TTEntry {
	return TTEntry{
		BestMove: board.Move(d & 0xFFFF),
		Score:    int16(uint16((d >> 16) & 0xFFFF)),
		Depth:    int8(uint8((d >> 32) & 0xFF)),
		Flag:     TTFlag((d >> 40) & 0x3),
		Age:      uint8((d >> 42) & 0xFF),
	}
}

// ttSlot is one direct-mapped bucket: two 64-bit halves, (key^data, data).
// A reader recomputes keyXorData^data and compares against the key it is
// probing for; a match proves the two halves were written as a pair, even
// if another goroutine tore the write by storing into the same slot
// concurrently. No lock guards either half — both are plain atomics.
type ttSlot struct {
	keyXorData atomic.Uint64
	data       atomic.Uint64
}

// TranspositionTable is a lock-free, direct-mapped hash table shared by all
// search workers. Replacement policy is Always Replace; age is carried for
// future replacement policies but does not currently gate a store.
type TranspositionTable struct {
	slots []ttSlot
	mask  uint64
	age   atomic.Uint32

	hits   atomic.Uint64
	probes atomic.Uint64
}

const ttEntrySize = 16 // bytes: two uint64 halves

// NewTranspositionTable creates a table sized to the largest power of two
// number of entries that fits in sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	numEntries := (uint64(sizeMB) * 1024 * 1024) / ttEntrySize
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}
	return &TranspositionTable{
		slots: make([]ttSlot, numEntries),
		mask:  numEntries - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2 (n >= 1).
func roundDownToPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Resize reallocates the table to the given size in megabytes. Per §5, this
// happens only on `setoption Hash`, never mid-search.
func (tt *TranspositionTable) Resize(sizeMB int) {
	numEntries := (uint64(sizeMB) * 1024 * 1024) / ttEntrySize
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}
	tt.slots = make([]ttSlot, numEntries)
	tt.mask = numEntries - 1
	tt.age.Store(0)
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// Probe looks up a position. The XOR trick rejects torn concurrent writes:
// a slot is only accepted if keyXorData^data reproduces the probed key.
func (tt *TranspositionTable) Probe(key uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	idx := key & tt.mask
	slot := &tt.slots[idx]

	kx := slot.keyXorData.Load()
	d := slot.data.Load()

	if kx^d != key {
		return TTEntry{}, false
	}

	tt.hits.Add(1)
	return unpackData(d), true
}

// Store unconditionally overwrites the slot for key (Always Replace).
// Mate scores must already be encoded ply-relative by the caller (see
// AdjustScoreToTT).
func (tt *TranspositionTable) Store(key uint64, depth int, score int, flag TTFlag, bestMove board.Move) {
	idx := key & tt.mask
	slot := &tt.slots[idx]

	entry := TTEntry{
		BestMove: bestMove,
		Score:    int16(score),
		Depth:    int8(depth),
		Flag:     flag,
		Age:      uint8(tt.age.Load()),
	}
	d := packData(entry)

	// Write data first, then the XOR tag, so a concurrent reader either sees
	// the fully-old pair (still self-consistent) or the fully-new pair,
	// never a mix that would validate against the wrong data. Do not
	// reorder these two stores or elide the XOR: that defeats torn-write
	// detection, which is the entire point of this layout.
	slot.data.Store(d)
	slot.keyXorData.Store(key ^ d)
}

// NewSearch advances the age generation. Called once per top-level search.
func (tt *TranspositionTable) NewSearch() {
	tt.age.Add(1)
}

// Clear zeroes every slot, used on `ucinewgame`. Resize does not call it; it
// allocates a fresh, already-zeroed table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.slots {
		tt.slots[i].keyXorData.Store(0)
		tt.slots[i].data.Store(0)
	}
	tt.age.Store(0)
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// HashFull samples the first 1000 slots and reports permille occupancy.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := 1000
	if uint64(sampleSize) > uint64(len(tt.slots)) {
		sampleSize = len(tt.slots)
	}
	if sampleSize == 0 {
		return 0
	}

	currentAge := uint8(tt.age.Load())
	used := 0
	for i := 0; i < sampleSize; i++ {
		d := tt.slots[i].data.Load()
		kx := tt.slots[i].keyXorData.Load()
		if d == 0 && kx == 0 {
			continue
		}
		entry := unpackData(d)
		if entry.Age == currentAge {
			used++
		}
	}
	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage, for diagnostics.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of slots in the table.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.slots))
}

// AdjustScoreFromTT converts a ply-relative mate score read from the table
// back to a root-relative score at the current ply.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT converts a root-relative mate score to ply-relative before
// storing it, so that hits from different subtrees don't misreport distance
// to mate.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
