package engine

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/tantabus/tantabus/internal/board"
)

func TestTTRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)
	rng := rand.New(rand.NewSource(1))

	type stored struct {
		key      uint64
		depth    int
		score    int
		flag     TTFlag
		bestMove board.Move
	}

	seen := make(map[uint64]stored)
	for i := 0; i < 2000; i++ {
		s := stored{
			key:      rng.Uint64(),
			depth:    rng.Intn(64),
			score:    rng.Intn(2*Infinity) - Infinity,
			flag:     TTFlag(rng.Intn(3)),
			bestMove: board.Move(rng.Intn(1 << 16)),
		}
		tt.Store(s.key, s.depth, s.score, s.flag, s.bestMove)
		seen[s.key] = s
	}

	for key, want := range seen {
		entry, found := tt.Probe(key)
		if !found {
			// A later store with a colliding index may have overwritten this
			// key; only a genuine hit is checked for exact content.
			continue
		}
		if entry.Depth != int8(want.depth) || int(entry.Score) != want.score ||
			entry.Flag != want.flag || entry.BestMove != want.bestMove {
			t.Errorf("probe(%x) = %+v, want fields from %+v", key, entry, want)
		}
	}

	if _, found := tt.Probe(rng.Uint64() | 1<<63); found {
		// Vanishingly unlikely to collide with a stored key; not fatal if it
		// does, but worth flagging since it would mean a weak hash split.
		t.Log("random unseen key reported a hit (collision, not necessarily a bug)")
	}
}

// TestTTConcurrentStress hammers one table from many goroutines and checks
// that every successful probe decodes to a self-consistent entry — never a
// torn mix of two different stores' halves.
func TestTTConcurrentStress(t *testing.T) {
	tt := NewTranspositionTable(1)

	const goroutines = 8
	const opsPerGoroutine = 150000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerGoroutine; i++ {
				key := rng.Uint64() & 0xFFFF // small keyspace: force heavy collisions
				if i%3 == 0 {
					entry, found := tt.Probe(key)
					if found && (entry.Depth < 0 || entry.Depth >= 64) {
						t.Errorf("torn read: improbable depth %d", entry.Depth)
					}
					continue
				}
				score := int(rng.Intn(2*Infinity) - Infinity)
				depth := rng.Intn(64)
				flag := TTFlag(rng.Intn(3))
				move := board.Move(rng.Intn(1 << 16))
				tt.Store(key, depth, score, flag, move)
			}
		}(int64(g + 1))
	}
	wg.Wait()
}

func TestMateScoreMonotonicity(t *testing.T) {
	mateIn3 := MateScore - 3

	for ply := 0; ply < 40; ply++ {
		toTT := AdjustScoreToTT(mateIn3, ply)
		back := AdjustScoreFromTT(toTT, ply)
		if back != mateIn3 {
			t.Errorf("ply %d: round trip %d -> %d -> %d, want %d", ply, mateIn3, toTT, back, mateIn3)
		}
	}

	// Storing at ply 5 and reading back at that same ply is an exact
	// inverse: the root-relative mate score comes back unchanged.
	stored := AdjustScoreToTT(mateIn3, 5)
	if got := AdjustScoreFromTT(stored, 5); got != mateIn3 {
		t.Errorf("got %d, want %d", got, mateIn3)
	}

	matedIn3 := -MateScore + 3
	toTT := AdjustScoreToTT(matedIn3, 7)
	if back := AdjustScoreFromTT(toTT, 7); back != matedIn3 {
		t.Errorf("mated round trip: got %d, want %d", back, matedIn3)
	}

	// Ordinary centipawn scores are untouched by ply adjustment.
	if got := AdjustScoreToTT(37, 12); got != 37 {
		t.Errorf("non-mate score was adjusted: got %d, want 37", got)
	}
}

func TestTTResizeAndClear(t *testing.T) {
	tt := NewTranspositionTable(1)
	tt.Store(42, 10, 100, TTExact, board.NewMove(board.E2, board.E4))

	if _, found := tt.Probe(42); !found {
		t.Fatal("expected hit before resize")
	}

	tt.Resize(2)
	if _, found := tt.Probe(42); found {
		t.Error("expected miss after resize wiped the table")
	}

	tt.Store(7, 5, -50, TTUpperBound, board.NewMove(board.D2, board.D4))
	tt.Clear()
	if _, found := tt.Probe(7); found {
		t.Error("expected miss after Clear")
	}
}
